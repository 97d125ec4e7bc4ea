package seed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanwashere/patient-portal-prototype-sub005/internal/models"
)

func TestDefaultSeedIsValid(t *testing.T) {
	steps := Default()
	require.NoError(t, Validate(steps))
	assert.Len(t, steps, 8)
	assert.Equal(t, "triage", steps[0].ID)
	assert.Empty(t, steps[0].Dependencies)
	assert.Equal(t, []string{"pharmacy"}, steps[len(steps)-1].Dependencies)
}

func TestLoadEmptyPathUsesDefault(t *testing.T) {
	steps, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), steps)
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.yaml")
	content := `
steps:
  - id: triage
    label: Triage
    type: TRIAGE
    wait_minutes: 5
    ticket: T-001
  - id: consult
    label: Consult
    type: CONSULT
    location: Room 3
    floor: 2F
    wing: East
    ticket: C-002
    dependencies: [triage]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	steps, err := Load(path)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, models.StatusPending, steps[1].Status)
	assert.Equal(t, "Room 3", steps[1].Location)
	assert.Equal(t, []string{"triage"}, steps[1].Dependencies)
	assert.Equal(t, 5, steps[0].WaitMinutes)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidateRejectsBadSeeds(t *testing.T) {
	cases := []struct {
		name  string
		steps []models.QueueStep
		err   error
	}{
		{"empty", nil, ErrNoSteps},
		{"missing id", []models.QueueStep{{Label: "x"}}, ErrInvalidStep},
		{"unknown type", []models.QueueStep{{ID: "a", Type: "SURGERY"}}, ErrInvalidStep},
		{"duplicate", []models.QueueStep{{ID: "a"}, {ID: "a"}}, ErrDuplicateStep},
		{"self dependency", []models.QueueStep{{ID: "a", Dependencies: []string{"a"}}}, ErrInvalidDependency},
		{"forward dependency", []models.QueueStep{{ID: "a", Dependencies: []string{"b"}}, {ID: "b"}}, ErrInvalidDependency},
		{"unknown dependency", []models.QueueStep{{ID: "a", Dependencies: []string{"zzz"}}}, ErrInvalidDependency},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, Validate(tt.steps), tt.err)
		})
	}
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("steps: [unterminated"))
	require.Error(t, err)
}
