package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/normanwashere/patient-portal-prototype-sub005/internal/models"
	"github.com/normanwashere/patient-portal-prototype-sub005/internal/seed"
	"github.com/normanwashere/patient-portal-prototype-sub005/internal/workflow"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSeedCommandShowsDefaultSteps(t *testing.T) {
	out, err := runCLI(t, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "triage")
	assert.Contains(t, out, "B-309")
	assert.Contains(t, out, "lab-cbc, lab-urinalysis, imaging-xray, imaging-ultrasound")
}

func TestSeedCommandYAMLRoundTripsThroughLoader(t *testing.T) {
	out, err := runCLI(t, "seed", "--yaml")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(out), 0o600))
	steps, err := seed.Load(path)
	require.NoError(t, err)
	assert.Equal(t, seed.Default(), clearStatus(steps))

	var file seed.File
	require.NoError(t, yaml.Unmarshal([]byte(out), &file))
	assert.Len(t, file.Steps, 8)
}

func TestSeedCommandRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("steps:\n  - id: a\n    dependencies: [b]\n  - id: b\n"), 0o600))

	_, err := runCLI(t, "seed", "--seed-file", path)
	assert.ErrorIs(t, err, seed.ErrInvalidDependency)
}

func TestSimulateLinearCompletesVisit(t *testing.T) {
	out, err := runCLI(t, "simulate", "--ticks", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "Visit complete")
	assert.Contains(t, out, "triage PENDING>QUEUED")
}

func TestSimulateMultiStreamNeedsQueueAll(t *testing.T) {
	out, err := runCLI(t, "simulate", "--mode", "multi_stream", "--ticks", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "Visit incomplete after 10 ticks")

	out, err = runCLI(t, "simulate", "--mode", "MULTI_STREAM", "--queue-all", "--ticks", "40")
	require.NoError(t, err)
	assert.Contains(t, out, "Visit complete")
}

func TestSimulateRejectsBadFlags(t *testing.T) {
	_, err := runCLI(t, "simulate", "--mode", "fifo")
	assert.Error(t, err)

	_, err = runCLI(t, "simulate", "--ticks", "0")
	assert.Error(t, err)
}

func TestSimulateStopsAtCompletion(t *testing.T) {
	steps := []models.QueueStep{{ID: "a", Label: "A"}, {ID: "b", Label: "B", Dependencies: []string{"a"}}}
	engine := workflow.New("sim", steps)

	rows := simulate(engine, simulateOptions{ticks: 50})

	assert.True(t, engine.IsVisitComplete())
	require.NotEmpty(t, rows)
	assert.Equal(t, "100%", rows[len(rows)-1][2])
}

func clearStatus(steps []models.QueueStep) []models.QueueStep {
	out := make([]models.QueueStep, len(steps))
	for i, step := range steps {
		step.Status = ""
		out[i] = step
	}
	return out
}

func TestRenderTableRightAlignsNumericColumns(t *testing.T) {
	out := renderTable([]string{"Step", "Wait"}, [][]string{{"triage", "5"}, {"consult"}}, 2)

	assert.Contains(t, out, "│ triage  │    5 │")
	assert.Contains(t, out, "│ consult │      │")
}
