// Package seed provides the clinical stations a visit is created with.
package seed

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/normanwashere/patient-portal-prototype-sub005/internal/models"
)

var (
	ErrNoSteps           = errors.New("seed has no steps")
	ErrDuplicateStep     = errors.New("duplicate step id")
	ErrInvalidDependency = errors.New("invalid dependency")
	ErrInvalidStep       = errors.New("invalid step")
)

type File struct {
	Steps []models.QueueStep `yaml:"steps"`
}

// Default is the outpatient visit used when no seed file is configured.
func Default() []models.QueueStep {
	labsAndImaging := []string{"lab-cbc", "lab-urinalysis", "imaging-xray", "imaging-ultrasound"}
	return []models.QueueStep{
		{ID: "triage", Label: "Triage & Vitals", Location: "Nurse Station 2", Floor: "1F", Wing: "East Wing", Type: models.StepTriage, WaitMinutes: 10, Ticket: "T-014"},
		{ID: "consult", Label: "Doctor Consultation", Location: "Internal Medicine, Room 204", Floor: "2F", Wing: "East Wing", Type: models.StepConsult, WaitMinutes: 25, Ticket: "C-027", Dependencies: []string{"triage"}},
		{ID: "lab-cbc", Label: "Complete Blood Count", Location: "Laboratory Extraction", Floor: "1F", Wing: "West Wing", Type: models.StepLab, WaitMinutes: 15, Ticket: "L-105", Dependencies: []string{"consult"}},
		{ID: "lab-urinalysis", Label: "Urinalysis", Location: "Laboratory Specimen Drop", Floor: "1F", Wing: "West Wing", Type: models.StepLab, WaitMinutes: 10, Ticket: "L-106", Dependencies: []string{"consult"}},
		{ID: "imaging-xray", Label: "Chest X-Ray", Location: "Radiology, Room 3", Floor: "B1", Wing: "North Wing", Type: models.StepImaging, WaitMinutes: 20, Ticket: "X-041", Dependencies: []string{"consult"}},
		{ID: "imaging-ultrasound", Label: "Abdominal Ultrasound", Location: "Radiology, Room 7", Floor: "B1", Wing: "North Wing", Type: models.StepImaging, WaitMinutes: 30, Ticket: "U-018", Dependencies: []string{"consult"}},
		{ID: "pharmacy", Label: "Pharmacy Pickup", Location: "Outpatient Pharmacy", Floor: "1F", Wing: "Main Lobby", Type: models.StepPharmacy, WaitMinutes: 15, Ticket: "P-233", Dependencies: labsAndImaging},
		{ID: "billing", Label: "Billing & Discharge", Location: "Cashier Window 4", Floor: "1F", Wing: "Main Lobby", Type: models.StepBilling, WaitMinutes: 5, Ticket: "B-309", Dependencies: []string{"pharmacy"}},
	}
}

// Load reads a YAML seed file. An empty path yields Default.
func Load(path string) ([]models.QueueStep, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) ([]models.QueueStep, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	for i := range file.Steps {
		file.Steps[i].Status = models.StatusPending
	}
	if err := Validate(file.Steps); err != nil {
		return nil, err
	}
	return file.Steps, nil
}

// Validate checks that ids are unique and every dependency names an earlier
// step. Ordering dependencies before dependents keeps the graph acyclic and
// lets LINEAR mode reach every step.
func Validate(steps []models.QueueStep) error {
	if len(steps) == 0 {
		return ErrNoSteps
	}
	seen := make(map[string]bool, len(steps))
	for _, step := range steps {
		if step.ID == "" {
			return fmt.Errorf("%w: step without id", ErrInvalidStep)
		}
		if step.Type != "" && !step.Type.Valid() {
			return fmt.Errorf("%w: %s has unknown type %q", ErrInvalidStep, step.ID, step.Type)
		}
		if seen[step.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateStep, step.ID)
		}
		for _, dep := range step.Dependencies {
			if dep == step.ID {
				return fmt.Errorf("%w: %s depends on itself", ErrInvalidDependency, step.ID)
			}
			if !seen[dep] {
				return fmt.Errorf("%w: %s depends on %s which is not an earlier step", ErrInvalidDependency, step.ID, dep)
			}
		}
		seen[step.ID] = true
	}
	return nil
}
