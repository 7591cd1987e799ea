package models

import (
	"errors"
	"fmt"
	"testing"
)

// TestJobStatusTerminal tests terminal state classification
func TestJobStatusTerminal(t *testing.T) {
	terminal := []JobStatus{JobStatusCompleted, JobStatusFailed}
	for _, status := range terminal {
		if !status.Terminal() {
			t.Errorf("Expected %s to be terminal", status)
		}
	}

	active := []JobStatus{JobStatusPreparing, JobStatusPreprocessing, JobStatusTraining}
	for _, status := range active {
		if status.Terminal() {
			t.Errorf("Expected %s to be non-terminal", status)
		}
	}
}

// TestErrorUnwrapping tests that wrapping errors expose their cause
func TestErrorUnwrapping(t *testing.T) {
	cause := fmt.Errorf("root cause")

	wrappers := []error{
		&PredictionError{ModelID: "m1", Cause: cause},
		&TrainingError{ModelID: "m1", JobID: "j1", Cause: cause},
		&PipelineStepError{PipelineID: "p1", StepIndex: 2, StepName: "s", Cause: cause},
	}
	for _, err := range wrappers {
		if !errors.Is(err, cause) {
			t.Errorf("%T does not unwrap to its cause", err)
		}
		if err.Error() == "" {
			t.Errorf("%T has an empty message", err)
		}
	}
}
