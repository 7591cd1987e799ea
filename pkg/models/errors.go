package models

import "fmt"

// NotFoundError reports an unknown model, pipeline or job id
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// NotReadyError reports a model that exists but is not in the ready state
type NotReadyError struct {
	ModelID string
	Status  ModelStatus
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("model %s is not ready (status: %s)", e.ModelID, e.Status)
}

// DuplicateModelError reports a registration against an id that is already
// registered and ready
type DuplicateModelError struct {
	ModelID string
}

func (e *DuplicateModelError) Error() string {
	return fmt.Sprintf("model already registered: %s", e.ModelID)
}

// CapacityError reports that the training concurrency cap has been reached
type CapacityError struct {
	Active int
	Limit  int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("training capacity reached: %d active jobs (limit %d)", e.Active, e.Limit)
}

// PredictionError wraps any failure on the prediction path
type PredictionError struct {
	ModelID string
	Cause   error
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("prediction failed for model %s: %v", e.ModelID, e.Cause)
}

func (e *PredictionError) Unwrap() error { return e.Cause }

// TrainingError wraps any failure on the training path
type TrainingError struct {
	ModelID string
	JobID   string
	Cause   error
}

func (e *TrainingError) Error() string {
	return fmt.Sprintf("training job %s failed for model %s: %v", e.JobID, e.ModelID, e.Cause)
}

func (e *TrainingError) Unwrap() error { return e.Cause }

// PipelineStepError wraps the originating step's error with its position
type PipelineStepError struct {
	PipelineID string
	StepIndex  int
	StepName   string
	Cause      error
}

func (e *PipelineStepError) Error() string {
	return fmt.Sprintf("pipeline %s step %d (%s) failed: %v", e.PipelineID, e.StepIndex, e.StepName, e.Cause)
}

func (e *PipelineStepError) Unwrap() error { return e.Cause }
