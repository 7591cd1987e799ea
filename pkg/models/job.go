package models

import "time"

// JobStatus represents the current status of a training job
type JobStatus string

const (
	JobStatusPreparing     JobStatus = "preparing"
	JobStatusPreprocessing JobStatus = "preprocessing"
	JobStatusTraining      JobStatus = "training"
	JobStatusCompleted     JobStatus = "completed"
	JobStatusFailed        JobStatus = "failed"
)

// Terminal reports whether the status is a terminal state
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// TrainingJob represents one run of a training operation against a model.
// Jobs in a terminal state are removed from the manager's active set and
// survive only as emitted events and optional history rows.
type TrainingJob struct {
	ID           string             `json:"job_id"`
	ModelID      string             `json:"model_id"`
	Status       JobStatus          `json:"status"`
	Progress     float64            `json:"progress"` // 0-100
	Metrics      map[string]float64 `json:"metrics,omitempty"`
	ErrorMessage string             `json:"error_message,omitempty"`
	StartTime    time.Time          `json:"start_time"`
	EndTime      *time.Time         `json:"end_time,omitempty"`
}

// TrainOptions controls a single training run
type TrainOptions struct {
	Config TrainingConfig `json:"config"`
	Save   bool           `json:"save"`
}
