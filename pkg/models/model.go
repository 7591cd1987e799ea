package models

import (
	"fmt"
	"time"
)

// ModelKind identifies the computation family backing a model. Each kind
// registers a capability implementation that knows how to load, run and
// train handles of this kind.
type ModelKind string

const (
	ModelKindEcho       ModelKind = "echo"
	ModelKindRegression ModelKind = "regression"
	ModelKindClassifier ModelKind = "classifier"
)

// ModelStatus represents the lifecycle state of a registered model
type ModelStatus string

const (
	ModelStatusLoading ModelStatus = "loading" // Load capability still running
	ModelStatusReady   ModelStatus = "ready"   // Model is addressable
	ModelStatusFailed  ModelStatus = "failed"  // Load failed
)

// Model represents a registered, loaded predictive computation unit.
// The Handle is owned exclusively by the registry entry; other components
// must go through the registry for any model access.
type Model struct {
	ID        string       `json:"id"`
	Kind      ModelKind    `json:"kind"`
	Status    ModelStatus  `json:"status"`
	Version   string       `json:"version"`
	Handle    interface{}  `json:"-"`
	Metrics   ModelMetrics `json:"metrics"`
	CreatedAt time.Time    `json:"created_at"`
}

// ModelMetrics holds per-model usage and training metrics
type ModelMetrics struct {
	PredictionCount         int64         `json:"prediction_count"`
	CumulativeInferenceTime time.Duration `json:"cumulative_inference_time"`
	LastUsedAt              *time.Time    `json:"last_used_at,omitempty"`
	TrainedAccuracy         *float64      `json:"trained_accuracy,omitempty"`
	TrainedError            *float64      `json:"trained_error,omitempty"`
}

// ModelConfig holds configuration for registering a model
type ModelConfig struct {
	Kind       ModelKind              `json:"kind"`
	Version    string                 `json:"version,omitempty"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// Validate checks if the ModelConfig is valid
func (c *ModelConfig) Validate() error {
	if c.Kind == "" {
		return fmt.Errorf("kind is required")
	}
	return nil
}

// TrainingData holds raw training samples handed to the job manager.
// Labels is used by classification kinds, Targets by regression kinds.
type TrainingData struct {
	Features     [][]float64 `json:"features"`
	Labels       []string    `json:"labels,omitempty"`
	Targets      []float64   `json:"targets,omitempty"`
	FeatureNames []string    `json:"feature_names,omitempty"`
}

// TrainingConfig holds configuration for a training run
type TrainingConfig struct {
	Epochs          int                    `json:"epochs,omitempty"`
	LearningRate    float64                `json:"learning_rate,omitempty"`
	Hyperparameters map[string]interface{} `json:"hyperparameters,omitempty"`
}
