package models

import (
	"fmt"
	"time"
)

// StepKind identifies one of the closed set of pipeline step kinds
type StepKind string

const (
	StepKindPreprocess StepKind = "preprocess"
	StepKindPredict    StepKind = "predict"
	StepKindTransform  StepKind = "transform"
	StepKindAggregate  StepKind = "aggregate"
	StepKindCustom     StepKind = "custom"
)

// StepStatus represents the execution state of a step within one execution
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
)

// StepFunc is the execution function of a custom step. It receives the
// current data value and the step parameters and returns the new data value.
type StepFunc func(data interface{}, params map[string]interface{}) (interface{}, error)

// PipelineStep is one stage of a pipeline, tagged by kind.
// Operation names a built-in operation for preprocess/transform/aggregate
// steps; Execute overrides the built-in when set. Predict steps reference a
// model by ID, resolved at execution time.
type PipelineStep struct {
	Kind      StepKind               `json:"kind" yaml:"kind"`
	Name      string                 `json:"name" yaml:"name"`
	Operation string                 `json:"operation,omitempty" yaml:"operation,omitempty"`
	ModelID   string                 `json:"model_id,omitempty" yaml:"model_id,omitempty"`
	Params    map[string]interface{} `json:"params,omitempty" yaml:"params,omitempty"`
	Execute   StepFunc               `json:"-" yaml:"-"`
}

// Validate checks that the step carries what its kind requires
func (s *PipelineStep) Validate() error {
	switch s.Kind {
	case StepKindPredict:
		if s.ModelID == "" {
			return fmt.Errorf("predict step %q requires a model_id", s.Name)
		}
	case StepKindCustom:
		if s.Execute == nil {
			return fmt.Errorf("custom step %q requires an execute function", s.Name)
		}
	case StepKindPreprocess, StepKindTransform, StepKindAggregate:
		if s.Operation == "" && s.Execute == nil {
			return fmt.Errorf("%s step %q requires an operation or an execute function", s.Kind, s.Name)
		}
	default:
		return fmt.Errorf("unknown step kind: %s", s.Kind)
	}
	return nil
}

// PipelineMetrics holds aggregate execution metrics for one pipeline
type PipelineMetrics struct {
	Executions int64         `json:"executions"`
	TotalTime  time.Duration `json:"total_time"`
	Errors     int64         `json:"errors"`
}

// Pipeline is an ordered, reusable sequence of steps. Step order is fixed at
// creation and is the only execution order.
type Pipeline struct {
	ID        string          `json:"id"`
	Steps     []PipelineStep  `json:"steps"`
	Metrics   PipelineMetrics `json:"metrics"`
	CreatedAt time.Time       `json:"created_at"`
}

// StepResult is a per-step snapshot recorded on an execution. Output is only
// populated when the execution requested intermediate results.
type StepResult struct {
	Index  int         `json:"index"`
	Name   string      `json:"name"`
	Status StepStatus  `json:"status"`
	Output interface{} `json:"output,omitempty"`
}

// Execution records a single run of a pipeline. It is returned to the caller
// and not retained by the engine.
type Execution struct {
	ID          string       `json:"id"`
	PipelineID  string       `json:"pipeline_id"`
	Status      string       `json:"status"`
	Output      interface{}  `json:"output,omitempty"`
	Results     []StepResult `json:"results"`
	Error       string       `json:"error,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// ExecuteOptions controls a single pipeline execution
type ExecuteOptions struct {
	IncludeIntermediateResults bool `json:"include_intermediate_results"`
}
