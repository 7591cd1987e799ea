// Package pipeline implements the multi-step pipeline engine: ordered
// heterogeneous steps threading a single data value, with predict steps
// dispatched through the prediction path.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inferd-ai/inferd-go/pkg/events"
	"github.com/inferd-ai/inferd-go/pkg/metadatastore"
	"github.com/inferd-ai/inferd-go/pkg/models"
	"github.com/inferd-ai/inferd-go/pkg/predict"
)

// Service provides pipeline creation and execution
type Service struct {
	predictor *predict.Service
	sink      events.Sink
	store     metadatastore.Store // optional write-through persistence

	mu        sync.RWMutex
	pipelines map[string]*models.Pipeline
}

// Option configures a Service
type Option func(*Service)

// WithStore enables write-through persistence of pipeline definitions
func WithStore(store metadatastore.Store) Option {
	return func(s *Service) { s.store = store }
}

// NewService creates a pipeline service
func NewService(predictor *predict.Service, sink events.Sink, opts ...Option) *Service {
	s := &Service{
		predictor: predictor,
		sink:      sink,
		pipelines: make(map[string]*models.Pipeline),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates and stores a pipeline. Step order is fixed here; model
// references on predict steps are resolved at execution time, not now.
func (s *Service) Create(pipelineID string, steps []models.PipelineStep) (*models.Pipeline, error) {
	if pipelineID == "" {
		return nil, fmt.Errorf("pipeline id is required")
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("pipeline must have at least one step")
	}
	for i := range steps {
		if err := steps[i].Validate(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	pipeline := &models.Pipeline{
		ID:        pipelineID,
		Steps:     append([]models.PipelineStep(nil), steps...),
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	if _, exists := s.pipelines[pipelineID]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("pipeline already exists: %s", pipelineID)
	}
	s.pipelines[pipelineID] = pipeline
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.SavePipeline(pipeline); err != nil {
			log.Printf("Error persisting pipeline %s: %v", pipelineID, err)
		}
	}

	snapshot := *pipeline
	return &snapshot, nil
}

// Get retrieves a pipeline snapshot by ID
func (s *Service) Get(pipelineID string) (*models.Pipeline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pipeline, ok := s.pipelines[pipelineID]
	if !ok {
		return nil, &models.NotFoundError{Resource: "pipeline", ID: pipelineID}
	}
	snapshot := *pipeline
	return &snapshot, nil
}

// Metrics returns a snapshot of per-pipeline execution metrics
func (s *Service) Metrics() map[string]models.PipelineMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]models.PipelineMetrics, len(s.pipelines))
	for id, pipeline := range s.pipelines {
		out[id] = pipeline.Metrics
	}
	return out
}

// Execute runs the pipeline's steps strictly in order, threading one data
// value through them. A step failure halts execution: the returned Execution
// is marked failed and the error, wrapped in a PipelineStepError, is also
// returned. No later steps run.
func (s *Service) Execute(ctx context.Context, pipelineID string, input interface{}, opts models.ExecuteOptions) (*models.Execution, error) {
	s.mu.RLock()
	pipeline, ok := s.pipelines[pipelineID]
	var steps []models.PipelineStep
	if ok {
		steps = pipeline.Steps
	}
	s.mu.RUnlock()
	if !ok {
		return nil, &models.NotFoundError{Resource: "pipeline", ID: pipelineID}
	}

	execution := &models.Execution{
		ID:         uuid.New().String(),
		PipelineID: pipelineID,
		Status:     "running",
		StartedAt:  time.Now(),
	}

	log.Printf("Executing pipeline %s - %d steps", pipelineID, len(steps))

	data := input
	for i, step := range steps {
		output, err := s.runStep(ctx, &step, data)
		if err != nil {
			stepErr := &models.PipelineStepError{
				PipelineID: pipelineID,
				StepIndex:  i,
				StepName:   step.Name,
				Cause:      err,
			}
			now := time.Now()
			execution.Status = "failed"
			execution.Error = stepErr.Error()
			execution.CompletedAt = &now
			execution.Results = append(execution.Results, models.StepResult{
				Index:  i,
				Name:   step.Name,
				Status: models.StepStatusFailed,
			})

			s.recordExecution(pipelineID, 0, true)
			s.sink.Emit(events.New(events.PipelineFailed, map[string]interface{}{
				"pipeline_id":  pipelineID,
				"execution_id": execution.ID,
				"step":         step.Name,
				"error":        err.Error(),
			}))
			return execution, stepErr
		}

		data = output
		result := models.StepResult{Index: i, Name: step.Name, Status: models.StepStatusCompleted}
		if opts.IncludeIntermediateResults {
			result.Output = output
		}
		execution.Results = append(execution.Results, result)
	}

	now := time.Now()
	elapsed := now.Sub(execution.StartedAt)
	execution.Status = "completed"
	execution.Output = data
	execution.CompletedAt = &now

	s.recordExecution(pipelineID, elapsed, false)
	s.sink.Emit(events.New(events.PipelineCompleted, map[string]interface{}{
		"pipeline_id":  pipelineID,
		"execution_id": execution.ID,
		"elapsed_ms":   elapsed.Milliseconds(),
	}))
	return execution, nil
}

// runStep dispatches a single step on its kind
func (s *Service) runStep(ctx context.Context, step *models.PipelineStep, data interface{}) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch step.Kind {
	case models.StepKindPredict:
		return s.predictor.Predict(ctx, step.ModelID, data, predict.Options{})
	case models.StepKindCustom:
		return step.Execute(data, step.Params)
	case models.StepKindPreprocess, models.StepKindTransform, models.StepKindAggregate:
		if step.Execute != nil {
			return step.Execute(data, step.Params)
		}
		return runBuiltin(step.Kind, step.Operation, data, step.Params)
	default:
		return nil, fmt.Errorf("unknown step kind: %s", step.Kind)
	}
}

// recordExecution updates pipeline aggregate metrics under the service lock
func (s *Service) recordExecution(pipelineID string, elapsed time.Duration, failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pipeline, ok := s.pipelines[pipelineID]
	if !ok {
		return
	}
	if failed {
		pipeline.Metrics.Errors++
		return
	}
	pipeline.Metrics.Executions++
	pipeline.Metrics.TotalTime += elapsed
}
