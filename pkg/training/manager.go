// Package training runs long-lived training operations against registered
// models under a global concurrency cap, with progress events and guaranteed
// cleanup of the active-job set.
package training

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/inferd-ai/inferd-go/pkg/capability"
	"github.com/inferd-ai/inferd-go/pkg/events"
	"github.com/inferd-ai/inferd-go/pkg/metadatastore"
	"github.com/inferd-ai/inferd-go/pkg/models"
	"github.com/inferd-ai/inferd-go/pkg/registry"
)

// DefaultMaxConcurrentJobs bounds simultaneous training runs when no cap is
// configured
const DefaultMaxConcurrentJobs = 2

// Manager runs training jobs. The slot for a job is reserved atomically with
// the capacity check, so a burst of submissions can never overshoot the cap.
type Manager struct {
	registry  *registry.Registry
	caps      *capability.Table
	sink      events.Sink
	store     metadatastore.Store      // optional job history
	artifacts capability.ArtifactStore // optional save target

	maxConcurrent int

	mu     sync.Mutex
	active map[string]*models.TrainingJob
}

// Option configures a Manager
type Option func(*Manager)

// WithHistory enables persistence of terminal job rows
func WithHistory(store metadatastore.Store) Option {
	return func(m *Manager) { m.store = store }
}

// WithArtifacts sets the store trained models are saved into
func WithArtifacts(store capability.ArtifactStore) Option {
	return func(m *Manager) { m.artifacts = store }
}

// NewManager creates a training job manager with the given concurrency cap
func NewManager(reg *registry.Registry, caps *capability.Table, sink events.Sink, maxConcurrent int, opts ...Option) *Manager {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentJobs
	}
	m := &Manager{
		registry:      reg,
		caps:          caps,
		sink:          sink,
		maxConcurrent: maxConcurrent,
		active:        make(map[string]*models.TrainingJob),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ActiveCount returns the number of non-terminal jobs
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// TrainModel runs one training job to a terminal state and returns it.
// Unknown model ids fail with NotFoundError before a slot is taken; a full
// active set fails with CapacityError. Any later failure is recorded on the
// job, emitted as training:failed and returned wrapped in a TrainingError.
func (m *Manager) TrainModel(ctx context.Context, modelID string, data models.TrainingData, opts models.TrainOptions) (*models.TrainingJob, error) {
	if _, err := m.registry.Lookup(modelID); err != nil {
		return nil, err
	}

	start := time.Now().UTC()
	job := &models.TrainingJob{
		ID:        fmt.Sprintf("%s-%d", modelID, start.UnixNano()),
		ModelID:   modelID,
		Status:    models.JobStatusPreparing,
		StartTime: start,
	}

	// Reserve the slot atomically with the capacity check
	m.mu.Lock()
	if len(m.active) >= m.maxConcurrent {
		count := len(m.active)
		m.mu.Unlock()
		return nil, &models.CapacityError{Active: count, Limit: m.maxConcurrent}
	}
	m.active[job.ID] = job
	m.mu.Unlock()

	// The active-set removal is the sole enforcement point of the cap and
	// must run on every exit path.
	defer func() {
		m.mu.Lock()
		delete(m.active, job.ID)
		m.mu.Unlock()
		m.recordHistory(job)
	}()

	m.sink.Emit(events.New(events.TrainingStarted, map[string]interface{}{
		"job_id":   job.ID,
		"model_id": modelID,
	}))

	if err := m.run(ctx, job, data, opts); err != nil {
		now := time.Now().UTC()
		m.mu.Lock()
		job.Status = models.JobStatusFailed
		job.ErrorMessage = err.Error()
		job.EndTime = &now
		snapshot := *job
		m.mu.Unlock()

		m.sink.Emit(events.New(events.TrainingFailed, map[string]interface{}{
			"job_id":   job.ID,
			"model_id": modelID,
			"error":    err.Error(),
		}))
		return &snapshot, &models.TrainingError{ModelID: modelID, JobID: job.ID, Cause: err}
	}

	m.mu.Lock()
	snapshot := *job
	m.mu.Unlock()
	return &snapshot, nil
}

// run executes the preparing -> preprocessing -> training -> completed
// sequence on the job
func (m *Manager) run(ctx context.Context, job *models.TrainingJob, data models.TrainingData, opts models.TrainOptions) error {
	// Hold the model for the whole run so unregistration cannot dispose the
	// handle while the kind is training on it.
	model, release, err := m.registry.Acquire(job.ModelID)
	if err != nil {
		return err
	}
	defer release()

	c, err := m.caps.Get(model.Kind)
	if err != nil {
		return err
	}

	m.setStatus(job, models.JobStatusPreprocessing)
	prepared, err := c.PrepareTraining(ctx, data)
	if err != nil {
		return fmt.Errorf("data preparation failed: %w", err)
	}

	m.setStatus(job, models.JobStatusTraining)
	result, err := c.Train(ctx, model.Handle, prepared, opts.Config, &progressSink{manager: m, job: job})
	if err != nil {
		return err
	}

	if err := m.registry.CompleteTraining(job.ModelID, result.Handle, result.Accuracy, result.TrainedError); err != nil {
		return err
	}

	if opts.Save {
		if m.artifacts == nil {
			return fmt.Errorf("save requested but no artifact store is configured")
		}
		key := fmt.Sprintf("%s/%s.json", job.ModelID, job.ID)
		if err := c.Save(ctx, result.Handle, m.artifacts, key); err != nil {
			return fmt.Errorf("failed to save trained model: %w", err)
		}
	}

	now := time.Now().UTC()
	m.mu.Lock()
	job.Status = models.JobStatusCompleted
	job.Progress = 100
	if result.Metrics != nil {
		job.Metrics = result.Metrics
	}
	job.EndTime = &now
	m.mu.Unlock()

	m.sink.Emit(events.New(events.TrainingCompleted, map[string]interface{}{
		"job_id":   job.ID,
		"model_id": job.ModelID,
		"metrics":  result.Metrics,
	}))
	return nil
}

func (m *Manager) setStatus(job *models.TrainingJob, status models.JobStatus) {
	m.mu.Lock()
	job.Status = status
	m.mu.Unlock()
}

// recordHistory persists a terminal job row when a history store is set
func (m *Manager) recordHistory(job *models.TrainingJob) {
	if m.store == nil {
		return
	}
	m.mu.Lock()
	snapshot := *job
	m.mu.Unlock()
	if err := m.store.SaveTrainingJob(&snapshot); err != nil {
		log.Printf("Error recording training job %s: %v", snapshot.ID, err)
	}
}

// progressSink feeds trainer progress into the job and the event sink
type progressSink struct {
	manager *Manager
	job     *models.TrainingJob
}

// Progress implements capability.ProgressSink
func (p *progressSink) Progress(percent float64, metrics map[string]float64) {
	p.manager.mu.Lock()
	p.job.Progress = percent
	if metrics != nil {
		p.job.Metrics = metrics
	}
	p.manager.mu.Unlock()

	p.manager.sink.Emit(events.New(events.TrainingProgress, map[string]interface{}{
		"job_id":   p.job.ID,
		"model_id": p.job.ModelID,
		"progress": percent,
		"metrics":  metrics,
	}))
}
