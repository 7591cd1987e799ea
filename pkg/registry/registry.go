// Package registry owns the set of loaded models, their status and their
// usage metrics. It is the single source of truth for model state; all other
// components hold model ids and come through here.
package registry

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
)

// entry pairs a model with its in-flight use count. Unregister removes the
// entry from the map first, so no new acquisition can start, then waits for
// the count to drain before the handle is disposed.
type entry struct {
	model    *models.Model
	inFlight sync.WaitGroup
}

// Registry provides goroutine-safe model lifecycle and metrics operations
type Registry struct {
	mu     sync.RWMutex
	models map[string]*entry

	caps  *capability.Table
	sink  events.Sink
	store metadatastore.Store // optional write-through persistence
}

// Option configures a Registry
type Option func(*Registry)

// WithStore enables write-through persistence of model descriptors
func WithStore(store metadatastore.Store) Option {
	return func(r *Registry) { r.store = store }
}

// New creates a registry
func New(caps *capability.Table, sink events.Sink, opts ...Option) *Registry {
	r := &Registry{
		models: make(map[string]*entry),
		caps:   caps,
		sink:   sink,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register loads a model under the given id. The entry is inserted with
// status loading before the load capability runs, and transitions to ready
// or failed when it returns. Registration over a failed entry replaces it;
// registration over a loading or ready entry fails. If the entry is
// unregistered while the load is in flight, the freshly loaded handle is
// disposed and the registration fails.
func (r *Registry) Register(ctx context.Context, modelID string, cfg models.ModelConfig) (*models.Model, error) {
	if modelID == "" {
		return nil, fmt.Errorf("model id is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	version := cfg.Version
	if version == "" {
		version = "1.0"
	}

	r.mu.Lock()
	if existing, ok := r.models[modelID]; ok && existing.model.Status != models.ModelStatusFailed {
		r.mu.Unlock()
		return nil, &models.DuplicateModelError{ModelID: modelID}
	}
	e := &entry{model: &models.Model{
		ID:        modelID,
		Kind:      cfg.Kind,
		Status:    models.ModelStatusLoading,
		Version:   version,
		CreatedAt: time.Now().UTC(),
	}}
	r.models[modelID] = e
	r.mu.Unlock()

	handle, err := r.load(ctx, cfg)

	r.mu.Lock()
	current := r.models[modelID] == e
	if err != nil {
		if current {
			e.model.Status = models.ModelStatusFailed
		}
		r.mu.Unlock()
		return nil, fmt.Errorf("failed to load model %s: %w", modelID, err)
	}
	if !current {
		r.mu.Unlock()
		r.dispose(modelID, cfg.Kind, handle)
		return nil, &models.NotFoundError{Resource: "model", ID: modelID}
	}
	e.model.Status = models.ModelStatusReady
	e.model.Handle = handle
	snapshot := *e.model
	r.mu.Unlock()

	r.persist(&snapshot)
	r.sink.Emit(events.New(events.ModelRegistered, map[string]interface{}{
		"model_id": modelID,
		"kind":     string(cfg.Kind),
		"version":  version,
	}))

	return &snapshot, nil
}

func (r *Registry) load(ctx context.Context, cfg models.ModelConfig) (interface{}, error) {
	c, err := r.caps.Get(cfg.Kind)
	if err != nil {
		return nil, err
	}
	return c.Load(ctx, cfg)
}

// Unregister removes a model, waits for in-flight acquisitions to drain and
// then invokes its dispose capability
func (r *Registry) Unregister(modelID string) error {
	r.mu.Lock()
	e, ok := r.models[modelID]
	if !ok {
		r.mu.Unlock()
		return &models.NotFoundError{Resource: "model", ID: modelID}
	}
	delete(r.models, modelID)
	r.mu.Unlock()

	e.inFlight.Wait()
	r.dispose(modelID, e.model.Kind, e.model.Handle)

	if r.store != nil {
		if err := r.store.DeleteModel(modelID); err != nil {
			log.Printf("Error deleting model %s from store: %v", modelID, err)
		}
	}
	r.sink.Emit(events.New(events.ModelUnregistered, map[string]interface{}{
		"model_id": modelID,
	}))
	return nil
}

func (r *Registry) dispose(modelID string, kind models.ModelKind, handle interface{}) {
	if handle == nil {
		return
	}
	if c, err := r.caps.Get(kind); err == nil {
		if err := c.Dispose(handle); err != nil {
			log.Printf("Error disposing model %s: %v", modelID, err)
		}
	}
}

// Acquire returns a snapshot of a ready model and a release function that
// must be called when the handle is no longer in use. Unregister blocks
// until every outstanding acquisition is released, so the handle stays
// valid between Acquire and release. It fails with NotFoundError for
// unknown ids and NotReadyError for models that are loading or failed.
func (r *Registry) Acquire(modelID string) (*models.Model, func(), error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.models[modelID]
	if !ok {
		return nil, nil, &models.NotFoundError{Resource: "model", ID: modelID}
	}
	if e.model.Status != models.ModelStatusReady {
		return nil, nil, &models.NotReadyError{ModelID: modelID, Status: e.model.Status}
	}
	e.inFlight.Add(1)
	snapshot := *e.model
	return &snapshot, e.inFlight.Done, nil
}

// Get returns a snapshot of a ready model. It fails with NotFoundError for
// unknown ids and NotReadyError for models that are loading or failed.
// Callers that invoke the model's handle must use Acquire instead.
func (r *Registry) Get(modelID string) (*models.Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.models[modelID]
	if !ok {
		return nil, &models.NotFoundError{Resource: "model", ID: modelID}
	}
	if e.model.Status != models.ModelStatusReady {
		return nil, &models.NotReadyError{ModelID: modelID, Status: e.model.Status}
	}
	snapshot := *e.model
	return &snapshot, nil
}

// Lookup returns a snapshot of a model by identity alone, regardless of
// status
func (r *Registry) Lookup(modelID string) (*models.Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.models[modelID]
	if !ok {
		return nil, &models.NotFoundError{Resource: "model", ID: modelID}
	}
	snapshot := *e.model
	return &snapshot, nil
}

// RecordUsage atomically records one prediction against a model. Safe to
// call concurrently from the prediction path, job manager and batch queue.
func (r *Registry) RecordUsage(modelID string, inferenceTime time.Duration) {
	r.recordUsage(modelID, 1, inferenceTime)
}

// RecordBatchUsage atomically records a batched prediction of the given size
func (r *Registry) RecordBatchUsage(modelID string, count int, inferenceTime time.Duration) {
	r.recordUsage(modelID, int64(count), inferenceTime)
}

func (r *Registry) recordUsage(modelID string, count int64, inferenceTime time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.models[modelID]
	if !ok {
		return
	}
	e.model.Metrics.PredictionCount += count
	e.model.Metrics.CumulativeInferenceTime += inferenceTime
	now := time.Now().UTC()
	e.model.Metrics.LastUsedAt = &now
}

// CompleteTraining installs the trained handle and final training metrics
func (r *Registry) CompleteTraining(modelID string, handle interface{}, accuracy, trainedError *float64) error {
	r.mu.Lock()
	e, ok := r.models[modelID]
	if !ok {
		r.mu.Unlock()
		return &models.NotFoundError{Resource: "model", ID: modelID}
	}
	if handle != nil {
		e.model.Handle = handle
	}
	if accuracy != nil {
		e.model.Metrics.TrainedAccuracy = accuracy
	}
	if trainedError != nil {
		e.model.Metrics.TrainedError = trainedError
	}
	snapshot := *e.model
	r.mu.Unlock()

	r.persist(&snapshot)
	return nil
}

// Metrics returns a snapshot of per-model usage metrics
func (r *Registry) Metrics() map[string]models.ModelMetrics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]models.ModelMetrics, len(r.models))
	for id, e := range r.models {
		out[id] = e.model.Metrics
	}
	return out
}

func (r *Registry) persist(model *models.Model) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveModel(model); err != nil {
		log.Printf("Error persisting model %s: %v", model.ID, err)
	}
}
