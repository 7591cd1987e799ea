// Package predict implements the prediction path: model resolution, optional
// pre/post-processing around the kind's inference call, usage recording and
// an optional TTL result cache.
package predict

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/inferd-ai/inferd-go/pkg/cache"
	"github.com/inferd-ai/inferd-go/pkg/capability"
	"github.com/inferd-ai/inferd-go/pkg/events"
	"github.com/inferd-ai/inferd-go/pkg/models"
	"github.com/inferd-ai/inferd-go/pkg/registry"
)

// DefaultCacheTTL is the prediction cache lifetime used when the caller does
// not supply one
const DefaultCacheTTL = 5 * time.Minute

// Processor transforms a value before or after inference
type Processor func(value interface{}) (interface{}, error)

// Options controls a single prediction call
type Options struct {
	// Cache enables result caching for this call
	Cache bool
	// CacheTTL overrides the service default lifetime when positive
	CacheTTL time.Duration
}

// Service runs predictions against registered models
type Service struct {
	registry *registry.Registry
	caps     *capability.Table
	sink     events.Sink

	cache      cache.Cache // nil disables caching
	defaultTTL time.Duration

	mu             sync.RWMutex
	preprocessors  map[string]Processor
	postprocessors map[string]Processor
}

// Option configures a Service
type Option func(*Service)

// WithCache enables the prediction cache
func WithCache(c cache.Cache, defaultTTL time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		if defaultTTL > 0 {
			s.defaultTTL = defaultTTL
		}
	}
}

// NewService creates a prediction service
func NewService(reg *registry.Registry, caps *capability.Table, sink events.Sink, opts ...Option) *Service {
	s := &Service{
		registry:       reg,
		caps:           caps,
		sink:           sink,
		defaultTTL:     DefaultCacheTTL,
		preprocessors:  make(map[string]Processor),
		postprocessors: make(map[string]Processor),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterPreprocessor installs an input transformer for a model
func (s *Service) RegisterPreprocessor(modelID string, p Processor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preprocessors[modelID] = p
}

// RegisterPostprocessor installs an output transformer for a model
func (s *Service) RegisterPostprocessor(modelID string, p Processor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.postprocessors[modelID] = p
}

// Predict runs one inference call. Registry errors (NotFoundError,
// NotReadyError) propagate unchanged; any later failure is wrapped in a
// PredictionError. Usage is recorded only after a successful call, and cache
// hits skip both inference and usage recording. The model is acquired for
// the duration of the call, so an unregistration cannot dispose the handle
// mid-inference.
func (s *Service) Predict(ctx context.Context, modelID string, input interface{}, opts Options) (interface{}, error) {
	model, release, err := s.registry.Acquire(modelID)
	if err != nil {
		return nil, err
	}
	defer release()

	var cacheKey string
	if opts.Cache && s.cache != nil {
		cacheKey = modelID + ":" + inputHash(input)
		if value, ok, err := s.cache.Get(ctx, cacheKey); err != nil {
			log.Printf("Prediction cache read failed for %s: %v", modelID, err)
		} else if ok {
			return value, nil
		}
	}

	output, elapsed, err := s.runInference(ctx, model, input)
	if err != nil {
		s.sink.Emit(events.New(events.PredictionError, map[string]interface{}{
			"model_id": modelID,
			"error":    err.Error(),
		}))
		return nil, &models.PredictionError{ModelID: modelID, Cause: err}
	}

	s.registry.RecordUsage(modelID, elapsed)

	if cacheKey != "" {
		ttl := s.defaultTTL
		if opts.CacheTTL > 0 {
			ttl = opts.CacheTTL
		}
		if err := s.cache.Set(ctx, cacheKey, output, ttl); err != nil {
			log.Printf("Prediction cache write failed for %s: %v", modelID, err)
		}
	}

	s.sink.Emit(events.New(events.PredictionOK, map[string]interface{}{
		"model_id":   modelID,
		"elapsed_ms": elapsed.Milliseconds(),
	}))
	return output, nil
}

// PredictBatch runs one batch-capable inference call for all inputs,
// preserving input order in the outputs, and records usage for the whole
// group at once
func (s *Service) PredictBatch(ctx context.Context, modelID string, inputs []interface{}) ([]interface{}, error) {
	model, release, err := s.registry.Acquire(modelID)
	if err != nil {
		return nil, err
	}
	defer release()

	c, err := s.caps.Get(model.Kind)
	if err != nil {
		return nil, &models.PredictionError{ModelID: modelID, Cause: err}
	}

	pre, post := s.processors(modelID)

	processed := inputs
	if pre != nil {
		processed = make([]interface{}, len(inputs))
		for i, input := range inputs {
			value, err := pre(input)
			if err != nil {
				return nil, &models.PredictionError{ModelID: modelID, Cause: fmt.Errorf("preprocess input %d: %w", i, err)}
			}
			processed[i] = value
		}
	}

	start := time.Now()
	outputs, err := c.InferBatch(ctx, model.Handle, processed)
	elapsed := time.Since(start)
	if err != nil {
		s.sink.Emit(events.New(events.PredictionError, map[string]interface{}{
			"model_id":   modelID,
			"batch_size": len(inputs),
			"error":      err.Error(),
		}))
		return nil, &models.PredictionError{ModelID: modelID, Cause: err}
	}
	if len(outputs) != len(inputs) {
		return nil, &models.PredictionError{
			ModelID: modelID,
			Cause:   fmt.Errorf("batch inference returned %d outputs for %d inputs", len(outputs), len(inputs)),
		}
	}

	if post != nil {
		for i, output := range outputs {
			value, err := post(output)
			if err != nil {
				return nil, &models.PredictionError{ModelID: modelID, Cause: fmt.Errorf("postprocess output %d: %w", i, err)}
			}
			outputs[i] = value
		}
	}

	s.registry.RecordBatchUsage(modelID, len(inputs), elapsed)
	s.sink.Emit(events.New(events.PredictionOK, map[string]interface{}{
		"model_id":   modelID,
		"batch_size": len(inputs),
		"elapsed_ms": elapsed.Milliseconds(),
	}))
	return outputs, nil
}

// runInference applies pre/post processing around the kind's single
// inference call and returns the elapsed inference wall time
func (s *Service) runInference(ctx context.Context, model *models.Model, input interface{}) (interface{}, time.Duration, error) {
	c, err := s.caps.Get(model.Kind)
	if err != nil {
		return nil, 0, err
	}

	pre, post := s.processors(model.ID)

	value := input
	if pre != nil {
		value, err = pre(value)
		if err != nil {
			return nil, 0, fmt.Errorf("preprocess: %w", err)
		}
	}

	start := time.Now()
	output, err := c.Infer(ctx, model.Handle, value)
	elapsed := time.Since(start)
	if err != nil {
		return nil, elapsed, err
	}

	if post != nil {
		output, err = post(output)
		if err != nil {
			return nil, elapsed, fmt.Errorf("postprocess: %w", err)
		}
	}
	return output, elapsed, nil
}

func (s *Service) processors(modelID string) (Processor, Processor) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.preprocessors[modelID], s.postprocessors[modelID]
}

// inputHash produces a deterministic digest of the input value. JSON
// encoding sorts map keys, so equal values hash equally.
func inputHash(input interface{}) string {
	data, err := json.Marshal(input)
	if err != nil {
		data = []byte(fmt.Sprintf("%#v", input))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
