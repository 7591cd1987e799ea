// Package core wires the serving components together behind the surface the
// excluded HTTP/CRUD layer consumes. One Service is constructed at process
// start and passed by reference; there is no package-level state.
package core

import (
	"context"
	"fmt"

	"github.com/inferd-ai/inferd-go/pkg/batch"
	"github.com/inferd-ai/inferd-go/pkg/cache"
	"github.com/inferd-ai/inferd-go/pkg/capability"
	"github.com/inferd-ai/inferd-go/pkg/config"
	"github.com/inferd-ai/inferd-go/pkg/events"
	"github.com/inferd-ai/inferd-go/pkg/metadatastore"
	"github.com/inferd-ai/inferd-go/pkg/models"
	"github.com/inferd-ai/inferd-go/pkg/pipeline"
	"github.com/inferd-ai/inferd-go/pkg/predict"
	"github.com/inferd-ai/inferd-go/pkg/registry"
	"github.com/inferd-ai/inferd-go/pkg/training"
)

// Metrics is the aggregate snapshot returned by GetMetrics
type Metrics struct {
	Models             map[string]models.ModelMetrics    `json:"models"`
	Pipelines          map[string]models.PipelineMetrics `json:"pipelines"`
	ActiveTrainingJobs int                               `json:"active_training_jobs"`
}

// Service is the model-serving core
type Service struct {
	Capabilities *capability.Table
	Registry     *registry.Registry
	Predictor    *predict.Service
	Pipelines    *pipeline.Service
	Trainer      *training.Manager
	Batch        *batch.Queue

	store metadatastore.Store
}

// New builds the core from configuration
func New(cfg *config.Config, sink events.Sink) (*Service, error) {
	if sink == nil {
		sink = events.LogSink{}
	}

	caps := capability.NewTable()

	var store metadatastore.Store
	if cfg.DBPath != "" {
		sqlStore, err := metadatastore.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open metadata store: %w", err)
		}
		store = sqlStore
	}

	var predictionCache cache.Cache
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedisCache(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect prediction cache: %w", err)
		}
		predictionCache = redisCache
	} else {
		predictionCache = cache.NewMemoryCache()
	}

	artifacts, err := capability.NewFileStore(cfg.ArtifactDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact store: %w", err)
	}

	var regOpts []registry.Option
	var pipeOpts []pipeline.Option
	trainOpts := []training.Option{training.WithArtifacts(artifacts)}
	if store != nil {
		regOpts = append(regOpts, registry.WithStore(store))
		pipeOpts = append(pipeOpts, pipeline.WithStore(store))
		trainOpts = append(trainOpts, training.WithHistory(store))
	}

	reg := registry.New(caps, sink, regOpts...)
	predictor := predict.NewService(reg, caps, sink, predict.WithCache(predictionCache, cfg.CacheTTL))
	pipelines := pipeline.NewService(predictor, sink, pipeOpts...)
	trainer := training.NewManager(reg, caps, sink, cfg.MaxConcurrentJobs, trainOpts...)
	queue := batch.NewQueue(predictor, cfg.MaxBatchSize)

	return &Service{
		Capabilities: caps,
		Registry:     reg,
		Predictor:    predictor,
		Pipelines:    pipelines,
		Trainer:      trainer,
		Batch:        queue,
		store:        store,
	}, nil
}

// Close releases persistent resources
func (s *Service) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// RegisterModel loads a model into the registry
func (s *Service) RegisterModel(ctx context.Context, modelID string, cfg models.ModelConfig) (*models.Model, error) {
	return s.Registry.Register(ctx, modelID, cfg)
}

// UnregisterModel removes a model from the registry
func (s *Service) UnregisterModel(modelID string) error {
	return s.Registry.Unregister(modelID)
}

// Predict runs one prediction
func (s *Service) Predict(ctx context.Context, modelID string, input interface{}, opts predict.Options) (interface{}, error) {
	return s.Predictor.Predict(ctx, modelID, input, opts)
}

// CreatePipeline validates and stores a pipeline
func (s *Service) CreatePipeline(pipelineID string, steps []models.PipelineStep) (*models.Pipeline, error) {
	return s.Pipelines.Create(pipelineID, steps)
}

// ExecutePipeline runs a pipeline against an input value
func (s *Service) ExecutePipeline(ctx context.Context, pipelineID string, input interface{}, opts models.ExecuteOptions) (*models.Execution, error) {
	return s.Pipelines.Execute(ctx, pipelineID, input, opts)
}

// TrainModel runs a training job to completion
func (s *Service) TrainModel(ctx context.Context, modelID string, data models.TrainingData, opts models.TrainOptions) (*models.TrainingJob, error) {
	return s.Trainer.TrainModel(ctx, modelID, data, opts)
}

// QueueInference enqueues a request on the batch queue and waits for it
func (s *Service) QueueInference(ctx context.Context, modelID string, input interface{}) (interface{}, error) {
	return s.Batch.QueueInference(ctx, modelID, input)
}

// GetMetrics returns an aggregate metrics snapshot
func (s *Service) GetMetrics() Metrics {
	return Metrics{
		Models:             s.Registry.Metrics(),
		Pipelines:          s.Pipelines.Metrics(),
		ActiveTrainingJobs: s.Trainer.ActiveCount(),
	}
}
