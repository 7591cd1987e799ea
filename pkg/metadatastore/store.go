package metadatastore

import "github.com/inferd-ai/inferd-go/pkg/models"

// Store is the interface for serving-core metadata persistence. It records
// model descriptors, pipeline definitions and training-job history; runtime
// state (handles, pending requests) is never persisted.
type Store interface {
	// Model descriptor operations
	SaveModel(model *models.Model) error
	GetModel(id string) (*models.Model, error)
	ListModels() ([]*models.Model, error)
	DeleteModel(id string) error

	// Pipeline definition operations
	SavePipeline(pipeline *models.Pipeline) error
	GetPipeline(id string) (*models.Pipeline, error)
	ListPipelines() ([]*models.Pipeline, error)
	DeletePipeline(id string) error

	// Training job history operations
	SaveTrainingJob(job *models.TrainingJob) error
	ListTrainingJobs(modelID string) ([]*models.TrainingJob, error)

	Close() error
}
