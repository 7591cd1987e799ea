package metadatastore

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/inferd-ai/inferd-go/pkg/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create SQLite store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// TestModelRoundTrip tests model descriptor persistence
func TestModelRoundTrip(t *testing.T) {
	store := newTestStore(t)

	model := &models.Model{
		ID:        "m1",
		Kind:      models.ModelKindRegression,
		Status:    models.ModelStatusReady,
		Version:   "2.1",
		CreatedAt: time.Now().UTC(),
	}
	if err := store.SaveModel(model); err != nil {
		t.Fatalf("Failed to save model: %v", err)
	}

	got, err := store.GetModel("m1")
	if err != nil {
		t.Fatalf("Failed to get model: %v", err)
	}
	if got.ID != "m1" || got.Kind != models.ModelKindRegression || got.Version != "2.1" {
		t.Errorf("Unexpected model: %+v", got)
	}

	// Save is an upsert
	model.Version = "2.2"
	if err := store.SaveModel(model); err != nil {
		t.Fatalf("Failed to update model: %v", err)
	}
	got, err = store.GetModel("m1")
	if err != nil {
		t.Fatalf("Failed to get updated model: %v", err)
	}
	if got.Version != "2.2" {
		t.Errorf("Expected version 2.2, got %s", got.Version)
	}

	list, err := store.ListModels()
	if err != nil {
		t.Fatalf("Failed to list models: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("Expected 1 model, got %d", len(list))
	}

	if err := store.DeleteModel("m1"); err != nil {
		t.Fatalf("Failed to delete model: %v", err)
	}
	var notFound *models.NotFoundError
	if _, err := store.GetModel("m1"); !errors.As(err, &notFound) {
		t.Fatalf("Expected NotFoundError after delete, got %v", err)
	}
}

// TestPipelineRoundTrip tests pipeline definition persistence
func TestPipelineRoundTrip(t *testing.T) {
	store := newTestStore(t)

	pipeline := &models.Pipeline{
		ID: "p1",
		Steps: []models.PipelineStep{
			{Kind: models.StepKindPreprocess, Name: "scale", Operation: "normalize"},
			{Kind: models.StepKindPredict, Name: "infer", ModelID: "m1"},
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := store.SavePipeline(pipeline); err != nil {
		t.Fatalf("Failed to save pipeline: %v", err)
	}

	got, err := store.GetPipeline("p1")
	if err != nil {
		t.Fatalf("Failed to get pipeline: %v", err)
	}
	if len(got.Steps) != 2 || got.Steps[1].ModelID != "m1" {
		t.Errorf("Unexpected pipeline: %+v", got)
	}

	list, err := store.ListPipelines()
	if err != nil {
		t.Fatalf("Failed to list pipelines: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("Expected 1 pipeline, got %d", len(list))
	}

	if err := store.DeletePipeline("p1"); err != nil {
		t.Fatalf("Failed to delete pipeline: %v", err)
	}
	var notFound *models.NotFoundError
	if _, err := store.GetPipeline("p1"); !errors.As(err, &notFound) {
		t.Fatalf("Expected NotFoundError after delete, got %v", err)
	}
}

// TestTrainingJobHistory tests job history rows
func TestTrainingJobHistory(t *testing.T) {
	store := newTestStore(t)

	end := time.Now().UTC()
	jobs := []*models.TrainingJob{
		{ID: "m1-1", ModelID: "m1", Status: models.JobStatusCompleted, Progress: 100, StartTime: end.Add(-time.Minute), EndTime: &end},
		{ID: "m1-2", ModelID: "m1", Status: models.JobStatusFailed, ErrorMessage: "boom", StartTime: end},
		{ID: "m2-1", ModelID: "m2", Status: models.JobStatusCompleted, StartTime: end},
	}
	for _, job := range jobs {
		if err := store.SaveTrainingJob(job); err != nil {
			t.Fatalf("Failed to save job %s: %v", job.ID, err)
		}
	}

	history, err := store.ListTrainingJobs("m1")
	if err != nil {
		t.Fatalf("Failed to list jobs: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 jobs for m1, got %d", len(history))
	}
	for _, job := range history {
		if job.ModelID != "m1" {
			t.Errorf("Job %s belongs to %s, expected m1", job.ID, job.ModelID)
		}
	}
}
