package scheduler

import (
	"errors"
	"testing"

	"github.com/inferd-ai/inferd-go/pkg/capability"
	"github.com/inferd-ai/inferd-go/pkg/events"
	"github.com/inferd-ai/inferd-go/pkg/models"
	"github.com/inferd-ai/inferd-go/pkg/pipeline"
	"github.com/inferd-ai/inferd-go/pkg/predict"
	"github.com/inferd-ai/inferd-go/pkg/registry"
)

func newTestScheduler(t *testing.T) (*Service, *pipeline.Service) {
	t.Helper()
	caps := capability.NewTable()
	reg := registry.New(caps, events.NopSink{})
	predictor := predict.NewService(reg, caps, events.NopSink{})
	pipelines := pipeline.NewService(predictor, events.NopSink{})
	return NewService(pipelines), pipelines
}

// TestSchedule tests schedule registration and removal
func TestSchedule(t *testing.T) {
	svc, pipelines := newTestScheduler(t)

	if _, err := pipelines.Create("p1", []models.PipelineStep{
		{Kind: models.StepKindPreprocess, Name: "scale", Operation: "normalize"},
	}); err != nil {
		t.Fatalf("Failed to create pipeline: %v", err)
	}

	scheduleID, err := svc.Schedule("p1", "@hourly", []float64{1, 2})
	if err != nil {
		t.Fatalf("Failed to schedule pipeline: %v", err)
	}
	if scheduleID == "" {
		t.Fatal("Expected non-empty schedule id")
	}

	if err := svc.Remove(scheduleID); err != nil {
		t.Fatalf("Failed to remove schedule: %v", err)
	}
	var notFound *models.NotFoundError
	if err := svc.Remove(scheduleID); !errors.As(err, &notFound) {
		t.Fatalf("Expected NotFoundError for second removal, got %v", err)
	}
}

// TestScheduleValidation tests rejection of bad schedules
func TestScheduleValidation(t *testing.T) {
	svc, pipelines := newTestScheduler(t)

	if _, err := svc.Schedule("ghost", "@hourly", nil); err == nil {
		t.Error("Expected error for unknown pipeline")
	}

	if _, err := pipelines.Create("p1", []models.PipelineStep{
		{Kind: models.StepKindPreprocess, Name: "scale", Operation: "normalize"},
	}); err != nil {
		t.Fatalf("Failed to create pipeline: %v", err)
	}
	if _, err := svc.Schedule("p1", "not a cron expr", nil); err == nil {
		t.Error("Expected error for invalid cron expression")
	}
}
