// Package scheduler triggers pipeline executions on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/inferd-ai/inferd-go/pkg/models"
	"github.com/inferd-ai/inferd-go/pkg/pipeline"
)

// Service schedules recurring pipeline executions
type Service struct {
	pipelines *pipeline.Service
	cron      *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID // schedule ID -> cron entry
}

// NewService creates a scheduler
func NewService(pipelines *pipeline.Service) *Service {
	return &Service{
		pipelines: pipelines,
		cron:      cron.New(),
		entries:   make(map[string]cron.EntryID),
	}
}

// Start starts the scheduler
func (s *Service) Start() {
	s.cron.Start()
	log.Println("Pipeline scheduler started")
}

// Stop stops the scheduler; running executions finish
func (s *Service) Stop() {
	s.cron.Stop()
	log.Println("Pipeline scheduler stopped")
}

// Schedule registers a recurring execution of a pipeline with the given
// input. The pipeline must already exist. Returns the schedule id.
func (s *Service) Schedule(pipelineID, cronExpr string, input interface{}) (string, error) {
	if _, err := s.pipelines.Get(pipelineID); err != nil {
		return "", err
	}

	scheduleID := uuid.New().String()
	entryID, err := s.cron.AddFunc(cronExpr, func() {
		if _, err := s.pipelines.Execute(context.Background(), pipelineID, input, models.ExecuteOptions{}); err != nil {
			log.Printf("Scheduled execution of pipeline %s failed: %v", pipelineID, err)
		}
	})
	if err != nil {
		return "", fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}

	s.mu.Lock()
	s.entries[scheduleID] = entryID
	s.mu.Unlock()

	log.Printf("Scheduled pipeline %s (%s) as %s", pipelineID, cronExpr, scheduleID)
	return scheduleID, nil
}

// Remove cancels a schedule
func (s *Service) Remove(scheduleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, ok := s.entries[scheduleID]
	if !ok {
		return &models.NotFoundError{Resource: "schedule", ID: scheduleID}
	}
	s.cron.Remove(entryID)
	delete(s.entries, scheduleID)
	return nil
}
