// Package capability defines the per-model-kind computation contract the
// serving core orchestrates. Each kind supplies loading, inference, training
// and persistence; the core never inspects handles itself.
package capability

import (
	"context"
	"fmt"
	"sync"

	"github.com/inferd-ai/inferd-go/pkg/models"
)

// ProgressSink receives progress reports from a running training call.
// Percent is in [0, 100].
type ProgressSink interface {
	Progress(percent float64, metrics map[string]float64)
}

// TrainResult holds the outcome of a training call. Handle is the trained
// computation object and replaces the registry's handle for the model.
// Exactly one of Accuracy (classification kinds) or TrainedError (regression
// kinds) is expected to be set.
type TrainResult struct {
	Handle       interface{}
	Accuracy     *float64
	TrainedError *float64
	Metrics      map[string]float64
}

// Capability is the contract one model kind supplies
type Capability interface {
	// Kind returns the model kind this capability handles
	Kind() models.ModelKind

	// Load constructs a handle from the registration config
	Load(ctx context.Context, cfg models.ModelConfig) (interface{}, error)

	// Infer runs a single inference call against the handle
	Infer(ctx context.Context, handle interface{}, input interface{}) (interface{}, error)

	// InferBatch runs one inference call for a whole batch, preserving the
	// input order in its outputs
	InferBatch(ctx context.Context, handle interface{}, inputs []interface{}) ([]interface{}, error)

	// PrepareTraining converts raw training data into a kind-appropriate
	// training payload
	PrepareTraining(ctx context.Context, data models.TrainingData) (interface{}, error)

	// Train runs a training operation, reporting progress through the sink
	Train(ctx context.Context, handle interface{}, prepared interface{}, cfg models.TrainingConfig, progress ProgressSink) (*TrainResult, error)

	// Save persists the handle as a byte artifact under the given key
	Save(ctx context.Context, handle interface{}, store ArtifactStore, key string) error

	// Dispose releases any resources held by the handle
	Dispose(handle interface{}) error
}

// Table maps model kinds to their capability implementations
type Table struct {
	mu    sync.RWMutex
	kinds map[models.ModelKind]Capability
}

// NewTable creates a capability table with the built-in kinds registered
func NewTable() *Table {
	t := &Table{kinds: make(map[models.ModelKind]Capability)}
	t.Register(&Echo{})
	t.Register(&Regression{})
	t.Register(&Classifier{})
	return t
}

// Register adds or replaces the capability for a kind
func (t *Table) Register(c Capability) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.kinds[c.Kind()] = c
}

// Get returns the capability for a kind
func (t *Table) Get(kind models.ModelKind) (Capability, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	c, ok := t.kinds[kind]
	if !ok {
		return nil, fmt.Errorf("no capability registered for model kind: %s", kind)
	}
	return c, nil
}
