package capability

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/inferd-ai/inferd-go/pkg/models"
)

// Echo is an identity model kind: inference returns its input unchanged.
// It exists to exercise the orchestration paths without real computation.
type Echo struct{}

type echoHandle struct {
	epochsTrained int
}

// Kind returns the echo kind
func (Echo) Kind() models.ModelKind { return models.ModelKindEcho }

// Load constructs a fresh echo handle
func (Echo) Load(ctx context.Context, cfg models.ModelConfig) (interface{}, error) {
	return &echoHandle{}, nil
}

// Infer returns the input unchanged
func (Echo) Infer(ctx context.Context, handle interface{}, input interface{}) (interface{}, error) {
	if _, ok := handle.(*echoHandle); !ok {
		return nil, fmt.Errorf("echo: unexpected handle type %T", handle)
	}
	return input, nil
}

// InferBatch returns the inputs unchanged, in order
func (e Echo) InferBatch(ctx context.Context, handle interface{}, inputs []interface{}) ([]interface{}, error) {
	if _, ok := handle.(*echoHandle); !ok {
		return nil, fmt.Errorf("echo: unexpected handle type %T", handle)
	}
	outputs := make([]interface{}, len(inputs))
	copy(outputs, inputs)
	return outputs, nil
}

// PrepareTraining passes the raw data through
func (Echo) PrepareTraining(ctx context.Context, data models.TrainingData) (interface{}, error) {
	return data, nil
}

// Train walks a fixed number of epochs reporting progress, leaving the
// handle unchanged
func (Echo) Train(ctx context.Context, handle interface{}, prepared interface{}, cfg models.TrainingConfig, progress ProgressSink) (*TrainResult, error) {
	h, ok := handle.(*echoHandle)
	if !ok {
		return nil, fmt.Errorf("echo: unexpected handle type %T", handle)
	}

	epochs := cfg.Epochs
	if epochs <= 0 {
		epochs = 3
	}

	for epoch := 1; epoch <= epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h.epochsTrained++
		progress.Progress(float64(epoch)/float64(epochs)*100, map[string]float64{
			"epoch": float64(epoch),
			"loss":  1.0 / float64(epoch+1),
		})
	}

	accuracy := 1.0
	return &TrainResult{
		Handle:   h,
		Accuracy: &accuracy,
		Metrics:  map[string]float64{"epochs": float64(h.epochsTrained)},
	}, nil
}

// Save persists a minimal descriptor
func (Echo) Save(ctx context.Context, handle interface{}, store ArtifactStore, key string) error {
	h, ok := handle.(*echoHandle)
	if !ok {
		return fmt.Errorf("echo: unexpected handle type %T", handle)
	}
	data, err := json.Marshal(map[string]interface{}{
		"kind":           models.ModelKindEcho,
		"epochs_trained": h.epochsTrained,
	})
	if err != nil {
		return err
	}
	return store.Put(ctx, key, data)
}

// Dispose is a no-op for echo handles
func (Echo) Dispose(handle interface{}) error { return nil }
