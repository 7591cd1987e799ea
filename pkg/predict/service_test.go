package predict

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/inferd-ai/inferd-go/pkg/cache"
	"github.com/inferd-ai/inferd-go/pkg/capability"
	"github.com/inferd-ai/inferd-go/pkg/events"
	"github.com/inferd-ai/inferd-go/pkg/models"
	"github.com/inferd-ai/inferd-go/pkg/registry"
)

// countingKind wraps the echo kind and counts inference calls
type countingKind struct {
	capability.Echo
	inferCalls int64
	batchCalls int64
}

func (*countingKind) Kind() models.ModelKind { return "counter" }

func (c *countingKind) Infer(ctx context.Context, handle interface{}, input interface{}) (interface{}, error) {
	atomic.AddInt64(&c.inferCalls, 1)
	return c.Echo.Infer(ctx, handle, input)
}

func (c *countingKind) InferBatch(ctx context.Context, handle interface{}, inputs []interface{}) ([]interface{}, error) {
	atomic.AddInt64(&c.batchCalls, 1)
	return c.Echo.InferBatch(ctx, handle, inputs)
}

// failingKind fails every inference call
type failingKind struct {
	capability.Echo
}

func (failingKind) Kind() models.ModelKind { return "failing" }

func (failingKind) Infer(ctx context.Context, handle interface{}, input interface{}) (interface{}, error) {
	return nil, fmt.Errorf("inference exploded")
}

func newTestService(t *testing.T, opts ...Option) (*Service, *registry.Registry, *countingKind) {
	t.Helper()
	counter := &countingKind{}
	caps := capability.NewTable()
	caps.Register(counter)
	caps.Register(failingKind{})
	reg := registry.New(caps, events.NopSink{})
	return NewService(reg, caps, events.NopSink{}, opts...), reg, counter
}

// TestPredict tests a basic prediction against an echoing model
func TestPredict(t *testing.T) {
	svc, reg, counter := newTestService(t)

	if _, err := reg.Register(context.Background(), "m1", models.ModelConfig{Kind: "counter"}); err != nil {
		t.Fatalf("Failed to register model: %v", err)
	}

	output, err := svc.Predict(context.Background(), "m1", "hello", Options{})
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}
	if output != "hello" {
		t.Errorf("Expected echoed input, got %v", output)
	}
	if n := atomic.LoadInt64(&counter.inferCalls); n != 1 {
		t.Errorf("Expected 1 inference call, got %d", n)
	}

	metrics := reg.Metrics()
	if metrics["m1"].PredictionCount != 1 {
		t.Errorf("Expected prediction count 1, got %d", metrics["m1"].PredictionCount)
	}
}

// TestPredictUnknownModel tests that registry errors propagate unchanged
func TestPredictUnknownModel(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Predict(context.Background(), "ghost", 1.0, Options{})
	var notFound *models.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Expected NotFoundError, got %v", err)
	}
	var predErr *models.PredictionError
	if errors.As(err, &predErr) {
		t.Error("Registry errors must not be wrapped in PredictionError")
	}
}

// TestPredictInferenceFailure tests that inference failures are wrapped and
// leave the usage metrics untouched
func TestPredictInferenceFailure(t *testing.T) {
	svc, reg, _ := newTestService(t)

	if _, err := reg.Register(context.Background(), "bad", models.ModelConfig{Kind: "failing"}); err != nil {
		t.Fatalf("Failed to register model: %v", err)
	}

	_, err := svc.Predict(context.Background(), "bad", 1.0, Options{})
	var predErr *models.PredictionError
	if !errors.As(err, &predErr) {
		t.Fatalf("Expected PredictionError, got %v", err)
	}
	if predErr.ModelID != "bad" {
		t.Errorf("Expected model id bad, got %s", predErr.ModelID)
	}

	if count := reg.Metrics()["bad"].PredictionCount; count != 0 {
		t.Errorf("Expected prediction count 0 after failure, got %d", count)
	}
}

// TestPredictCacheHit tests that a cache hit skips both inference and usage
// recording
func TestPredictCacheHit(t *testing.T) {
	svc, reg, counter := newTestService(t, WithCache(cache.NewMemoryCache(), time.Minute))

	if _, err := reg.Register(context.Background(), "m1", models.ModelConfig{Kind: "counter"}); err != nil {
		t.Fatalf("Failed to register model: %v", err)
	}

	input := map[string]interface{}{"x": 1.0}
	first, err := svc.Predict(context.Background(), "m1", input, Options{Cache: true})
	if err != nil {
		t.Fatalf("Failed first prediction: %v", err)
	}
	second, err := svc.Predict(context.Background(), "m1", input, Options{Cache: true})
	if err != nil {
		t.Fatalf("Failed second prediction: %v", err)
	}

	if fmt.Sprintf("%v", first) != fmt.Sprintf("%v", second) {
		t.Errorf("Cache returned a different value: %v vs %v", first, second)
	}
	if n := atomic.LoadInt64(&counter.inferCalls); n != 1 {
		t.Errorf("Expected 1 inference call across both predictions, got %d", n)
	}
	if count := reg.Metrics()["m1"].PredictionCount; count != 1 {
		t.Errorf("Expected prediction count 1 (hit skips usage), got %d", count)
	}
}

// TestPredictCacheDisabledPerCall tests that caching is opt-in per call
func TestPredictCacheDisabledPerCall(t *testing.T) {
	svc, reg, counter := newTestService(t, WithCache(cache.NewMemoryCache(), time.Minute))

	if _, err := reg.Register(context.Background(), "m1", models.ModelConfig{Kind: "counter"}); err != nil {
		t.Fatalf("Failed to register model: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := svc.Predict(context.Background(), "m1", 7.0, Options{}); err != nil {
			t.Fatalf("Failed prediction %d: %v", i, err)
		}
	}
	if n := atomic.LoadInt64(&counter.inferCalls); n != 2 {
		t.Errorf("Expected 2 inference calls without caching, got %d", n)
	}
}

// TestPreAndPostprocessors tests the processing hooks around inference
func TestPreAndPostprocessors(t *testing.T) {
	svc, reg, _ := newTestService(t)

	if _, err := reg.Register(context.Background(), "m1", models.ModelConfig{Kind: "counter"}); err != nil {
		t.Fatalf("Failed to register model: %v", err)
	}

	svc.RegisterPreprocessor("m1", func(v interface{}) (interface{}, error) {
		return v.(float64) + 1, nil
	})
	svc.RegisterPostprocessor("m1", func(v interface{}) (interface{}, error) {
		return v.(float64) * 10, nil
	})

	output, err := svc.Predict(context.Background(), "m1", 2.0, Options{})
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}
	if output != 30.0 {
		t.Errorf("Expected (2+1)*10 = 30, got %v", output)
	}
}

// TestPredictBatch tests ordered batch prediction with one usage record
func TestPredictBatch(t *testing.T) {
	svc, reg, counter := newTestService(t)

	if _, err := reg.Register(context.Background(), "m1", models.ModelConfig{Kind: "counter"}); err != nil {
		t.Fatalf("Failed to register model: %v", err)
	}

	inputs := []interface{}{1.0, 2.0, 3.0}
	outputs, err := svc.PredictBatch(context.Background(), "m1", inputs)
	if err != nil {
		t.Fatalf("Failed batch prediction: %v", err)
	}
	if len(outputs) != len(inputs) {
		t.Fatalf("Expected %d outputs, got %d", len(inputs), len(outputs))
	}
	for i := range inputs {
		if outputs[i] != inputs[i] {
			t.Errorf("Output %d: expected %v, got %v", i, inputs[i], outputs[i])
		}
	}
	if n := atomic.LoadInt64(&counter.batchCalls); n != 1 {
		t.Errorf("Expected 1 batch inference call, got %d", n)
	}
	if count := reg.Metrics()["m1"].PredictionCount; count != 3 {
		t.Errorf("Expected prediction count 3, got %d", count)
	}
}

// gatedKind parks inference until the test releases it and records whether
// its handle was disposed before the call returned
type gatedKind struct {
	capability.Echo
	started  chan struct{}
	release  chan struct{}
	disposed int64
}

func (*gatedKind) Kind() models.ModelKind { return "gated" }

func (k *gatedKind) Infer(ctx context.Context, handle interface{}, input interface{}) (interface{}, error) {
	close(k.started)
	<-k.release
	if atomic.LoadInt64(&k.disposed) != 0 {
		return nil, fmt.Errorf("handle disposed mid-inference")
	}
	return k.Echo.Infer(ctx, handle, input)
}

func (k *gatedKind) Dispose(handle interface{}) error {
	atomic.AddInt64(&k.disposed, 1)
	return nil
}

// TestPredictDuringUnregister tests that an in-flight prediction finishes on
// a live handle even when the model is unregistered under it
func TestPredictDuringUnregister(t *testing.T) {
	gated := &gatedKind{started: make(chan struct{}), release: make(chan struct{})}
	caps := capability.NewTable()
	caps.Register(gated)
	reg := registry.New(caps, events.NopSink{})
	svc := NewService(reg, caps, events.NopSink{})

	if _, err := reg.Register(context.Background(), "m1", models.ModelConfig{Kind: "gated"}); err != nil {
		t.Fatalf("Failed to register model: %v", err)
	}

	type result struct {
		output interface{}
		err    error
	}
	predicted := make(chan result, 1)
	go func() {
		output, err := svc.Predict(context.Background(), "m1", 42.0, Options{})
		predicted <- result{output, err}
	}()

	<-gated.started
	unregistered := make(chan error, 1)
	go func() { unregistered <- reg.Unregister("m1") }()
	close(gated.release)

	got := <-predicted
	if got.err != nil {
		t.Fatalf("Failed in-flight prediction: %v", got.err)
	}
	if got.output != 42.0 {
		t.Errorf("Expected echoed input, got %v", got.output)
	}
	if err := <-unregistered; err != nil {
		t.Fatalf("Failed to unregister model: %v", err)
	}
	if n := atomic.LoadInt64(&gated.disposed); n != 1 {
		t.Errorf("Expected one dispose after the prediction drained, got %d", n)
	}
}

// TestInputHashDeterminism tests that equal map inputs produce equal keys
func TestInputHashDeterminism(t *testing.T) {
	a := map[string]interface{}{"x": 1.0, "y": 2.0}
	b := map[string]interface{}{"y": 2.0, "x": 1.0}
	if inputHash(a) != inputHash(b) {
		t.Error("Expected equal hashes for equal maps")
	}
	if inputHash(a) == inputHash(map[string]interface{}{"x": 1.0, "y": 3.0}) {
		t.Error("Expected different hashes for different values")
	}
}
