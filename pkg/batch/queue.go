// Package batch implements the asynchronous batched-inference queue:
// individual requests are grouped by model id and dispatched through one
// batch-capable prediction call per group, with each caller resolved
// independently.
package batch

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/inferd-ai/inferd-go/pkg/predict"
)

// DefaultMaxBatchSize bounds the number of requests grouped into one
// inference call
const DefaultMaxBatchSize = 32

// DefaultBackoff is the wait before retrying after a defect in the drain
// loop itself
const DefaultBackoff = 100 * time.Millisecond

// Result delivers the outcome of a queued request to its caller
type Result struct {
	Output interface{}
	Err    error
}

type request struct {
	modelID    string
	input      interface{}
	result     chan Result
	enqueuedAt time.Time
}

// Queue accepts inference requests from arbitrary goroutines and drains them
// in per-model batches. A single drain loop is active at a time, enforced by
// the running flag under the queue mutex.
type Queue struct {
	predictor    *predict.Service
	maxBatchSize int
	backoff      time.Duration

	mu       sync.Mutex
	pending  []*request
	draining bool
}

// NewQueue creates a batch inference queue
func NewQueue(predictor *predict.Service, maxBatchSize int) *Queue {
	if maxBatchSize <= 0 {
		maxBatchSize = DefaultMaxBatchSize
	}
	return &Queue{
		predictor:    predictor,
		maxBatchSize: maxBatchSize,
		backoff:      DefaultBackoff,
	}
}

// QueueInference enqueues one request and waits for its batch to be
// processed. The context bounds only this caller's wait; an abandoned
// request is still processed and its result discarded.
func (q *Queue) QueueInference(ctx context.Context, modelID string, input interface{}) (interface{}, error) {
	ch := q.Enqueue(modelID, input)
	select {
	case result := <-ch:
		return result.Output, result.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Enqueue appends a request to the pending list and starts the drain loop
// if it is idle. The returned channel receives exactly one Result.
func (q *Queue) Enqueue(modelID string, input interface{}) <-chan Result {
	req := &request{
		modelID:    modelID,
		input:      input,
		result:     make(chan Result, 1),
		enqueuedAt: time.Now(),
	}

	q.mu.Lock()
	q.pending = append(q.pending, req)
	if !q.draining {
		q.draining = true
		go q.drain()
	}
	q.mu.Unlock()

	return req.result
}

// Pending returns the number of requests not yet taken by a drain pass
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// drain runs passes until the pending list is empty
func (q *Queue) drain() {
	for q.pass() {
	}
}

// pass takes one set of per-model groups and processes them, reporting
// whether another pass should follow. A panic in the pass logic backs off
// and retries instead of dropping the loop.
func (q *Queue) pass() (again bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Batch drain pass panicked, retrying after %v: %v", q.backoff, r)
			time.Sleep(q.backoff)
			again = true
		}
	}()

	groups := q.take()
	if groups == nil {
		return false
	}

	// Groups run in parallel; a failure rejects only its own group
	var wg sync.WaitGroup
	for modelID, reqs := range groups {
		wg.Add(1)
		go func(modelID string, reqs []*request) {
			defer wg.Done()
			q.processGroup(modelID, reqs)
		}(modelID, reqs)
	}
	wg.Wait()
	return true
}

// take removes up to maxBatchSize pending requests per model, preserving
// submission order within each group. Requests beyond a model's batch bound
// stay pending for the next pass. An empty list marks the loop idle.
func (q *Queue) take() map[string][]*request {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		q.draining = false
		return nil
	}

	groups := make(map[string][]*request)
	remaining := q.pending[:0]
	for _, req := range q.pending {
		if len(groups[req.modelID]) < q.maxBatchSize {
			groups[req.modelID] = append(groups[req.modelID], req)
		} else {
			remaining = append(remaining, req)
		}
	}
	q.pending = remaining
	return groups
}

// processGroup runs one batch-capable prediction call for the whole group
// and resolves each caller by positional index
func (q *Queue) processGroup(modelID string, reqs []*request) {
	inputs := make([]interface{}, len(reqs))
	for i, req := range reqs {
		inputs[i] = req.input
	}

	outputs, err := q.predictor.PredictBatch(context.Background(), modelID, inputs)
	if err != nil {
		for _, req := range reqs {
			req.result <- Result{Err: err}
		}
		return
	}
	for i, req := range reqs {
		req.result <- Result{Output: outputs[i]}
	}
}
