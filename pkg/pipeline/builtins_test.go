package pipeline

import (
	"math"
	"testing"

	"github.com/inferd-ai/inferd-go/pkg/models"
)

// TestBuiltinUnknownOperation tests that unknown operation names are a hard
// error for every step kind
func TestBuiltinUnknownOperation(t *testing.T) {
	kinds := []models.StepKind{
		models.StepKindPreprocess,
		models.StepKindTransform,
		models.StepKindAggregate,
	}
	for _, kind := range kinds {
		if _, err := runBuiltin(kind, "no-such-op", []float64{1}, nil); err == nil {
			t.Errorf("Expected error for unknown %s operation", kind)
		}
	}
	if _, err := runBuiltin(models.StepKindPredict, "normalize", []float64{1}, nil); err == nil {
		t.Error("Expected error for a kind without built-ins")
	}
}

// TestNormalize tests min-max scaling
func TestNormalize(t *testing.T) {
	out, err := runBuiltin(models.StepKindPreprocess, "normalize", []float64{0, 5, 10}, nil)
	if err != nil {
		t.Fatalf("Failed to normalize: %v", err)
	}
	values := out.([]float64)
	if values[0] != 0 || values[1] != 0.5 || values[2] != 1 {
		t.Errorf("Expected [0 0.5 1], got %v", values)
	}

	// Custom target range
	out, err = runBuiltin(models.StepKindPreprocess, "normalize", []float64{0, 10},
		map[string]interface{}{"min": -1.0, "max": 1.0})
	if err != nil {
		t.Fatalf("Failed to normalize with range: %v", err)
	}
	values = out.([]float64)
	if values[0] != -1 || values[1] != 1 {
		t.Errorf("Expected [-1 1], got %v", values)
	}

	// Constant input collapses to the target minimum
	out, err = runBuiltin(models.StepKindPreprocess, "normalize", []float64{4, 4}, nil)
	if err != nil {
		t.Fatalf("Failed to normalize constant input: %v", err)
	}
	values = out.([]float64)
	if values[0] != 0 || values[1] != 0 {
		t.Errorf("Expected [0 0] for constant input, got %v", values)
	}
}

// TestTokenizeAndVectorize tests the text preprocessing operations
func TestTokenizeAndVectorize(t *testing.T) {
	out, err := runBuiltin(models.StepKindPreprocess, "tokenize", "the quick brown fox", nil)
	if err != nil {
		t.Fatalf("Failed to tokenize: %v", err)
	}
	tokens := out.([]string)
	if len(tokens) != 4 || tokens[0] != "the" || tokens[3] != "fox" {
		t.Errorf("Unexpected tokens: %v", tokens)
	}

	out, err = runBuiltin(models.StepKindPreprocess, "tokenize", "a,b,c",
		map[string]interface{}{"separator": ","})
	if err != nil {
		t.Fatalf("Failed to tokenize with separator: %v", err)
	}
	if tokens := out.([]string); len(tokens) != 3 {
		t.Errorf("Expected 3 tokens, got %v", tokens)
	}

	out, err = runBuiltin(models.StepKindPreprocess, "vectorize", []string{"a", "b", "a"},
		map[string]interface{}{"buckets": 8})
	if err != nil {
		t.Fatalf("Failed to vectorize: %v", err)
	}
	vector := out.([]float64)
	if len(vector) != 8 {
		t.Fatalf("Expected 8 buckets, got %d", len(vector))
	}
	total := 0.0
	for _, v := range vector {
		total += v
	}
	if total != 3 {
		t.Errorf("Expected bucket counts summing to 3, got %v", total)
	}
}

// TestReshape tests both reshape directions
func TestReshape(t *testing.T) {
	out, err := runBuiltin(models.StepKindTransform, "reshape", []float64{1, 2, 3, 4},
		map[string]interface{}{"rows": 2})
	if err != nil {
		t.Fatalf("Failed to reshape vector: %v", err)
	}
	matrix := out.([][]float64)
	if len(matrix) != 2 || matrix[1][0] != 3 {
		t.Errorf("Unexpected matrix: %v", matrix)
	}

	out, err = runBuiltin(models.StepKindTransform, "reshape", matrix, nil)
	if err != nil {
		t.Fatalf("Failed to flatten matrix: %v", err)
	}
	flat := out.([]float64)
	if len(flat) != 4 || flat[2] != 3 {
		t.Errorf("Unexpected flattened vector: %v", flat)
	}

	if _, err := runBuiltin(models.StepKindTransform, "reshape", []float64{1, 2, 3},
		map[string]interface{}{"rows": 2}); err == nil {
		t.Error("Expected error for indivisible reshape")
	}
	if _, err := runBuiltin(models.StepKindTransform, "reshape", []float64{1, 2}, nil); err == nil {
		t.Error("Expected error for vector reshape without rows")
	}
}

// TestFilterAndMap tests the element-wise transforms
func TestFilterAndMap(t *testing.T) {
	out, err := runBuiltin(models.StepKindTransform, "filter", []float64{-2, 3, 7, 11},
		map[string]interface{}{"min": 0.0, "max": 10.0})
	if err != nil {
		t.Fatalf("Failed to filter: %v", err)
	}
	values := out.([]float64)
	if len(values) != 2 || values[0] != 3 || values[1] != 7 {
		t.Errorf("Expected [3 7], got %v", values)
	}

	out, err = runBuiltin(models.StepKindTransform, "map", []float64{1, 2},
		map[string]interface{}{"scale": 3.0, "offset": 1.0})
	if err != nil {
		t.Fatalf("Failed to map: %v", err)
	}
	values = out.([]float64)
	if values[0] != 4 || values[1] != 7 {
		t.Errorf("Expected [4 7], got %v", values)
	}
}

// TestAggregates tests mean, ensemble and vote
func TestAggregates(t *testing.T) {
	out, err := runBuiltin(models.StepKindAggregate, "mean", []float64{1, 2, 3}, nil)
	if err != nil {
		t.Fatalf("Failed to compute mean: %v", err)
	}
	if math.Abs(out.(float64)-2) > 1e-9 {
		t.Errorf("Expected mean 2, got %v", out)
	}

	out, err = runBuiltin(models.StepKindAggregate, "mean", [][]float64{{1, 10}, {3, 20}}, nil)
	if err != nil {
		t.Fatalf("Failed to compute column means: %v", err)
	}
	cols := out.([]float64)
	if cols[0] != 2 || cols[1] != 15 {
		t.Errorf("Expected [2 15], got %v", cols)
	}

	out, err = runBuiltin(models.StepKindAggregate, "ensemble", [][]float64{{0, 1}, {1, 0}}, nil)
	if err != nil {
		t.Fatalf("Failed to ensemble: %v", err)
	}
	avg := out.([]float64)
	if avg[0] != 0.5 || avg[1] != 0.5 {
		t.Errorf("Expected [0.5 0.5], got %v", avg)
	}

	out, err = runBuiltin(models.StepKindAggregate, "vote", []string{"cat", "dog", "cat"}, nil)
	if err != nil {
		t.Fatalf("Failed to vote: %v", err)
	}
	if out != "cat" {
		t.Errorf("Expected cat, got %v", out)
	}

	// Ties break to the smallest value
	out, err = runBuiltin(models.StepKindAggregate, "vote", []float64{2, 1, 2, 1}, nil)
	if err != nil {
		t.Fatalf("Failed to vote on numbers: %v", err)
	}
	if out != 1.0 {
		t.Errorf("Expected tie to break to 1, got %v", out)
	}

	if _, err := runBuiltin(models.StepKindAggregate, "mean", []float64{}, nil); err == nil {
		t.Error("Expected error for empty mean input")
	}
}
