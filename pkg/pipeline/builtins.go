package pipeline

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/inferd-ai/inferd-go/pkg/models"
)

// runBuiltin dispatches a named built-in operation for the given step kind.
// Unknown operation names are a hard error; nothing passes data through
// silently.
func runBuiltin(kind models.StepKind, operation string, data interface{}, params map[string]interface{}) (interface{}, error) {
	switch kind {
	case models.StepKindPreprocess:
		switch operation {
		case "normalize":
			return builtinNormalize(data, params)
		case "tokenize":
			return builtinTokenize(data, params)
		case "vectorize":
			return builtinVectorize(data, params)
		}
		return nil, fmt.Errorf("unknown preprocess operation: %q", operation)
	case models.StepKindTransform:
		switch operation {
		case "reshape":
			return builtinReshape(data, params)
		case "filter":
			return builtinFilter(data, params)
		case "map":
			return builtinMap(data, params)
		}
		return nil, fmt.Errorf("unknown transform operation: %q", operation)
	case models.StepKindAggregate:
		switch operation {
		case "mean":
			return builtinMean(data)
		case "ensemble":
			return builtinEnsemble(data)
		case "vote":
			return builtinVote(data)
		}
		return nil, fmt.Errorf("unknown aggregate operation: %q", operation)
	}
	return nil, fmt.Errorf("no built-in operations for step kind: %s", kind)
}

// builtinNormalize min-max scales a vector into the target range
// (params "min"/"max", default [0, 1])
func builtinNormalize(data interface{}, params map[string]interface{}) (interface{}, error) {
	values, err := asFloats(data)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	if len(values) == 0 {
		return []float64{}, nil
	}

	targetMin := paramFloat(params, "min", 0)
	targetMax := paramFloat(params, "max", 1)

	dataMin, dataMax := values[0], values[0]
	for _, v := range values {
		if v < dataMin {
			dataMin = v
		}
		if v > dataMax {
			dataMax = v
		}
	}

	out := make([]float64, len(values))
	if dataMax == dataMin {
		for i := range out {
			out[i] = targetMin
		}
		return out, nil
	}
	scale := (targetMax - targetMin) / (dataMax - dataMin)
	for i, v := range values {
		out[i] = targetMin + (v-dataMin)*scale
	}
	return out, nil
}

// builtinTokenize splits a string into tokens (params "separator", default
// whitespace)
func builtinTokenize(data interface{}, params map[string]interface{}) (interface{}, error) {
	text, ok := data.(string)
	if !ok {
		return nil, fmt.Errorf("tokenize: expected string input, got %T", data)
	}
	if sep, ok := params["separator"].(string); ok && sep != "" {
		return strings.Split(text, sep), nil
	}
	return strings.Fields(text), nil
}

// builtinVectorize hashes tokens into a fixed-size count vector
// (params "buckets", default 16)
func builtinVectorize(data interface{}, params map[string]interface{}) (interface{}, error) {
	tokens, err := asStrings(data)
	if err != nil {
		return nil, fmt.Errorf("vectorize: %w", err)
	}

	buckets := int(paramFloat(params, "buckets", 16))
	if buckets <= 0 {
		return nil, fmt.Errorf("vectorize: buckets must be positive, got %d", buckets)
	}

	out := make([]float64, buckets)
	for _, token := range tokens {
		h := fnv.New32a()
		h.Write([]byte(token))
		out[int(h.Sum32())%buckets]++
	}
	return out, nil
}

// builtinReshape chunks a vector into rows (params "rows"), or flattens a
// matrix when no row count is given
func builtinReshape(data interface{}, params map[string]interface{}) (interface{}, error) {
	if matrix, ok := asMatrix(data); ok {
		flat := make([]float64, 0)
		for _, row := range matrix {
			flat = append(flat, row...)
		}
		return flat, nil
	}

	values, err := asFloats(data)
	if err != nil {
		return nil, fmt.Errorf("reshape: %w", err)
	}
	rows := int(paramFloat(params, "rows", 0))
	if rows <= 0 {
		return nil, fmt.Errorf("reshape: vector input requires a positive \"rows\" param")
	}
	if len(values)%rows != 0 {
		return nil, fmt.Errorf("reshape: cannot split %d values into %d rows", len(values), rows)
	}

	cols := len(values) / rows
	out := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		out[i] = values[i*cols : (i+1)*cols]
	}
	return out, nil
}

// builtinFilter keeps vector elements within [min, max] (both optional)
func builtinFilter(data interface{}, params map[string]interface{}) (interface{}, error) {
	values, err := asFloats(data)
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}

	out := make([]float64, 0, len(values))
	for _, v := range values {
		if min, ok := lookupFloat(params, "min"); ok && v < min {
			continue
		}
		if max, ok := lookupFloat(params, "max"); ok && v > max {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// builtinMap applies x*scale + offset to every element
// (params "scale" default 1, "offset" default 0)
func builtinMap(data interface{}, params map[string]interface{}) (interface{}, error) {
	values, err := asFloats(data)
	if err != nil {
		return nil, fmt.Errorf("map: %w", err)
	}

	scale := paramFloat(params, "scale", 1)
	offset := paramFloat(params, "offset", 0)

	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v*scale + offset
	}
	return out, nil
}

// builtinMean reduces a vector to its mean, or a matrix to column means
func builtinMean(data interface{}) (interface{}, error) {
	if matrix, ok := asMatrix(data); ok {
		if len(matrix) == 0 {
			return []float64{}, nil
		}
		cols := len(matrix[0])
		column := make([]float64, len(matrix))
		out := make([]float64, cols)
		for j := 0; j < cols; j++ {
			for i, row := range matrix {
				if len(row) != cols {
					return nil, fmt.Errorf("mean: ragged matrix: row %d has %d values, expected %d", i, len(row), cols)
				}
				column[i] = row[j]
			}
			out[j] = stat.Mean(column, nil)
		}
		return out, nil
	}

	values, err := asFloats(data)
	if err != nil {
		return nil, fmt.Errorf("mean: %w", err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("mean: empty input")
	}
	return stat.Mean(values, nil), nil
}

// builtinEnsemble averages multiple prediction vectors element-wise
func builtinEnsemble(data interface{}) (interface{}, error) {
	matrix, ok := asMatrix(data)
	if !ok {
		return nil, fmt.Errorf("ensemble: expected [][]float64 input, got %T", data)
	}
	if len(matrix) == 0 {
		return nil, fmt.Errorf("ensemble: empty input")
	}

	width := len(matrix[0])
	out := make([]float64, width)
	for i, row := range matrix {
		if len(row) != width {
			return nil, fmt.Errorf("ensemble: row %d has %d values, expected %d", i, len(row), width)
		}
		for j, v := range row {
			out[j] += v
		}
	}
	for j := range out {
		out[j] /= float64(len(matrix))
	}
	return out, nil
}

// builtinVote picks the most frequent value; ties break to the smallest
// value for determinism
func builtinVote(data interface{}) (interface{}, error) {
	if labels, err := asStrings(data); err == nil {
		if len(labels) == 0 {
			return nil, fmt.Errorf("vote: empty input")
		}
		counts := make(map[string]int)
		for _, label := range labels {
			counts[label]++
		}
		keys := make([]string, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		best := keys[0]
		for _, k := range keys[1:] {
			if counts[k] > counts[best] {
				best = k
			}
		}
		return best, nil
	}

	values, err := asFloats(data)
	if err != nil {
		return nil, fmt.Errorf("vote: expected []string or []float64 input, got %T", data)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("vote: empty input")
	}
	counts := make(map[float64]int)
	for _, v := range values {
		counts[v]++
	}
	keys := make([]float64, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Float64s(keys)
	best := keys[0]
	for _, k := range keys[1:] {
		if counts[k] > counts[best] {
			best = k
		}
	}
	return best, nil
}

// Conversion helpers. Pipeline data crosses step boundaries as interface{},
// so builtins accept the shapes JSON decoding and predict outputs produce.

func asFloats(data interface{}) ([]float64, error) {
	switch in := data.(type) {
	case []float64:
		return in, nil
	case []int:
		out := make([]float64, len(in))
		for i, v := range in {
			out[i] = float64(v)
		}
		return out, nil
	case []interface{}:
		out := make([]float64, len(in))
		for i, v := range in {
			switch n := v.(type) {
			case float64:
				out[i] = n
			case int:
				out[i] = float64(n)
			default:
				return nil, fmt.Errorf("element %d is not numeric (%T)", i, v)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected numeric vector, got %T", data)
	}
}

func asStrings(data interface{}) ([]string, error) {
	switch in := data.(type) {
	case []string:
		return in, nil
	case []interface{}:
		out := make([]string, len(in))
		for i, v := range in {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("element %d is not a string (%T)", i, v)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected string slice, got %T", data)
	}
}

func asMatrix(data interface{}) ([][]float64, bool) {
	switch in := data.(type) {
	case [][]float64:
		return in, true
	case []interface{}:
		out := make([][]float64, len(in))
		for i, v := range in {
			row, err := asFloats(v)
			if err != nil {
				return nil, false
			}
			out[i] = row
		}
		return out, true
	default:
		return nil, false
	}
}

func paramFloat(params map[string]interface{}, key string, fallback float64) float64 {
	if v, ok := lookupFloat(params, key); ok {
		return v
	}
	return fallback
}

func lookupFloat(params map[string]interface{}, key string) (float64, bool) {
	if params == nil {
		return 0, false
	}
	switch v := params[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
