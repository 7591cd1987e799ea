package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/inferd-ai/inferd-go/pkg/models"
)

// Regression is a univariate least-squares regression kind: y = alpha + beta*x.
// Inference accepts a single float64 or a []float64 and predicts per element.
type Regression struct{}

// LinearModel is the handle type for the regression kind
type LinearModel struct {
	Alpha   float64 `json:"alpha"`
	Beta    float64 `json:"beta"`
	Trained bool    `json:"trained"`
}

type regressionSamples struct {
	xs []float64
	ys []float64
}

// Kind returns the regression kind
func (Regression) Kind() models.ModelKind { return models.ModelKindRegression }

// Load constructs a linear model, optionally seeded from config parameters
// "alpha" and "beta"
func (Regression) Load(ctx context.Context, cfg models.ModelConfig) (interface{}, error) {
	model := &LinearModel{}
	if v, ok := toFloat(cfg.Parameters["alpha"]); ok {
		model.Alpha = v
		model.Trained = true
	}
	if v, ok := toFloat(cfg.Parameters["beta"]); ok {
		model.Beta = v
		model.Trained = true
	}
	return model, nil
}

// Infer predicts for a float64 or each element of a []float64
func (Regression) Infer(ctx context.Context, handle interface{}, input interface{}) (interface{}, error) {
	model, ok := handle.(*LinearModel)
	if !ok {
		return nil, fmt.Errorf("regression: unexpected handle type %T", handle)
	}

	switch in := input.(type) {
	case float64:
		return model.Alpha + model.Beta*in, nil
	case int:
		return model.Alpha + model.Beta*float64(in), nil
	case []float64:
		out := make([]float64, len(in))
		for i, x := range in {
			out[i] = model.Alpha + model.Beta*x
		}
		return out, nil
	default:
		return nil, fmt.Errorf("regression: unsupported input type %T", input)
	}
}

// InferBatch predicts for each input in order
func (r Regression) InferBatch(ctx context.Context, handle interface{}, inputs []interface{}) ([]interface{}, error) {
	outputs := make([]interface{}, len(inputs))
	for i, input := range inputs {
		out, err := r.Infer(ctx, handle, input)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		outputs[i] = out
	}
	return outputs, nil
}

// PrepareTraining extracts (x, y) samples from the first feature column and
// the numeric targets
func (Regression) PrepareTraining(ctx context.Context, data models.TrainingData) (interface{}, error) {
	if len(data.Features) == 0 {
		return nil, fmt.Errorf("regression: no training features")
	}
	if len(data.Targets) != len(data.Features) {
		return nil, fmt.Errorf("regression: features and targets must have the same length, got %d and %d",
			len(data.Features), len(data.Targets))
	}

	samples := &regressionSamples{
		xs: make([]float64, len(data.Features)),
		ys: make([]float64, len(data.Targets)),
	}
	for i, row := range data.Features {
		if len(row) == 0 {
			return nil, fmt.Errorf("regression: feature row %d is empty", i)
		}
		samples.xs[i] = row[0]
		samples.ys[i] = data.Targets[i]
	}
	return samples, nil
}

// Train fits the line and measures residual error, reporting progress while
// the residuals are accumulated
func (Regression) Train(ctx context.Context, handle interface{}, prepared interface{}, cfg models.TrainingConfig, progress ProgressSink) (*TrainResult, error) {
	samples, ok := prepared.(*regressionSamples)
	if !ok {
		return nil, fmt.Errorf("regression: unexpected training payload type %T", prepared)
	}
	if len(samples.xs) < 2 {
		return nil, fmt.Errorf("regression: need at least 2 samples, got %d", len(samples.xs))
	}

	alpha, beta := stat.LinearRegression(samples.xs, samples.ys, nil, false)
	if math.IsNaN(alpha) || math.IsNaN(beta) {
		return nil, fmt.Errorf("regression: fit produced NaN coefficients")
	}

	n := len(samples.xs)
	chunk := n / 10
	if chunk == 0 {
		chunk = 1
	}

	sumSq := 0.0
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		residual := samples.ys[i] - (alpha + beta*samples.xs[i])
		sumSq += residual * residual
		if (i+1)%chunk == 0 || i == n-1 {
			progress.Progress(float64(i+1)/float64(n)*100, map[string]float64{
				"alpha": alpha,
				"beta":  beta,
			})
		}
	}
	rmse := math.Sqrt(sumSq / float64(n))

	return &TrainResult{
		Handle:       &LinearModel{Alpha: alpha, Beta: beta, Trained: true},
		TrainedError: &rmse,
		Metrics: map[string]float64{
			"alpha": alpha,
			"beta":  beta,
			"rmse":  rmse,
		},
	}, nil
}

// Save persists the fitted coefficients as JSON
func (Regression) Save(ctx context.Context, handle interface{}, store ArtifactStore, key string) error {
	model, ok := handle.(*LinearModel)
	if !ok {
		return fmt.Errorf("regression: unexpected handle type %T", handle)
	}
	data, err := json.Marshal(model)
	if err != nil {
		return err
	}
	return store.Put(ctx, key, data)
}

// Dispose is a no-op for linear models
func (Regression) Dispose(handle interface{}) error { return nil }

// toFloat converts common numeric parameter types to float64
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
