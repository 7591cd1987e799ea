package capability

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sjwhitworth/golearn/base"
	"github.com/sjwhitworth/golearn/evaluation"
	"github.com/sjwhitworth/golearn/knn"

	"github.com/inferd-ai/inferd-go/pkg/models"
)

// Classifier is a k-nearest-neighbour classification kind backed by golearn.
// Inference accepts a []float64 feature vector and returns the predicted
// label as a string.
type Classifier struct{}

// KNNModel is the handle type for the classifier kind. The training set is
// retained because kNN is a lazy learner and prediction grids must share the
// training attribute layout.
type KNNModel struct {
	K            int         `json:"k"`
	Features     [][]float64 `json:"features,omitempty"`
	Labels       []string    `json:"labels,omitempty"`
	FeatureNames []string    `json:"feature_names,omitempty"`

	classifier *knn.KNNClassifier
}

type classifierSamples struct {
	features     [][]float64
	labels       []string
	featureNames []string
}

// Kind returns the classifier kind
func (Classifier) Kind() models.ModelKind { return models.ModelKindClassifier }

// Load constructs an untrained kNN model; "k" may be set in config parameters
func (Classifier) Load(ctx context.Context, cfg models.ModelConfig) (interface{}, error) {
	k := 3
	if v, ok := toFloat(cfg.Parameters["k"]); ok && int(v) > 0 {
		k = int(v)
	}
	return &KNNModel{K: k}, nil
}

// Infer predicts the label for a single feature vector
func (c Classifier) Infer(ctx context.Context, handle interface{}, input interface{}) (interface{}, error) {
	vector, err := toVector(input)
	if err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}
	outputs, err := c.inferVectors(handle, [][]float64{vector})
	if err != nil {
		return nil, err
	}
	return outputs[0], nil
}

// InferBatch predicts labels for a batch of feature vectors in one pass
func (c Classifier) InferBatch(ctx context.Context, handle interface{}, inputs []interface{}) ([]interface{}, error) {
	vectors := make([][]float64, len(inputs))
	for i, input := range inputs {
		vector, err := toVector(input)
		if err != nil {
			return nil, fmt.Errorf("classifier: input %d: %w", i, err)
		}
		vectors[i] = vector
	}
	labels, err := c.inferVectors(handle, vectors)
	if err != nil {
		return nil, err
	}
	outputs := make([]interface{}, len(labels))
	for i, label := range labels {
		outputs[i] = label
	}
	return outputs, nil
}

func (Classifier) inferVectors(handle interface{}, vectors [][]float64) ([]string, error) {
	model, ok := handle.(*KNNModel)
	if !ok {
		return nil, fmt.Errorf("classifier: unexpected handle type %T", handle)
	}
	if model.classifier == nil {
		return nil, fmt.Errorf("classifier: model is not trained")
	}

	for i, vector := range vectors {
		if len(vector) != len(model.FeatureNames) {
			return nil, fmt.Errorf("classifier: input %d has %d features, model expects %d",
				i, len(vector), len(model.FeatureNames))
		}
	}

	// Prediction grids must carry the training attribute layout; the class
	// column is a placeholder and is ignored by Predict.
	placeholder := make([]string, len(vectors))
	for i := range placeholder {
		placeholder[i] = model.Labels[0]
	}
	grid, err := denseInstances(vectors, placeholder, model.FeatureNames)
	if err != nil {
		return nil, fmt.Errorf("classifier: failed to build prediction grid: %w", err)
	}

	predictions, err := model.classifier.Predict(grid)
	if err != nil {
		return nil, fmt.Errorf("classifier: prediction failed: %w", err)
	}

	labels := make([]string, len(vectors))
	for i := range vectors {
		labels[i] = base.GetClass(predictions, i)
	}
	return labels, nil
}

// PrepareTraining validates the labeled samples and fills in feature names
func (Classifier) PrepareTraining(ctx context.Context, data models.TrainingData) (interface{}, error) {
	if len(data.Features) == 0 {
		return nil, fmt.Errorf("classifier: no training features")
	}
	if len(data.Labels) != len(data.Features) {
		return nil, fmt.Errorf("classifier: features and labels must have the same length, got %d and %d",
			len(data.Features), len(data.Labels))
	}

	width := len(data.Features[0])
	if width == 0 {
		return nil, fmt.Errorf("classifier: feature rows are empty")
	}
	for i, row := range data.Features {
		if len(row) != width {
			return nil, fmt.Errorf("classifier: feature row %d has %d values, expected %d", i, len(row), width)
		}
	}

	names := data.FeatureNames
	if len(names) == 0 {
		names = make([]string, width)
		for i := range names {
			names[i] = fmt.Sprintf("feature_%d", i)
		}
	} else if len(names) != width {
		return nil, fmt.Errorf("classifier: %d feature names for %d features", len(names), width)
	}

	return &classifierSamples{
		features:     data.Features,
		labels:       data.Labels,
		featureNames: names,
	}, nil
}

// Train fits a kNN classifier and measures accuracy on the training set
func (Classifier) Train(ctx context.Context, handle interface{}, prepared interface{}, cfg models.TrainingConfig, progress ProgressSink) (*TrainResult, error) {
	model, ok := handle.(*KNNModel)
	if !ok {
		return nil, fmt.Errorf("classifier: unexpected handle type %T", handle)
	}
	samples, ok := prepared.(*classifierSamples)
	if !ok {
		return nil, fmt.Errorf("classifier: unexpected training payload type %T", prepared)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	k := model.K
	if k > len(samples.features) {
		k = len(samples.features)
	}

	train, err := denseInstances(samples.features, samples.labels, samples.featureNames)
	if err != nil {
		return nil, fmt.Errorf("classifier: failed to build training grid: %w", err)
	}
	progress.Progress(25, nil)

	classifier := knn.NewKnnClassifier("euclidean", "linear", k)
	if err := classifier.Fit(train); err != nil {
		return nil, fmt.Errorf("classifier: fit failed: %w", err)
	}
	progress.Progress(60, nil)

	predictions, err := classifier.Predict(train)
	if err != nil {
		return nil, fmt.Errorf("classifier: evaluation predict failed: %w", err)
	}
	confusion, err := evaluation.GetConfusionMatrix(train, predictions)
	if err != nil {
		return nil, fmt.Errorf("classifier: confusion matrix failed: %w", err)
	}
	accuracy := evaluation.GetAccuracy(confusion)
	progress.Progress(100, map[string]float64{"accuracy": accuracy})

	trained := &KNNModel{
		K:            k,
		Features:     samples.features,
		Labels:       samples.labels,
		FeatureNames: samples.featureNames,
		classifier:   classifier,
	}
	return &TrainResult{
		Handle:   trained,
		Accuracy: &accuracy,
		Metrics: map[string]float64{
			"accuracy": accuracy,
			"k":        float64(k),
			"samples":  float64(len(samples.features)),
		},
	}, nil
}

// Save persists the training set and k as JSON; the lazy classifier is
// rebuilt from them on load
func (Classifier) Save(ctx context.Context, handle interface{}, store ArtifactStore, key string) error {
	model, ok := handle.(*KNNModel)
	if !ok {
		return fmt.Errorf("classifier: unexpected handle type %T", handle)
	}
	data, err := json.Marshal(model)
	if err != nil {
		return err
	}
	return store.Put(ctx, key, data)
}

// Dispose drops the retained training grid
func (Classifier) Dispose(handle interface{}) error {
	if model, ok := handle.(*KNNModel); ok {
		model.classifier = nil
	}
	return nil
}

// denseInstances builds a golearn data grid from feature vectors and labels
func denseInstances(features [][]float64, labels []string, featureNames []string) (*base.DenseInstances, error) {
	inst := base.NewDenseInstances()

	specs := make([]base.AttributeSpec, len(featureNames))
	for i, name := range featureNames {
		specs[i] = inst.AddAttribute(base.NewFloatAttribute(name))
	}

	classAttr := base.NewCategoricalAttribute()
	classAttr.SetName("label")
	classSpec := inst.AddAttribute(classAttr)
	if err := inst.AddClassAttribute(classAttr); err != nil {
		return nil, err
	}

	if err := inst.Extend(len(features)); err != nil {
		return nil, err
	}
	for i, row := range features {
		for j := range specs {
			inst.Set(specs[j], i, base.PackFloatToBytes(row[j]))
		}
		inst.Set(classSpec, i, classAttr.GetSysValFromString(labels[i]))
	}
	return inst, nil
}

// toVector converts supported input shapes to a feature vector
func toVector(input interface{}) ([]float64, error) {
	switch in := input.(type) {
	case []float64:
		return in, nil
	case []interface{}:
		vector := make([]float64, len(in))
		for i, v := range in {
			f, ok := toFloat(v)
			if !ok {
				return nil, fmt.Errorf("element %d is not numeric (%T)", i, v)
			}
			vector[i] = f
		}
		return vector, nil
	default:
		return nil, fmt.Errorf("unsupported input type %T, expected []float64", input)
	}
}
