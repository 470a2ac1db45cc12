// Package service implements the training pipeline and the prediction
// service on top of the model registry.
package service

import (
	"io"
	"time"

	"ml_system/internal/domain"
	"ml_system/internal/ml"
	"ml_system/internal/registry"

	"github.com/sirupsen/logrus"
)

// TrainRequest carries one training run: raw CSV rows plus the requested
// schema, algorithm and model name. Params and TestSize are optional; their
// zero values select the service defaults.
type TrainRequest struct {
	ModelName string
	Kind      string
	Features  []string
	Label     string
	Data      io.Reader
	Params    ml.Params
	TestSize  float64 // holdout fraction for this run, 0 means the configured default
}

// PredictRequest asks a named model for one prediction. Inputs maps feature
// names to values; extra keys are ignored.
type PredictRequest struct {
	ModelName string
	Inputs    map[string]float64
}

// PredictResult is one prediction with the model context the caller needs.
type PredictResult struct {
	ModelName string  `json:"model_name"`
	Kind      string  `json:"model_kind"`
	Value     float64 `json:"prediction"`
}

// MLService runs training and prediction against the registry.
type MLService struct {
	registry     *registry.Registry
	testFraction float64
}

// NewMLService creates the service. testFraction is the share of rows held
// out for evaluation (0.2 in the default configuration).
func NewMLService(reg *registry.Registry, testFraction float64) *MLService {
	return &MLService{registry: reg, testFraction: testFraction}
}

// Train validates the dataset against the requested schema, fits the chosen
// algorithm, evaluates it on the held-out split, and commits metadata and
// artifact through the registry as one unit. A failure at any step leaves
// the registry and the artifact directory untouched.
func (s *MLService) Train(req TrainRequest) (*domain.ModelMetadata, error) {
	kind, err := ml.ParseKind(req.Kind)
	if err != nil {
		return nil, err
	}

	header, rows, err := parseCSV(req.Data)
	if err != nil {
		return nil, err
	}
	ds, err := buildDataset(header, rows, req.Features, req.Label)
	if err != nil {
		return nil, err
	}

	testFraction := s.testFraction
	if req.TestSize > 0 {
		testFraction = req.TestSize
	}
	train, test := trainTestSplit(ds, testFraction)

	model, err := ml.NewWithParams(kind, req.Params)
	if err != nil {
		return nil, err
	}
	if err := model.Fit(train.X, train.Y); err != nil {
		return nil, err
	}

	preds := make([]float64, len(test.X))
	for i, x := range test.X {
		preds[i] = model.Predict(x)
	}
	var metrics map[string]float64
	if kind.IsClassifier() {
		metrics = ml.ClassificationMetrics(test.Y, preds)
	} else {
		metrics = ml.RegressionMetrics(test.Y, preds)
	}

	meta := &domain.ModelMetadata{
		Name:      req.ModelName,
		Kind:      string(kind),
		Label:     req.Label,
		TrainedAt: time.Now().UTC(),
	}
	if err := meta.SetFeatures(req.Features); err != nil {
		return nil, err
	}
	if err := meta.SetMetrics(metrics); err != nil {
		return nil, err
	}

	if err := s.registry.Register(meta, model); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"model_name": meta.Name,
		"model_kind": meta.Kind,
		"rows":       len(ds.X),
		"metrics":    metrics,
	}).Info("Model trained")
	return meta, nil
}

// Predict resolves the model, validates the input against the stored feature
// schema, and runs inference on a single vector built in the stored feature
// order. That order is the training-time column order; the key order of the
// input record is irrelevant.
func (s *MLService) Predict(req PredictRequest) (*PredictResult, error) {
	meta, err := s.registry.Lookup(req.ModelName)
	if err != nil {
		return nil, err
	}
	features, err := meta.FeatureNames()
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, name := range features {
		if _, ok := req.Inputs[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingFeaturesError{Missing: missing}
	}

	vec := make([]float64, len(features))
	for i, name := range features {
		vec[i] = req.Inputs[name]
	}

	model, err := s.registry.LoadArtifact(req.ModelName)
	if err != nil {
		return nil, err
	}

	return &PredictResult{
		ModelName: meta.Name,
		Kind:      meta.Kind,
		Value:     model.Predict(vec),
	}, nil
}

// ListModels returns all registered model metadata.
func (s *MLService) ListModels() ([]domain.ModelMetadata, error) {
	return s.registry.List()
}

// ModelMetrics returns the stored evaluation metrics for a model.
func (s *MLService) ModelMetrics(name string) (*domain.ModelMetadata, map[string]float64, error) {
	meta, err := s.registry.Lookup(name)
	if err != nil {
		return nil, nil, err
	}
	metrics, err := meta.MetricValues()
	if err != nil {
		return nil, nil, err
	}
	return meta, metrics, nil
}
