// Package ml implements the supported supervised-learning algorithms behind
// a single Model interface: three regressors (linear, random forest, linear
// SVR) and three classifiers (logistic, random forest, linear SVC), plus the
// evaluation metrics for each task.
package ml

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies one of the supported algorithm variants.
type Kind string

// The closed set of model kinds.
const (
	LinearRegression       Kind = "linear_regression"
	RandomForestRegressor  Kind = "random_forest_regressor"
	SVR                    Kind = "svr"
	LogisticRegression     Kind = "logistic_regression"
	RandomForestClassifier Kind = "random_forest_classifier"
	SVC                    Kind = "svc"
)

// ErrUnsupportedKind is returned for a model kind outside the closed set.
var ErrUnsupportedKind = errors.New("ml: unsupported model kind")

var regressionKinds = []Kind{LinearRegression, RandomForestRegressor, SVR}
var classificationKinds = []Kind{LogisticRegression, RandomForestClassifier, SVC}

// ParseKind validates a kind string against the closed set.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if k.Valid() {
		return k, nil
	}
	supported := make([]string, 0, 6)
	for _, known := range append(append([]Kind{}, regressionKinds...), classificationKinds...) {
		supported = append(supported, string(known))
	}
	return "", fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedKind, s, strings.Join(supported, ", "))
}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	switch k {
	case LinearRegression, RandomForestRegressor, SVR,
		LogisticRegression, RandomForestClassifier, SVC:
		return true
	}
	return false
}

// IsClassifier reports whether the kind treats the label as categorical.
// This choice also selects the metric set computed after fitting.
func (k Kind) IsClassifier() bool {
	switch k {
	case LogisticRegression, RandomForestClassifier, SVC:
		return true
	}
	return false
}

// Model is a fitted or fittable algorithm. Predict takes one feature vector
// in the training-time column order and returns the scalar output for
// regressors or the predicted class label for classifiers.
type Model interface {
	Fit(X [][]float64, y []float64) error
	Predict(x []float64) float64
	Kind() Kind
}

// New returns an unfitted model for the kind with default hyperparameters.
func New(kind Kind) (Model, error) {
	return NewWithParams(kind, Params{})
}

// NewWithParams returns an unfitted model honoring the tunable
// hyperparameter subset. Parameters that do not apply to the kind are
// ignored, matching how per-kind defaults worked upstream.
func NewWithParams(kind Kind, p Params) (Model, error) {
	switch kind {
	case LinearRegression:
		return &LinearModel{}, nil
	case RandomForestRegressor, RandomForestClassifier:
		return &ForestModel{ModelKind: kind, NumTrees: p.NEstimators}, nil
	case SVR:
		return &SVRModel{MaxIter: p.MaxIter}, nil
	case LogisticRegression:
		return &LogisticModel{MaxIter: p.MaxIter}, nil
	case SVC:
		return &SVCModel{MaxIter: p.MaxIter}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
}

// FitError reports a numerical failure during fitting. It is surfaced to the
// caller and never retried.
type FitError struct {
	ModelKind Kind
	Err       error
}

func (e *FitError) Error() string {
	return fmt.Sprintf("ml: fitting %s: %v", e.ModelKind, e.Err)
}

func (e *FitError) Unwrap() error {
	return e.Err
}

// checkMatrix validates the shape of a training set before fitting.
func checkMatrix(kind Kind, X [][]float64, y []float64) error {
	if len(X) == 0 || len(y) == 0 {
		return &FitError{ModelKind: kind, Err: errors.New("empty training set")}
	}
	if len(X) != len(y) {
		return &FitError{ModelKind: kind, Err: fmt.Errorf("row count mismatch: %d features rows, %d labels", len(X), len(y))}
	}
	if len(X[0]) == 0 {
		return &FitError{ModelKind: kind, Err: errors.New("no feature columns")}
	}
	return nil
}
