package ml

import (
	"errors"
	"math"
)

// Training schedule for the gradient-descent classifier.
const (
	logisticIters = 1000
	logisticRate  = 0.5
)

// LogisticModel is a logistic-regression classifier. Binary problems fit a
// single weight vector; more than two classes fit one-vs-rest.
type LogisticModel struct {
	MaxIter int         // 0 means the default iteration cap
	Classes []float64   // sorted distinct labels seen at fit time
	Weights [][]float64 // one vector for binary, one per class otherwise
	Bias    []float64
	Scaler  *scaler
}

var _ Model = (*LogisticModel)(nil)

// Kind returns LogisticRegression.
func (m *LogisticModel) Kind() Kind { return LogisticRegression }

// Fit trains by batch gradient descent on standardized features.
func (m *LogisticModel) Fit(X [][]float64, y []float64) error {
	if err := checkMatrix(LogisticRegression, X, y); err != nil {
		return err
	}
	m.Classes = distinctSorted(y)
	if len(m.Classes) < 2 {
		return &FitError{ModelKind: LogisticRegression, Err: errors.New("label has a single distinct value")}
	}

	m.Scaler = fitScaler(X)
	Xs := m.Scaler.transform(X)

	iters := m.MaxIter
	if iters <= 0 {
		iters = logisticIters
	}

	if len(m.Classes) == 2 {
		w, b := fitBinaryLogistic(Xs, y, m.Classes[1], iters)
		m.Weights = [][]float64{w}
		m.Bias = []float64{b}
		return nil
	}
	// One-vs-rest for multiclass labels.
	m.Weights = make([][]float64, len(m.Classes))
	m.Bias = make([]float64, len(m.Classes))
	for i, class := range m.Classes {
		m.Weights[i], m.Bias[i] = fitBinaryLogistic(Xs, y, class, iters)
	}
	return nil
}

// fitBinaryLogistic fits one sigmoid boundary treating positive as class 1.
func fitBinaryLogistic(X [][]float64, y []float64, positive float64, iters int) ([]float64, float64) {
	n, d := len(X), len(X[0])
	target := make([]float64, n)
	for i, v := range y {
		if v == positive {
			target[i] = 1
		}
	}

	w := make([]float64, d)
	var b float64
	gw := make([]float64, d)
	for iter := 0; iter < iters; iter++ {
		for j := range gw {
			gw[j] = 0
		}
		var gb float64
		for i, row := range X {
			err := sigmoid(dot(w, row)+b) - target[i]
			for j, v := range row {
				gw[j] += err * v
			}
			gb += err
		}
		step := logisticRate / float64(n)
		for j := range w {
			w[j] -= step * gw[j]
		}
		b -= step * gb
	}
	return w, b
}

// Predict returns the class label with the highest score.
func (m *LogisticModel) Predict(x []float64) float64 {
	xs := m.Scaler.transformRow(x)
	if len(m.Classes) == 2 {
		if sigmoid(dot(m.Weights[0], xs)+m.Bias[0]) >= 0.5 {
			return m.Classes[1]
		}
		return m.Classes[0]
	}
	best, bestScore := m.Classes[0], math.Inf(-1)
	for i, class := range m.Classes {
		if score := dot(m.Weights[i], xs) + m.Bias[i]; score > bestScore {
			best, bestScore = class, score
		}
	}
	return best
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
