package ml

import (
	"errors"
	"math"
)

// Training schedule for the linear SVM variants.
const (
	svmIters   = 1000
	svmLambda  = 0.01
	svrEpsilon = 0.1
)

// SVCModel is a linear support-vector classifier trained with a hinge-loss
// sub-gradient schedule. Binary problems fit one separating hyperplane;
// more than two classes fit one-vs-rest.
type SVCModel struct {
	MaxIter int // 0 means the default iteration cap
	Classes []float64
	Weights [][]float64
	Bias    []float64
	Scaler  *scaler
}

var _ Model = (*SVCModel)(nil)

// Kind returns SVC.
func (m *SVCModel) Kind() Kind { return SVC }

// Fit trains the classifier on standardized features.
func (m *SVCModel) Fit(X [][]float64, y []float64) error {
	if err := checkMatrix(SVC, X, y); err != nil {
		return err
	}
	m.Classes = distinctSorted(y)
	if len(m.Classes) < 2 {
		return &FitError{ModelKind: SVC, Err: errors.New("label has a single distinct value")}
	}

	m.Scaler = fitScaler(X)
	Xs := m.Scaler.transform(X)

	iters := m.MaxIter
	if iters <= 0 {
		iters = svmIters
	}

	if len(m.Classes) == 2 {
		w, b := fitBinaryHinge(Xs, y, m.Classes[1], iters)
		m.Weights = [][]float64{w}
		m.Bias = []float64{b}
		return nil
	}
	m.Weights = make([][]float64, len(m.Classes))
	m.Bias = make([]float64, len(m.Classes))
	for i, class := range m.Classes {
		m.Weights[i], m.Bias[i] = fitBinaryHinge(Xs, y, class, iters)
	}
	return nil
}

// fitBinaryHinge minimizes regularized hinge loss with a 1/(lambda*t)
// step schedule, treating positive as +1 and everything else as -1.
func fitBinaryHinge(X [][]float64, y []float64, positive float64, iters int) ([]float64, float64) {
	n, d := len(X), len(X[0])
	sign := make([]float64, n)
	for i, v := range y {
		if v == positive {
			sign[i] = 1
		} else {
			sign[i] = -1
		}
	}

	w := make([]float64, d)
	var b float64
	gw := make([]float64, d)
	for t := 1; t <= iters; t++ {
		for j := range gw {
			gw[j] = 0
		}
		var gb float64
		for i, row := range X {
			if sign[i]*(dot(w, row)+b) < 1 {
				for j, v := range row {
					gw[j] -= sign[i] * v
				}
				gb -= sign[i]
			}
		}
		eta := 1 / (svmLambda * float64(t))
		for j := range w {
			w[j] -= eta * (svmLambda*w[j] + gw[j]/float64(n))
		}
		b -= eta * gb / float64(n)
	}
	return w, b
}

// Predict returns the class with the largest margin.
func (m *SVCModel) Predict(x []float64) float64 {
	xs := m.Scaler.transformRow(x)
	if len(m.Classes) == 2 {
		if dot(m.Weights[0], xs)+m.Bias[0] >= 0 {
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

// SVRModel is a linear support-vector regressor with epsilon-insensitive
// loss. Both features and the target are standardized internally; the fitted
// target scale is replayed at predict time.
type SVRModel struct {
	MaxIter int // 0 means the default iteration cap
	Weights []float64
	Bias    float64
	Scaler  *scaler
	YMean   float64
	YStd    float64
}

var _ Model = (*SVRModel)(nil)

// Kind returns SVR.
func (m *SVRModel) Kind() Kind { return SVR }

// Fit trains by sub-gradient descent on the epsilon-insensitive loss.
func (m *SVRModel) Fit(X [][]float64, y []float64) error {
	if err := checkMatrix(SVR, X, y); err != nil {
		return err
	}
	m.Scaler = fitScaler(X)
	Xs := m.Scaler.transform(X)

	n, d := len(X), len(X[0])
	m.YMean, m.YStd = meanStd(y)
	ys := make([]float64, n)
	for i, v := range y {
		ys[i] = (v - m.YMean) / m.YStd
	}

	iters := m.MaxIter
	if iters <= 0 {
		iters = svmIters
	}

	w := make([]float64, d)
	var b float64
	gw := make([]float64, d)
	for t := 1; t <= iters; t++ {
		for j := range gw {
			gw[j] = 0
		}
		var gb float64
		for i, row := range Xs {
			residual := dot(w, row) + b - ys[i]
			if math.Abs(residual) <= svrEpsilon {
				continue
			}
			grad := 1.0
			if residual < 0 {
				grad = -1
			}
			for j, v := range row {
				gw[j] += grad * v
			}
			gb += grad
		}
		eta := 1 / (svmLambda * float64(t))
		for j := range w {
			w[j] -= eta * (svmLambda*w[j] + gw[j]/float64(n))
		}
		b -= eta * gb / float64(n)
	}
	m.Weights = w
	m.Bias = b
	return nil
}

// Predict maps the standardized output back to the target scale.
func (m *SVRModel) Predict(x []float64) float64 {
	xs := m.Scaler.transformRow(x)
	return (dot(m.Weights, xs)+m.Bias)*m.YStd + m.YMean
}

func meanStd(y []float64) (float64, float64) {
	n := float64(len(y))
	var mean float64
	for _, v := range y {
		mean += v
	}
	mean /= n
	var ss float64
	for _, v := range y {
		ss += (v - mean) * (v - mean)
	}
	std := math.Sqrt(ss / n)
	if std == 0 {
		std = 1
	}
	return mean, std
}
