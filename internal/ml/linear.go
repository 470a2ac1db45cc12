package ml

import (
	"gonum.org/v1/gonum/mat"
)

// LinearModel is an ordinary least squares regressor. Weights[0] is the
// intercept; Weights[1:] follow the training column order.
type LinearModel struct {
	Weights []float64
}

var _ Model = (*LinearModel)(nil)

// Kind returns LinearRegression.
func (m *LinearModel) Kind() Kind { return LinearRegression }

// Fit solves the least squares problem over the design matrix with an
// intercept column. A singular or rank-deficient system is a FitError.
func (m *LinearModel) Fit(X [][]float64, y []float64) error {
	if err := checkMatrix(LinearRegression, X, y); err != nil {
		return err
	}
	n, d := len(X), len(X[0])

	A := mat.NewDense(n, d+1, nil)
	for i, row := range X {
		A.Set(i, 0, 1)
		for j, v := range row {
			A.Set(i, j+1, v)
		}
	}
	b := mat.NewVecDense(n, y)

	var w mat.VecDense
	if err := w.SolveVec(A, b); err != nil {
		return &FitError{ModelKind: LinearRegression, Err: err}
	}

	m.Weights = make([]float64, d+1)
	for i := range m.Weights {
		m.Weights[i] = w.AtVec(i)
	}
	return nil
}

// Predict returns the linear combination of the input with the fitted weights.
func (m *LinearModel) Predict(x []float64) float64 {
	out := m.Weights[0]
	for i, v := range x {
		out += m.Weights[i+1] * v
	}
	return out
}
