package ml

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// scaler standardizes features to zero mean and unit variance. The
// gradient-based models (logistic regression, linear SVR/SVC) need this to
// converge; it is fitted from the training data and replayed at predict time.
type scaler struct {
	Mean []float64
	Std  []float64
}

func fitScaler(X [][]float64) *scaler {
	d := len(X[0])
	s := &scaler{Mean: make([]float64, d), Std: make([]float64, d)}
	col := make([]float64, len(X))
	for j := 0; j < d; j++ {
		for i, row := range X {
			col[i] = row[j]
		}
		mean, std := stat.MeanStdDev(col, nil)
		if math.IsNaN(std) || std == 0 {
			std = 1 // constant column
		}
		s.Mean[j] = mean
		s.Std[j] = std
	}
	return s
}

// transform standardizes all rows into a fresh matrix.
func (s *scaler) transform(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		out[i] = s.transformRow(row)
	}
	return out
}

// transformRow standardizes a single feature vector.
func (s *scaler) transformRow(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - s.Mean[j]) / s.Std[j]
	}
	return out
}

// distinctSorted returns the sorted distinct values of y. For classifiers
// these are the class labels.
func distinctSorted(y []float64) []float64 {
	seen := make(map[float64]struct{}, len(y))
	var out []float64
	for _, v := range y {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
