package ml

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// RegressionMetrics computes mae, mse, rmse and r2 over paired true and
// predicted values.
func RegressionMetrics(yTrue, yPred []float64) map[string]float64 {
	n := float64(len(yTrue))
	var absSum, sqSum float64
	for i := range yTrue {
		diff := yPred[i] - yTrue[i]
		absSum += math.Abs(diff)
		sqSum += diff * diff
	}
	mse := sqSum / n

	mean := stat.Mean(yTrue, nil)
	var ssTot float64
	for _, v := range yTrue {
		ssTot += (v - mean) * (v - mean)
	}
	r2 := 0.0
	if ssTot > 0 {
		r2 = 1 - sqSum/ssTot
	} else if sqSum == 0 {
		r2 = 1 // constant target predicted exactly
	}

	return map[string]float64{
		"mae":  absSum / n,
		"mse":  mse,
		"rmse": math.Sqrt(mse),
		"r2":   r2,
	}
}

// ClassificationMetrics computes accuracy, precision, recall and f1_score.
// With exactly two distinct true labels the larger label is treated as the
// positive class (binary averaging); otherwise the per-class scores are
// macro-averaged. Classes with no predicted (or no true) members contribute
// zero, mirroring a zero-division guard.
func ClassificationMetrics(yTrue, yPred []float64) map[string]float64 {
	classes := distinctSorted(yTrue)

	var correct int
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	accuracy := float64(correct) / float64(len(yTrue))

	var precision, recall, f1 float64
	if len(classes) == 2 {
		precision, recall, f1 = classScores(yTrue, yPred, classes[1])
	} else {
		for _, class := range classes {
			p, r, f := classScores(yTrue, yPred, class)
			precision += p
			recall += r
			f1 += f
		}
		k := float64(len(classes))
		precision, recall, f1 = precision/k, recall/k, f1/k
	}

	return map[string]float64{
		"accuracy":  accuracy,
		"precision": precision,
		"recall":    recall,
		"f1_score":  f1,
	}
}

// classScores computes one-vs-rest precision, recall and F1 for a class.
func classScores(yTrue, yPred []float64, class float64) (precision, recall, f1 float64) {
	var tp, fp, fn float64
	for i := range yTrue {
		predicted := yPred[i] == class
		actual := yTrue[i] == class
		switch {
		case predicted && actual:
			tp++
		case predicted && !actual:
			fp++
		case !predicted && actual:
			fn++
		}
	}
	if tp+fp > 0 {
		precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		recall = tp / (tp + fn)
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return precision, recall, f1
}
