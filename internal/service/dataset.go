package service

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"strconv"
)

// dataset is a parsed, validated feature matrix and label vector. Feature
// columns follow the requested feature order, not the CSV column order.
type dataset struct {
	X [][]float64
	Y []float64
}

// splitSeed fixes the shuffle so repeated training runs on the same data
// produce the same evaluation split.
const splitSeed = 42

// parseCSV reads the uploaded file into a header and string rows.
func parseCSV(r io.Reader) ([]string, [][]string, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parsing csv: %w", err)
	}
	if len(records) < 2 {
		return nil, nil, &SchemaError{Column: "", Reason: "dataset needs a header row and at least one data row"}
	}
	return records[0], records[1:], nil
}

// buildDataset validates the requested schema against the rows and extracts
// the numeric matrix. Any missing or non-numeric value in a required column
// rejects the whole dataset; rows are never silently dropped.
func buildDataset(header []string, rows [][]string, features []string, label string) (*dataset, error) {
	if label == "" {
		return nil, &SchemaError{Column: label, Reason: "label name must not be empty"}
	}
	if len(features) == 0 {
		return nil, &SchemaError{Column: "", Reason: "at least one feature is required"}
	}
	for _, f := range features {
		if f == label {
			return nil, &SchemaError{Column: f, Reason: "label must not appear in the feature list"}
		}
	}

	colIndex := make(map[string]int, len(header))
	for i, name := range header {
		colIndex[name] = i
	}
	required := append(append([]string{}, features...), label)
	for _, name := range required {
		if _, ok := colIndex[name]; !ok {
			return nil, &SchemaError{Column: name, Reason: "column not found in dataset"}
		}
	}

	ds := &dataset{
		X: make([][]float64, len(rows)),
		Y: make([]float64, len(rows)),
	}
	for i, row := range rows {
		vec := make([]float64, len(features))
		for j, name := range features {
			v, err := cell(row, colIndex[name], name)
			if err != nil {
				return nil, err
			}
			vec[j] = v
		}
		ds.X[i] = vec
		v, err := cell(row, colIndex[label], label)
		if err != nil {
			return nil, err
		}
		ds.Y[i] = v
	}
	return ds, nil
}

// cell parses one required value, reporting the column on failure.
func cell(row []string, idx int, column string) (float64, error) {
	if idx >= len(row) || row[idx] == "" {
		return 0, &SchemaError{Column: column, Reason: "missing value"}
	}
	v, err := strconv.ParseFloat(row[idx], 64)
	if err != nil {
		return 0, &SchemaError{Column: column, Reason: fmt.Sprintf("non-numeric value %q", row[idx])}
	}
	return v, nil
}

// trainTestSplit shuffles deterministically and holds out testFraction of
// the rows for evaluation. Tiny datasets where the holdout would be empty
// evaluate on the training rows instead.
func trainTestSplit(ds *dataset, testFraction float64) (train, test *dataset) {
	n := len(ds.X)
	nTest := int(float64(n) * testFraction)
	if nTest >= n {
		nTest = n - 1
	}
	if nTest <= 0 {
		return ds, ds
	}

	perm := rand.New(rand.NewSource(splitSeed)).Perm(n)
	test = &dataset{X: make([][]float64, 0, nTest), Y: make([]float64, 0, nTest)}
	train = &dataset{X: make([][]float64, 0, n-nTest), Y: make([]float64, 0, n-nTest)}
	for i, idx := range perm {
		if i < nTest {
			test.X = append(test.X, ds.X[idx])
			test.Y = append(test.Y, ds.Y[idx])
		} else {
			train.X = append(train.X, ds.X[idx])
			train.Y = append(train.Y, ds.Y[idx])
		}
	}
	return train, test
}
