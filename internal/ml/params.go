package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidParams rejects malformed or out-of-range hyperparameters.
var ErrInvalidParams = errors.New("ml: invalid model params")

// Params is the tunable hyperparameter subset. Zero values select the
// built-in defaults (100 trees, 1000 iterations). Parameters that have no
// counterpart in these implementations are rejected at parse time rather
// than silently ignored.
type Params struct {
	NEstimators int `json:"n_estimators"` // tree count for the forest kinds
	MaxIter     int `json:"max_iter"`     // iteration cap for the gradient-trained kinds
}

// ParseParams decodes a JSON object of hyperparameters. Unknown keys fail
// loudly so a misspelled or unsupported parameter is reported, not dropped.
func ParseParams(raw string) (Params, error) {
	var p Params
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return Params{}, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if p.NEstimators < 0 || p.MaxIter < 0 {
		return Params{}, fmt.Errorf("%w: values must be positive", ErrInvalidParams)
	}
	return p, nil
}
