package service

import (
	"fmt"
	"strings"
)

// SchemaError rejects a training dataset, naming the offending column.
type SchemaError struct {
	Column string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("invalid schema: column %q: %s", e.Column, e.Reason)
}

// MissingFeaturesError rejects a prediction input, listing the absent
// features in stored order.
type MissingFeaturesError struct {
	Missing []string
}

func (e *MissingFeaturesError) Error() string {
	return fmt.Sprintf("missing features in input: %s", strings.Join(e.Missing, ", "))
}
