package ml

import (
	"encoding/gob"
	"io"
)

// The artifact format is a gob stream of the Model interface; every concrete
// model type must be registered for the round trip to work.
func init() {
	gob.Register(&LinearModel{})
	gob.Register(&LogisticModel{})
	gob.Register(&ForestModel{})
	gob.Register(&SVCModel{})
	gob.Register(&SVRModel{})
}

// Encode serializes a fitted model.
func Encode(w io.Writer, m Model) error {
	return gob.NewEncoder(w).Encode(&m)
}

// Decode deserializes a fitted model.
func Decode(r io.Reader) (Model, error) {
	var m Model
	if err := gob.NewDecoder(r).Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}
