package domain

import (
	"encoding/json" // Features and metrics are stored as JSON columns
	"time"
)

// ModelMetadata Model
type ModelMetadata struct {
	ID           uint      `gorm:"primaryKey"`      // Primary key
	Name         string    `gorm:"unique;not null"` // Unique model name, immutable after creation
	Kind         string    `gorm:"not null"`        // Algorithm kind (e.g. linear_regression)
	Features     string    `gorm:"not null"`        // JSON array of feature names; order defines the input vector
	Label        string    `gorm:"not null"`        // Target column name
	TrainedAt    time.Time // Timestamp of the training run
	ArtifactPath string    `gorm:"not null"` // Path to the serialized fitted model
	Metrics      string    // JSON object of evaluation metrics
}

// SetFeatures stores the ordered feature names as JSON
func (m *ModelMetadata) SetFeatures(names []string) error {
	b, err := json.Marshal(names)
	if err != nil {
		return err
	}
	m.Features = string(b)
	return nil
}

// FeatureNames returns the stored feature names in training order
func (m *ModelMetadata) FeatureNames() ([]string, error) {
	var names []string
	if err := json.Unmarshal([]byte(m.Features), &names); err != nil {
		return nil, err
	}
	return names, nil
}

// SetMetrics stores the evaluation metrics as JSON
func (m *ModelMetadata) SetMetrics(metrics map[string]float64) error {
	b, err := json.Marshal(metrics)
	if err != nil {
		return err
	}
	m.Metrics = string(b)
	return nil
}

// MetricValues returns the stored evaluation metrics
func (m *ModelMetadata) MetricValues() (map[string]float64, error) {
	metrics := map[string]float64{}
	if m.Metrics == "" {
		return metrics, nil
	}
	if err := json.Unmarshal([]byte(m.Metrics), &metrics); err != nil {
		return nil, err
	}
	return metrics, nil
}
