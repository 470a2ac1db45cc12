package service_test

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ml_system/internal/domain"
	"ml_system/internal/ml"
	"ml_system/internal/registry"
	"ml_system/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) (*service.MLService, *registry.Registry, string) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&domain.ModelMetadata{}))

	dir := t.TempDir()
	reg, err := registry.New(db, registry.Config{Dir: dir, Overwrite: true})
	require.NoError(t, err)
	return service.NewMLService(reg, 0.2), reg, dir
}

// priceCSV builds rows where price = 100*age + 2*salary + 5000*rooms.
func priceCSV(n int) string {
	rng := rand.New(rand.NewSource(11))
	var b strings.Builder
	b.WriteString("age,salary,rooms,price\n")
	for i := 0; i < n; i++ {
		age := 20 + rng.Float64()*40
		salary := 30000 + rng.Float64()*70000
		rooms := float64(1 + rng.Intn(5))
		price := 100*age + 2*salary + 5000*rooms
		fmt.Fprintf(&b, "%f,%f,%f,%f\n", age, salary, rooms, price)
	}
	return b.String()
}

// labelCSV builds a separable two-class dataset.
func labelCSV(n int) string {
	rng := rand.New(rand.NewSource(12))
	var b strings.Builder
	b.WriteString("a,b,target\n")
	for i := 0; i < n; i++ {
		x := rng.Float64()*2 - 1
		y := rng.Float64()*2 - 1
		class := 0
		if x+y > 0 {
			class = 1
		}
		fmt.Fprintf(&b, "%f,%f,%d\n", x, y, class)
	}
	return b.String()
}

func TestTrainAndPredictLinear(t *testing.T) {
	svc, _, _ := newTestService(t)

	meta, err := svc.Train(service.TrainRequest{
		ModelName: "house_price",
		Kind:      "linear_regression",
		Features:  []string{"age", "salary", "rooms"},
		Label:     "price",
		Data:      strings.NewReader(priceCSV(100)),
	})
	require.NoError(t, err)
	assert.Equal(t, "house_price", meta.Name)
	assert.False(t, meta.TrainedAt.IsZero())

	metrics, err := meta.MetricValues()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, metrics["r2"], 1e-6)
	assert.InDelta(t, 0.0, metrics["rmse"], 1e-3)

	result, err := svc.Predict(service.PredictRequest{
		ModelName: "house_price",
		Inputs:    map[string]float64{"age": 35, "salary": 70000, "rooms": 3},
	})
	require.NoError(t, err)
	assert.Equal(t, "linear_regression", result.Kind)
	assert.InDelta(t, 100*35.0+2*70000+5000*3, result.Value, 1e-3)
}

// Stored feature order is authoritative: extra input keys are ignored and
// the record's own key order never matters.
func TestPredictIgnoresExtraKeys(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Train(service.TrainRequest{
		ModelName: "house_price",
		Kind:      "linear_regression",
		Features:  []string{"age", "salary", "rooms"},
		Label:     "price",
		Data:      strings.NewReader(priceCSV(100)),
	})
	require.NoError(t, err)

	result, err := svc.Predict(service.PredictRequest{
		ModelName: "house_price",
		Inputs: map[string]float64{
			"rooms":     3,
			"salary":    70000,
			"age":       35,
			"unrelated": 999,
		},
	})
	require.NoError(t, err)
	assert.InDelta(t, 100*35.0+2*70000+5000*3, result.Value, 1e-3)
}

func TestTrainClassificationMetricsInRange(t *testing.T) {
	svc, _, _ := newTestService(t)

	meta, err := svc.Train(service.TrainRequest{
		ModelName: "churn",
		Kind:      "logistic_regression",
		Features:  []string{"a", "b"},
		Label:     "target",
		Data:      strings.NewReader(labelCSV(200)),
	})
	require.NoError(t, err)

	metrics, err := meta.MetricValues()
	require.NoError(t, err)
	for _, name := range []string{"accuracy", "precision", "recall", "f1_score"} {
		require.Contains(t, metrics, name)
		assert.GreaterOrEqual(t, metrics[name], 0.0, name)
		assert.LessOrEqual(t, metrics[name], 1.0, name)
	}

	result, err := svc.Predict(service.PredictRequest{
		ModelName: "churn",
		Inputs:    map[string]float64{"a": 0.9, "b": 0.8},
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, result.Value)
}

// Per-request hyperparameters and holdout fraction override the defaults
// for a single run.
func TestTrainWithParamsAndTestSize(t *testing.T) {
	svc, reg, _ := newTestService(t)

	meta, err := svc.Train(service.TrainRequest{
		ModelName: "house_price",
		Kind:      "random_forest_regressor",
		Features:  []string{"age", "salary", "rooms"},
		Label:     "price",
		Data:      strings.NewReader(priceCSV(60)),
		Params:    ml.Params{NEstimators: 10},
		TestSize:  0.5,
	})
	require.NoError(t, err)

	metrics, err := meta.MetricValues()
	require.NoError(t, err)
	assert.Contains(t, metrics, "r2")

	// The committed artifact carries the requested ensemble size.
	model, err := reg.LoadArtifact("house_price")
	require.NoError(t, err)
	forest, ok := model.(*ml.ForestModel)
	require.True(t, ok)
	assert.Len(t, forest.Trees, 10)
}

func TestTrainMissingLabelColumn(t *testing.T) {
	svc, reg, dir := newTestService(t)

	_, err := svc.Train(service.TrainRequest{
		ModelName: "broken",
		Kind:      "linear_regression",
		Features:  []string{"age", "salary", "rooms"},
		Label:     "does_not_exist",
		Data:      strings.NewReader(priceCSV(20)),
	})
	var schemaErr *service.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "does_not_exist", schemaErr.Column)

	// No registry mutation and no artifact write.
	models, listErr := reg.List()
	require.NoError(t, listErr)
	assert.Empty(t, models)
	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	for _, e := range entries {
		assert.Equal(t, ".staging", e.Name())
	}
	staged, readErr := os.ReadDir(filepath.Join(dir, ".staging"))
	require.NoError(t, readErr)
	assert.Empty(t, staged)
}

func TestTrainRejectsLabelInFeatures(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Train(service.TrainRequest{
		ModelName: "m",
		Kind:      "linear_regression",
		Features:  []string{"age", "price"},
		Label:     "price",
		Data:      strings.NewReader(priceCSV(20)),
	})
	var schemaErr *service.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "price", schemaErr.Column)
}

func TestTrainRejectsNonNumericColumn(t *testing.T) {
	svc, _, _ := newTestService(t)

	csv := "age,price\n30,high\n40,200\n"
	_, err := svc.Train(service.TrainRequest{
		ModelName: "m",
		Kind:      "linear_regression",
		Features:  []string{"age"},
		Label:     "price",
		Data:      strings.NewReader(csv),
	})
	var schemaErr *service.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "price", schemaErr.Column)
	assert.Contains(t, schemaErr.Reason, "high")
}

func TestTrainUnsupportedKind(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Train(service.TrainRequest{
		ModelName: "m",
		Kind:      "quantum_annealer",
		Features:  []string{"age"},
		Label:     "price",
		Data:      strings.NewReader(priceCSV(20)),
	})
	assert.ErrorIs(t, err, ml.ErrUnsupportedKind)
}

func TestPredictMissingFeatures(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Train(service.TrainRequest{
		ModelName: "house_price",
		Kind:      "linear_regression",
		Features:  []string{"age", "salary", "rooms"},
		Label:     "price",
		Data:      strings.NewReader(priceCSV(50)),
	})
	require.NoError(t, err)

	_, err = svc.Predict(service.PredictRequest{
		ModelName: "house_price",
		Inputs:    map[string]float64{"age": 35},
	})
	var missingErr *service.MissingFeaturesError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, []string{"salary", "rooms"}, missingErr.Missing)
}

func TestPredictUnknownModel(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Predict(service.PredictRequest{
		ModelName: "ghost",
		Inputs:    map[string]float64{"a": 1},
	})
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestModelMetrics(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Train(service.TrainRequest{
		ModelName: "house_price",
		Kind:      "linear_regression",
		Features:  []string{"age", "salary", "rooms"},
		Label:     "price",
		Data:      strings.NewReader(priceCSV(50)),
	})
	require.NoError(t, err)

	meta, metrics, err := svc.ModelMetrics("house_price")
	require.NoError(t, err)
	assert.Equal(t, "linear_regression", meta.Kind)
	for _, name := range []string{"mae", "mse", "rmse", "r2"} {
		assert.Contains(t, metrics, name)
	}

	_, _, err = svc.ModelMetrics("ghost")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}
