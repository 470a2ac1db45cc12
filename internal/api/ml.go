package api

import (
	"context"       // Context for Redis operations
	"encoding/json" // Feature list parsing
	"errors"        // Error matching
	"net/http"      // HTTP status codes
	"strconv"       // test_size parsing
	"time"          // Cache TTL

	"ml_system/internal/domain"   // Importing domain models
	"ml_system/internal/ledger"   // Token ledger
	"ml_system/internal/ml"       // Algorithm kinds
	"ml_system/internal/registry" // Registry errors
	"ml_system/internal/service"  // Training and prediction services
	"ml_system/internal/utils"    // Cache helpers

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
)

// Token costs per metered operation
const (
	TrainCost   = 1 // Tokens debited per training run
	PredictCost = 5 // Tokens debited per prediction
	ListCost    = 1 // Tokens debited per model listing
	MetricsCost = 1 // Tokens debited per metrics read
)

// ModelResponse is the metadata shape returned to clients
type ModelResponse struct {
	ModelName string             `json:"model_name"` // Unique model name
	ModelKind string             `json:"model_kind"` // Algorithm kind
	Features  []string           `json:"features"`   // Ordered feature names
	Label     string             `json:"label"`      // Target column
	TrainedAt time.Time          `json:"trained_at"` // Training timestamp
	Metrics   map[string]float64 `json:"metrics"`    // Evaluation metrics
}

// toModelResponse decodes the stored JSON columns for the API shape
func toModelResponse(meta *domain.ModelMetadata) (ModelResponse, error) {
	features, err := meta.FeatureNames()
	if err != nil {
		return ModelResponse{}, err
	}
	metrics, err := meta.MetricValues()
	if err != nil {
		return ModelResponse{}, err
	}
	return ModelResponse{
		ModelName: meta.Name,      // Model name
		ModelKind: meta.Kind,      // Algorithm kind
		Features:  features,       // Ordered feature names
		Label:     meta.Label,     // Target column
		TrainedAt: meta.TrainedAt, // Training timestamp
		Metrics:   metrics,        // Evaluation metrics
	}, nil
}

// debitOrReject charges the operation cost and writes the rejection if the
// balance is too low. Returns false when the handler must stop.
func debitOrReject(c *gin.Context, ledgerSvc *ledger.Service, cost int64, operation string) bool {
	userID, exists := c.Get("userID") // Get userID from context
	// Check if userID exists in context
	if !exists {
		// If not, return unauthorized
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return false
	}
	// Debit the cost atomically
	if err := ledgerSvc.Debit(userID.(uint), cost); err != nil {
		if errors.Is(err, ledger.ErrInsufficientTokens) {
			// Log the rejected operation
			logrus.WithFields(logrus.Fields{
				"user_id":   userID,    // User ID
				"operation": operation, // Metered operation
				"cost":      cost,      // Token cost
			}).Warn("Insufficient tokens") // Log insufficient balance
			// 402: the user must top up before retrying
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "Insufficient tokens"})
			return false
		}
		if errors.Is(err, ledger.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return false
		}
		// Any other failure is internal
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Token debit failed"})
		return false
	}
	return true
}

// writeTrainError maps pipeline failures onto HTTP statuses
func writeTrainError(c *gin.Context, err error) {
	var schemaErr *service.SchemaError
	var fitErr *ml.FitError
	switch {
	case errors.As(err, &schemaErr), errors.Is(err, ml.ErrUnsupportedKind):
		// User-fixable validation failure
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, registry.ErrNameConflict):
		// Name already registered under the reject policy
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &fitErr):
		// Numerical failure during fitting; surfaced, never retried
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Training failed"})
	}
}

// TrainHandler trains a model from an uploaded CSV (costs 1 token)
func TrainHandler(svc *service.MLService, ledgerSvc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Debit before any pipeline work
		if !debitOrReject(c, ledgerSvc, TrainCost, "train") {
			return
		}
		modelName := c.PostForm("model_name") // Requested model name
		// Model name is required
		if modelName == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "model_name is required"})
			return
		}
		modelKind := c.PostForm("model_type") // Requested algorithm
		// Default to linear regression like the original service
		if modelKind == "" {
			modelKind = string(ml.LinearRegression)
		}
		var features []string // Ordered feature names
		// Features arrive as a JSON array form field
		if err := json.Unmarshal([]byte(c.PostForm("features")), &features); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "features must be a JSON array of column names"})
			return
		}
		label := c.PostForm("label") // Target column
		if label == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "label is required"})
			return
		}
		var params ml.Params // Tunable hyperparameter subset
		// Optional hyperparameters arrive as a JSON object form field
		if raw := c.PostForm("model_params"); raw != "" {
			p, err := ml.ParseParams(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			params = p
		}
		var testSize float64 // Per-run holdout fraction, 0 keeps the default
		// Optional holdout override
		if raw := c.PostForm("test_size"); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil || v <= 0 || v >= 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "test_size must be a fraction between 0 and 1"})
				return
			}
			testSize = v
		}
		// The uploaded CSV file
		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read uploaded file"})
			return
		}
		defer file.Close()
		// Run the training pipeline
		meta, err := svc.Train(service.TrainRequest{
			ModelName: modelName, // Requested model name
			Kind:      modelKind, // Requested algorithm
			Features:  features,  // Ordered feature names
			Label:     label,     // Target column
			Data:      file,      // CSV stream
			Params:    params,    // Hyperparameter overrides
			TestSize:  testSize,  // Holdout override
		})
		if err != nil {
			// Log the failed run
			logrus.WithFields(logrus.Fields{
				"user_id":    c.GetUint("userID"), // User ID
				"model_name": modelName,           // Requested model name
				"error":      err.Error(),         // Failure cause
			}).Error("Training failed") // Log training failure
			writeTrainError(c, err)
			return
		}
		// Invalidate the cached model list after a successful commit
		if rdb, ok := c.MustGet("redisClient").(*redis.Client); ok {
			_ = utils.DeleteCache(context.Background(), rdb, utils.ModelsCacheKey)
		}
		resp, err := toModelResponse(meta)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to encode model metadata"})
			return
		}
		// Return the committed metadata with its metrics
		c.JSON(http.StatusOK, gin.H{"status": "model trained", "model": resp})
	}
}

// PredictRequestBody binds the prediction input record
type PredictRequestBody struct {
	Inputs map[string]float64 `json:"input_data" binding:"required"` // Feature name to value
}

// PredictHandler runs one prediction against a trained model (costs 5 tokens)
func PredictHandler(svc *service.MLService, ledgerSvc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Debit before resolving the model
		if !debitOrReject(c, ledgerSvc, PredictCost, "predict") {
			return
		}
		modelName := c.Param("name") // Model name from the path
		var req PredictRequestBody   // Bind JSON request to struct
		// Validate request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "input_data must map feature names to numbers"})
			return
		}
		// Run the prediction service
		result, err := svc.Predict(service.PredictRequest{
			ModelName: modelName,  // Model name
			Inputs:    req.Inputs, // Input record
		})
		if err != nil {
			var missingErr *service.MissingFeaturesError
			switch {
			case errors.Is(err, registry.ErrNotFound):
				// Unknown model name
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			case errors.As(err, &missingErr):
				// Input record is missing required features
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			case errors.Is(err, registry.ErrCorruptArtifact):
				// Registry/artifact desync is fatal and surfaced
				logrus.WithFields(logrus.Fields{
					"model_name": modelName,   // Model name
					"error":      err.Error(), // Integrity failure
				}).Error("Corrupt model artifact") // Log integrity error
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Prediction failed"})
			}
			return
		}
		// Return the prediction with its model context
		c.JSON(http.StatusOK, result)
	}
}

// ListModelsHandler returns all trained models (costs 1 token)
func ListModelsHandler(svc *service.MLService, ledgerSvc *ledger.Service, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Debit before serving, even on a cache hit
		if !debitOrReject(c, ledgerSvc, ListCost, "get_models") {
			return
		}
		ctx := context.Background() // Context for Redis operations
		var cached []ModelResponse  // Cached model list
		// Try to get from cache
		found, err := utils.GetCache(ctx, rdb, utils.ModelsCacheKey, &cached)
		// If found in cache, return it
		if err == nil && found {
			c.JSON(http.StatusOK, gin.H{"models": cached, "cached": true})
			return
		}
		// If not in cache, fetch from the registry
		models, err := svc.ListModels()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve models"})
			return
		}
		// Decode the stored JSON columns for the response
		resp := make([]ModelResponse, 0, len(models))
		for i := range models {
			item, err := toModelResponse(&models[i])
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to encode model metadata"})
				return
			}
			resp = append(resp, item)
		}
		_ = utils.SetCache(ctx, rdb, utils.ModelsCacheKey, resp, 60*time.Second) // Cache the list for 60 seconds
		c.JSON(http.StatusOK, gin.H{"models": resp, "cached": false})            // Return the model list
	}
}

// ModelMetricsHandler returns stored evaluation metrics (costs 1 token)
func ModelMetricsHandler(svc *service.MLService, ledgerSvc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Debit before the lookup
		if !debitOrReject(c, ledgerSvc, MetricsCost, "get_metrics") {
			return
		}
		name := c.Param("name") // Model name from the path
		meta, metrics, err := svc.ModelMetrics(name)
		if err != nil {
			if errors.Is(err, registry.ErrNotFound) {
				// Unknown model name
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve model metrics"})
			return
		}
		// Return the metrics with model context
		c.JSON(http.StatusOK, gin.H{
			"model_name": meta.Name,      // Model name
			"model_kind": meta.Kind,      // Algorithm kind
			"metrics":    metrics,        // Stored evaluation metrics
			"trained_at": meta.TrainedAt, // Training timestamp
		})
	}
}
