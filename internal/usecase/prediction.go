package usecase

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/cardio-risk/internal/logging"
	"github.com/example/cardio-risk/internal/model"
	"github.com/example/cardio-risk/internal/patient"
	"github.com/example/cardio-risk/internal/retry"
)

// Assessment is the outcome of one form submission.
type Assessment struct {
	RequestID  string
	Record     patient.Record
	Prediction model.Prediction
	Cached     bool
	CreatedAt  time.Time
}

// PredictionUseCase turns patient input into a risk assessment using the
// artifacts loaded at start-up.
type PredictionUseCase struct {
	artifacts *model.Artifacts
	cache     Cache
	cacheTTL  time.Duration
	logger    *zap.Logger
	retry     retry.Policy
	metrics   metrics
}

type cachedPrediction struct {
	Class         int        `json:"class"`
	Probabilities [2]float64 `json:"probabilities"`
	CreatedAt     time.Time  `json:"created_at"`
}

// NewPredictionUseCase constructs a new use case instance. A nil cache disables
// caching.
func NewPredictionUseCase(artifacts *model.Artifacts, cache Cache, cacheTTL time.Duration, logger *zap.Logger) *PredictionUseCase {
	if cache == nil {
		cache = NoopCache{}
	}
	return &PredictionUseCase{
		artifacts: artifacts,
		cache:     cache,
		cacheTTL:  cacheTTL,
		logger:    logger.Named("prediction_usecase"),
		retry: retry.Policy{
			Attempts:       3,
			InitialBackoff: 50 * time.Millisecond,
			MaxBackoff:     time.Second,
		},
	}
}

// Artifacts returns the handle used for every prediction.
func (uc *PredictionUseCase) Artifacts() *model.Artifacts {
	return uc.artifacts
}

// Assess assembles the record and predicts its risk class. Identical records
// are served from the cache while the entry lives; a cache outage only costs
// the lookup.
func (uc *PredictionUseCase) Assess(ctx context.Context, in patient.Input) (*Assessment, error) {
	requestID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.assess", requestID)

	if err := ctx.Err(); err != nil {
		uc.metrics.failure()
		return nil, logging.NewOperationError("usecase.assess", requestID, err)
	}

	record := patient.Assemble(in)
	vector := record.Vector()
	key := uc.cacheKey(vector)

	if cached, err := uc.withCacheGet(ctx, requestID, "cache.get.prediction", key); err == nil {
		var payload cachedPrediction
		if err := json.Unmarshal([]byte(cached), &payload); err != nil {
			opLogger.Warn("failed to decode cached prediction", zap.Error(err))
		} else {
			pred := model.Prediction{Class: payload.Class, Probabilities: payload.Probabilities}
			uc.metrics.observe(pred, true)
			opLogger.Debug("prediction served from cache", zap.String("cache_key", key))
			return &Assessment{
				RequestID:  requestID,
				Record:     record,
				Prediction: pred,
				Cached:     true,
				CreatedAt:  payload.CreatedAt,
			}, nil
		}
	} else if !errors.Is(err, ErrCacheMiss) {
		opLogger.Warn("failed to read cache", zap.Error(err))
	}

	pred, err := model.Predict(uc.artifacts, vector)
	if err != nil {
		uc.metrics.failure()
		wrapped := logging.NewOperationError("usecase.predict", requestID, err)
		opLogger.Error("prediction failed", zap.Error(wrapped))
		return nil, wrapped
	}

	assessment := &Assessment{
		RequestID:  requestID,
		Record:     record,
		Prediction: pred,
		CreatedAt:  time.Now().UTC(),
	}

	serialized, err := json.Marshal(cachedPrediction{
		Class:         pred.Class,
		Probabilities: pred.Probabilities,
		CreatedAt:     assessment.CreatedAt,
	})
	if err != nil {
		opLogger.Warn("failed to serialize prediction", zap.Error(err))
	} else if err := uc.withCacheRetry(ctx, requestID, "cache.set.prediction", func() error {
		return uc.cache.Set(ctx, key, string(serialized), uc.cacheTTL)
	}); err != nil {
		opLogger.Warn("failed to cache prediction", zap.Error(err))
	}

	uc.metrics.observe(pred, false)
	opLogger.Info("assessment completed",
		zap.Int("predicted_class", pred.Class),
		zap.Float64("disease_probability", pred.Probabilities[model.ClassDisease]),
	)
	return assessment, nil
}

// cacheKey binds the entry to the artifact fingerprint so a new model never
// sees predictions of an old one.
func (uc *PredictionUseCase) cacheKey(vector []float64) string {
	h := sha1.New()
	for _, v := range vector {
		h.Write(strconv.AppendFloat(nil, v, 'g', -1, 64))
		h.Write([]byte{','})
	}
	fp := ""
	if uc.artifacts != nil {
		fp = uc.artifacts.Fingerprint()
	}
	return fmt.Sprintf("prediction:%s:%s", fp, hex.EncodeToString(h.Sum(nil)))
}

func (uc *PredictionUseCase) withCacheRetry(ctx context.Context, requestID, operation string, fn func() error) error {
	opLogger := logging.WithOperation(uc.logger, operation, requestID)
	err := uc.retry.Do(ctx, opLogger, fn)
	if err != nil && !errors.Is(err, ErrCacheMiss) {
		opLogger.Error("cache operation failed", zap.Error(err))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func (uc *PredictionUseCase) withCacheGet(ctx context.Context, requestID, operation, cacheKey string) (string, error) {
	var result string
	err := uc.withCacheRetry(ctx, requestID, operation, func() error {
		value, err := uc.cache.Get(ctx, cacheKey)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
}
