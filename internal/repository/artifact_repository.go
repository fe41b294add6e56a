package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/cardio-risk/internal/logging"
	"github.com/example/cardio-risk/internal/model"
	"github.com/example/cardio-risk/internal/retry"
)

// ErrChecksumMismatch is returned when a stored payload does not hash to its
// recorded checksum.
var ErrChecksumMismatch = errors.New("artifact checksum mismatch")

// ModelArtifact is one stored version of a fitted artifact.
type ModelArtifact struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"column:name;size:128;uniqueIndex:idx_artifact_version"`
	Kind      string    `gorm:"column:kind;size:32"`
	Version   int       `gorm:"column:version;uniqueIndex:idx_artifact_version"`
	Payload   []byte    `gorm:"column:payload"`
	SHA256    string    `gorm:"column:sha256;size:64"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (ModelArtifact) TableName() string {
	return "model_artifacts"
}

// ArtifactRepository serves fitted artifacts stored in the database. It
// satisfies model.Source.
type ArtifactRepository struct {
	db     *gorm.DB
	logger *zap.Logger
	names  map[model.ArtifactKind]string
	retry  retry.Policy
}

// NewArtifactRepository creates a repository resolving the scaler and
// classifier by name.
func NewArtifactRepository(db *gorm.DB, logger *zap.Logger, scalerName, modelName string) *ArtifactRepository {
	return &ArtifactRepository{
		db:     db,
		logger: logger.Named("artifact_repository"),
		names: map[model.ArtifactKind]string{
			model.KindScaler:     scalerName,
			model.KindClassifier: modelName,
		},
		retry: retry.Policy{
			Attempts:       3,
			InitialBackoff: 100 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
		},
	}
}

// AutoMigrate ensures the schema is available.
func (r *ArtifactRepository) AutoMigrate(ctx context.Context) error {
	return r.executeWithRetry(ctx, "repository.auto_migrate", "", func() error {
		return r.db.WithContext(ctx).AutoMigrate(&ModelArtifact{})
	})
}

// Save stores a new version of the named artifact, numbered after the latest.
func (r *ArtifactRepository) Save(ctx context.Context, name string, kind model.ArtifactKind, payload []byte) (*ModelArtifact, error) {
	sum := sha256.Sum256(payload)
	artifact := &ModelArtifact{
		Name:      name,
		Kind:      string(kind),
		Payload:   payload,
		SHA256:    hex.EncodeToString(sum[:]),
		CreatedAt: time.Now().UTC(),
	}
	err := r.executeWithRetry(ctx, "repository.save_artifact", "", func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var latest int
			if err := tx.Model(&ModelArtifact{}).
				Where("name = ?", name).
				Select("COALESCE(MAX(version), 0)").
				Scan(&latest).Error; err != nil {
				return err
			}
			artifact.ID = 0
			artifact.Version = latest + 1
			return tx.Create(artifact).Error
		})
	})
	if err != nil {
		return nil, err
	}
	return artifact, nil
}

// Latest returns the highest version of the named artifact.
func (r *ArtifactRepository) Latest(ctx context.Context, name string) (*ModelArtifact, error) {
	var artifact ModelArtifact
	err := r.executeWithRetry(ctx, "repository.latest_artifact", "", func() error {
		return r.db.WithContext(ctx).
			Where("name = ?", name).
			Order("version DESC").
			First(&artifact).Error
	})
	if err != nil {
		return nil, err
	}
	return &artifact, nil
}

// Fetch implements model.Source.
func (r *ArtifactRepository) Fetch(ctx context.Context, kind model.ArtifactKind) ([]byte, error) {
	name, ok := r.names[kind]
	if !ok || name == "" {
		return nil, fmt.Errorf("no artifact name configured for %s", kind)
	}
	artifact, err := r.Latest(ctx, name)
	if err != nil {
		return nil, err
	}
	if artifact.Kind != string(kind) {
		return nil, fmt.Errorf("artifact %s v%d is a %s, want %s", name, artifact.Version, artifact.Kind, kind)
	}
	if err := verifyChecksum(artifact); err != nil {
		return nil, err
	}
	r.logger.Info("artifact fetched",
		zap.String("name", name),
		zap.String("kind", artifact.Kind),
		zap.Int("version", artifact.Version),
		zap.String("sha256", artifact.SHA256),
	)
	return artifact.Payload, nil
}

func verifyChecksum(artifact *ModelArtifact) error {
	sum := sha256.Sum256(artifact.Payload)
	if got := hex.EncodeToString(sum[:]); got != artifact.SHA256 {
		return fmt.Errorf("%w: %s v%d has %s, recorded %s", ErrChecksumMismatch, artifact.Name, artifact.Version, got, artifact.SHA256)
	}
	return nil
}

func (r *ArtifactRepository) executeWithRetry(ctx context.Context, operation, requestID string, fn func() error) error {
	opLogger := logging.WithOperation(r.logger, operation, requestID)
	if err := r.retry.Do(ctx, opLogger, fn); err != nil {
		opLogger.Error("database operation failed", zap.Error(err))
		return logging.NewOperationError(operation, requestID, err)
	}
	return nil
}
