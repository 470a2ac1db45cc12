// Package registry is the durable mapping from model name to metadata and
// fitted artifact. It is the only writer of both: training pipelines hand it
// candidate records and it commits metadata row and artifact file together,
// so a reader can never observe one without the other.
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"ml_system/internal/domain" // Importing domain models
	"ml_system/internal/ml"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm" // GORM ORM library
)

// Sentinel errors.
var (
	ErrNotFound        = errors.New("registry: model not found")
	ErrNameConflict    = errors.New("registry: model name already registered")
	ErrCorruptArtifact = errors.New("registry: artifact missing or unreadable")
)

// Config controls registry behavior.
type Config struct {
	Dir       string // directory holding artifact files
	Overwrite bool   // retraining an existing name replaces it instead of failing
}

// Registry persists model metadata in the database and artifacts on disk.
// Registration is two-phase: the artifact is staged under a fresh name, then
// promoted with an atomic rename inside the metadata transaction. A per-name
// mutex serializes registration against artifact loads for the same model so
// a concurrent reader sees either the old or the new pair, never a mix.
type Registry struct {
	db        *gorm.DB
	dir       string
	overwrite bool

	mu    sync.Mutex
	names map[string]*sync.Mutex
}

// New creates a registry rooted at cfg.Dir, creating the artifact and
// staging directories if needed.
func New(db *gorm.DB, cfg Config) (*Registry, error) {
	if err := os.MkdirAll(filepath.Join(cfg.Dir, ".staging"), 0o755); err != nil {
		return nil, fmt.Errorf("registry: creating artifact directory: %w", err)
	}
	return &Registry{
		db:        db,
		dir:       cfg.Dir,
		overwrite: cfg.Overwrite,
		names:     make(map[string]*sync.Mutex),
	}, nil
}

// nameLock returns the mutex serializing operations for one model name.
func (r *Registry) nameLock(name string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.names[name]
	if !ok {
		lock = &sync.Mutex{}
		r.names[name] = lock
	}
	return lock
}

// Register commits metadata and the fitted model together. With the reject
// policy an existing name returns ErrNameConflict and leaves the original
// record and artifact untouched; with the overwrite policy both are
// replaced. No staged file survives a failed registration.
func (r *Registry) Register(meta *domain.ModelMetadata, model ml.Model) error {
	lock := r.nameLock(meta.Name)
	lock.Lock()
	defer lock.Unlock()

	staged := filepath.Join(r.dir, ".staging", uuid.NewString()+".gob")
	if err := writeArtifact(staged, model); err != nil {
		return err
	}

	final := filepath.Join(r.dir, uuid.NewString()+".gob")
	var replacedPath string
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var existing domain.ModelMetadata
		err := tx.Where("name = ?", meta.Name).First(&existing).Error
		switch {
		case err == nil:
			if !r.overwrite {
				return ErrNameConflict
			}
			meta.ID = existing.ID
			replacedPath = existing.ArtifactPath
		case errors.Is(err, gorm.ErrRecordNotFound):
			meta.ID = 0
		default:
			return err
		}

		meta.ArtifactPath = final
		if err := tx.Save(meta).Error; err != nil {
			return err
		}
		// Promote the staged artifact before the transaction commits; a
		// rename failure rolls the metadata back.
		if err := os.Rename(staged, final); err != nil {
			return fmt.Errorf("registry: promoting artifact: %w", err)
		}
		return nil
	})
	if err != nil {
		// The rename may already have promoted the artifact before the
		// commit failed; clean up both paths so nothing is orphaned.
		_ = os.Remove(staged)
		_ = os.Remove(final)
		return err
	}

	// The old artifact is unreachable once the row points at the new file.
	if replacedPath != "" && replacedPath != final {
		if err := os.Remove(replacedPath); err != nil && !os.IsNotExist(err) {
			logrus.WithFields(logrus.Fields{
				"model_name": meta.Name,
				"path":       replacedPath,
				"error":      err.Error(),
			}).Warn("Failed to remove replaced artifact")
		}
	}
	return nil
}

// Lookup returns the metadata for a model name.
func (r *Registry) Lookup(name string) (*domain.ModelMetadata, error) {
	var meta domain.ModelMetadata
	if err := r.db.Where("name = ?", name).First(&meta).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return nil, err
	}
	return &meta, nil
}

// List returns all registered models ordered by name.
func (r *Registry) List() ([]domain.ModelMetadata, error) {
	var models []domain.ModelMetadata
	if err := r.db.Order("name").Find(&models).Error; err != nil {
		return nil, err
	}
	return models, nil
}

// LoadArtifact resolves a name and deserializes its fitted model. A missing
// or undecodable file while metadata exists is ErrCorruptArtifact: the store
// is desynced, which is fatal and surfaced rather than retried.
func (r *Registry) LoadArtifact(name string) (ml.Model, error) {
	lock := r.nameLock(name)
	lock.Lock()
	defer lock.Unlock()

	meta, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(meta.ArtifactPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrCorruptArtifact, name, err)
	}
	defer f.Close()

	model, err := ml.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrCorruptArtifact, name, err)
	}
	return model, nil
}

// writeArtifact serializes the model to path and syncs it to disk.
func writeArtifact(path string, model ml.Model) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("registry: staging artifact: %w", err)
	}
	if err := ml.Encode(f, model); err != nil {
		f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("registry: encoding artifact: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("registry: syncing artifact: %w", err)
	}
	return f.Close()
}
