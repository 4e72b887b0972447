package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrExists   = errors.New("storage: object already exists")
	ErrNotFound = errors.New("storage: object not found")
	ErrNoSpace  = errors.New("storage: not enough free space")
)

type StorageAPI interface {
	// Create writes a new object at path. It never replaces an existing object: if the
	// path is taken ErrExists is returned. A failed or cancelled Create leaves nothing behind.
	Create(ctx context.Context, path string, reader io.Reader, mimeType string) (int64, error)
	// Save writes path, replacing any existing content (thumbnails, etc)
	Save(ctx context.Context, path string, reader io.Reader, mimeType string) (int64, error)
	// GetSize returns ErrNotFound when there is no object at path
	GetSize(ctx context.Context, path string) (int64, error)
	Load(ctx context.Context, path string, writer io.Writer) (int64, error)
	Serve(path string, request *http.Request, writer http.ResponseWriter)
	Delete(ctx context.Context, path string) error
	EnsureDir(ctx context.Context, dir string) error
	// ListDirs returns the names of the direct sub-directories of dir
	ListDirs(ctx context.Context, dir string) ([]string, error)
	// FreeSpace returns false when the backend cannot tell
	FreeSpace() (uint64, bool)
	GetBucket() *Bucket
}

// Registry holds one StorageAPI per configured bucket
type Registry struct {
	mu       sync.RWMutex
	storages []StorageAPI
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{log: log}
}

// LoadRegistry creates storages for all buckets in the database
func LoadRegistry(db *gorm.DB, log *zap.Logger) (*Registry, error) {
	var buckets []Bucket
	if err := db.Find(&buckets).Error; err != nil {
		return nil, err
	}
	log.Info("storage buckets found", zap.Int("count", len(buckets)))
	r := NewRegistry(log)
	for i := range buckets {
		if err := r.Add(&buckets[i]); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// NewStorage creates the backend of a bucket without registering it
func NewStorage(bucket *Bucket) (StorageAPI, error) {
	switch bucket.StorageType {
	case StorageTypeFile:
		return NewDiskStorage(bucket), nil
	case StorageTypeS3:
		return NewS3Storage(bucket), nil
	}
	return nil, fmt.Errorf("storage type unavailable for bucket %d", bucket.ID)
}

// Add registers (or replaces) the storage of a bucket
func (r *Registry) Add(bucket *Bucket) error {
	storage, err := NewStorage(bucket)
	if err != nil {
		return err
	}
	r.log.Debug("bucket registered", zap.Uint64("bucket", bucket.ID), zap.String("name", bucket.Name))
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.storages {
		if s.GetBucket().ID == bucket.ID {
			r.storages[i] = storage
			return nil
		}
	}
	r.storages = append(r.storages, storage)
	return nil
}

func (r *Registry) StorageFrom(bucketID uint64) StorageAPI {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.storages {
		if s.GetBucket().ID == bucketID {
			return s
		}
	}
	return nil
}

// GetDefaultStorage prefers a disk bucket
func (r *Registry) GetDefaultStorage() StorageAPI {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.storages {
		if s.GetBucket().StorageType == StorageTypeFile {
			return s
		}
	}
	if len(r.storages) > 0 {
		return r.storages[0]
	}
	return nil
}

func (r *Registry) Buckets() []Bucket {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Bucket, 0, len(r.storages))
	for _, s := range r.storages {
		result = append(result, *s.GetBucket())
	}
	return result
}

// contextReader stops a copy as soon as ctx is done
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
