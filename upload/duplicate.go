package upload

import (
	"context"
	"errors"

	"mediadrop/storage"
)

type Duplicate struct {
	Exists bool   `json:"exists"`
	Path   string `json:"path,omitempty"`
	Size   int64  `json:"size,omitempty"`
}

// DuplicateDetector treats a file as already uploaded when an object with the same path and the
// same byte length exists. This is a heuristic, not a content hash: identical content under a
// different name is not detected, and a different file with the same name and size is skipped.
type DuplicateDetector struct{}

func (DuplicateDetector) Check(ctx context.Context, store storage.StorageAPI, path string, size int64) (Duplicate, error) {
	existing, err := store.GetSize(ctx, path)
	if errors.Is(err, storage.ErrNotFound) {
		return Duplicate{}, nil
	}
	if err != nil {
		return Duplicate{}, err
	}
	if existing != size {
		return Duplicate{}, nil
	}
	return Duplicate{Exists: true, Path: path, Size: existing}, nil
}
