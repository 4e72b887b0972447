package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	cmap "github.com/orcaman/concurrent-map/v2"
)

type DiskStorage struct {
	Bucket Bucket
	// BasePath is a directory (usually mount point of a disk) that is writable by the current process
	BasePath string
	// dirs remembers directories already created, to skip repeated MkdirAll calls
	dirs cmap.ConcurrentMap[string, bool]
}

func NewDiskStorage(bucket *Bucket) *DiskStorage {
	return &DiskStorage{
		Bucket:   *bucket,
		BasePath: bucket.Path,
		dirs:     cmap.New[bool](),
	}
}

func (s *DiskStorage) createDir(dir string) error {
	if s.dirs.Has(dir) {
		return nil
	}
	if err := os.MkdirAll(dir, 0777); err != nil {
		return err
	}
	s.dirs.Set(dir, true)
	return nil
}

func (s *DiskStorage) getFullPath(path string) string {
	return filepath.Join(s.BasePath, filepath.FromSlash(path))
}

// Create writes into a temporary file next to the destination and then hard-links it
// to the final name. link(2) fails if the name exists, so two writers can never both claim it.
func (s *DiskStorage) Create(ctx context.Context, path string, reader io.Reader, _ string) (int64, error) {
	fileName := s.getFullPath(path)
	dir := filepath.Dir(fileName)
	tmp, err := s.createTemp(dir)
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	size, err := io.Copy(tmp, contextReader{ctx, reader})
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, err
	}
	if err = os.Link(tmpName, fileName); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return 0, ErrExists
		}
		return 0, err
	}
	return size, nil
}

func (s *DiskStorage) createTemp(dir string) (*os.File, error) {
	if err := s.createDir(dir); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if errors.Is(err, fs.ErrNotExist) {
		// Removed behind our back
		s.dirs.Remove(dir)
		if err = s.createDir(dir); err != nil {
			return nil, err
		}
		tmp, err = os.CreateTemp(dir, ".upload-*")
	}
	return tmp, err
}

func (s *DiskStorage) Save(ctx context.Context, path string, reader io.Reader, _ string) (int64, error) {
	fileName := s.getFullPath(path)
	if err := s.createDir(filepath.Dir(fileName)); err != nil {
		return 0, err
	}
	file, err := os.Create(fileName)
	if err != nil {
		return 0, err
	}
	result, err := io.Copy(file, contextReader{ctx, reader})
	file.Close()
	return result, err
}

func (s *DiskStorage) GetSize(_ context.Context, path string) (int64, error) {
	fi, err := os.Stat(s.getFullPath(path))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func (s *DiskStorage) Load(ctx context.Context, path string, writer io.Writer) (int64, error) {
	file, err := os.Open(s.getFullPath(path))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	defer file.Close()
	return io.Copy(writer, contextReader{ctx, file})
}

func (s *DiskStorage) Serve(path string, request *http.Request, writer http.ResponseWriter) {
	http.ServeFile(writer, request, s.getFullPath(path))
}

func (s *DiskStorage) Delete(_ context.Context, path string) error {
	err := os.Remove(s.getFullPath(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (s *DiskStorage) EnsureDir(_ context.Context, dir string) error {
	return s.createDir(s.getFullPath(dir))
}

func (s *DiskStorage) ListDirs(_ context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(s.getFullPath(dir))
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	result := []string{}
	for _, e := range entries {
		if e.IsDir() {
			result = append(result, e.Name())
		}
	}
	return result, nil
}

func (s *DiskStorage) FreeSpace() (uint64, bool) {
	return freeSpace(s.BasePath)
}

func (s *DiskStorage) GetBucket() *Bucket {
	return &s.Bucket
}
