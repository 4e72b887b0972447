package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"mediadrop/models"
	"mediadrop/storage"
	"mediadrop/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxRenames = 1000

type WriteRequest struct {
	Storage        storage.StorageAPI
	Album          *models.Album
	Dir            string
	Filename       string
	Size           int64
	MimeType       string
	MediaType      string
	CategoryNodeID *uint64
	// Open returns a fresh reader over the file content, it may be called more than once
	Open func() (io.ReadCloser, error)
}

// Writer stores file content under a name nobody else has claimed and creates its Media row
type Writer struct {
	db        *gorm.DB
	minFree   uint64
	thumbSize uint
	log       *zap.Logger
}

func NewWriter(db *gorm.DB, minFreeMB uint64, thumbSize uint, log *zap.Logger) *Writer {
	return &Writer{
		db:        db,
		minFree:   minFreeMB << 20,
		thumbSize: thumbSize,
		log:       log,
	}
}

// Write tries name.ext, then name_0.ext, name_1.ext, ... until a free name is claimed.
// An existing file is never replaced. If the original name turns out to hold a file of the
// same size (another request won the race with the same file) ErrDuplicate is returned.
func (w *Writer) Write(ctx context.Context, req WriteRequest) (*models.Media, error) {
	if free, ok := req.Storage.FreeSpace(); ok && free < w.minFree+uint64(req.Size) {
		return nil, fmt.Errorf("%w: %w", ErrWrite, storage.ErrNoSpace)
	}
	if err := req.Storage.EnsureDir(ctx, req.Dir); err != nil {
		return nil, w.wrap(ctx, err)
	}
	ext := path.Ext(req.Filename)
	base := strings.TrimSuffix(req.Filename, ext)
	for i := -1; i < maxRenames; i++ {
		name := req.Filename
		if i >= 0 {
			name = base + "_" + strconv.Itoa(i) + ext
		}
		target := req.Dir + "/" + name
		size, err := req.Storage.GetSize(ctx, target)
		if err == nil {
			if i < 0 && size == req.Size {
				return nil, ErrDuplicate
			}
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, w.wrap(ctx, err)
		}
		written, err := w.create(ctx, req, target)
		if errors.Is(err, storage.ErrExists) {
			// Claimed between our check and write
			if i < 0 {
				if size, err = req.Storage.GetSize(ctx, target); err == nil && size == req.Size {
					return nil, ErrDuplicate
				}
			}
			continue
		}
		if err != nil {
			return nil, w.wrap(ctx, err)
		}
		media := &models.Media{
			AlbumID:        req.Album.ID,
			BucketID:       req.Storage.GetBucket().ID,
			Path:           target,
			Name:           name,
			MediaType:      req.MediaType,
			MimeType:       req.MimeType,
			Size:           written,
			CategoryNodeID: req.CategoryNodeID,
		}
		if err = w.db.WithContext(ctx).Omit(clause.Associations).Create(media).Error; err != nil {
			if delErr := req.Storage.Delete(context.WithoutCancel(ctx), target); delErr != nil {
				w.log.Error("cannot remove file after failed insert", zap.String("path", target), zap.Error(delErr))
			}
			return nil, w.wrap(ctx, err)
		}
		if media.Kind() == models.KindImage {
			w.thumbnail(ctx, req.Storage, media, req.Open)
		}
		return media, nil
	}
	return nil, fmt.Errorf("%w: no free name for %q", ErrWrite, req.Filename)
}

func (w *Writer) create(ctx context.Context, req WriteRequest, target string) (int64, error) {
	reader, err := req.Open()
	if err != nil {
		return 0, err
	}
	defer reader.Close()
	return req.Storage.Create(ctx, target, reader, req.MimeType)
}

func (w *Writer) wrap(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrWrite, err)
}

// thumbnail is best effort, a failure is only logged
func (w *Writer) thumbnail(ctx context.Context, store storage.StorageAPI, media *models.Media, open func() (io.ReadCloser, error)) {
	reader, err := open()
	if err != nil {
		w.log.Warn("cannot open file for thumbnail", zap.Uint64("media", media.ID), zap.Error(err))
		return
	}
	defer reader.Close()
	if err = CreateThumbnail(ctx, w.db, store, media, reader, w.thumbSize); err != nil {
		w.log.Warn("thumbnail not created", zap.Uint64("media", media.ID), zap.String("path", media.Path), zap.Error(err))
	}
}

// CreateThumbnail resizes the image read from reader into a JPEG thumbnail, saves it and
// records its location on the media row
func CreateThumbnail(ctx context.Context, db *gorm.DB, store storage.StorageAPI, media *models.Media, reader io.Reader, size uint) error {
	var thumb bytes.Buffer
	if _, err := utils.CreateThumb(size, reader, &thumb); err != nil {
		return err
	}
	thumbPath := media.GetThumbPath()
	thumbSize, err := store.Save(ctx, thumbPath, &thumb, "image/jpeg")
	if err != nil {
		return err
	}
	media.ThumbPath = thumbPath
	media.ThumbSize = thumbSize
	return db.WithContext(ctx).Model(media).Select("thumb_path", "thumb_size").Updates(media).Error
}

// Remove deletes the stored file, its thumbnail and the Media row
func (w *Writer) Remove(ctx context.Context, store storage.StorageAPI, media *models.Media) error {
	var errs []error
	if err := store.Delete(ctx, media.Path); err != nil {
		errs = append(errs, err)
	}
	if media.ThumbPath != "" {
		if err := store.Delete(ctx, media.ThumbPath); err != nil {
			errs = append(errs, err)
		}
	}
	if err := w.db.WithContext(ctx).Delete(&models.Media{}, media.ID).Error; err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// cleanFilename keeps the last path element of a client supplied name
func cleanFilename(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimSpace(path.Base(name))
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." || name == "/" {
		return "", fmt.Errorf("%w: bad file name", ErrInvalid)
	}
	return name, nil
}
