package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"mediadrop/config"
	"mediadrop/models"
	"mediadrop/notify"
	"mediadrop/storage"

	"go.uber.org/zap"
)

// Provisioner places media in the album's category tree
type Provisioner interface {
	Ensure(ctx context.Context, album *models.Album, contributor, subLabel string) (*uint64, error)
}

// Storages resolves the storage of an album's bucket
type Storages interface {
	StorageFrom(bucketID uint64) storage.StorageAPI
	GetDefaultStorage() storage.StorageAPI
}

type File struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

type Submission struct {
	Album       *models.Album
	Owner       models.Owner
	Contributor string
	SubLabel    string
	Files       []File
}

type Result struct {
	Filename     string `json:"filename"`
	Success      bool   `json:"success"`
	ObjectID     uint64 `json:"object_id,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Error        string `json:"error,omitempty"`
	IsDuplicate  bool   `json:"is_duplicate,omitempty"`
	Code         string `json:"code,omitempty"`
}

type Options struct {
	Storages       Storages
	Mappings       MappingSource
	Writer         *Writer
	Provisioner    Provisioner
	Recorder       RecordStore
	Notifier       notify.Notifier
	Log            *zap.Logger
	TrackingPolicy string
	FileTimeout    time.Duration
	FlushWindow    time.Duration
	// MaxFileSize in bytes, 0 for no limit
	MaxFileSize int64
	// Now is used for the flush window, time.Now when nil
	Now func() time.Time
}

// Coordinator runs every file of a submission through classification, duplicate detection,
// storage, placement and ownership tracking. Files are independent of each other.
type Coordinator struct {
	Options
	classifier Classifier
	detector   DuplicateDetector
}

func NewCoordinator(opts Options) *Coordinator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	if opts.TrackingPolicy == "" {
		opts.TrackingPolicy = config.TrackingPolicyRollback
	}
	if opts.FileTimeout <= 0 {
		opts.FileTimeout = config.Default().FileTimeout
	}
	if opts.FlushWindow <= 0 {
		opts.FlushWindow = config.Default().FlushWindow
	}
	return &Coordinator{Options: opts}
}

// StorageFor returns where the album's files live
func (c *Coordinator) StorageFor(album *models.Album) storage.StorageAPI {
	if album.BucketID != 0 {
		if s := c.Storages.StorageFrom(album.BucketID); s != nil {
			return s
		}
	}
	return c.Storages.GetDefaultStorage()
}

// Submit processes the files in order and returns one result per file
func (c *Coordinator) Submit(ctx context.Context, sub Submission) []Result {
	results := make([]Result, 0, len(sub.Files))
	store := c.StorageFor(sub.Album)
	mappings, mappingsErr := c.Mappings.Mappings(ctx)
	for _, f := range sub.Files {
		var result Result
		switch {
		case store == nil:
			result = failure(f.Filename, fmt.Errorf("%w: no storage configured", ErrWrite))
		case mappingsErr != nil:
			result = failure(f.Filename, fmt.Errorf("%w: %w", ErrUnsupportedContentType, mappingsErr))
		default:
			result = c.processFile(ctx, sub, store, mappings, f)
		}
		results = append(results, result)
	}
	return results
}

func (c *Coordinator) processFile(ctx context.Context, sub Submission, store storage.StorageAPI, mappings []models.MimeMapping, f File) (result Result) {
	log := c.Log.With(zap.Uint64("album", sub.Album.ID), zap.String("file", f.Filename))
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while processing file", zap.Any("panic", r), zap.Stack("stack"))
			result = failure(f.Filename, errors.New("internal error"))
		}
	}()

	name, err := cleanFilename(f.Filename)
	if err != nil {
		return failure(f.Filename, err)
	}
	if f.Size <= 0 || f.Open == nil {
		return failure(f.Filename, fmt.Errorf("%w: empty file", ErrInvalid))
	}
	if c.MaxFileSize > 0 && f.Size > c.MaxFileSize {
		return failure(f.Filename, fmt.Errorf("%w: file is larger than %d MB", ErrInvalid, c.MaxFileSize>>20))
	}
	contentType := DetectContentType(f.ContentType, name, f.Open)
	mediaType, err := c.classifier.Classify(contentType, sub.Album, mappings)
	if err != nil {
		log.Info("file rejected", zap.String("content_type", contentType))
		return failure(f.Filename, err)
	}

	fileCtx, cancel := context.WithTimeout(ctx, c.FileTimeout)
	defer cancel()

	dir := sub.Album.ContributorDir(sub.Contributor, sub.SubLabel)
	dup, err := c.detector.Check(fileCtx, store, dir+"/"+name, f.Size)
	if err != nil {
		return failure(f.Filename, c.Writer.wrap(fileCtx, err))
	}
	if dup.Exists {
		return failure(f.Filename, ErrDuplicate)
	}

	nodeID := c.place(fileCtx, sub, log)
	media, err := c.Writer.Write(fileCtx, WriteRequest{
		Storage:        store,
		Album:          sub.Album,
		Dir:            dir,
		Filename:       name,
		Size:           f.Size,
		MimeType:       contentType,
		MediaType:      mediaType,
		CategoryNodeID: nodeID,
		Open:           f.Open,
	})
	if err != nil {
		if !errors.Is(err, ErrDuplicate) {
			log.Warn("file not stored", zap.Error(err))
		}
		return failure(f.Filename, err)
	}

	record := models.UploadRecord{
		AlbumID:   sub.Album.ID,
		MediaID:   media.ID,
		UserID:    sub.Owner.UserID,
		SessionID: sub.Owner.SessionID,
		UserName:  sub.Contributor,
		SubLabel:  sub.SubLabel,
	}
	if err = c.Recorder.Record(fileCtx, &record); err != nil {
		return c.trackingFailed(ctx, store, sub, media, f.Filename, err, log)
	}
	log.Info("file stored", zap.Uint64("media", media.ID), zap.String("path", media.Path), zap.Int64("size", media.Size))
	return c.success(sub.Album, media, f.Filename)
}

// place resolves the category node for the file. Placement problems never fail the upload:
// the media then lands on the album's root node.
func (c *Coordinator) place(ctx context.Context, sub Submission, log *zap.Logger) *uint64 {
	if !sub.Album.AutoOrganize || c.Provisioner == nil {
		return sub.Album.RootNodeID
	}
	nodeID, err := c.Provisioner.Ensure(ctx, sub.Album, sub.Contributor, sub.SubLabel)
	if err != nil {
		log.Warn("category placement failed", zap.Error(err))
	}
	if nodeID == nil {
		return sub.Album.RootNodeID
	}
	return nodeID
}

func (c *Coordinator) trackingFailed(ctx context.Context, store storage.StorageAPI, sub Submission, media *models.Media, filename string, err error, log *zap.Logger) Result {
	if c.TrackingPolicy == config.TrackingPolicyKeep {
		log.Error("upload kept without ownership record", zap.Uint64("media", media.ID), zap.Error(err))
		result := c.success(sub.Album, media, filename)
		result.Code = CodeTrackingError
		result.Error = "uploaded, but ownership could not be recorded"
		return result
	}
	log.Error("ownership record failed, removing upload", zap.Uint64("media", media.ID), zap.Error(err))
	if rmErr := c.Writer.Remove(context.WithoutCancel(ctx), store, media); rmErr != nil {
		log.Error("rollback incomplete", zap.Uint64("media", media.ID), zap.Error(rmErr))
	}
	return failure(filename, err)
}

func (c *Coordinator) success(album *models.Album, media *models.Media, filename string) Result {
	result := Result{
		Filename: filename,
		Success:  true,
		ObjectID: media.ID,
	}
	if media.ThumbSize > 0 {
		result.ThumbnailURL = ThumbnailURL(album, media.ID)
	}
	return result
}

func ThumbnailURL(album *models.Album, mediaID uint64) string {
	return "/albums/" + album.Token + "/media/" + strconv.FormatUint(mediaID, 10) + "/thumb"
}

func failure(filename string, err error) Result {
	result := Result{
		Filename: filename,
		Error:    err.Error(),
		Code:     errorCode(err),
	}
	if errors.Is(err, ErrDuplicate) {
		result.IsDuplicate = true
		result.Error = ErrDuplicate.Error()
	}
	return result
}

// CheckDuplicate answers the pre-flight question "would this file be skipped?"
func (c *Coordinator) CheckDuplicate(ctx context.Context, album *models.Album, contributor, subLabel, filename string, size int64) (Duplicate, error) {
	name, err := cleanFilename(filename)
	if err != nil {
		return Duplicate{}, err
	}
	store := c.StorageFor(album)
	if store == nil {
		return Duplicate{}, fmt.Errorf("%w: no storage configured", ErrWrite)
	}
	return c.detector.Check(ctx, store, album.ContributorDir(contributor, subLabel)+"/"+name, size)
}

// DeleteOwned removes an upload of owner, with its file and thumbnail
func (c *Coordinator) DeleteOwned(ctx context.Context, album *models.Album, owner models.Owner, mediaID uint64) error {
	record, err := c.Recorder.FindOwned(ctx, album.ID, owner, mediaID)
	if err != nil {
		return err
	}
	if err = c.Recorder.Delete(ctx, record); err != nil {
		return err
	}
	store := c.Storages.StorageFrom(record.Media.BucketID)
	if store == nil {
		c.Log.Warn("bucket gone, leaving files behind", zap.Uint64("media", mediaID), zap.Uint64("bucket", record.Media.BucketID))
		return nil
	}
	for _, p := range []string{record.Media.Path, record.Media.ThumbPath} {
		if p == "" {
			continue
		}
		if err = store.Delete(ctx, p); err != nil {
			c.Log.Warn("cannot delete file", zap.String("path", p), zap.Error(err))
		}
	}
	return nil
}
