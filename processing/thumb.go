package processing

import (
	"bytes"
	"context"
	"errors"
	"time"

	"mediadrop/models"
	"mediadrop/storage"
	"mediadrop/upload"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const taskThumb = "thumb"

type Storages interface {
	StorageFrom(bucketID uint64) storage.StorageAPI
}

// ThumbBackfill creates the thumbnails that were not made at upload time
// (the upload was cut short, a bucket was offline, etc). Every media is tried once.
type ThumbBackfill struct {
	db       *gorm.DB
	storages Storages
	size     uint
	log      *zap.Logger
	// BatchSize limits the media handled per run
	BatchSize int
	// MinAge keeps the job away from uploads that are still being processed
	MinAge time.Duration
	Now    func() time.Time
}

func NewThumbBackfill(db *gorm.DB, storages Storages, size uint, log *zap.Logger) *ThumbBackfill {
	return &ThumbBackfill{
		db:        db,
		storages:  storages,
		size:      size,
		log:       log,
		BatchSize: 100,
		MinAge:    time.Minute,
		Now:       time.Now,
	}
}

func (t *ThumbBackfill) Name() string {
	return "thumb-backfill"
}

func (t *ThumbBackfill) pending(ctx context.Context) (result []models.Media, err error) {
	attempted := t.db.Model(&ProcessingTask{}).Select("media_id").Where("status LIKE ?", "%"+taskThumb+":%")
	err = t.db.WithContext(ctx).
		Where("thumb_size = 0 AND mime_type LIKE ? AND created_at < ?", "image/%", t.Now().Add(-t.MinAge).Unix()).
		Where("id NOT IN (?)", attempted).
		Order("id").Limit(t.BatchSize).
		Find(&result).Error
	return
}

func (t *ThumbBackfill) Run(ctx context.Context) error {
	pending, err := t.pending(ctx)
	if err != nil {
		return err
	}
	done := 0
	for i := range pending {
		if err = ctx.Err(); err != nil {
			return err
		}
		status := t.process(ctx, &pending[i])
		if status == Done {
			done++
		}
		if err = t.setStatus(ctx, pending[i].ID, status); err != nil {
			return err
		}
	}
	if len(pending) > 0 {
		t.log.Info("thumbnails backfilled", zap.Int("done", done), zap.Int("attempted", len(pending)))
	}
	return nil
}

func (t *ThumbBackfill) process(ctx context.Context, media *models.Media) int {
	store := t.storages.StorageFrom(media.BucketID)
	if store == nil {
		t.log.Warn("no storage for media", zap.Uint64("media", media.ID), zap.Uint64("bucket", media.BucketID))
		return FailedStorage
	}
	buf := bytes.Buffer{}
	if _, err := store.Load(ctx, media.Path, &buf); err != nil {
		t.log.Warn("cannot load media", zap.Uint64("media", media.ID), zap.String("path", media.Path), zap.Error(err))
		return FailedStorage
	}
	if err := upload.CreateThumbnail(ctx, t.db, store, media, &buf, t.size); err != nil {
		t.log.Warn("thumbnail failed", zap.Uint64("media", media.ID), zap.Error(err))
		return Failed
	}
	return Done
}

func (t *ThumbBackfill) setStatus(ctx context.Context, mediaID uint64, status int) error {
	task := ProcessingTask{}
	err := t.db.WithContext(ctx).Take(&task, "media_id = ?", mediaID).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	task.MediaID = mediaID
	statusMap := task.statusToMap(t.log)
	statusMap[taskThumb] = status
	task.updateWith(statusMap)
	return t.db.WithContext(ctx).Omit(clause.Associations).Save(&task).Error
}
