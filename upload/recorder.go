package upload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mediadrop/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecordStore keeps the ownership rows of uploaded media
type RecordStore interface {
	Record(ctx context.Context, record *models.UploadRecord) error
	ListOwned(ctx context.Context, albumID uint64, owner models.Owner) ([]models.UploadRecord, error)
	FindOwned(ctx context.Context, albumID uint64, owner models.Owner, mediaID uint64) (*models.UploadRecord, error)
	Recent(ctx context.Context, albumID uint64, owner models.Owner, contributor string, since time.Time) ([]models.UploadRecord, error)
	Delete(ctx context.Context, record *models.UploadRecord) error
}

type Recorder struct {
	db *gorm.DB
}

func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

// Record must only be called once the media row exists
func (r *Recorder) Record(ctx context.Context, record *models.UploadRecord) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(record).Error; err != nil {
		return fmt.Errorf("%w: %w", ErrTracking, err)
	}
	return nil
}

// owned scopes a query to the records of owner: by user id for logged in users,
// by session id for anonymous ones
func owned(tx *gorm.DB, albumID uint64, owner models.Owner) *gorm.DB {
	tx = tx.Where("upload_records.album_id = ?", albumID)
	if !owner.IsAnonymous() {
		return tx.Where("upload_records.user_id = ?", *owner.UserID)
	}
	return tx.Where("upload_records.user_id IS NULL AND upload_records.session_id = ?", owner.SessionID)
}

func (r *Recorder) ListOwned(ctx context.Context, albumID uint64, owner models.Owner) (result []models.UploadRecord, err error) {
	if owner.IsAnonymous() && owner.SessionID == "" {
		return []models.UploadRecord{}, nil
	}
	err = owned(r.db.WithContext(ctx), albumID, owner).
		Preload("Media").
		Order("upload_records.created_at DESC, upload_records.id DESC").
		Find(&result).Error
	return
}

func (r *Recorder) FindOwned(ctx context.Context, albumID uint64, owner models.Owner, mediaID uint64) (*models.UploadRecord, error) {
	if owner.IsAnonymous() && owner.SessionID == "" {
		return nil, ErrNotOwned
	}
	var record models.UploadRecord
	err := owned(r.db.WithContext(ctx), albumID, owner).
		Where("upload_records.media_id = ?", mediaID).
		Preload("Media").
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotOwned
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Recent returns what the contributor uploaded since the given time, oldest first
func (r *Recorder) Recent(ctx context.Context, albumID uint64, owner models.Owner, contributor string, since time.Time) (result []models.UploadRecord, err error) {
	if owner.IsAnonymous() && owner.SessionID == "" {
		return []models.UploadRecord{}, nil
	}
	err = owned(r.db.WithContext(ctx), albumID, owner).
		Where("upload_records.user_name = ? AND upload_records.created_at >= ?", contributor, since.Unix()).
		Preload("Media").
		Order("upload_records.created_at, upload_records.id").
		Find(&result).Error
	return
}

// Delete removes the record together with its media row
func (r *Recorder) Delete(ctx context.Context, record *models.UploadRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.UploadRecord{}, record.ID).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Media{}, record.MediaID).Error
	})
}
