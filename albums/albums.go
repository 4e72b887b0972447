package albums

import (
	"context"
	"errors"
	"fmt"

	"mediadrop/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrAlbumNotFound = errors.New("album not found")
	ErrAlbumInactive = errors.New("album is not active")
	ErrForbidden     = errors.New("uploads are disabled for this album")
)

type RootProvisioner interface {
	EnsureAlbumRoot(ctx context.Context, album *models.Album) error
}

// Service resolves albums by token and applies admin changes
type Service struct {
	db          *gorm.DB
	cache       Cache
	provisioner RootProvisioner
	log         *zap.Logger
}

func NewService(db *gorm.DB, cache Cache, provisioner RootProvisioner, log *zap.Logger) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	return &Service{db: db, cache: cache, provisioner: provisioner, log: log}
}

// ByToken returns the active album behind a drop link
func (s *Service) ByToken(ctx context.Context, token string) (*models.Album, error) {
	if token == "" {
		return nil, ErrAlbumNotFound
	}
	album, ok := s.cache.Get(ctx, token)
	if !ok {
		album = &models.Album{}
		err := s.db.WithContext(ctx).Where("token = ?", token).Take(album).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlbumNotFound
		}
		if err != nil {
			return nil, err
		}
		s.cache.Set(ctx, album)
	}
	if !album.Active {
		return nil, ErrAlbumInactive
	}
	return album, nil
}

// ForUpload is ByToken for callers about to store files
func (s *Service) ForUpload(ctx context.Context, token string) (*models.Album, error) {
	album, err := s.ByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if !album.UploadsEnabled {
		return nil, ErrForbidden
	}
	return album, nil
}

func (s *Service) List(ctx context.Context) (result []models.Album, err error) {
	err = s.db.WithContext(ctx).Order("id").Find(&result).Error
	return
}

func (s *Service) Get(ctx context.Context, id uint64) (*models.Album, error) {
	album := &models.Album{}
	err := s.db.WithContext(ctx).Take(album, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAlbumNotFound
	}
	return album, err
}

// Create assigns a fresh token and creates the album's root category node
func (s *Service) Create(ctx context.Context, album *models.Album) error {
	if err := album.Validate(); err != nil {
		return err
	}
	album.ID = 0
	album.Token = models.NewAlbumToken()
	album.RootNodeID = nil
	if err := s.db.WithContext(ctx).Create(album).Error; err != nil {
		return err
	}
	if err := s.provisioner.EnsureAlbumRoot(ctx, album); err != nil {
		return fmt.Errorf("album root: %w", err)
	}
	s.log.Info("album created", zap.Uint64("album", album.ID), zap.String("name", album.Name))
	return nil
}

// Save updates the editable settings. The token and root node are kept.
func (s *Service) Save(ctx context.Context, album *models.Album) error {
	if err := album.Validate(); err != nil {
		return err
	}
	existing, err := s.Get(ctx, album.ID)
	if err != nil {
		return err
	}
	album.Token = existing.Token
	album.CreatedAt = existing.CreatedAt
	if album.CategoryTree == existing.CategoryTree {
		album.RootNodeID = existing.RootNodeID
	} else {
		album.RootNodeID = nil
	}
	if err = s.db.WithContext(ctx).Save(album).Error; err != nil {
		return err
	}
	s.cache.Delete(ctx, album.Token)
	return s.provisioner.EnsureAlbumRoot(ctx, album)
}

// RotateToken gives the album a new token. Links with the old one stop working immediately.
func (s *Service) RotateToken(ctx context.Context, id uint64) (*models.Album, error) {
	album, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	old := album.RotateToken()
	if err = s.db.WithContext(ctx).Model(album).Update("token", album.Token).Error; err != nil {
		return nil, err
	}
	s.cache.Delete(ctx, old)
	s.log.Info("album token rotated", zap.Uint64("album", album.ID))
	return album, nil
}
