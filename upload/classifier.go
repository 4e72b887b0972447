package upload

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"mediadrop/models"

	"github.com/gabriel-vasile/mimetype"
	"gorm.io/gorm"
)

const (
	imagePrefix = "image/"
	videoPrefix = "video/"
)

// Classifier picks the collection type a file is stored as
type Classifier struct{}

// Classify returns the album override for images and videos, or the first enabled mapping
// matching contentType. mappings must be ordered by weight.
func (Classifier) Classify(contentType string, album *models.Album, mappings []models.MimeMapping) (string, error) {
	if strings.HasPrefix(contentType, imagePrefix) && album.ImageType != "" {
		return album.ImageType, nil
	}
	if strings.HasPrefix(contentType, videoPrefix) && album.VideoType != "" {
		return album.VideoType, nil
	}
	for i := range mappings {
		if mappings[i].Enabled && mappings[i].Matches(contentType) {
			return mappings[i].MediaType, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
}

// MappingSource supplies the global content type table
type MappingSource interface {
	Mappings(ctx context.Context) ([]models.MimeMapping, error)
}

type MimeTable struct {
	db *gorm.DB
}

func NewMimeTable(db *gorm.DB) *MimeTable {
	return &MimeTable{db: db}
}

func (t *MimeTable) Mappings(ctx context.Context) (result []models.MimeMapping, err error) {
	err = t.db.WithContext(ctx).Where("enabled = ?", true).Order("weight, id").Find(&result).Error
	return
}

// DetectContentType trusts the type declared by the client. When there is none (or it is the
// generic octet-stream) it guesses from the file extension and finally sniffs the first bytes.
func DetectContentType(declared, filename string, open func() (io.ReadCloser, error)) string {
	if ct := stripParams(declared); ct != "" && ct != "application/octet-stream" {
		return ct
	}
	if ct := stripParams(mime.TypeByExtension(strings.ToLower(filepath.Ext(filename)))); ct != "" {
		return ct
	}
	if open == nil {
		return "application/octet-stream"
	}
	rc, err := open()
	if err != nil {
		return "application/octet-stream"
	}
	defer rc.Close()
	mtype, err := mimetype.DetectReader(rc)
	if err != nil {
		return "application/octet-stream"
	}
	return stripParams(mtype.String())
}

func stripParams(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
