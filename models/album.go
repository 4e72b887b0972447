package models

import (
	"path"
	"strings"

	"mediadrop/utils"
)

// Album is a token-addressable upload destination. It is resolved once per request
// and passed around as the album's typed configuration.
type Album struct {
	ID        uint64 `gorm:"primaryKey" json:"id"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
	Name      string `gorm:"type:varchar(300);not null" json:"name"`
	// Token is the capability-style access key that appears in drop URLs
	Token    string `gorm:"type:varchar(100);index:uniq_album_token,unique;not null" json:"token"`
	BucketID uint64 `json:"bucket_id"`
	// BasePath is relative to the bucket, e.g. "weddings/2026-06"
	BasePath string `gorm:"type:varchar(500);not null" json:"base_path"`
	// CategoryTree is the tree the album's uploads are organized in. Empty means no placement
	CategoryTree         string  `gorm:"type:varchar(100)" json:"category_tree"`
	RootNodeID           *uint64 `json:"root_node_id"`
	ImageType            string  `gorm:"type:varchar(100)" json:"image_type"`
	VideoType            string  `gorm:"type:varchar(100)" json:"video_type"`
	AutoOrganize         bool    `gorm:"not null;default:false" json:"auto_organize"`
	Active               bool    `gorm:"not null" json:"active"`
	UploadsEnabled       bool    `gorm:"not null" json:"uploads_enabled"`
	NotificationsEnabled bool    `gorm:"not null;default:false" json:"notifications_enabled"`
	NotificationEmail    string  `gorm:"type:varchar(300)" json:"notification_email"`
}

// ValidationError is returned for unusable admin-supplied settings
type ValidationError string

func (e ValidationError) Error() string {
	return string(e)
}

func NewAlbumToken() string {
	return utils.Rand16BytesToBase62() + utils.Rand16BytesToBase62()
}

// RotateToken invalidates all existing drop links of the album
func (a *Album) RotateToken() (old string) {
	old = a.Token
	a.Token = NewAlbumToken()
	return
}

// Validate checks the admin-supplied settings before the album is saved
func (a *Album) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ValidationError("album name is required")
	}
	if a.BasePath == "" {
		return ValidationError("base path is required")
	}
	clean := path.Clean(strings.Trim(a.BasePath, "/"))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return ValidationError("base path must stay inside the bucket")
	}
	if clean == ThumbsRoot || strings.HasPrefix(clean, ThumbsRoot+"/") {
		return ValidationError("base path cannot be inside the thumbnails location")
	}
	a.BasePath = clean
	return nil
}

// ContributorDir returns where a contributor's files go, e.g.
//   - weddings/alice
//   - weddings/alice/ceremony
func (a *Album) ContributorDir(contributor, subLabel string) string {
	dir := a.BasePath + "/" + utils.SafeName(contributor)
	if subLabel != "" {
		dir += "/" + utils.SafeName(subLabel)
	}
	return dir
}
