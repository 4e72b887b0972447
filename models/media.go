package models

import (
	"strconv"
	"strings"
)

const (
	ThumbsRoot = "thumbs"

	KindOther = 0
	KindImage = 1
	KindVideo = 2
)

// Media is the stored object created for every accepted file
type Media struct {
	ID             uint64  `gorm:"primaryKey" json:"id"`
	CreatedAt      int64   `gorm:"index" json:"created_at"`
	AlbumID        uint64  `gorm:"not null;index" json:"album_id"`
	Album          Album   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	BucketID       uint64  `gorm:"index:uniq_media_path,unique,priority:1;not null" json:"bucket_id"`
	Path           string  `gorm:"type:varchar(700);index:uniq_media_path,unique,priority:2;not null" json:"path"`
	Name           string  `gorm:"type:varchar(300)" json:"name"`
	MediaType      string  `gorm:"type:varchar(100)" json:"media_type"`
	MimeType       string  `gorm:"type:varchar(100)" json:"mime_type"`
	Size           int64   `json:"size"`
	CategoryNodeID *uint64 `gorm:"index" json:"category_node_id"`
	ThumbPath      string  `gorm:"type:varchar(700)" json:"-"`
	ThumbSize      int64   `json:"-"`
}

// GetThumbPath returns the location of the thumbnail, for example:
//   - thumbs/3/125_thumb.jpg
func (m *Media) GetThumbPath() string {
	return ThumbsRoot + "/" + strconv.FormatUint(m.AlbumID, 10) + "/" + strconv.FormatUint(m.ID, 10) + "_thumb.jpg"
}

func (m *Media) Kind() int {
	return KindFrom(m.MimeType)
}

func KindFrom(mimeType string) int {
	if strings.HasPrefix(mimeType, "image/") {
		return KindImage
	}
	if strings.HasPrefix(mimeType, "video/") {
		return KindVideo
	}
	return KindOther
}
