package models

import "path"

// MimeMapping is one row of the global content-type to collection-type table
type MimeMapping struct {
	ID        uint64 `gorm:"primaryKey" json:"id"`
	Pattern   string `gorm:"type:varchar(100);not null" json:"pattern"` // "image/png" or "image/*"
	MediaType string `gorm:"type:varchar(100);not null" json:"media_type"`
	Weight    int    `gorm:"not null;default:0;index" json:"weight"`
	Enabled   bool   `gorm:"not null" json:"enabled"`
}

func (m *MimeMapping) Matches(contentType string) bool {
	if m.Pattern == contentType {
		return true
	}
	ok, err := path.Match(m.Pattern, contentType)
	return err == nil && ok
}

// DefaultMimeMappings seeds an empty table
func DefaultMimeMappings() []MimeMapping {
	return []MimeMapping{
		{Pattern: "image/jpeg", MediaType: "image", Weight: 0, Enabled: true},
		{Pattern: "image/png", MediaType: "image", Weight: 1, Enabled: true},
		{Pattern: "image/gif", MediaType: "image", Weight: 2, Enabled: true},
		{Pattern: "image/webp", MediaType: "image", Weight: 3, Enabled: true},
		{Pattern: "image/heic", MediaType: "image", Weight: 4, Enabled: true},
		{Pattern: "image/heif", MediaType: "image", Weight: 5, Enabled: true},
		{Pattern: "video/*", MediaType: "video", Weight: 10, Enabled: true},
	}
}
