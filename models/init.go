package models

import (
	"mediadrop/storage"

	"gorm.io/gorm"
)

// Migrate creates or updates all tables and seeds the MIME table when it is empty
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&storage.Bucket{},
		&Album{},
		&Media{},
		&UploadRecord{},
		&CategoryNode{},
		&MimeMapping{},
	); err != nil {
		return err
	}
	var count int64
	if err := db.Model(&MimeMapping{}).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		defaults := DefaultMimeMappings()
		return db.Create(&defaults).Error
	}
	return nil
}
