package storage

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"gorm.io/gorm"
)

type StorageType uint8

const (
	StorageTypeFile StorageType = 0
	StorageTypeS3   StorageType = 1
)

const StorageLocationThumbs = "/thumbs"

type Bucket struct {
	ID            uint64      `gorm:"primaryKey" json:"id"`
	CreatedAt     int         `json:"created_at"`
	UpdatedAt     int         `json:"updated_at"`
	Name          string      `gorm:"type:varchar(200)" json:"name"` // S3 bucket name in case of S3
	StorageType   StorageType `json:"storage_type"`
	Path          string      `json:"path"` // Path on a drive or a prefix in a S3 bucket
	Endpoint      string      `gorm:"type:varchar(300)" json:"endpoint"`
	Region        string      `gorm:"type:varchar(100)" json:"region"`
	AuthDetails   string      `json:"-"` // Authentication details. In case of S3 bucket - "key:secret"
	SSEEncryption string      `gorm:"type:varchar(50)" json:"sse_encryption"`
}

func (b *Bucket) Create(db *gorm.DB) error {
	err := db.Create(b).Error
	if err != nil {
		return err
	}
	if b.StorageType == StorageTypeFile {
		// Pre-create locations on disk
		if err = os.MkdirAll(filepath.Join(b.Path, StorageLocationThumbs), 0777); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bucket) IsS3() bool {
	return b.StorageType == StorageTypeS3
}

// GetRemotePath prefixes path with the bucket's configured prefix (if any)
func (b *Bucket) GetRemotePath(path string) string {
	prefix := strings.Trim(b.Path, "/")
	if prefix == "" {
		return path
	}
	return prefix + "/" + path
}

func (b *Bucket) CreateSVC() *s3.S3 {
	cfg := aws.NewConfig()
	if b.Region != "" {
		cfg = cfg.WithRegion(b.Region)
	}
	if key, secret, ok := strings.Cut(b.AuthDetails, ":"); ok {
		cfg = cfg.WithCredentials(credentials.NewStaticCredentials(key, secret, ""))
	}
	if b.Endpoint != "" {
		// S3 compatible services (MinIO, etc)
		cfg = cfg.WithEndpoint(b.Endpoint).WithS3ForcePathStyle(true)
	}
	return s3.New(session.Must(session.NewSession(cfg)))
}
