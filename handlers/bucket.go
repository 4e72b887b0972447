package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"mediadrop/storage"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
)

// BucketRequest is a Bucket plus the S3 credentials, which are never sent back
type BucketRequest struct {
	storage.Bucket
	S3Key    string `json:"s3_key"`
	S3Secret string `json:"s3_secret"`
}

// hasWriteAccess writes, reads back and removes a probe object
func hasWriteAccess(ctx context.Context, bucket *storage.Bucket) error {
	store, err := storage.NewStorage(bucket)
	if err != nil {
		return err
	}
	const probe = "tmp/write-probe"
	if _, err = store.Save(ctx, probe, strings.NewReader("some-content"), "text/plain"); err != nil {
		return fmt.Errorf("cannot save: %w", err)
	}
	if _, err = store.GetSize(ctx, probe); err != nil {
		return fmt.Errorf("cannot stat: %w", err)
	}
	if err = store.Delete(ctx, probe); err != nil {
		return fmt.Errorf("cannot delete: %w", err)
	}
	return nil
}

func cleanupPath(in *storage.Bucket) {
	for strings.Contains(in.Path, "..") {
		in.Path = strings.ReplaceAll(in.Path, "..", "")
	}
	for strings.Contains(in.Path, "//") {
		in.Path = strings.ReplaceAll(in.Path, "//", "/")
	}
}

func (a *Admin) BucketSave(c *gin.Context) {
	r := BucketRequest{}
	if err := c.ShouldBindWith(&r, binding.JSON); err != nil {
		c.JSON(http.StatusBadRequest, Response{err.Error()})
		return
	}
	bucket := r.Bucket
	cleanupPath(&bucket)

	if bucket.Name == "" {
		c.JSON(http.StatusBadRequest, Response{"Empty bucket name"})
		return
	}
	switch bucket.StorageType {
	case storage.StorageTypeFile:
		if bucket.Path == "" {
			c.JSON(http.StatusBadRequest, Response{"Empty bucket path"})
			return
		}
		if bucket.Path[0] != '/' {
			c.JSON(http.StatusBadRequest, Response{"Path must be absolute and start with / (slash)"})
			return
		}
	case storage.StorageTypeS3:
		if r.S3Key == "" || r.S3Secret == "" {
			c.JSON(http.StatusBadRequest, Response{"'S3 Key' and 'S3 Secret' must be provided"})
			return
		}
		bucket.AuthDetails = r.S3Key + ":" + r.S3Secret
		if bucket.Region == "" {
			bucket.Region = "us-east-1"
		}
	default:
		c.JSON(http.StatusBadRequest, Response{"'storage_type' must be 0 (file) or 1 (s3)"})
		return
	}
	ctx := c.Request.Context()
	if err := hasWriteAccess(ctx, &bucket); err != nil {
		a.Log.Warn("bucket not writable", zap.String("bucket", bucket.Name), zap.Error(err))
		c.JSON(http.StatusForbidden, Response{"No write access to bucket: " + err.Error()})
		return
	}
	var err error
	if bucket.ID == 0 {
		err = bucket.Create(a.DB.WithContext(ctx))
	} else {
		err = a.DB.WithContext(ctx).Save(&bucket).Error
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, Response{err.Error()})
		return
	}
	// Re-initialize storage
	if err = a.Storages.Add(&bucket); err != nil {
		c.JSON(http.StatusInternalServerError, Response{err.Error()})
		return
	}
	c.JSON(http.StatusOK, bucket)
}

func (a *Admin) BucketList(c *gin.Context) {
	buckets := []storage.Bucket{}
	if err := a.DB.WithContext(c.Request.Context()).Order("id").Find(&buckets).Error; err != nil {
		c.JSON(http.StatusInternalServerError, DBError1Response)
		return
	}
	c.JSON(http.StatusOK, buckets)
}
