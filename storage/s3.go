package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	cmap "github.com/orcaman/concurrent-map/v2"
)

const presignViewURLFor = 15 * time.Minute

type S3Storage struct {
	Bucket   Bucket
	s3Client *s3.S3
	// dirs remembers folder markers already written
	dirs cmap.ConcurrentMap[string, bool]
}

func NewS3Storage(bucket *Bucket) *S3Storage {
	return &S3Storage{
		Bucket:   *bucket,
		s3Client: bucket.CreateSVC(),
		dirs:     cmap.New[bool](),
	}
}

// Create checks for an existing object before uploading. S3 has no exclusive create in this
// SDK, so two uploads racing for the same key between HeadObject and PutObject both succeed
// and the later one wins.
func (s *S3Storage) Create(ctx context.Context, path string, reader io.Reader, mimeType string) (int64, error) {
	_, err := s.GetSize(ctx, path)
	if err == nil {
		return 0, ErrExists
	}
	if !errors.Is(err, ErrNotFound) {
		return 0, err
	}
	return s.Save(ctx, path, reader, mimeType)
}

func (s *S3Storage) Save(ctx context.Context, path string, reader io.Reader, mimeType string) (int64, error) {
	counter := &countingReader{r: contextReader{ctx, reader}}
	uploader := s3manager.NewUploaderWithClient(s.s3Client)
	input := s3manager.UploadInput{
		Bucket: &s.Bucket.Name,
		Key:    aws.String(s.Bucket.GetRemotePath(path)),
		Body:   counter,
	}
	if mimeType != "" {
		input.ContentType = &mimeType
	}
	if s.Bucket.SSEEncryption != "" {
		input.ServerSideEncryption = &s.Bucket.SSEEncryption
	}
	if _, err := uploader.UploadWithContext(ctx, &input); err != nil {
		return 0, err
	}
	return counter.n, nil
}

func (s *S3Storage) GetSize(ctx context.Context, path string) (int64, error) {
	out, err := s.s3Client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: &s.Bucket.Name,
		Key:    aws.String(s.Bucket.GetRemotePath(path)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return aws.Int64Value(out.ContentLength), nil
}

func (s *S3Storage) Load(ctx context.Context, path string, writer io.Writer) (int64, error) {
	resp, err := s.s3Client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: &s.Bucket.Name,
		Key:    aws.String(s.Bucket.GetRemotePath(path)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	defer resp.Body.Close()
	return io.Copy(writer, resp.Body)
}

// Serve redirects to a pre-signed URL
func (s *S3Storage) Serve(path string, request *http.Request, writer http.ResponseWriter) {
	req, _ := s.s3Client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: &s.Bucket.Name,
		Key:    aws.String(s.Bucket.GetRemotePath(path)),
	})
	url, err := req.Presign(presignViewURLFor)
	if err != nil {
		http.Error(writer, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(writer, request, url, http.StatusFound)
}

func (s *S3Storage) Delete(ctx context.Context, path string) error {
	_, err := s.s3Client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: &s.Bucket.Name,
		Key:    aws.String(s.Bucket.GetRemotePath(path)),
	})
	return err
}

// EnsureDir writes an empty "dir/" marker so that empty folders show up in ListDirs
func (s *S3Storage) EnsureDir(ctx context.Context, dir string) error {
	key := s.Bucket.GetRemotePath(strings.Trim(dir, "/")) + "/"
	if s.dirs.Has(key) {
		return nil
	}
	_, err := s.s3Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: &s.Bucket.Name,
		Key:    aws.String(key),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return err
	}
	s.dirs.Set(key, true)
	return nil
}

// ListDirs returns the common prefixes directly under dir
func (s *S3Storage) ListDirs(ctx context.Context, dir string) ([]string, error) {
	prefix := s.Bucket.GetRemotePath(strings.Trim(dir, "/")) + "/"
	result := []string{}
	err := s.s3Client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket:    &s.Bucket.Name,
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	}, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, p := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.StringValue(p.Prefix), prefix), "/")
			if name != "" {
				result = append(result, name)
			}
		}
		return true
	})
	return result, err
}

func (s *S3Storage) FreeSpace() (uint64, bool) {
	return 0, false
}

func (s *S3Storage) GetBucket() *Bucket {
	return &s.Bucket
}

func isS3NotFound(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case "NotFound", s3.ErrCodeNoSuchKey:
			return true
		}
	}
	return false
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
