package minio

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/enzbench/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/enzbench/pkg/errors"
)

var (
	ErrObjectNotFound = errors.New(errors.ErrCodeNotFound, "object not found")
	ErrInvalidRequest = errors.New(errors.ErrCodeValidation, "invalid request")
)

// ObjectStore uploads result artifacts.
type ObjectStore interface {
	Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error)
	UploadFile(ctx context.Context, objectKey, path string, metadata map[string]string) (*UploadResult, error)
	Exists(ctx context.Context, objectKey string) (bool, error)
	List(ctx context.Context, prefix string) ([]*ObjectMetadata, error)
	Delete(ctx context.Context, objectKey string) error
}

type UploadRequest struct {
	ObjectKey   string
	Reader      io.Reader
	Size        int64
	ContentType string
	Metadata    map[string]string
}

type UploadResult struct {
	Bucket     string
	ObjectKey  string
	ETag       string
	Size       int64
	UploadedAt time.Time
}

type ObjectMetadata struct {
	ObjectKey    string
	Size         int64
	LastModified time.Time
}

type minioRepository struct {
	client   *MinIOClient
	logger   logging.Logger
	partSize int64
}

func NewMinIORepository(client *MinIOClient, log logging.Logger) ObjectStore {
	return &minioRepository{
		client:   client,
		logger:   log,
		partSize: client.config.PartSize,
	}
}

// ContentTypeFor guesses a content type from the file extension. Tables and
// tool outputs get explicit types; everything else falls back to mime.
func ContentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return "text/csv"
	case ".tsv":
		return "text/tab-separated-values"
	case ".txt", ".mol", ".log":
		return "text/plain"
	case ".zip":
		return "application/zip"
	case ".json":
		return "application/json"
	case ".prom":
		return "text/plain; version=0.0.4"
	}
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func (r *minioRepository) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	if req == nil || req.ObjectKey == "" || req.Reader == nil {
		return nil, ErrInvalidRequest
	}
	if r.client.isClosed() {
		return nil, ErrMinIOClientClosed
	}
	opts := minio.PutObjectOptions{
		ContentType:  req.ContentType,
		UserMetadata: req.Metadata,
	}
	if req.Size < 0 {
		opts.PartSize = uint64(r.partSize)
	}

	bucket := r.client.Bucket()
	info, err := r.client.GetClient().PutObject(ctx, bucket, req.ObjectKey, req.Reader, req.Size, opts)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorage, "upload failed").WithDetail(req.ObjectKey)
	}
	r.logger.Debug("Uploaded object", logging.String("bucket", bucket), logging.String("key", req.ObjectKey), logging.Int64("size", info.Size))

	return &UploadResult{
		Bucket:     bucket,
		ObjectKey:  req.ObjectKey,
		ETag:       info.ETag,
		Size:       info.Size,
		UploadedAt: time.Now(),
	}, nil
}

func (r *minioRepository) UploadFile(ctx context.Context, objectKey, path string, metadata map[string]string) (*UploadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIO, "failed to read artifact").WithDetail(path)
	}
	contentType := ContentTypeFor(path)
	if contentType == "application/octet-stream" && len(data) > 0 {
		contentType = http.DetectContentType(data[:min(512, len(data))])
	}
	return r.Upload(ctx, &UploadRequest{
		ObjectKey:   objectKey,
		Reader:      bytes.NewReader(data),
		Size:        int64(len(data)),
		ContentType: contentType,
		Metadata:    metadata,
	})
}

func (r *minioRepository) Exists(ctx context.Context, objectKey string) (bool, error) {
	_, err := r.client.GetClient().StatObject(ctx, r.client.Bucket(), objectKey, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, errors.Wrap(err, errors.ErrCodeStorage, "stat failed").WithDetail(objectKey)
	}
	return true, nil
}

func (r *minioRepository) List(ctx context.Context, prefix string) ([]*ObjectMetadata, error) {
	ch := r.client.GetClient().ListObjects(ctx, r.client.Bucket(), minio.ListObjectsOptions{Prefix: prefix, Recursive: true})
	var objects []*ObjectMetadata
	for obj := range ch {
		if obj.Err != nil {
			return nil, errors.Wrap(obj.Err, errors.ErrCodeStorage, "list failed").WithDetail(prefix)
		}
		objects = append(objects, &ObjectMetadata{ObjectKey: obj.Key, Size: obj.Size, LastModified: obj.LastModified})
	}
	return objects, nil
}

func (r *minioRepository) Delete(ctx context.Context, objectKey string) error {
	if err := r.client.GetClient().RemoveObject(ctx, r.client.Bucket(), objectKey, minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorage, "delete failed").WithDetail(objectKey)
	}
	return nil
}
