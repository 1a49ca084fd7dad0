package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"formbuilder/internal/config"
)

// ObjectPrefix is the key prefix of every uploaded object.
const ObjectPrefix = "form-uploads/"

// objectPutter is the part of *minio.Client the gateway uses.
type objectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinIO 把上传的文件写入 MinIO/S3 兼容存储，并返回对象的公开访问地址。
type MinIO struct {
	client     objectPutter
	bucketName string
	publicBase *url.URL
	lookup     minio.BucketLookupType
}

func parseBucketLookup(raw string) (minio.BucketLookupType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "auto":
		return minio.BucketLookupAuto, nil
	case "dns":
		return minio.BucketLookupDNS, nil
	case "path":
		return minio.BucketLookupPath, nil
	default:
		return minio.BucketLookupAuto, fmt.Errorf("invalid minio bucket lookup %q", raw)
	}
}

// NewMinIO 根据配置初始化客户端，并确保目标 Bucket 存在。
func NewMinIO(ctx context.Context, cfg config.MinIOConfig) (*MinIO, error) {
	lookup, err := parseBucketLookup(cfg.BucketLookup)
	if err != nil {
		return nil, err
	}

	publicBase, err := url.Parse(cfg.PublicEndpoint)
	if err != nil {
		return nil, fmt.Errorf("parse minio public endpoint: %w", err)
	}
	if publicBase.Host == "" {
		return nil, fmt.Errorf("invalid minio public endpoint, host missing")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure:       cfg.UseSSL,
		Region:       cfg.Region,
		BucketLookup: lookup,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if !cfg.AutoCreateBucket {
			return nil, fmt.Errorf("bucket %q does not exist (auto create disabled)", cfg.Bucket)
		}
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("make bucket %q: %w", cfg.Bucket, err)
		}
	}

	return &MinIO{
		client:     client,
		bucketName: cfg.Bucket,
		publicBase: publicBase,
		lookup:     lookup,
	}, nil
}

// ObjectKey 生成 form-uploads/<uuid><ext>，扩展名取自原文件名并转为小写。
func ObjectKey(fileName string) string {
	return ObjectPrefix + uuid.NewString() + strings.ToLower(filepath.Ext(fileName))
}

// Upload 写入对象并返回公开地址。
func (m *MinIO) Upload(ctx context.Context, f File) (string, error) {
	key := ObjectKey(f.Name)
	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	size := f.Size
	if size <= 0 {
		size = -1
	}
	_, err := m.client.PutObject(ctx, m.bucketName, key, f.Body, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		if IsNoSuchBucket(err) {
			return "", fmt.Errorf("%w: bucket %q missing: %v", ErrUploadFailed, m.bucketName, err)
		}
		return "", fmt.Errorf("%w: put object %q: %v", ErrUploadFailed, key, err)
	}
	return m.PublicURL(key), nil
}

// PublicURL 返回对象经公开端点访问的地址。DNS 风格时 Bucket 作为子域名，否则作为路径首段。
func (m *MinIO) PublicURL(key string) string {
	u := *m.publicBase
	if m.lookup == minio.BucketLookupDNS {
		u.Host = m.bucketName + "." + u.Host
		u.Path = path.Join("/", u.Path, key)
	} else {
		u.Path = path.Join("/", u.Path, m.bucketName, key)
	}
	return u.String()
}

// IsNoSuchBucket 判断错误是否明确表示 Bucket 不存在（S3/MinIO: NoSuchBucket）。
func IsNoSuchBucket(err error) bool {
	if err == nil {
		return false
	}
	var minioErr minio.ErrorResponse
	if errors.As(err, &minioErr) {
		return strings.EqualFold(strings.TrimSpace(minioErr.Code), "NoSuchBucket")
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "nosuchbucket") ||
		strings.Contains(lower, "specified bucket does not exist")
}
