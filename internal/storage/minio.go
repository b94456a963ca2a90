package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/trackhub/backend-go/internal/config"
	"github.com/trackhub/backend-go/internal/logger"
	"go.uber.org/zap"
)

// ObjectStore 文档对象存储
// 未配置endpoint时client为nil，上层按"存储不可用"处理
type ObjectStore struct {
	client *minio.Client
	bucket string
}

// NewObjectStore 创建对象存储客户端并确保bucket存在
func NewObjectStore(cfg config.ObjectStorageConfig) (*ObjectStore, error) {
	if cfg.Endpoint == "" {
		return &ObjectStore{}, nil
	}
	if cfg.Bucket == "" {
		cfg.Bucket = "documents"
	}

	endpoint := strings.TrimPrefix(cfg.Endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	store := &ObjectStore{client: client, bucket: cfg.Bucket}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := store.ensureBucket(ctx); err != nil {
		return nil, err
	}

	logger.Info("object store initialized",
		zap.String("endpoint", endpoint),
		zap.String("bucket", cfg.Bucket))
	return store, nil
}

func (s *ObjectStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		errStr := err.Error()
		// 并发启动时bucket可能已被其他实例创建
		if strings.Contains(errStr, "BucketAlreadyExists") || strings.Contains(errStr, "BucketAlreadyOwnedByYou") {
			return nil
		}
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Available 对象存储是否已配置
func (s *ObjectStore) Available() bool {
	return s != nil && s.client != nil
}

// DocumentKey 文档对象键：documents/<kbID>/<docID>/<filename>
func DocumentKey(kbID, docID uint, filename string) string {
	return fmt.Sprintf("documents/%d/%d/%s", kbID, docID, filename)
}

// Upload 上传对象
func (s *ObjectStore) Upload(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error {
	if !s.Available() {
		return fmt.Errorf("object store not configured")
	}
	_, err := s.client.PutObject(ctx, s.bucket, objectKey, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("upload object %s failed: %w", objectKey, err)
	}
	return nil
}

// Download 下载对象，调用方负责Close
func (s *ObjectStore) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	if !s.Available() {
		return nil, fmt.Errorf("object store not configured")
	}
	object, err := s.client.GetObject(ctx, s.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("download object %s failed: %w", objectKey, err)
	}
	return object, nil
}

// Delete 删除对象
func (s *ObjectStore) Delete(ctx context.Context, objectKey string) error {
	if !s.Available() {
		return fmt.Errorf("object store not configured")
	}
	return s.client.RemoveObject(ctx, s.bucket, objectKey, minio.RemoveObjectOptions{})
}

// PresignedURL 生成限时下载链接
func (s *ObjectStore) PresignedURL(ctx context.Context, objectKey string, expires time.Duration) (string, error) {
	if !s.Available() {
		return "", fmt.Errorf("object store not configured")
	}
	if expires <= 0 {
		expires = 24 * time.Hour
	}
	url, err := s.client.PresignedGetObject(ctx, s.bucket, objectKey, expires, nil)
	if err != nil {
		return "", err
	}
	return url.String(), nil
}

// HealthCheck 存储健康检查
func (s *ObjectStore) HealthCheck(ctx context.Context) error {
	if !s.Available() {
		return fmt.Errorf("object store not configured")
	}
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}
