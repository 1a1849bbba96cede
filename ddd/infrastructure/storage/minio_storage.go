package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/minio/minio-go/v7"

	"lingo-service/ddd/domain/gateway"
	"lingo-service/pkg/logger"
)

// ErrObjectNotFound 对象不存在
var ErrObjectNotFound = errors.New("object not found")

// MinioStorage MinIO存储实现，读取上传到对象存储的源媒体
type MinioStorage struct {
	client *minio.Client
	bucket string
}

// NewMinioStorage 创建MinIO存储实例
func NewMinioStorage(client *minio.Client, bucket string) *MinioStorage {
	return &MinioStorage{client: client, bucket: bucket}
}

var _ gateway.StorageGateway = (*MinioStorage)(nil)

func (s *MinioStorage) DefaultBucket() string { return s.bucket }

// StatObject 检查对象是否存在
func (s *MinioStorage) StatObject(ctx context.Context, bucket, key string) (*gateway.ObjectInfo, error) {
	if bucket == "" {
		bucket = s.bucket
	}
	info, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%s/%s: %w", bucket, key, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("stat object %s/%s: %w", bucket, key, err)
	}
	return &gateway.ObjectInfo{
		Bucket:      bucket,
		Key:         key,
		Size:        info.Size,
		ContentType: info.ContentType,
	}, nil
}

// DownloadObject 从MinIO下载文件到本地路径
func (s *MinioStorage) DownloadObject(ctx context.Context, bucket, key, localPath string) error {
	if bucket == "" {
		bucket = s.bucket
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("create local directory failed: %w", err)
	}

	if err := s.client.FGetObject(ctx, bucket, key, localPath, minio.GetObjectOptions{}); err != nil {
		logger.Error("Failed to download object from MinIO", map[string]interface{}{
			"bucket":     bucket,
			"object_key": key,
			"error":      err.Error(),
		})
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return fmt.Errorf("%s/%s: %w", bucket, key, ErrObjectNotFound)
		}
		return fmt.Errorf("download object from minio failed: %w", err)
	}

	logger.Info("Object downloaded", map[string]interface{}{
		"bucket":     bucket,
		"object_key": key,
		"local_path": localPath,
	})
	return nil
}
