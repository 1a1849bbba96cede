package gateway

import "context"

// ObjectInfo 对象元信息
type ObjectInfo struct {
	Bucket      string
	Key         string
	Size        int64
	ContentType string
}

// StorageGateway 对象存储网关，用于读取上传的源媒体
type StorageGateway interface {
	// StatObject 检查对象是否存在
	StatObject(ctx context.Context, bucket, key string) (*ObjectInfo, error)
	// DownloadObject 下载对象到本地路径
	DownloadObject(ctx context.Context, bucket, key, localPath string) error
	// DefaultBucket 未显式指定 bucket 时使用
	DefaultBucket() string
}
