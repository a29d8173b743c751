package service

import (
	"context"
	"io"
	"time"

	"music-copilot-go/pkg/storage"
)

// ObjectStore 是服务层使用的对象存储操作。
type ObjectStore interface {
	PutObject(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) error
	RemoveObject(ctx context.Context, objectName string) error
	PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
}

type minioStore struct{}

// NewMinioStore 返回基于 pkg/storage 的对象存储，MinIO 未初始化时返回 nil。
func NewMinioStore() ObjectStore {
	if !storage.Enabled() {
		return nil
	}
	return minioStore{}
}

func (minioStore) PutObject(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) error {
	return storage.PutObject(ctx, objectName, r, size, contentType)
}

func (minioStore) RemoveObject(ctx context.Context, objectName string) error {
	return storage.RemoveObject(ctx, objectName)
}

func (minioStore) PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	return storage.GetPresignedURL(ctx, objectName, expiry)
}
