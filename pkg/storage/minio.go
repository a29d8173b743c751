// Package storage 提供了与对象存储服务（MinIO）交互的功能。
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"music-copilot-go/internal/config"
	"music-copilot-go/pkg/log"
)

// MinioClient 是一个全局的 MinIO 客户端实例。
var MinioClient *minio.Client

var bucketName string

// InitMinIO 初始化 MinIO 客户端并确保指定的存储桶存在。
func InitMinIO(cfg config.MinIOConfig) {
	var err error

	MinioClient, err = minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		log.Fatal("初始化 MinIO 客户端失败", err)
	}
	bucketName = cfg.BucketName
	log.Info("MinIO 客户端初始化成功")

	ctx := context.Background()
	exists, err := MinioClient.BucketExists(ctx, bucketName)
	if err != nil {
		log.Fatal("检查 MinIO 存储桶失败", err)
	}
	if exists {
		log.Infof("存储桶 '%s' 已存在", bucketName)
		return
	}
	log.Infof("存储桶 '%s' 不存在，正在创建...", bucketName)
	if err := MinioClient.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
		log.Fatal("创建 MinIO 存储桶失败", err)
	}
	log.Infof("存储桶 '%s' 创建成功", bucketName)
}

// Enabled 判断对象存储是否已初始化。
func Enabled() bool {
	return MinioClient != nil
}

var errNotInitialized = errors.New("minio client is not initialized")

// PutObject 上传对象，size 未知时传 -1。
func PutObject(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	if !Enabled() {
		return errNotInitialized
	}
	_, err := MinioClient.PutObject(ctx, bucketName, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

// GetObject 读取对象内容，调用方负责关闭。
func GetObject(ctx context.Context, objectName string) (io.ReadCloser, error) {
	if !Enabled() {
		return nil, errNotInitialized
	}
	obj, err := MinioClient.GetObject(ctx, bucketName, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	// GetObject 是惰性的，Stat 一次以便对象不存在时立即返回错误
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, err
	}
	return obj, nil
}

// RemoveObject 删除对象。
func RemoveObject(ctx context.Context, objectName string) error {
	if !Enabled() {
		return errNotInitialized
	}
	return MinioClient.RemoveObject(ctx, bucketName, objectName, minio.RemoveObjectOptions{})
}

// GetPresignedURL 生成对象的临时下载地址。
func GetPresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	if !Enabled() {
		return "", errNotInitialized
	}
	presignedURL, err := MinioClient.PresignedGetObject(ctx, bucketName, objectName, expiry, nil)
	if err != nil {
		log.Errorf("Error generating presigned URL: %s", err)
		return "", err
	}
	return presignedURL.String(), nil
}
