package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/xuri/excelize/v2"
)

// ObjectStore minio.Client 满足该接口
type ObjectStore interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Archive 导出文件归档到对象存储
type Archive struct {
	store  ObjectStore
	bucket string
}

// NewArchive store 为nil时归档不可用
func NewArchive(store ObjectStore, bucket string) *Archive {
	return &Archive{store: store, bucket: bucket}
}

// Enabled 是否配置了对象存储
func (a *Archive) Enabled() bool {
	return a != nil && a.store != nil
}

// Put 上传xlsx，返回对象名
// 对象名: order-exports/<userID>/<yyyymmdd>/<filename>
func (a *Archive) Put(ctx context.Context, userID, filename string, f *excelize.File) (string, error) {
	if !a.Enabled() {
		return "", fmt.Errorf("storage not configured")
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return "", fmt.Errorf("write excel: %w", err)
	}

	objectName := path.Join("order-exports", userID, time.Now().Format("20060102"), filename)
	_, err = a.store.PutObject(ctx, a.bucket, objectName, bytes.NewReader(buf.Bytes()), int64(buf.Len()), minio.PutObjectOptions{
		ContentType: ContentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload file: %w", err)
	}
	return objectName, nil
}
