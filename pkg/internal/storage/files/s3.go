package files

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"time"

	minio "github.com/minio/minio-go/v7"
	"github.com/sony/gobreaker"

	"github.com/yeisme/pubvault/pkg/configs"
	s3c "github.com/yeisme/pubvault/pkg/internal/storage/s3"
)

// S3Backend 对象存储后端，目录是隐式的.
type S3Backend struct {
	client *minio.Client
	bucket string
	cb     *gobreaker.CircuitBreaker
}

// NewS3Backend 创建对象存储后端. cb 为 nil 时不熔断.
func NewS3Backend(client *s3c.Client, bucket string, cb *gobreaker.CircuitBreaker) *S3Backend {
	return &S3Backend{client: client.Client, bucket: bucket, cb: cb}
}

// NewBreaker 按配置创建熔断器，未启用时返回 nil.
func NewBreaker(name string, cfg configs.CircuitBreakerConfig) *gobreaker.CircuitBreaker {
	if !cfg.Enabled {
		return nil
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequestsInHalf,
		Interval:    time.Duration(cfg.IntervalSeconds) * time.Second,
		Timeout:     time.Duration(cfg.TimeoutSeconds) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}

			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRate
		},
		// 对象不存在是正常结果，不计入失败
		IsSuccessful: func(err error) bool {
			return err == nil || IsNotExist(err)
		},
	})
}

func (b *S3Backend) do(fn func() error) error {
	if b.cb == nil {
		return fn()
	}

	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn()
	})

	return err
}

func notFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.StatusCode == http.StatusNotFound || resp.Code == "NoSuchKey"
}

// Exists 实现 Backend.
func (b *S3Backend) Exists(ctx context.Context, name string) (bool, error) {
	key, err := CleanPath(name)
	if err != nil {
		return false, err
	}

	exists := true

	err = b.do(func() error {
		_, err := b.client.StatObject(ctx, b.bucket, key, minio.StatObjectOptions{})
		if err != nil && notFound(err) {
			exists = false
			return nil
		}

		return err
	})
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", key, err)
	}

	return exists, nil
}

// MkdirAll 对象存储没有目录.
func (b *S3Backend) MkdirAll(context.Context, string) error {
	return nil
}

// Open 实现 Backend. GetObject 是惰性的，先 Stat 以便尽早发现不存在.
func (b *S3Backend) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	key, err := CleanPath(name)
	if err != nil {
		return nil, err
	}

	var obj *minio.Object

	err = b.do(func() error {
		o, err := b.client.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
		if err != nil {
			return err
		}

		if _, err := o.Stat(); err != nil {
			_ = o.Close()

			if notFound(err) {
				return &fs.PathError{Op: "open", Path: key, Err: fs.ErrNotExist}
			}

			return err
		}

		obj = o

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}

	return obj, nil
}

// Write 实现 Backend. PutObject 要么完整写入要么不可见.
func (b *S3Backend) Write(ctx context.Context, name string, r io.Reader) error {
	key, err := CleanPath(name)
	if err != nil {
		return err
	}

	opts := minio.PutObjectOptions{ContentType: mime.TypeByExtension(path.Ext(key))}

	return b.do(func() error {
		if _, err := b.client.PutObject(ctx, b.bucket, key, r, -1, opts); err != nil {
			return fmt.Errorf("put %s: %w", key, err)
		}

		return nil
	})
}

// Remove 实现 Backend. S3 删除不存在的对象不报错，所以先 stat.
func (b *S3Backend) Remove(ctx context.Context, name string) error {
	ok, err := b.Exists(ctx, name)
	if err != nil {
		return err
	}

	key, _ := CleanPath(name)
	if !ok {
		return &fs.PathError{Op: "remove", Path: key, Err: fs.ErrNotExist}
	}

	return b.do(func() error {
		if err := b.client.RemoveObject(ctx, b.bucket, key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("remove %s: %w", key, err)
		}

		return nil
	})
}
