// Package storage 聚合应用使用的存储资源：数据库、附件后端、KV 与消息队列.
//
// Example:
//
//	mgr, err := storage.New(ctx, cfg)
//	if err != nil {
//		// 处理错误
//	}
//	defer mgr.Close()
//
//	st := store.NewPublicationStore(mgr.DB.DB)
//	att := attachment.NewManager(mgr.Files, cfg.Attachments.PublicBase)
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"

	"github.com/yeisme/pubvault/pkg/configs"
	dbc "github.com/yeisme/pubvault/pkg/internal/storage/db"
	"github.com/yeisme/pubvault/pkg/internal/storage/files"
	"github.com/yeisme/pubvault/pkg/internal/storage/kv"
	"github.com/yeisme/pubvault/pkg/internal/storage/mq"
	s3c "github.com/yeisme/pubvault/pkg/internal/storage/s3"
	nlog "github.com/yeisme/pubvault/pkg/log"
	"github.com/yeisme/pubvault/pkg/metrics"
)

// Manager 聚合所有存储资源. S3 只在附件后端为 s3 时创建；MQ 只在事件启用时创建.
type Manager struct {
	DB    *dbc.Client
	Files files.Backend
	S3    *s3c.Client
	KV    kv.KVStore
	MQ    *mq.Client
}

// New 按配置依次初始化各存储资源，任何一步失败都会关闭已打开的资源.
func New(ctx context.Context, cfg *configs.AppConfig) (m *Manager, err error) {
	m = &Manager{}

	defer func() {
		if err != nil {
			err = errors.Join(err, m.Close())
			m = nil
		}
	}()

	if m.DB, err = dbc.New(ctx, cfg.DB, cfg.Metrics.Enabled); err != nil {
		return nil, err
	}

	switch cfg.Attachments.Backend {
	case configs.BackendS3:
		if m.S3, err = s3c.New(ctx, cfg.S3); err != nil {
			return nil, err
		}

		m.Files = files.NewS3Backend(m.S3, m.S3.Bucket(), files.NewBreaker("s3-attachments", cfg.CircuitBreaker))
	default:
		m.Files = files.NewAferoBackend(afero.NewOsFs(), cfg.Attachments.Root)
	}

	if cfg.Cache.Enabled {
		if m.KV, err = kv.New(ctx, &cfg.KV); err != nil {
			return nil, fmt.Errorf("init kv: %w", err)
		}
	}

	if cfg.Events.Enabled {
		var registry prometheus.Registerer
		if cfg.Metrics.Enabled {
			registry = metrics.GetRegistry()
		}

		if m.MQ, err = mq.New(ctx, cfg.MQ, registry); err != nil {
			return nil, err
		}
	}

	l := nlog.Logger().Info().Str("attachments", string(cfg.Attachments.Backend))
	if m.KV != nil {
		l = l.Str("kv", cfg.KV.GetKVType())
	}

	if m.MQ != nil {
		l = l.Str("mq", string(cfg.MQ.GetMQType()))
	}

	l.Msg("storage manager initialized")

	return m, nil
}

// Close 按打开的逆序释放资源.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}

	var errs []error

	if m.MQ != nil {
		errs = append(errs, m.MQ.Close())
	}

	if m.KV != nil {
		errs = append(errs, m.KV.Close())
	}

	if m.S3 != nil {
		errs = append(errs, m.S3.Close())
	}

	if m.DB != nil {
		errs = append(errs, m.DB.Close())
	}

	return errors.Join(errs...)
}

// HealthCheck 检查数据库与对象存储连通性.
func (m *Manager) HealthCheck(ctx context.Context) error {
	var errs []error

	if err := m.DB.HealthCheck(ctx); err != nil {
		errs = append(errs, fmt.Errorf("db: %w", err))
	}

	if m.S3 != nil {
		if err := m.S3.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("s3: %w", err))
		}
	}

	return errors.Join(errs...)
}
