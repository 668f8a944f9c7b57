// Package jobs 注册后台任务：期刊补全的定时任务，以及领域事件的订阅处理.
package jobs

import (
	"context"
	"errors"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/yeisme/pubvault/pkg/cache"
	"github.com/yeisme/pubvault/pkg/configs"
	"github.com/yeisme/pubvault/pkg/internal/storage/mq"
	"github.com/yeisme/pubvault/pkg/internal/types"
	"github.com/yeisme/pubvault/pkg/log"
	"github.com/yeisme/pubvault/pkg/queue"
	"github.com/yeisme/pubvault/pkg/scheduler"
)

// Enricher 期刊补全，由 service.EnrichService 实现.
type Enricher interface {
	Run(ctx context.Context, limit int) (*types.EnrichResult, error)
}

// RegisterCronJobs 按 cfg.EnrichCron 定时补全 revista.
func RegisterCronJobs(sched *scheduler.Scheduler, enrich Enricher, cfg configs.SchedulerConfig) error {
	if sched == nil {
		return errors.New("scheduler is nil")
	}

	if enrich == nil {
		return errors.New("enricher is nil")
	}

	return sched.AddCron(JobEnrichJournals, cfg.EnrichCron, func(ctx context.Context) error {
		_, err := enrich.Run(ctx, cfg.EnrichBatch)
		return err
	})
}

// RegisterSubscribers 在 client 上注册事件处理器，需在 client.Start 之前调用.
//   - 目录导入完成且有新记录时补全期刊（cfg.EnrichOnImport）
//   - 任何变更事件都清空查询缓存，多实例共享消息队列时保持各自的内存缓存一致
func RegisterSubscribers(client *mq.Client, enrich Enricher, c *cache.Cache, cfg configs.EventsConfig, batch int) {
	if client == nil {
		return
	}

	if cfg.EnrichOnImport && enrich != nil {
		client.Handle(HandlerEnrichOnImport, queue.TopicImportCompleted, EnrichOnImport(enrich, batch))
	}

	if c != nil {
		h := InvalidateCache(c)
		for _, topic := range queue.MutationTopics {
			client.Handle(HandlerCacheInvalidate+"."+topic, topic, h)
		}
	}
}

// EnrichOnImport 处理 import.completed. 处理失败只记录日志，不重投.
func EnrichOnImport(enrich Enricher, batch int) message.NoPublishHandlerFunc {
	l := log.Component("jobs")

	return func(msg *message.Message) error {
		env, err := queue.ParseBatch(msg)
		if err != nil {
			l.Warn().Err(err).Str("uuid", msg.UUID).Msg("malformed import event dropped")
			return nil
		}

		if env.Payload.Imported == 0 {
			return nil
		}

		res, err := enrich.Run(msg.Context(), batch)
		if err != nil {
			l.Error().Err(err).Str("source", env.Payload.Source).Msg("enrichment after import failed")
			return nil
		}

		l.Info().
			Str("source", env.Payload.Source).
			Int("scanned", res.Scanned).
			Int("updated", res.Updated).
			Msg("enrichment after import done")

		return nil
	}
}

// InvalidateCache 收到变更事件时清空缓存命名空间.
func InvalidateCache(c *cache.Cache) message.NoPublishHandlerFunc {
	l := log.Component("jobs")

	return func(msg *message.Message) error {
		if err := c.Clear(msg.Context()); err != nil {
			l.Warn().Err(err).Str("topic", msg.Metadata.Get("topic")).Msg("cache invalidation failed")
		}

		return nil
	}
}
