// Package service 实现出版物目录的业务逻辑：记录生命周期、目录导入、CSV 导入导出与期刊补全.
//
// 服务只依赖构造时传入的存储、附件管理器和可选组件（缓存、事件发布），不处理 HTTP 细节.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeisme/pubvault/pkg/cache"
	"github.com/yeisme/pubvault/pkg/internal/filename"
	"github.com/yeisme/pubvault/pkg/internal/types"
	nlog "github.com/yeisme/pubvault/pkg/log"
	"github.com/yeisme/pubvault/pkg/queue"
)

// CacheNamespace 列表/详情缓存的命名空间.
const CacheNamespace = "pubs"

// options 各服务共用的可选依赖.
type options struct {
	cache     *cache.Cache
	cacheTTL  time.Duration
	publisher message.Publisher
	logger    *zerolog.Logger
	types     types.TypeSet
	now       func() time.Time
	newPrefix func() string
	workers   int
}

// Option 配置服务.
type Option func(*options)

// WithCache 启用查询缓存，c 为 nil 时不缓存.
func WithCache(c *cache.Cache, ttl time.Duration) Option {
	return func(o *options) {
		o.cache = c
		o.cacheTTL = ttl
	}
}

// WithPublisher 在变更成功后发布领域事件.
func WithPublisher(p message.Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithLogger 指定 logger.
func WithLogger(l *zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTypes 替换出版物类型集合.
func WithTypes(ts types.TypeSet) Option {
	return func(o *options) { o.types = ts }
}

// WithClock 替换当前时间来源（年份默认值）.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithPrefixFunc 替换唯一前缀生成函数.
func WithPrefixFunc(f func() string) Option {
	return func(o *options) { o.newPrefix = f }
}

// WithWorkers 目录导入时并行处理的年份目录数.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

func newOptions(component string, opts []Option) options {
	o := options{
		types:     types.PublicationTypes,
		now:       time.Now,
		newPrefix: filename.NewPrefix,
		workers:   1,
	}

	for _, opt := range opts {
		opt(&o)
	}

	if o.logger == nil {
		o.logger = nlog.Component(component)
	}

	if o.workers < 1 {
		o.workers = 1
	}

	return o
}

// yearOrCurrent 年份为 0 时取当前年份.
func (o *options) yearOrCurrent(year int) int {
	if year == 0 {
		return o.now().Year()
	}

	return year
}

// invalidate 清空查询缓存，失败只记录日志.
func (o *options) invalidate(ctx context.Context) {
	if err := o.cache.Clear(ctx); err != nil {
		o.logger.Warn().Err(err).Msg("cache invalidation failed")
	}
}

// publish 发布事件，失败只记录日志：变更已经生效.
func publish[T any](ctx context.Context, o *options, topic string, payload T) {
	var opts []func(*queue.EventHeader)
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		opts = append(opts, queue.WithTraceID(sc.TraceID().String()))
	}

	if err := queue.Publish(o.publisher, topic, payload, opts...); err != nil {
		o.logger.Warn().Err(err).Str("topic", topic).Msg("publish event failed")
	}
}

// endSpan 记录错误并结束 span.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.End()
}

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", types.ErrValidation, fmt.Sprintf(format, args...))
}

func deref(p *string) string {
	if p == nil {
		return ""
	}

	return *p
}

func optional(v string) *string {
	if v == "" {
		return nil
	}

	return &v
}
