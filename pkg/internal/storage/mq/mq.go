// Package mq 提供基于 Watermill 库的统一消息队列操作接口。
// 支持发布/订阅模式，并通过工厂模式抽象不同的 MQ 实现。
//
// 支持的 MQ 类型：
//   - memory：进程内 gochannel，单实例部署的默认值
//   - nats：NATS（可选 JetStream）
//   - redis：Redis Pub/Sub
//
// 订阅通过 Client.Handle 注册到 watermill Router，由 Client.Start 启动.
//
// 使用示例：
//
//	client, err := mq.New(ctx, cfg.MQ, metrics.GetRegistry())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.Handle("enrich-after-import", queue.TopicImportCompleted, func(msg *message.Message) error {
//		fmt.Println(string(msg.Payload))
//		return nil
//	})
//	_ = client.Start(ctx)
//
//	_ = queue.Publish(client.Publisher(), queue.TopicImportCompleted, payload)
package mq

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	watermill "github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yeisme/pubvault/pkg/configs"
	nlog "github.com/yeisme/pubvault/pkg/log"
)

// Factory 定义创建 Publisher + Subscriber 的工厂函数.
type Factory func(ctx context.Context, cfg *configs.MQConfig, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error)

var (
	factories = map[configs.MQType]Factory{}
)

// RegisterFactory 注册指定 MQType 的工厂.
func RegisterFactory(t configs.MQType, f Factory) {
	factories[t] = f
}

// GetRegisteredMQTypes 返回已注册的 MQ 类型，按名称排序.
func GetRegisteredMQTypes() []configs.MQType {
	out := make([]configs.MQType, 0, len(factories))
	for t := range factories {
		out = append(out, t)
	}

	slices.Sort(out)

	return out
}

// Client 封装 watermill Publisher、Subscriber 与 Router.
type Client struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	router     *message.Router
	mqType     configs.MQType

	mu       sync.Mutex
	handlers int
	started  bool
}

// New 按配置创建消息队列客户端. registry 非空时为发布、订阅和路由挂载 prometheus 指标.
func New(ctx context.Context, cfg configs.MQConfig, registry prometheus.Registerer) (*Client, error) {
	factory, ok := factories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported mq type: %s", cfg.Type)
	}

	logger := newLogger(nlog.Logger())

	pub, sub, err := factory(ctx, &cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init mq (%s): %w", cfg.Type, err)
	}

	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("create router: %w", err), pub.Close(), sub.Close())
	}

	if registry != nil {
		metricsBuilder := metrics.NewPrometheusMetricsBuilder(registry, "pubvault", "mq")
		metricsBuilder.AddPrometheusRouterMetrics(router)

		if pub, err = metricsBuilder.DecoratePublisher(pub); err != nil {
			return nil, fmt.Errorf("decorate publisher with metrics: %w", err)
		}

		if sub, err = metricsBuilder.DecorateSubscriber(sub); err != nil {
			return nil, fmt.Errorf("decorate subscriber with metrics: %w", err)
		}
	}

	nlog.Logger().Info().Str("type", string(cfg.Type)).Msg("MQ 客户端已初始化")

	return &Client{publisher: pub, subscriber: sub, router: router, mqType: cfg.Type}, nil
}

// Type 返回后端类型.
func (c *Client) Type() configs.MQType {
	return c.mqType
}

// Publisher 返回底层 Publisher，供 queue.Publish 使用.
func (c *Client) Publisher() message.Publisher {
	if c == nil {
		return nil
	}

	return c.publisher
}

// Publish 便捷发布.
func (c *Client) Publish(_ context.Context, topic string, msgs ...*message.Message) error {
	if c == nil || c.publisher == nil {
		return fmt.Errorf("mq publisher not initialized")
	}

	return c.publisher.Publish(topic, msgs...)
}

// Subscribe 直接订阅主题，调用方负责 Ack.
func (c *Client) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if c == nil || c.subscriber == nil {
		return nil, fmt.Errorf("mq subscriber not initialized")
	}

	return c.subscriber.Subscribe(ctx, topic)
}

// Handle 在 Router 上注册消费者. 必须在 Start 之前调用.
func (c *Client) Handle(name, topic string, fn message.NoPublishHandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.router.AddNoPublisherHandler(name, topic, c.subscriber, fn)
	c.handlers++
}

// Start 在后台运行 Router，并等待其就绪. 没有注册消费者时直接返回.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started || c.handlers == 0 {
		c.mu.Unlock()
		return nil
	}

	c.started = true
	c.mu.Unlock()

	errCh := make(chan error, 1)

	go func() {
		if err := c.router.Run(ctx); err != nil {
			nlog.Logger().Error().Err(err).Msg("router run error")
			errCh <- err
		}
	}()

	select {
	case <-c.router.Running():
		return nil
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close 关闭资源.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}

	var errs []error

	if c.router != nil {
		// 停止 router，确保所有 handler 停止运行
		errs = append(errs, c.router.Close())
	}

	if c.publisher != nil {
		errs = append(errs, c.publisher.Close())
	}

	if c.subscriber != nil {
		errs = append(errs, c.subscriber.Close())
	}

	return errors.Join(errs...)
}
