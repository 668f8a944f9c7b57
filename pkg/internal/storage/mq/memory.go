package mq

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/yeisme/pubvault/pkg/configs"
)

// memoryBuffer gochannel 每个订阅者的输出缓冲.
const memoryBuffer = 256

func init() {
	RegisterFactory(configs.MQTypeMemory, memoryFactory)
}

// memoryFactory 进程内 Pub/Sub. 同一个 GoChannel 同时作为 Publisher 和 Subscriber；
// 发布时没有订阅者的消息会被丢弃，重复 Close 是安全的.
func memoryFactory(
	_ context.Context,
	_ *configs.MQConfig,
	logger watermill.LoggerAdapter) (
	message.Publisher, message.Subscriber, error) {
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: memoryBuffer}, logger)

	return ch, ch, nil
}
