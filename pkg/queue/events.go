package queue

import "github.com/ThreeDotsLabs/watermill/message"

// Publish 封装并发布事件. pub 为 nil 时不发送（未启用事件）.
func Publish[T any](pub message.Publisher, topic string, payload T, opts ...func(*EventHeader)) error {
	if pub == nil {
		return nil
	}

	msg, err := NewWatermillMessage(topic, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(topic, msg)
}

// ParseBatch 解析批处理完成事件.
func ParseBatch(msg *message.Message) (Message[BatchPayload], error) {
	return ParseWatermillMessage[BatchPayload](msg)
}

// ParsePublicationChanged 解析记录变更事件.
func ParsePublicationChanged(msg *message.Message) (Message[PublicationChangedPayload], error) {
	return ParseWatermillMessage[PublicationChangedPayload](msg)
}
