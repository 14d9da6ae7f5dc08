package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"cloudretail/internal/pkg/mq"
	"cloudretail/internal/service/order/domain"
	"cloudretail/internal/service/order/domain/port"
)

// eventEnvelope 是写入 kafka 的消息体
type eventEnvelope struct {
	Type       string         `json:"type"`
	OrderID    string         `json:"orderId"`
	UserID     string         `json:"userId"`
	OccurredAt time.Time      `json:"occurredAt"`
	Detail     map[string]any `json:"detail,omitempty"`
}

func newEnvelope(evt domain.Event) eventEnvelope {
	return eventEnvelope{
		Type:       evt.Kind.String(),
		OrderID:    evt.OrderID,
		UserID:     evt.UserID,
		OccurredAt: evt.OccurredAt,
		Detail:     evt.Detail,
	}
}

// KafkaEventSink 实现了 port.EventSink，按订单号分区保证同一订单的事件有序。
type KafkaEventSink struct {
	writer *kafka.Writer
}

var _ port.EventSink = (*KafkaEventSink)(nil)

func NewKafkaEventSink(writer *kafka.Writer) *KafkaEventSink {
	return &KafkaEventSink{writer: writer}
}

func (s *KafkaEventSink) Emit(ctx context.Context, topic string, evt domain.Event) error {
	value, err := json.Marshal(newEnvelope(evt))
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", evt.Kind, err)
	}
	// 调用通用的 mq.ProduceMessage，它会自动处理追踪上下文注入
	return mq.ProduceMessage(ctx, s.writer, topic, []byte(evt.OrderID), value)
}

// Close 关闭底层的Kafka writer，等待异步批次发送完毕。
func (s *KafkaEventSink) Close() error {
	return s.writer.Close()
}
