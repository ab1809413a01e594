// Package mq 提供了与 Kafka 消息队列交互的功能。
package mq

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"doc-chat-go/internal/config"
	"doc-chat-go/pkg/events"
	"doc-chat-go/pkg/log"
)

var producer *kafka.Writer

// InitProducer 初始化 Kafka 生产者。
func InitProducer(cfg config.KafkaConfig) {
	producer = &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
}

// Close 关闭 Kafka 生产者，停机时调用。
func Close() {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		log.Warnf("关闭 Kafka 生产者失败: %v", err)
	}
}

// PublishDocumentIngested 发布一条文档入库事件。
// 事件发布失败只记录日志，不影响已提交的入库结果。
func PublishDocumentIngested(ctx context.Context, event events.DocumentIngestedEvent) error {
	if producer == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return producer.WriteMessages(ctx, kafka.Message{Value: payload})
}
