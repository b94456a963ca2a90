package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/trackhub/backend-go/internal/logger"
	"go.uber.org/zap"
)

// Producer Kafka生产者
type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

// 文档生命周期事件类型
const (
	EventDocumentUploaded = "document.uploaded"
	EventDocumentIndexed  = "document.indexed"
	EventDocumentFailed   = "document.failed"
	EventDocumentDeleted  = "document.deleted"
)

// DocumentEvent 文档生命周期事件
type DocumentEvent struct {
	Event           string    `json:"event"`
	DocumentID      uint      `json:"document_id"`
	KnowledgeBaseID uint      `json:"knowledge_base_id"`
	WorkspaceID     uint      `json:"workspace_id"`
	UserID          uint      `json:"user_id"`
	FileName        string    `json:"file_name"`
	ChunkCount      int       `json:"chunk_count,omitempty"`
	Error           string    `json:"error,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

var globalProducer *Producer

// InitProducer 初始化Kafka生产者
func InitProducer(brokers []string, topic string) error {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Timeout = 10 * time.Second

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return fmt.Errorf("failed to create kafka producer: %w", err)
	}

	globalProducer = &Producer{
		producer: producer,
		topic:    topic,
	}

	logger.Info("kafka producer initialized", zap.Strings("brokers", brokers), zap.String("topic", topic))
	return nil
}

// GetProducer 获取全局生产者实例
func GetProducer() *Producer {
	return globalProducer
}

// SendEvent 发送文档事件到Kafka
func (p *Producer) SendEvent(event *DocumentEvent) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka producer not initialized")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event failed: %w", err)
	}

	kafkaMsg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(fmt.Sprintf("%d-%d", event.KnowledgeBaseID, event.DocumentID)),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("event"),
				Value: []byte(event.Event),
			},
			{
				Key:   []byte("workspace_id"),
				Value: []byte(fmt.Sprintf("%d", event.WorkspaceID)),
			},
		},
	}

	partition, offset, err := p.producer.SendMessage(kafkaMsg)
	if err != nil {
		logger.Error("failed to send kafka event", zap.Error(err))
		return fmt.Errorf("send event failed: %w", err)
	}

	logger.Debug("kafka event sent",
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
		zap.String("event", event.Event),
		zap.Uint("document_id", event.DocumentID))

	return nil
}

// Close 关闭生产者
func (p *Producer) Close() error {
	if p != nil && p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// PublishDocumentEvent 发送文档事件（便捷方法）
// Kafka未配置时静默跳过，不影响主流程
func PublishDocumentEvent(event string, docID, kbID, wsID, userID uint, fileName string, chunkCount int, eventErr error) {
	producer := GetProducer()
	if producer == nil {
		return
	}

	msg := &DocumentEvent{
		Event:           event,
		DocumentID:      docID,
		KnowledgeBaseID: kbID,
		WorkspaceID:     wsID,
		UserID:          userID,
		FileName:        fileName,
		ChunkCount:      chunkCount,
		Timestamp:       time.Now(),
	}
	if eventErr != nil {
		msg.Error = eventErr.Error()
	}

	if err := producer.SendEvent(msg); err != nil {
		logger.Warn("document event not published", zap.String("event", event), zap.Error(err))
	}
}
