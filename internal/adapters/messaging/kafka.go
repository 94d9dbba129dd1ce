package messaging

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/athebyme/listing-publisher/pkg/interfaces"
	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/google/uuid"
)

// KafkaConfig параметры подключения к Kafka
type KafkaConfig struct {
	Brokers         []string
	GroupID         string
	ClientID        string
	AutoOffsetReset string
	SessionTimeout  time.Duration
	PollTimeout     time.Duration
	CompressionType string
}

// KafkaMessaging реализация MessagingPort с использованием Kafka
type KafkaMessaging struct {
	producer       *kafka.Producer
	consumers      map[string]*subscription
	consumersMutex sync.Mutex
	cfg            KafkaConfig
	logger         interfaces.LoggerPort
	deliveryDone   chan struct{}
}

// subscription активная подписка: consumer и горутина, читающая из него
type subscription struct {
	consumer *kafka.Consumer
	stop     context.CancelFunc
	stopped  chan struct{}
}

func (s *subscription) close() error {
	s.stop()
	<-s.stopped
	return s.consumer.Close()
}

// NewKafkaMessaging создает producer и запускает обработку отчетов о доставке
func NewKafkaMessaging(cfg KafkaConfig, logger interfaces.LoggerPort) (*KafkaMessaging, error) {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 100 * time.Millisecond
	}
	if cfg.CompressionType == "" {
		cfg.CompressionType = "snappy"
	}

	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":            strings.Join(cfg.Brokers, ","),
		"client.id":                    cfg.ClientID,
		"acks":                         "all",
		"enable.idempotence":           true,
		"retries":                      5,
		"retry.backoff.ms":             500,
		"compression.type":             cfg.CompressionType,
		"linger.ms":                    10,
		"message.max.bytes":            1000000,
		"queue.buffering.max.messages": 100000,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Kafka producer: %w", err)
	}

	k := &KafkaMessaging{
		producer:     producer,
		consumers:    make(map[string]*subscription),
		cfg:          cfg,
		logger:       logger.WithField("component", "kafka"),
		deliveryDone: make(chan struct{}),
	}
	go k.handleDeliveryReports()

	return k, nil
}

var _ interfaces.MessagingPort = (*KafkaMessaging)(nil)

// handleDeliveryReports логирует сообщения, которые брокер не принял
func (k *KafkaMessaging) handleDeliveryReports() {
	defer close(k.deliveryDone)
	for ev := range k.producer.Events() {
		switch e := ev.(type) {
		case *kafka.Message:
			if e.TopicPartition.Error != nil {
				k.logger.Error("Сообщение не доставлено в Kafka",
					interfaces.LogField{Key: "topic", Value: topicOf(e)},
					interfaces.LogField{Key: "error", Value: e.TopicPartition.Error.Error()},
				)
			}
		case kafka.Error:
			k.logger.Warn("Ошибка Kafka producer",
				interfaces.LogField{Key: "code", Value: e.Code().String()},
				interfaces.LogField{Key: "error", Value: e.Error()},
			)
		}
	}
}

func topicOf(msg *kafka.Message) string {
	if msg.TopicPartition.Topic == nil {
		return ""
	}
	return *msg.TopicPartition.Topic
}

// toKafkaMessage собирает kafka.Message со служебными заголовками
func toKafkaMessage(topic string, message []byte, key string) *kafka.Message {
	headers := []kafka.Header{
		{Key: "message_id", Value: []byte(uuid.New().String())},
		{Key: "timestamp", Value: []byte(strconv.FormatInt(time.Now().UnixNano(), 10))},
	}

	var keyBytes []byte
	if key != "" {
		keyBytes = []byte(key)
	}

	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          message,
		Key:            keyBytes,
		Headers:        headers,
	}
}

// fromKafkaMessage преобразует kafka.Message в Message
func fromKafkaMessage(msg *kafka.Message) *interfaces.Message {
	headers := make(map[string]string, len(msg.Headers))
	for _, header := range msg.Headers {
		headers[header.Key] = string(header.Value)
	}

	publishedAt := msg.Timestamp
	if ts, err := strconv.ParseInt(headers["timestamp"], 10, 64); err == nil {
		publishedAt = time.Unix(0, ts)
	}

	return &interfaces.Message{
		ID:          headers["message_id"],
		Topic:       topicOf(msg),
		Key:         string(msg.Key),
		Value:       msg.Value,
		Headers:     headers,
		PublishedAt: publishedAt,
	}
}

// Publish публикует сообщение в указанную тему
func (k *KafkaMessaging) Publish(ctx context.Context, topic string, message []byte) error {
	return k.PublishWithKey(ctx, topic, "", message)
}

// PublishWithKey публикует сообщение с ключом; сообщения одного листинга попадают в одну партицию
func (k *KafkaMessaging) PublishWithKey(ctx context.Context, topic string, key string, message []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := k.producer.Produce(toKafkaMessage(topic, message, key), nil); err != nil {
		return fmt.Errorf("ошибка публикации в топик %s: %w", topic, err)
	}
	return nil
}

// Subscribe подписывается на тему и обрабатывает сообщения в отдельной горутине
func (k *KafkaMessaging) Subscribe(ctx context.Context, topic string, handler interfaces.MessageHandler) (func() error, error) {
	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":        strings.Join(k.cfg.Brokers, ","),
		"group.id":                 k.cfg.GroupID,
		"auto.offset.reset":        k.cfg.AutoOffsetReset,
		"enable.auto.commit":       false,
		"session.timeout.ms":       int(k.cfg.SessionTimeout.Milliseconds()),
		"max.poll.interval.ms":     300000,
		"heartbeat.interval.ms":    3000,
		"reconnect.backoff.ms":     50,
		"reconnect.backoff.max.ms": 10000,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Kafka consumer: %w", err)
	}

	if err := consumer.Subscribe(topic, nil); err != nil {
		consumer.Close()
		return nil, fmt.Errorf("ошибка подписки на топик %s: %w", topic, err)
	}

	consumeCtx, stop := context.WithCancel(ctx)
	sub := &subscription{consumer: consumer, stop: stop, stopped: make(chan struct{})}
	go func() {
		defer close(sub.stopped)
		k.consumeMessages(consumeCtx, consumer, topic, handler)
	}()

	handlerID := uuid.New().String()
	k.consumersMutex.Lock()
	k.consumers[handlerID] = sub
	k.consumersMutex.Unlock()

	unsubscribe := func() error {
		k.consumersMutex.Lock()
		sub, ok := k.consumers[handlerID]
		delete(k.consumers, handlerID)
		k.consumersMutex.Unlock()

		if !ok {
			return nil
		}
		return sub.close()
	}

	return unsubscribe, nil
}

// consumeMessages читает сообщения и фиксирует смещение только после успешной обработки
func (k *KafkaMessaging) consumeMessages(ctx context.Context, consumer *kafka.Consumer, topic string, handler interfaces.MessageHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ev := consumer.Poll(int(k.cfg.PollTimeout.Milliseconds()))
		if ev == nil {
			continue
		}

		switch e := ev.(type) {
		case *kafka.Message:
			msg := fromKafkaMessage(e)
			if err := handler(ctx, msg); err != nil {
				k.logger.Error("Ошибка обработки сообщения",
					interfaces.LogField{Key: "topic", Value: topic},
					interfaces.LogField{Key: "message_id", Value: msg.ID},
					interfaces.LogField{Key: "error", Value: err.Error()},
				)
				continue
			}
			if _, err := consumer.CommitMessage(e); err != nil {
				k.logger.Warn("Не удалось зафиксировать смещение",
					interfaces.LogField{Key: "topic", Value: topic},
					interfaces.LogField{Key: "error", Value: err.Error()},
				)
			}

		case kafka.Error:
			k.logger.Warn("Ошибка Kafka consumer",
				interfaces.LogField{Key: "topic", Value: topic},
				interfaces.LogField{Key: "error", Value: e.Error()},
			)
			if e.Code() == kafka.ErrAllBrokersDown {
				return
			}
		}
	}
}

// EnsureTopics создает недостающие темы
func (k *KafkaMessaging) EnsureTopics(ctx context.Context, partitions, replicationFactor int, topics ...string) error {
	adminClient, err := kafka.NewAdminClientFromProducer(k.producer)
	if err != nil {
		return fmt.Errorf("ошибка создания Kafka admin client: %w", err)
	}
	defer adminClient.Close()

	specs := make([]kafka.TopicSpecification, 0, len(topics))
	for _, topic := range topics {
		specs = append(specs, kafka.TopicSpecification{
			Topic:             topic,
			NumPartitions:     partitions,
			ReplicationFactor: replicationFactor,
		})
	}

	results, err := adminClient.CreateTopics(ctx, specs, kafka.SetAdminOperationTimeout(30*time.Second))
	if err != nil {
		return fmt.Errorf("ошибка создания топиков: %w", err)
	}

	for _, r := range results {
		if code := r.Error.Code(); code != kafka.ErrNoError && code != kafka.ErrTopicAlreadyExists {
			return fmt.Errorf("ошибка создания топика %s: %s", r.Topic, r.Error.String())
		}
	}

	return nil
}

// Close закрывает потребителей и дожидается отправки буфера producer
func (k *KafkaMessaging) Close() error {
	k.consumersMutex.Lock()
	subs := k.consumers
	k.consumers = make(map[string]*subscription)
	k.consumersMutex.Unlock()

	for _, sub := range subs {
		if err := sub.close(); err != nil {
			k.logger.Warn("Ошибка закрытия Kafka consumer",
				interfaces.LogField{Key: "error", Value: err.Error()})
		}
	}

	if remaining := k.producer.Flush(15 * 1000); remaining > 0 {
		k.logger.Warn("Не все сообщения отправлены при закрытии",
			interfaces.LogField{Key: "remaining", Value: remaining})
	}
	k.producer.Close()
	<-k.deliveryDone

	return nil
}
