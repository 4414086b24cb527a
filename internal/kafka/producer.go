package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/souldream/billing-service/internal/domain"
	"github.com/souldream/billing-service/pkg/logger"
)

// Топики событий биллинга
const (
	TopicSubscriptionActivated = "subscription_activated"
	TopicSubscriptionCancelled = "subscription_cancelled"
	TopicSubscriptionSuspended = "subscription_suspended"
	TopicPaymentRecorded       = "payment_recorded"
)

// Producer определяет интерфейс для публикации событий биллинга в Kafka.
// Ключ сообщения выбирается так, чтобы события одной сущности попадали
// в одну партицию и сохраняли порядок.
type Producer interface {
	PublishSubscriptionEvent(ctx context.Context, topic string, subscription domain.Subscription) error
	PublishPaymentEvent(ctx context.Context, payment domain.PaymentRecord) error
	Close() error
}

// kafkaProducer реализует интерфейс Producer, используя segmentio/kafka-go
type kafkaProducer struct {
	writer *kafka.Writer
	log    *logger.Logger
}

// NewKafkaProducer создает и настраивает новый продюсер Kafka
func NewKafkaProducer(brokers []string, log *logger.Logger) (Producer, error) {
	if len(brokers) == 0 {
		log.Error("Kafka brokers list is empty in config, cannot create producer")
		return nil, errors.New("kafka brokers are not configured")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	log.Info("Kafka producer initialized: %v", brokers)

	return &kafkaProducer{
		writer: writer,
		log:    log,
	}, nil
}

// PublishSubscriptionEvent публикует событие подписки в указанный топик.
// Ключ сообщения — ID подписки.
func (k *kafkaProducer) PublishSubscriptionEvent(ctx context.Context, topic string, subscription domain.Subscription) error {
	value, err := json.Marshal(subscription)
	if err != nil {
		return fmt.Errorf("kafka: failed to marshal subscription event: %w", err)
	}

	return k.publish(ctx, topic, []byte(subscription.ID.String()), value)
}

// PublishPaymentEvent публикует событие платежа.
// Ключ сообщения — ID пользователя.
func (k *kafkaProducer) PublishPaymentEvent(ctx context.Context, payment domain.PaymentRecord) error {
	value, err := json.Marshal(payment)
	if err != nil {
		return fmt.Errorf("kafka: failed to marshal payment event: %w", err)
	}

	return k.publish(ctx, TopicPaymentRecorded, []byte(payment.UserID.String()), value)
}

func (k *kafkaProducer) publish(ctx context.Context, topic string, key, value []byte) error {
	message := kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
		Time:  time.Now(),
	}

	writeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := k.writer.WriteMessages(writeCtx, message); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			k.log.Error("Kafka write timeout exceeded: topic %s: %v", topic, err)
			return fmt.Errorf("kafka: write timeout: %w", err)
		}
		k.log.Error("Failed to write message to Kafka: topic %s: %v", topic, err)
		return fmt.Errorf("kafka: failed to write message: %w", err)
	}

	k.log.Debug("Published message to Kafka: topic %s, key %s", topic, string(key))
	return nil
}

// Close закрывает соединение Kafka Writer
func (k *kafkaProducer) Close() error {
	k.log.Info("Closing Kafka producer writer...")
	if err := k.writer.Close(); err != nil {
		k.log.Error("Failed to close Kafka writer: %v", err)
		return fmt.Errorf("kafka: failed to close writer: %w", err)
	}

	return nil
}
