package notification

import (
	"context"
	"encoding/json"
	"time"

	"storefront/internal/logger"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// messageWriter is the part of *kafka.Writer the sender uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSender publishes messages to a topic, keyed by recipient. A circuit
// breaker stops hammering an unavailable cluster.
type KafkaSender struct {
	writer  messageWriter
	breaker *gobreaker.CircuitBreaker[struct{}]
}

func NewKafkaSender(brokers []string, topic string) *KafkaSender {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return newKafkaSender(w, 5, 30*time.Second)
}

func newKafkaSender(w messageWriter, maxFailures uint32, openFor time.Duration) *KafkaSender {
	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "notification-kafka",
		MaxRequests: 1,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.L().Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &KafkaSender{writer: w, breaker: breaker}
}

func (s *KafkaSender) Send(ctx context.Context, msg Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	_, err = s.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, s.writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(msg.Recipient),
			Value: value,
			Headers: []kafka.Header{
				{Key: "kind", Value: []byte(msg.Kind)},
				{Key: "message_id", Value: []byte(msg.ID)},
			},
		})
	})
	return err
}

func (s *KafkaSender) Close() error {
	return s.writer.Close()
}
