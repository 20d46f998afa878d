package sink

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/segmentio/kafka-go"

	"github.com/ghalamif/raptorlink/internal/domain"
	"github.com/ghalamif/raptorlink/internal/ports"
)

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	// Key is set on every message so one device stays on one partition.
	Key string `yaml:"key"`
}

func (c KafkaConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("%w: kafka brokers are required", domain.ErrInvalidConfig)
	}
	if c.Topic == "" {
		return fmt.Errorf("%w: kafka topic is required", domain.ErrInvalidConfig)
	}
	return nil
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var jsonFast = jsoniter.ConfigFastest

// pointRecord is the JSON value of one Kafka message.
type pointRecord struct {
	Measurement string  `json:"measurement"`
	Field       string  `json:"field"`
	Value       float64 `json:"value"`
	Timestamp   int64   `json:"ts"`
}

// KafkaSink publishes one message per point. The writer is synchronous, so
// WritePoints returns after the brokers acknowledged the batch.
type KafkaSink struct {
	w   messageWriter
	key []byte
}

func NewKafkaSink(cfg KafkaConfig) (*KafkaSink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
	return newKafkaSink(w, cfg.Key), nil
}

func newKafkaSink(w messageWriter, key string) *KafkaSink {
	s := &KafkaSink{w: w}
	if key != "" {
		s.key = []byte(key)
	}
	return s
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) WritePoints(ctx context.Context, points []domain.Point) error {
	if len(points) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(points))
	for _, p := range points {
		value, err := jsonFast.Marshal(pointRecord{
			Measurement: p.Measurement,
			Field:       p.Field,
			Value:       p.Value,
			Timestamp:   p.Timestamp,
		})
		if err != nil {
			return fmt.Errorf("encode point: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   s.key,
			Value: value,
			Time:  time.Unix(0, p.Timestamp),
		})
	}
	if err := s.w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka write %d points: %w", len(points), err)
	}
	return nil
}

func (s *KafkaSink) Close() error { return s.w.Close() }

var _ ports.PointWriter = (*KafkaSink)(nil)
