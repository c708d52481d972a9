package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"

	"surveyflow/internal/config"
	"surveyflow/internal/logger"
	apperrors "surveyflow/pkg/errors"
	"surveyflow/pkg/metrics"
	"surveyflow/pkg/models"
	"surveyflow/pkg/retry"
)

// ProbeFunc checks that at least one broker answers metadata requests.
type ProbeFunc func(ctx context.Context, cfg config.KafkaConfig) error

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type KafkaConnector struct {
	cfg       config.KafkaConfig
	connect   config.ConnectConfig
	probe     ProbeFunc
	newReader func(kafka.ReaderConfig) messageReader
	logger    logger.Logger
	metrics   *metrics.Metrics
}

type Option func(*KafkaConnector)

func WithProbe(probe ProbeFunc) Option {
	return func(c *KafkaConnector) {
		c.probe = probe
	}
}

func withReaderFactory(f func(kafka.ReaderConfig) messageReader) Option {
	return func(c *KafkaConnector) {
		c.newReader = f
	}
}

func NewKafkaConnector(cfg config.BrokerConfig, log logger.Logger, m *metrics.Metrics, opts ...Option) (*KafkaConnector, error) {
	if cfg.Type != "kafka" {
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}

	c := &KafkaConnector{
		cfg:     cfg.Kafka,
		connect: cfg.Connect,
		probe:   DialProbe,
		newReader: func(rc kafka.ReaderConfig) messageReader {
			return kafka.NewReader(rc)
		},
		logger:  log,
		metrics: m,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Connect probes the brokers with a fixed delay between attempts and opens a group reader
// positioned at the earliest offset when the group has no committed offset yet.
func (c *KafkaConnector) Connect(ctx context.Context) (Connection, error) {
	attempts := 0
	policy := retry.FixedPolicy(c.connect.MaxAttempts, c.connect.RetryDelay)

	err := retry.RetryWithCallback(ctx, policy, func() error {
		attempts++
		c.metrics.IncConnectAttempts()
		return c.probe(ctx, c.cfg)
	}, func(attempt int, err error, nextDelay time.Duration) {
		c.logger.Warnw("Kafka broker not available, retrying",
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"next_delay", nextDelay,
			"brokers", c.cfg.Brokers,
			"error", err,
		)
	})
	if err != nil {
		return nil, &ConnectionError{
			Brokers:  c.cfg.Brokers,
			Topic:    c.cfg.Topic,
			Attempts: attempts,
			Err:      err,
		}
	}

	c.logger.Infow("Creating Kafka reader",
		"topic", c.cfg.Topic,
		"brokers", c.cfg.Brokers,
		"group_id", c.cfg.GroupID,
		"attempts", attempts,
	)

	reader := c.newReader(kafka.ReaderConfig{
		Brokers:        c.cfg.Brokers,
		GroupID:        c.cfg.GroupID,
		Topic:          c.cfg.Topic,
		MinBytes:       c.cfg.MinBytes,
		MaxBytes:       c.cfg.MaxBytes,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: c.cfg.CommitInterval,
		Dialer:         &kafka.Dialer{Timeout: c.cfg.DialTimeout, DualStack: true},
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			c.logger.Warnf("kafka reader: "+msg, args...)
		}),
	})

	return &kafkaConnection{
		reader:  reader,
		topic:   c.cfg.Topic,
		metrics: c.metrics,
	}, nil
}

// DialProbe dials each broker in turn and requests cluster metadata.
// A topic that does not exist yet is not an error.
func DialProbe(ctx context.Context, cfg config.KafkaConfig) error {
	dialer := &kafka.Dialer{Timeout: cfg.DialTimeout, DualStack: true}

	if len(cfg.Brokers) == 0 {
		return retry.NewFatalError(errors.New("no brokers configured"))
	}

	var lastErr error
	for _, addr := range cfg.Brokers {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		_, err = conn.Brokers()
		_ = conn.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	return retry.NewRetryableError(fmt.Errorf("no brokers available: %w", lastErr))
}

type kafkaConnection struct {
	reader  messageReader
	topic   string
	metrics *metrics.Metrics
}

// NextMessage reads the next delivery. Offsets are committed by the reader on its
// commit interval, independent of what the caller does with the message.
func (c *kafkaConnection) NextMessage(ctx context.Context) (models.RawMessage, error) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		return models.RawMessage{}, fmt.Errorf("failed to read kafka message: %w", err)
	}

	c.metrics.IncKafkaMessagesRead(m.Topic, len(m.Value))

	raw := models.RawMessage{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       string(m.Key),
		Time:      m.Time,
		Headers:   headerMap(m.Headers),
	}

	fields, err := DecodePayload(m.Value)
	if err != nil {
		return raw, apperrors.Wrap(fmt.Errorf("%w at %s: %v", ErrMalformedMessage, raw.IdempotencyKey(), err), apperrors.ErrValidation)
	}
	raw.Fields = fields

	return raw, nil
}

func (c *kafkaConnection) Close() error {
	return c.reader.Close()
}

// DecodePayload decodes a single JSON object, keeping numbers as json.Number.
func DecodePayload(payload []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after json object")
	}

	fields, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("payload is %T, want a json object", v)
	}
	return fields, nil
}

func headerMap(headers []kafka.Header) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for _, h := range headers {
		out[h.Key] = string(h.Value)
	}
	return out
}
