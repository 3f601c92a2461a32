package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"logsentry/internal/schema"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// ErrProducerClosed is returned when publishing after Close.
var ErrProducerClosed = errors.New("kafka: producer is closed")

// messageWriter is the subset of *kafka.Writer the producer needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// AnomalyMessage is the payload of one published anomaly.
type AnomalyMessage struct {
	ReportID    uuid.UUID      `json:"report_id"`
	Format      string         `json:"format"`
	GeneratedAt time.Time      `json:"generated_at"`
	Anomaly     schema.Anomaly `json:"anomaly"`
}

// Producer publishes anomaly reports to a topic.
type Producer struct {
	writer    messageWriter
	config    *Config
	logger    *slog.Logger
	validator *schema.Validator
	metrics   *producerMetrics
	closed    atomic.Bool
}

type producerMetrics struct {
	messagesProduced atomic.Int64
	bytesProduced    atomic.Int64
	errors           atomic.Int64
	retries          atomic.Int64
	lastError        atomic.Pointer[errorAt]
}

// errorAt records a failure and when it happened.
type errorAt struct {
	err error
	at  time.Time
}

// NewProducer creates a producer writing to config.Topic.
func NewProducer(config *Config, logger *slog.Logger) (*Producer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	dialer, err := config.GetDialer()
	if err != nil {
		return nil, err
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    config.BatchSize,
		BatchTimeout: config.BatchTimeout,
		MaxAttempts:  1,
		WriteTimeout: config.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(config.RequiredAcks),
		Compression:  config.GetCompression(),
		Transport: &kafka.Transport{
			Dial: dialer.DialFunc,
			TLS:  dialer.TLS,
			SASL: dialer.SASLMechanism,
		},
		Logger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Debug(fmt.Sprintf(msg, args...), "component", "kafka-writer")
		}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Error(fmt.Sprintf(msg, args...), "component", "kafka-writer")
		}),
	}

	logger.Info("kafka producer initialized",
		"brokers", config.Brokers,
		"topic", config.Topic,
		"compression", config.CompressionType,
	)

	return newProducer(writer, config, logger), nil
}

func newProducer(w messageWriter, config *Config, logger *slog.Logger) *Producer {
	return &Producer{
		writer:    w,
		config:    config,
		logger:    logger,
		validator: schema.NewValidator(),
		metrics:   &producerMetrics{},
	}
}

// PublishReport sends one message per anomaly in report, keyed by the report
// ID so a report's anomalies land on one partition in order. A report without
// anomalies publishes nothing.
func (p *Producer) PublishReport(ctx context.Context, report *schema.Report) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	if report == nil || len(report.Anomalies) == 0 {
		return nil
	}
	if err := p.validator.Validate(report); err != nil {
		return fmt.Errorf("kafka: refusing to publish report %s: %w", report.ID, err)
	}

	key := []byte(report.ID.String())
	now := time.Now()
	messages := make([]kafka.Message, 0, len(report.Anomalies))
	for _, a := range report.Anomalies {
		value, err := json.Marshal(AnomalyMessage{
			ReportID:    report.ID,
			Format:      report.Format,
			GeneratedAt: report.GeneratedAt,
			Anomaly:     a,
		})
		if err != nil {
			return fmt.Errorf("kafka: failed to marshal anomaly %s: %w", a.ID, err)
		}
		messages = append(messages, kafka.Message{
			Key:   key,
			Value: value,
			Time:  now,
			Headers: []kafka.Header{
				{Key: "rule_id", Value: []byte(a.RuleID)},
				{Key: "kind", Value: []byte(a.Kind)},
			},
		})
	}

	return p.produceMessages(ctx, messages...)
}

// produceMessages sends messages, retrying with exponential backoff.
func (p *Producer) produceMessages(ctx context.Context, messages ...kafka.Message) error {
	var lastErr error
	backoff := p.config.RetryBackoff

	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			p.metrics.retries.Add(1)
			p.logger.Debug("retrying kafka produce",
				"attempt", attempt,
				"backoff", backoff,
			)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		err := p.writer.WriteMessages(ctx, messages...)
		if err == nil {
			for _, msg := range messages {
				p.metrics.messagesProduced.Add(1)
				p.metrics.bytesProduced.Add(int64(len(msg.Value) + len(msg.Key)))
			}
			p.logger.Debug("produced messages",
				"count", len(messages),
				"topic", p.config.Topic,
			)
			return nil
		}

		lastErr = err
		p.metrics.errors.Add(1)
		p.metrics.lastError.Store(&errorAt{err: err, at: time.Now()})

		p.logger.Warn("kafka produce failed",
			"error", err,
			"attempt", attempt+1,
			"max_attempts", p.config.MaxRetries+1,
		)

		if isNonRetryableError(err) {
			return fmt.Errorf("kafka: non-retryable error: %w", err)
		}
	}

	return fmt.Errorf("kafka: failed after %d attempts: %w", p.config.MaxRetries+1, lastErr)
}

// GetMetrics returns current producer metrics.
func (p *Producer) GetMetrics() Metrics {
	m := Metrics{
		MessagesProduced: p.metrics.messagesProduced.Load(),
		BytesProduced:    p.metrics.bytesProduced.Load(),
		Errors:           p.metrics.errors.Load(),
		Retries:          p.metrics.retries.Load(),
	}
	if last := p.metrics.lastError.Load(); last != nil {
		m.LastError = last.err
		m.LastErrorTime = last.at
	}
	return m
}

// Close flushes buffered messages and closes the producer.
func (p *Producer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}

	p.logger.Info("closing kafka producer",
		"messages_produced", p.metrics.messagesProduced.Load(),
		"bytes_produced", p.metrics.bytesProduced.Load(),
	)

	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("kafka: failed to close producer: %w", err)
	}
	return nil
}

// isNonRetryableError checks if an error should not be retried.
func isNonRetryableError(err error) bool {
	for _, target := range []error{
		kafka.MessageSizeTooLarge,
		kafka.InvalidTopic,
		kafka.TopicAuthorizationFailed,
		kafka.ClusterAuthorizationFailed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
