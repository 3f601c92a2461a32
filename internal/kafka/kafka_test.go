package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"logsentry/internal/schema"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Enabled {
		t.Error("expected forwarding to be disabled by default")
	}
	if len(cfg.Brokers) == 0 {
		t.Error("expected default brokers")
	}
	if cfg.Topic == "" {
		t.Error("expected default topic")
	}
	if cfg.BatchSize < 1 {
		t.Error("expected batch size >= 1")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "empty brokers",
			modify:  func(c *Config) { c.Brokers = nil },
			wantErr: true,
		},
		{
			name:    "empty topic",
			modify:  func(c *Config) { c.Topic = "" },
			wantErr: true,
		},
		{
			name:    "negative retries",
			modify:  func(c *Config) { c.MaxRetries = -1 },
			wantErr: true,
		},
		{
			name:    "invalid acks",
			modify:  func(c *Config) { c.RequiredAcks = 2 },
			wantErr: true,
		},
		{
			name:    "invalid security protocol",
			modify:  func(c *Config) { c.SecurityProtocol = "INVALID" },
			wantErr: true,
		},
		{
			name: "SASL without credentials",
			modify: func(c *Config) {
				c.SecurityProtocol = "SASL_PLAINTEXT"
				c.SASLMechanism = "PLAIN"
			},
			wantErr: true,
		},
		{
			name: "SASL with credentials",
			modify: func(c *Config) {
				c.SecurityProtocol = "SASL_SSL"
				c.SASLMechanism = "SCRAM-SHA-512"
				c.SASLUsername = "user"
				c.SASLPassword = "pass"
			},
			wantErr: false,
		},
		{
			name: "invalid SASL mechanism",
			modify: func(c *Config) {
				c.SecurityProtocol = "SASL_SSL"
				c.SASLMechanism = "GSSAPI"
				c.SASLUsername = "user"
				c.SASLPassword = "pass"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetCompression(t *testing.T) {
	tests := []struct {
		compression string
		wantNonZero bool
	}{
		{"gzip", true},
		{"snappy", true},
		{"lz4", true},
		{"zstd", true},
		{"none", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.compression, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.CompressionType = tt.compression

			result := cfg.GetCompression()
			if tt.wantNonZero && result == 0 {
				t.Errorf("expected non-zero compression for %s", tt.compression)
			}
			if !tt.wantNonZero && result != 0 {
				t.Errorf("expected zero compression for %s", tt.compression)
			}
		})
	}
}

func TestGetDialer(t *testing.T) {
	cfg := DefaultConfig()

	dialer, err := cfg.GetDialer()
	if err != nil {
		t.Fatalf("GetDialer() error = %v", err)
	}
	if dialer.Timeout != cfg.DialTimeout {
		t.Errorf("expected timeout %v, got %v", cfg.DialTimeout, dialer.Timeout)
	}
	if dialer.TLS != nil || dialer.SASLMechanism != nil {
		t.Error("plaintext dialer should not carry TLS or SASL")
	}
}

func TestGetDialerWithTLSAndSASL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SecurityProtocol = "SASL_SSL"
	cfg.SASLMechanism = "PLAIN"
	cfg.SASLUsername = "user"
	cfg.SASLPassword = "pass"

	dialer, err := cfg.GetDialer()
	if err != nil {
		t.Fatalf("GetDialer() error = %v", err)
	}
	if dialer.TLS == nil {
		t.Error("expected TLS config to be set")
	}
	if dialer.SASLMechanism == nil || dialer.SASLMechanism.Name() != "PLAIN" {
		t.Errorf("expected PLAIN SASL mechanism, got %v", dialer.SASLMechanism)
	}
}

func TestGetDialerMissingCA(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TLSEnabled = true
	cfg.TLSCAFile = "/nonexistent/ca.pem"

	if _, err := cfg.GetDialer(); err == nil {
		t.Error("expected error for missing CA file")
	}
}

type fakeWriter struct {
	mu       sync.Mutex
	failures []error
	calls    int
	written  []kafka.Message
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if len(w.failures) > 0 {
		err := w.failures[0]
		w.failures = w.failures[1:]
		return err
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func getTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testReport() *schema.Report {
	table := schema.NewTable([]schema.Record{
		schema.NewRecord(
			schema.Field{Name: "level", Value: schema.String("ERROR")},
			schema.Field{Name: "user", Value: schema.String("alice")},
		),
	})
	row := table.Rows[0]
	return schema.NewReport(schema.LabelCSV, table, []schema.Anomaly{
		{ID: uuid.New(), RuleID: "builtin-high-severity", Kind: schema.AnomalyRecord, Severity: 7, Record: &row, Description: row.String()},
		{ID: uuid.New(), RuleID: "builtin-consecutive-failed-logins", Kind: schema.AnomalySequence, Severity: 7, Identity: "alice", Description: "User 'alice' had 3 consecutive failed logins at a, b, c"},
	})
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.RetryBackoff = time.Millisecond
	return cfg
}

func TestPublishReport(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, testConfig(), getTestLogger())
	report := testReport()

	if err := p.PublishReport(context.Background(), report); err != nil {
		t.Fatalf("PublishReport() error = %v", err)
	}
	if len(w.written) != 2 {
		t.Fatalf("wrote %d messages, want 2", len(w.written))
	}

	for i, msg := range w.written {
		if string(msg.Key) != report.ID.String() {
			t.Errorf("message %d key = %s, want report id", i, msg.Key)
		}
		var decoded struct {
			ReportID uuid.UUID `json:"report_id"`
			Format   string    `json:"format"`
			Anomaly  struct {
				RuleID      string         `json:"rule_id"`
				Description string         `json:"description"`
				Record      map[string]any `json:"record"`
			} `json:"anomaly"`
		}
		if err := json.Unmarshal(msg.Value, &decoded); err != nil {
			t.Fatalf("message %d is not valid JSON: %v", i, err)
		}
		if decoded.ReportID != report.ID || decoded.Format != schema.LabelCSV {
			t.Errorf("message %d header fields = %+v", i, decoded)
		}
		if decoded.Anomaly.Description != report.Anomalies[i].Description {
			t.Errorf("message %d description = %q", i, decoded.Anomaly.Description)
		}
	}

	m := p.GetMetrics()
	if m.MessagesProduced != 2 {
		t.Errorf("MessagesProduced = %d, want 2", m.MessagesProduced)
	}
}

func TestPublishReport_NoAnomalies(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, testConfig(), getTestLogger())

	report := schema.NewReport(schema.LabelJSON, &schema.Table{}, nil)
	if err := p.PublishReport(context.Background(), report); err != nil {
		t.Fatalf("PublishReport() error = %v", err)
	}
	if w.calls != 0 {
		t.Errorf("expected no writes, got %d", w.calls)
	}
}

func TestPublishReport_InvalidReport(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, testConfig(), getTestLogger())

	report := testReport()
	report.Anomalies[0].Severity = 0
	if err := p.PublishReport(context.Background(), report); err == nil {
		t.Fatal("expected validation error")
	}
	if w.calls != 0 {
		t.Errorf("invalid report should not be written, got %d calls", w.calls)
	}
}

func TestPublishReport_RetriesThenSucceeds(t *testing.T) {
	w := &fakeWriter{failures: []error{errors.New("broker unavailable")}}
	p := newProducer(w, testConfig(), getTestLogger())

	if err := p.PublishReport(context.Background(), testReport()); err != nil {
		t.Fatalf("PublishReport() error = %v", err)
	}
	if w.calls != 2 {
		t.Errorf("calls = %d, want 2", w.calls)
	}
	m := p.GetMetrics()
	if m.Retries != 1 || m.Errors != 1 {
		t.Errorf("metrics = %+v, want 1 retry and 1 error", m)
	}
	if m.LastError == nil {
		t.Error("expected LastError to be recorded")
	}
}

func TestPublishReport_MixedErrorTypes(t *testing.T) {
	w := &fakeWriter{failures: []error{
		errors.New("dial tcp: connection refused"),
		kafka.LeaderNotAvailable,
	}}
	p := newProducer(w, testConfig(), getTestLogger())

	if err := p.PublishReport(context.Background(), testReport()); err != nil {
		t.Fatalf("PublishReport() error = %v", err)
	}
	m := p.GetMetrics()
	if m.Errors != 2 {
		t.Errorf("Errors = %d, want 2", m.Errors)
	}
	if !errors.Is(m.LastError, kafka.LeaderNotAvailable) {
		t.Errorf("LastError = %v, want LeaderNotAvailable", m.LastError)
	}
	if m.LastErrorTime.IsZero() {
		t.Error("expected LastErrorTime to be recorded")
	}
}

func TestPublishReport_GivesUp(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 2
	fail := errors.New("broker unavailable")
	w := &fakeWriter{failures: []error{fail, fail, fail, fail}}
	p := newProducer(w, cfg, getTestLogger())

	err := p.PublishReport(context.Background(), testReport())
	if !errors.Is(err, fail) {
		t.Fatalf("expected wrapped broker error, got %v", err)
	}
	if w.calls != 3 {
		t.Errorf("calls = %d, want 3", w.calls)
	}
}

func TestPublishReport_NonRetryable(t *testing.T) {
	w := &fakeWriter{failures: []error{kafka.MessageSizeTooLarge}}
	p := newProducer(w, testConfig(), getTestLogger())

	err := p.PublishReport(context.Background(), testReport())
	if !errors.Is(err, kafka.MessageSizeTooLarge) {
		t.Fatalf("expected MessageSizeTooLarge, got %v", err)
	}
	if w.calls != 1 {
		t.Errorf("calls = %d, want 1", w.calls)
	}
}

func TestPublishReport_ContextCanceled(t *testing.T) {
	cfg := testConfig()
	cfg.RetryBackoff = time.Hour
	w := &fakeWriter{failures: []error{errors.New("broker unavailable")}}
	p := newProducer(w, cfg, getTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.PublishReport(ctx, testReport()); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestProducerClosed(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, testConfig(), getTestLogger())

	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !w.closed {
		t.Error("expected writer to be closed")
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	err := p.PublishReport(context.Background(), testReport())
	if err != ErrProducerClosed {
		t.Errorf("expected ErrProducerClosed, got %v", err)
	}
}

// Integration test - skipped if Kafka is not available
func TestProducerIntegration(t *testing.T) {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		t.Skip("KAFKA_BROKERS not set, skipping integration test")
	}

	cfg := DefaultConfig()
	cfg.Brokers = []string{brokers}
	cfg.Topic = "logsentry-test"

	producer, err := NewProducer(cfg, getTestLogger())
	if err != nil {
		t.Fatalf("failed to create producer: %v", err)
	}
	defer producer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := producer.PublishReport(ctx, testReport()); err != nil {
		t.Errorf("failed to publish report: %v", err)
	}
}
