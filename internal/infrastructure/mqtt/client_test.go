package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/nerrad567/gray-logic-rulewalk/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "rulewalk-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

type capturingLogger struct {
	warns  atomic.Int32
	errors atomic.Int32
}

func (l *capturingLogger) Info(string, ...any)  {}
func (l *capturingLogger) Warn(string, ...any)  { l.warns.Add(1) }
func (l *capturingLogger) Error(string, ...any) { l.errors.Add(1) }

func TestConnectDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	client, err := Connect(cfg)
	if !errors.Is(err, ErrDisabled) {
		t.Fatalf("Connect() error = %v, want ErrDisabled", err)
	}
	if client != nil {
		t.Error("Connect() returned a client for disabled config")
	}
}

func TestCloseNil(t *testing.T) {
	var c *Client
	if err := c.Close(); err != nil {
		t.Errorf("Close() on nil client = %v", err)
	}
	if err := newClient(testConfig()).Close(); err != nil {
		t.Errorf("Close() on unconnected client = %v", err)
	}
}

func TestDisconnectedClient(t *testing.T) {
	c := newClient(testConfig())

	if c.IsConnected() {
		t.Error("IsConnected() = true for unconnected client")
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(cancelled) = %v, want context.Canceled", err)
	}
}

func TestPublishValidation(t *testing.T) {
	c := newClient(testConfig())

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"single-level wildcard", "graylogic/core/rulewalk/+/run_now", []byte("x"), 1, ErrInvalidTopic},
		{"multi-level wildcard", "graylogic/#", []byte("x"), 1, ErrInvalidTopic},
		{"qos too high", "graylogic/core/rule/a/run", []byte("x"), 3, ErrInvalidQoS},
		{"payload too large", "graylogic/core/rule/a/run", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"not connected", "graylogic/core/rule/a/run", []byte("x"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := newClient(testConfig())
	handler := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		topic   string
		qos     byte
		handler MessageHandler
		wantErr error
	}{
		{"empty topic", "", 0, handler, ErrInvalidTopic},
		{"qos too high", "graylogic/#", 3, handler, ErrInvalidQoS},
		{"nil handler", "graylogic/#", 0, nil, ErrSubscribeFailed},
		{"not connected", "graylogic/#", 0, handler, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Subscribe(tt.topic, tt.qos, tt.handler)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Subscribe() error = %v, want %v", err, tt.wantErr)
			}
			if c.HasSubscription(tt.topic) {
				t.Errorf("failed subscription to %q is still tracked", tt.topic)
			}
		})
	}
}

func TestDispatchRecoversPanics(t *testing.T) {
	c := newClient(testConfig())
	logger := &capturingLogger{}
	c.SetLogger(logger)

	c.dispatch(func(string, []byte) error { panic("boom") }, "t", nil)
	c.dispatch(func(string, []byte) error { return errors.New("bad payload") }, "t", nil)
	c.dispatch(func(string, []byte) error { return nil }, "t", nil)

	if got := logger.errors.Load(); got != 1 {
		t.Errorf("Error() calls = %d, want 1", got)
	}
	if got := logger.warns.Load(); got != 1 {
		t.Errorf("Warn() calls = %d, want 1", got)
	}
}

func TestSetLoggerNil(t *testing.T) {
	c := newClient(testConfig())
	c.SetLogger(nil)
	// Must not panic with the no-op logger in place.
	c.dispatch(func(string, []byte) error { return errors.New("x") }, "t", nil)
}

func TestBrokerURL(t *testing.T) {
	cfg := testConfig()
	if got := brokerURL(cfg); got != "tcp://127.0.0.1:1883" {
		t.Errorf("brokerURL() = %q", got)
	}
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883
	if got := brokerURL(cfg); got != "ssl://127.0.0.1:8883" {
		t.Errorf("brokerURL(tls) = %q", got)
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "rulewalk"
	cfg.Auth.Password = "secret"
	cfg.Broker.TLS = true

	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)

	if opts.ClientID != "rulewalk-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "rulewalk" || opts.Password != "secret" {
		t.Error("credentials not applied")
	}
	if opts.TLSConfig == nil {
		t.Error("TLSConfig not set with TLS enabled")
	}
	if !opts.AutoReconnect || !opts.CleanSession {
		t.Error("expected auto-reconnect with clean session")
	}
	if !opts.WillEnabled || opts.WillTopic != "graylogic/system/status" || !opts.WillRetained {
		t.Errorf("will = enabled:%v topic:%q retained:%v", opts.WillEnabled, opts.WillTopic, opts.WillRetained)
	}
	if !strings.Contains(string(opts.WillPayload), reasonUnexpected) {
		t.Errorf("will payload = %s", opts.WillPayload)
	}
}

func TestStatusPayload(t *testing.T) {
	var msg statusMessage
	if err := json.Unmarshal(statusPayload("rw-1", statusOffline, reasonShutdown), &msg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if msg.Status != "offline" || msg.ClientID != "rw-1" || msg.Reason != "graceful_shutdown" {
		t.Errorf("payload = %+v", msg)
	}
	if msg.Timestamp == "" {
		t.Error("timestamp missing")
	}

	if strings.Contains(string(statusPayload("rw-1", statusOnline, "")), "reason") {
		t.Error("online payload should omit reason")
	}
}
