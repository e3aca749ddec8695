package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"aquacast-server/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

var ErrNotConnected = errors.New("mqtt client not connected")

// Advisory is the message sent for a forecast that raised alerts.
type Advisory struct {
	RunID      string            `json:"run_id"`
	District   string            `json:"district"`
	Start      string            `json:"start"`
	End        string            `json:"end"`
	RiskStatus string            `json:"risk_status,omitempty"`
	Alerts     []json.RawMessage `json:"alerts"`
	IssuedAt   time.Time         `json:"issued_at"`
}

type AdvisoryPublisher interface {
	Publish(ctx context.Context, a Advisory) error
}

// NopPublisher drops every advisory. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Advisory) error { return nil }

type Publisher struct {
	client    mqtt.Client
	cfg       config.Config
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewPublisher(cfg config.Config, logger *slog.Logger) *Publisher {
	p := &Publisher{
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		p.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	p.client = mqtt.NewClient(opts)
	return p
}

// Connect starts the connection to the broker and waits for it, giving up
// when ctx is done or the publisher is stopped.
func (p *Publisher) Connect(ctx context.Context) error {
	select {
	case <-p.stopCh:
		return fmt.Errorf("publisher stopped")
	default:
	}

	if p.IsConnected() {
		return nil
	}

	token := p.client.Connect()
	if err := p.wait(ctx, token); err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("mqtt connect: %w", err)
		}
		p.client.Disconnect(0)
		return err
	}
	return nil
}

// Publish sends a to <topic>/<district> with QoS 1.
func (p *Publisher) Publish(ctx context.Context, a Advisory) error {
	if !p.IsConnected() {
		return ErrNotConnected
	}

	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode advisory: %w", err)
	}

	topic := AdvisoryTopic(p.cfg.MQTTTopic, a.District)
	token := p.client.Publish(topic, 1, false, payload)
	if err := p.wait(ctx, token); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	p.logger.Debug("published advisory", "topic", topic, "run_id", a.RunID, "alerts", len(a.Alerts))
	return nil
}

// AdvisoryTopic returns the per-district topic under base.
func AdvisoryTopic(base, district string) string {
	return strings.TrimRight(base, "/") + "/" + strings.ToLower(district)
}

func (p *Publisher) wait(ctx context.Context, token mqtt.Token) error {
	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			return token.Error()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopCh:
			return fmt.Errorf("publisher stopped")
		default:
		}
	}
}

func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	connected := p.connected
	p.mu.RUnlock()
	return connected && p.client.IsConnected()
}

// Disconnect stops the publisher and closes the connection. Safe to call
// more than once.
func (p *Publisher) Disconnect() {
	p.stopOnce.Do(func() { close(p.stopCh) })

	if p.client != nil {
		p.client.Disconnect(250)
	}

	p.setConnected(false)
	p.logger.Info("mqtt publisher disconnected")
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}
