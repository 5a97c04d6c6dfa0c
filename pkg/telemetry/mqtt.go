package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// DefaultPublishTimeout bounds how long Publish waits for the broker.
const DefaultPublishTimeout = 5 * time.Second

// ClientOptionsFromURL creates client options and the topic prefix from a
// broker URL. The mqtt scheme maps to tcp; other schemes (ssl, ws, wss)
// are passed through.
func ClientOptionsFromURL(serverURL string) (*paho.ClientOptions, string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, "", err
	}
	if u.Host == "" {
		return nil, "", fmt.Errorf("broker URL %q has no host", serverURL)
	}

	var server string
	if u.Scheme == "" || u.Scheme == "mqtt" {
		server = "tcp"
	} else {
		server = u.Scheme
	}
	server += "://" + u.Host

	topicPrefix := strings.Trim(u.Path, "/")
	if topicPrefix != "" {
		topicPrefix += "/"
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(server).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetConnectRetry(true)
	if u.User != nil {
		opts.SetUsername(u.User.Username())
		if pwd, ok := u.User.Password(); ok {
			opts.SetPassword(pwd)
		}
	}

	if clientID := u.Query().Get("client-id"); clientID != "" {
		opts.SetClientID(clientID)
	}

	return opts, topicPrefix, nil
}

// MQTTOptions configures an MQTTPublisher.
type MQTTOptions struct {
	// Logger is the optional logger. If nil, slog.Default() is used.
	Logger *slog.Logger

	// Timeout bounds each publish. Zero means DefaultPublishTimeout.
	Timeout time.Duration

	// QoS is the MQTT quality of service for every message.
	QoS byte

	// Retain marks messages as retained so new subscribers see the latest
	// sample.
	Retain bool
}

// MQTTPublisher publishes to an MQTT broker.
type MQTTPublisher struct {
	client      paho.Client
	topicPrefix string
	logger      *slog.Logger
	timeout     time.Duration
	qos         byte
	retain      bool
}

// NewMQTTPublisher creates a publisher for brokerURL. It does not connect.
func NewMQTTPublisher(brokerURL string, opts MQTTOptions) (*MQTTPublisher, error) {
	clientOpts, prefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	p := newPublisher(nil, prefix, opts)
	clientOpts.SetOnConnectHandler(func(paho.Client) {
		p.logger.Info("telemetry broker connected")
	})
	clientOpts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		p.logger.Warn("telemetry broker connection lost", "error", err)
	})
	p.client = paho.NewClient(clientOpts)
	return p, nil
}

func newPublisher(client paho.Client, prefix string, opts MQTTOptions) *MQTTPublisher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	return &MQTTPublisher{
		client:      client,
		topicPrefix: prefix,
		logger:      logger,
		timeout:     timeout,
		qos:         opts.QoS,
		retain:      opts.Retain,
	}
}

// TopicPrefix returns the prefix prepended to every topic.
func (p *MQTTPublisher) TopicPrefix() string {
	return p.topicPrefix
}

// Connect connects to the broker, waiting until ctx is done.
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	token := p.client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("connect telemetry broker: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish sends payload to the prefixed topic.
func (p *MQTTPublisher) Publish(topic string, payload []byte) error {
	if !p.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	token := p.client.Publish(p.topicPrefix+topic, p.qos, p.retain, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publish %s: timed out after %v", topic, p.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	p.logger.Debug("telemetry published", "topic", p.topicPrefix+topic, "bytes", len(payload))
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}

var _ Publisher = (*MQTTPublisher)(nil)
