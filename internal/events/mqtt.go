package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tphakala/strainbot/internal/errors"
	"github.com/tphakala/strainbot/internal/logger"
	"github.com/tphakala/strainbot/internal/observability/metrics"
)

// MQTTConfig holds the configuration for the MQTT publisher
type MQTTConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string // topics are <prefix>/events/<type> and <prefix>/status/<section>
	Retain      bool   // retain event messages; status sections are always retained

	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
}

// DefaultMQTTConfig returns an MQTTConfig with reasonable timeouts
func DefaultMQTTConfig() MQTTConfig {
	return MQTTConfig{
		ClientID:          "strainbot",
		TopicPrefix:       "strainbot",
		ConnectTimeout:    30 * time.Second,
		PublishTimeout:    10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
	}
}

// ErrNotConnected is returned by Publish while the broker is unreachable
var ErrNotConnected = errors.NewStd("not connected to MQTT broker")

// MQTTPublisher publishes activity events and status sections to a broker.
// It is an event bus Consumer.
type MQTTPublisher struct {
	config  MQTTConfig
	metrics *metrics.MQTTMetrics

	mu     sync.Mutex
	client mqtt.Client

	// newClient is replaced in tests
	newClient func(*mqtt.ClientOptions) mqtt.Client
}

// NewMQTTPublisher creates a publisher. Call Connect before publishing.
// m may be nil.
func NewMQTTPublisher(config MQTTConfig, m *metrics.MQTTMetrics) *MQTTPublisher {
	def := DefaultMQTTConfig()
	if config.ClientID == "" {
		config.ClientID = def.ClientID
	}
	if config.TopicPrefix == "" {
		config.TopicPrefix = def.TopicPrefix
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = def.ConnectTimeout
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = def.PublishTimeout
	}
	if config.DisconnectTimeout <= 0 {
		config.DisconnectTimeout = def.DisconnectTimeout
	}
	config.TopicPrefix = strings.TrimSuffix(config.TopicPrefix, "/")
	return &MQTTPublisher{
		config:    config,
		metrics:   m,
		newClient: mqtt.NewClient,
	}
}

// Connect resolves the broker host and connects. Paho reconnects on its own
// after a successful first connection.
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, err := url.Parse(p.config.Broker)
	if err != nil || u.Host == "" {
		return p.connError(fmt.Errorf("invalid broker URL %q", p.config.Broker))
	}

	host := u.Hostname()
	if net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			return p.connError(fmt.Errorf("failed to resolve hostname %s: %w", host, err))
		}
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(p.config.Broker)
	opts.SetClientID(p.config.ClientID)
	opts.SetUsername(p.config.Username)
	opts.SetPassword(p.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(p.config.ConnectTimeout)
	opts.SetOnConnectHandler(p.onConnect)
	opts.SetConnectionLostHandler(p.onConnectionLost)
	opts.SetReconnectingHandler(p.onReconnecting)

	p.client = p.newClient(opts)

	token := p.client.Connect()
	if !token.WaitTimeout(p.config.ConnectTimeout) {
		return p.connError(fmt.Errorf("connection timeout after %s", p.config.ConnectTimeout))
	}
	if err := token.Error(); err != nil {
		return p.connError(err)
	}

	if p.metrics != nil {
		p.metrics.UpdateConnectionStatus(true)
	}
	return nil
}

func (p *MQTTPublisher) connError(err error) error {
	if p.metrics != nil {
		p.metrics.IncrementErrors()
	}
	return errors.New(err).
		Component("events").
		Category(errors.CategoryMQTTConnection).
		NetworkContext(p.config.Broker, p.config.ConnectTimeout).
		Build()
}

// Publish sends payload to topic
func (p *MQTTPublisher) Publish(ctx context.Context, topic string, payload []byte, retain bool) error {
	p.mu.Lock()
	client := p.client
	p.mu.Unlock()

	if client == nil || !client.IsConnected() {
		return ErrNotConnected
	}

	start := time.Now()
	token := client.Publish(topic, 0, retain, payload)

	timeout := p.config.PublishTimeout
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		timeout = time.Until(deadline)
	}
	if !token.WaitTimeout(timeout) {
		return p.publishError(topic, fmt.Errorf("publish timeout"))
	}
	if err := token.Error(); err != nil {
		return p.publishError(topic, err)
	}

	if p.metrics != nil {
		p.metrics.RecordDelivered(topicKind(topic), len(payload), time.Since(start))
	}
	getLogger().Trace("published", logger.String("topic", topic), logger.Int("bytes", len(payload)))
	return nil
}

func (p *MQTTPublisher) publishError(topic string, err error) error {
	if p.metrics != nil {
		p.metrics.IncrementErrors()
	}
	return errors.New(err).
		Component("events").
		Category(errors.CategoryMQTTPublish).
		Context("topic", topic).
		Build()
}

// topicKind returns "events" or "status" for metric labels
func topicKind(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) >= 2 {
		return parts[len(parts)-2]
	}
	return "other"
}

// EventTopic returns the topic events of type t are published on
func (p *MQTTPublisher) EventTopic(t Type) string {
	return p.config.TopicPrefix + "/events/" + string(t)
}

// StatusTopic returns the retained topic of a status board section
func (p *MQTTPublisher) StatusTopic(section string) string {
	return p.config.TopicPrefix + "/status/" + section
}

// Name implements Consumer
func (p *MQTTPublisher) Name() string { return "mqtt" }

// Consume implements Consumer by publishing the event as JSON
func (p *MQTTPublisher) Consume(event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.config.PublishTimeout)
	defer cancel()
	return p.Publish(ctx, p.EventTopic(event.Type), payload, p.config.Retain)
}

// PublishSection publishes a rendered status board section as a retained
// message, so late subscribers always see the latest board
func (p *MQTTPublisher) PublishSection(ctx context.Context, section string, body []byte) error {
	return p.Publish(ctx, p.StatusTopic(section), body, true)
}

// IsConnected reports whether the broker connection is up
func (p *MQTTPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.client != nil && p.client.IsConnected()
}

// Disconnect closes the broker connection
func (p *MQTTPublisher) Disconnect() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(uint(p.config.DisconnectTimeout.Milliseconds()))
		if p.metrics != nil {
			p.metrics.UpdateConnectionStatus(false)
		}
	}
}

func (p *MQTTPublisher) onConnect(_ mqtt.Client) {
	getLogger().Info("connected to MQTT broker", logger.String("broker", p.config.Broker))
	if p.metrics != nil {
		p.metrics.UpdateConnectionStatus(true)
	}
}

func (p *MQTTPublisher) onConnectionLost(_ mqtt.Client, err error) {
	getLogger().Warn("connection to MQTT broker lost",
		logger.String("broker", p.config.Broker),
		logger.Error(err))
	if p.metrics != nil {
		p.metrics.UpdateConnectionStatus(false)
		p.metrics.IncrementErrors()
	}
}

func (p *MQTTPublisher) onReconnecting(_ mqtt.Client, _ *mqtt.ClientOptions) {
	getLogger().Debug("reconnecting to MQTT broker", logger.String("broker", p.config.Broker))
	if p.metrics != nil {
		p.metrics.IncrementReconnectAttempts()
	}
}

var _ Consumer = (*MQTTPublisher)(nil)
