package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/ambufleet/dispatch/core/model"
	"github.com/ambufleet/dispatch/infra/logger"
)

// Config defines the connection parameters for the MQTT notifier.
type Config struct {
	Enabled     bool   `json:"enabled"`
	Broker      string `json:"broker"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
	QoS         byte   `json:"qos"`
	TimeoutMS   int    `json:"timeout_ms"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.TopicPrefix == "" {
		c.TopicPrefix = "ambufleet"
	}
	if c.TimeoutMS == 0 {
		c.TimeoutMS = 3000
	}
}

// assignmentAlert is the wire payload pushed to the driver's terminal. The
// terminal turns it into the sound/vibration alert; delivery mechanics
// beyond the broker are not this service's concern.
type assignmentAlert struct {
	BookingID      string    `json:"booking_id"`
	PatientName    string    `json:"patient_name"`
	Pickup         string    `json:"pickup"`
	Destination    string    `json:"destination"`
	RequestedStart time.Time `json:"requested_start"`
	SentAt         time.Time `json:"sent_at"`
}

type pahoClient interface {
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// PahoNotifier publishes new-assignment alerts to per-driver MQTT topics.
type PahoNotifier struct {
	cli     pahoClient
	prefix  string
	qos     byte
	timeout time.Duration
	log     logger.Logger
}

// NewPahoNotifier connects to the broker.
func NewPahoNotifier(cfg Config) (*PahoNotifier, error) {
	cfg.SetDefaults()
	if cfg.Broker == "" {
		return nil, fmt.Errorf("notify: broker is required")
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "ambufleet-notify-" + uuid.NewString()
	}
	log := logger.New("mqtt_notifier")
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true)
	opts.OnConnect = func(paho.Client) {
		log.Infof("MQTT connected")
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &PahoNotifier{
		cli:     c,
		prefix:  cfg.TopicPrefix,
		qos:     cfg.QoS,
		timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond,
		log:     log,
	}, nil
}

// NotifyNewAssignment pushes the alert to the assigned driver's topic.
func (n *PahoNotifier) NotifyNewAssignment(_ context.Context, b model.Booking) error {
	if b.AssignedDriverID == "" {
		return fmt.Errorf("notify: booking %s has no assigned driver", b.ID)
	}
	payload, err := json.Marshal(assignmentAlert{
		BookingID:      b.ID,
		PatientName:    b.PatientName,
		Pickup:         b.Pickup.Address,
		Destination:    b.Destination.Address,
		RequestedStart: b.RequestedStart,
		SentAt:         time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	topic := fmt.Sprintf("%s/driver/%s/assignment", n.prefix, b.AssignedDriverID)
	token := n.cli.Publish(topic, n.qos, false, payload)
	if !token.WaitTimeout(n.timeout) {
		return fmt.Errorf("notify: publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("notify: publish to %s: %w", topic, err)
	}
	n.log.Debugw("assignment alert published", map[string]any{"topic": topic, "booking": b.ID})
	return nil
}

// Close disconnects from the broker.
func (n *PahoNotifier) Close() {
	n.cli.Disconnect(250)
}
