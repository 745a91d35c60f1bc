// Package mqtt announces sensors to Domoticz through MQTT auto-discovery and
// publishes their state.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chrissnell/domonode/internal/constants"
	"github.com/chrissnell/domonode/pkg/config"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	topicRoot      = "domonode"
	publishTimeout = 10 * time.Second
)

// ErrTimeout is returned when the broker does not acknowledge in time.
var ErrTimeout = errors.New("mqtt operation timed out")

// Config holds the broker connection settings.
type Config struct {
	Broker          string
	ClientID        string
	Username        string
	Password        string
	DiscoveryPrefix string
	KeepAlive       time.Duration
	ConnectTimeout  time.Duration
}

// ConfigFromData converts the mqtt config section.
func ConfigFromData(d *config.MQTTData) (Config, error) {
	keepAlive, err := config.ParseDuration(d.KeepAlive, 60*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("keep-alive: %w", err)
	}
	cfg := Config{
		Broker:          d.Broker,
		ClientID:        d.ClientID,
		Username:        d.Username,
		Password:        d.Password,
		DiscoveryPrefix: d.DiscoveryPrefix,
		KeepAlive:       keepAlive,
		ConnectTimeout:  publishTimeout,
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "domonode-" + uuid.NewString()
	}
	if cfg.DiscoveryPrefix == "" {
		cfg.DiscoveryPrefix = config.DefaultDiscoveryPrefix
	}
	return cfg, nil
}

// Entity is one announced value.
type Entity struct {
	Component   string
	ObjectID    string
	Name        string
	UniqueID    string
	DeviceClass string
	Unit        string
	ValueKey    string
}

// EntityFromDevice builds the entity for a device's mqtt section.
func EntityFromDevice(dev config.DeviceData) Entity {
	m := dev.MQTT
	e := Entity{
		Component:   m.Component,
		ObjectID:    m.ObjectID,
		Name:        dev.Name,
		UniqueID:    m.UniqueID,
		DeviceClass: m.DeviceClass,
		Unit:        m.Unit,
		ValueKey:    m.ValueKey,
	}
	if e.Component == "" {
		e.Component = "sensor"
	}
	if e.ObjectID == "" {
		e.ObjectID = dev.Name
	}
	if e.UniqueID == "" {
		e.UniqueID = e.ObjectID
	}
	return e
}

// Publisher owns the broker connection.
type Publisher struct {
	client paho.Client
	cfg    Config
	logger *zap.SugaredLogger
}

// NewPublisher connects to the broker. The availability topic is set to
// online on every (re)connect and to offline by the broker's will.
func NewPublisher(cfg Config, logger *zap.SugaredLogger) (*Publisher, error) {
	p := &Publisher{cfg: cfg, logger: logger.Named("mqtt")}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetKeepAlive(cfg.KeepAlive)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetWill(p.AvailabilityTopic(), "offline", 1, true)
	opts.SetOnConnectHandler(func(c paho.Client) {
		p.logger.Infof("connected to %s", cfg.Broker)
		c.Publish(p.AvailabilityTopic(), 1, true, "online")
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		p.logger.Warnf("connection to %s lost: %v", cfg.Broker, err)
	})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("connect %s: %w", cfg.Broker, ErrTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Broker, err)
	}
	return p, nil
}

// AvailabilityTopic is where online/offline is published for this node.
func (p *Publisher) AvailabilityTopic() string {
	return topicRoot + "/" + p.cfg.ClientID + "/status"
}

// ConfigTopic is the discovery topic of e.
func (p *Publisher) ConfigTopic(e Entity) string {
	return p.cfg.DiscoveryPrefix + "/" + e.Component + "/" + e.ObjectID + "/config"
}

// StateTopic is where the values of e are published.
func (p *Publisher) StateTopic(e Entity) string {
	return topicRoot + "/" + e.ObjectID + "/state"
}

// DiscoveryPayload builds the retained config message of e.
func (p *Publisher) DiscoveryPayload(e Entity) map[string]any {
	payload := map[string]any{
		"name":               e.Name,
		"unique_id":          e.UniqueID,
		"object_id":          e.ObjectID,
		"state_topic":        p.StateTopic(e),
		"availability_topic": p.AvailabilityTopic(),
		"device": map[string]any{
			"identifiers": []string{p.cfg.ClientID},
			"name":        p.cfg.ClientID,
			"model":       "domonode",
			"sw_version":  constants.Version,
		},
	}
	if e.ValueKey != "" {
		payload["value_template"] = "{{ value_json." + e.ValueKey + " }}"
	}
	if e.DeviceClass != "" {
		payload["device_class"] = e.DeviceClass
	}
	if e.Unit != "" {
		payload["unit_of_measurement"] = e.Unit
	}
	return payload
}

// Announce publishes the retained discovery config of e.
func (p *Publisher) Announce(e Entity) error {
	p.logger.Debugf("announcing %s on %s", e.ObjectID, p.ConfigTopic(e))
	return p.publish(p.ConfigTopic(e), true, p.DiscoveryPayload(e))
}

// Withdraw clears the retained discovery config of e.
func (p *Publisher) Withdraw(e Entity) error {
	return p.publish(p.ConfigTopic(e), true, "")
}

// PublishState publishes values as a JSON object on the state topic of e.
func (p *Publisher) PublishState(e Entity, values map[string]float64) error {
	return p.publish(p.StateTopic(e), false, values)
}

func (p *Publisher) publish(topic string, retained bool, payload any) error {
	var body []byte
	switch v := payload.(type) {
	case string:
		body = []byte(v)
	case []byte:
		body = v
	default:
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload for %s: %w", topic, err)
		}
	}

	token := p.client.Publish(topic, 1, retained, body)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: %w", topic, ErrTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close marks the node offline and disconnects.
func (p *Publisher) Close() {
	if err := p.publish(p.AvailabilityTopic(), true, "offline"); err != nil {
		p.logger.Warnf("could not publish offline status: %v", err)
	}
	p.client.Disconnect(250)
}
