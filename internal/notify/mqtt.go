// Package notify mirrors panel change signals onto an MQTT broker so that
// other consumers (dashboards, home automation) can follow the panel.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lightdeck/internal/config"
	"github.com/dokzlo13/lightdeck/internal/eventbus"
)

const (
	connectTimeout    = 10 * time.Second
	publishTimeout    = 5 * time.Second
	disconnectQuiesce = 1000
)

// publisher is the part of the paho client the publisher needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
}

// MQTTPublisher forwards bus events to <prefix>/fixtures and <prefix>/groups
// and keeps a retained <prefix>/state of online/offline.
type MQTTPublisher struct {
	client pahomqtt.Client
	pub    publisher
	prefix string
}

// NewMQTTPublisher connects to the broker.
func NewMQTTPublisher(cfg config.MQTTConfig) (*MQTTPublisher, error) {
	p := &MQTTPublisher{prefix: cfg.TopicPrefix}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(p.topic("state"), "offline", 1, true).
		SetOnConnectHandler(func(_ pahomqtt.Client) {
			log.Info().Str("broker", cfg.Broker).Msg("MQTT connected")
			p.publishState("online")
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			log.Warn().Err(err).Msg("MQTT connection lost")
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	p.client = client
	p.pub = client

	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return p, nil
}

func (p *MQTTPublisher) topic(name string) string {
	return p.prefix + "/" + name
}

// Subscribe registers the publisher on the bus.
func (p *MQTTPublisher) Subscribe(bus *eventbus.Bus) {
	bus.Subscribe(eventbus.EventFixturesChanged, p.Handle)
	bus.Subscribe(eventbus.EventGroupsChanged, p.Handle)
	log.Info().Str("prefix", p.prefix).Msg("MQTT publisher subscribed")
}

// Handle publishes one event.
func (p *MQTTPublisher) Handle(event eventbus.Event) {
	var topic string
	switch event.Type {
	case eventbus.EventFixturesChanged:
		topic = p.topic("fixtures")
	case eventbus.EventGroupsChanged:
		topic = p.topic("groups")
	default:
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("type", string(event.Type)).Msg("Failed to marshal MQTT event")
		return
	}
	p.publish(topic, payload, false)
}

func (p *MQTTPublisher) publishState(state string) {
	p.publish(p.topic("state"), []byte(state), true)
}

func (p *MQTTPublisher) publish(topic string, payload []byte, retained bool) {
	token := p.pub.Publish(topic, 0, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		log.Warn().Str("topic", topic).Msg("MQTT publish timed out")
		return
	}
	if err := token.Error(); err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("MQTT publish failed")
	}
}

// Stop publishes the offline state and disconnects.
func (p *MQTTPublisher) Stop() {
	p.publishState("offline")
	if p.client != nil {
		p.client.Disconnect(disconnectQuiesce)
	}
	log.Info().Msg("MQTT publisher stopped")
}
