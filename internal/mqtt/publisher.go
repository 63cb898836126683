// Package mqtt mirrors listen events onto an MQTT topic.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	log "log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"lark/internal/bus"
	"lark/internal/listen"
)

type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
}

// client is the part of mqtt.Client the publisher uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

type Publisher struct {
	client client
	topic  string
}

func Connect(cfg Config) (*Publisher, error) {
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("lark-%d", time.Now().UnixNano())
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info("Connected to MQTT broker", "broker", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("MQTT connection lost", "err", err)
	})

	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to mqtt broker: %w", token.Error())
	}

	return newPublisher(c, cfg.Topic), nil
}

func newPublisher(c client, topic string) *Publisher {
	if topic == "" {
		topic = "lark/events"
	}
	return &Publisher{client: c, topic: topic}
}

// Publish sends ev as a bus message with QoS 0, not retained.
func (p *Publisher) Publish(ctx context.Context, ev listen.Event) error {
	payload, err := json.Marshal(bus.FromEvent(ev))
	if err != nil {
		return err
	}

	token := p.client.Publish(p.topic, 0, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	return nil
}

func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
