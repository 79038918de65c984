package ingest

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/sentinel-iot/sentinel/internal/conf"
	"github.com/sentinel-iot/sentinel/internal/logger"
)

// MessageHandler receives raw messages from the transport.
type MessageHandler func(topic string, payload []byte)

// Transport delivers raw telemetry messages. The MQTT implementation is the
// production transport; tests substitute an in-process fake.
type Transport interface {
	Connect() error
	Subscribe(topic string, handler MessageHandler) error
	Disconnect()
}

// mqttTransport is the paho-backed Transport.
type mqttTransport struct {
	client  mqtt.Client
	qos     byte
	timeout time.Duration
}

// NewMQTTTransport creates a Transport connected per the MQTT settings.
func NewMQTTTransport(settings conf.MQTTSettings) Transport {
	log := logger.WithComponent("mqtt")

	opts := mqtt.NewClientOptions()
	opts.AddBroker(settings.Broker)

	clientID := settings.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("sentinel-%d", time.Now().Unix())
	}
	opts.SetClientID(clientID)

	if settings.Username != "" {
		opts.SetUsername(settings.Username)
		opts.SetPassword(settings.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Error().Err(err).Msg("MQTT connection lost")
	})
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		log.Info().Msg("reconnecting to MQTT broker")
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		log.Info().Str("broker", settings.Broker).Msg("connected to MQTT broker")
	})

	timeout := settings.ConnectTimeout.Std()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &mqttTransport{
		client:  mqtt.NewClient(opts),
		qos:     settings.QoS,
		timeout: timeout,
	}
}

func (t *mqttTransport) Connect() error {
	token := t.client.Connect()
	if !token.WaitTimeout(t.timeout) {
		return fmt.Errorf("connection to MQTT broker timed out after %s", t.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	return nil
}

func (t *mqttTransport) Subscribe(topic string, handler MessageHandler) error {
	token := t.client.Subscribe(topic, t.qos, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(t.timeout) {
		return fmt.Errorf("subscription to topic %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}
	return nil
}

func (t *mqttTransport) Disconnect() {
	t.client.Disconnect(250)
}
