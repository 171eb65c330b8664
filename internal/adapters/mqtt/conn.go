package mqtt

import (
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// busConn is the slice of the underlying MQTT client the publisher loop
// needs. Carved out so the connection state machine can be tested with a
// fake broker connection.
type busConn interface {
	Publish(topic string, qos byte, retain bool, payload []byte) error
	Disconnect(grace time.Duration)
}

// dialFunc establishes one connection, registering onLost to fire when the
// broker link breaks. It returns an already-connected busConn or an error.
type dialFunc func(onLost func(error)) (busConn, error)

func pahoDialer(cfg Config) dialFunc {
	return func(onLost func(error)) (busConn, error) {
		opts := paho.NewClientOptions()
		opts.AddBroker(cfg.Endpoint)
		opts.SetClientID(cfg.ClientID)
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
			opts.SetPassword(cfg.Password)
		}
		opts.SetKeepAlive(cfg.Keepalive)
		opts.SetCleanSession(true)
		// Reconnects are the publisher's own state machine, not paho's.
		opts.SetAutoReconnect(false)
		opts.SetConnectTimeout(cfg.ConnectTimeout)
		opts.SetBinaryWill(cfg.Offline.Topic, cfg.Offline.Payload, cfg.Offline.QoS, true)
		opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
			onLost(err)
		})

		cli := paho.NewClient(opts)
		if token := cli.Connect(); token.Wait() && token.Error() != nil {
			return nil, token.Error()
		}
		return &pahoConn{cli: cli}, nil
	}
}

type pahoConn struct {
	cli paho.Client
}

func (c *pahoConn) Publish(topic string, qos byte, retain bool, payload []byte) error {
	token := c.cli.Publish(topic, qos, retain, payload)
	token.Wait()
	return token.Error()
}

func (c *pahoConn) Disconnect(grace time.Duration) {
	c.cli.Disconnect(uint(grace.Milliseconds()))
}
