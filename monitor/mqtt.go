package monitor

import (
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Connect dials an MQTT broker and waits for the connection to come up.
// The returned client auto-reconnects on broker restarts.
func Connect(brokerURL, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().AddBroker(brokerURL)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)

	c := mqtt.NewClient(opts)
	if tok := c.Connect(); tok.Wait() && tok.Error() != nil {
		return nil, fmt.Errorf("monitor: mqtt connect %s: %w", brokerURL, tok.Error())
	}

	return c, nil
}
