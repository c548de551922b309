package events

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Connect dials the NATS server at the given URL. An empty URL disables
// eventing and returns a nil connection, which the publisher tolerates.
func Connect(url, appName string) (*nats.Conn, error) {
	if url == "" {
		return nil, nil
	}

	conn, err := nats.Connect(url,
		nats.Name(appName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return conn, nil
}
