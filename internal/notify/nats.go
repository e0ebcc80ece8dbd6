package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"camwatch/internal/logger"
	"camwatch/internal/model"

	"github.com/nats-io/nats.go"
)

// NATSPublisher fans tag updates out to a NATS subject for other consumers
// (home automation, archivers).
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	logger  *logger.Logger
}

// NewNATSPublisher connects to url and publishes on subject.
func NewNATSPublisher(url, subject string, logger *logger.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("camwatch"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warning("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected to %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSPublisher{conn: conn, subject: subject, logger: logger}, nil
}

// Observe publishes update; errors are logged only.
func (p *NATSPublisher) Observe(update model.TagUpdate) {
	data, err := json.Marshal(update)
	if err != nil {
		p.logger.Error("Failed to marshal tag update: %v", err)
		return
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		p.logger.Error("Failed to publish tag update for %s: %v", update.Filename, err)
	}
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return err
	}
	return nil
}
