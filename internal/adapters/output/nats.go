package output

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/ransomradar/internal/domain"
)

const (
	DefaultNATSSubject   = "ransomradar.events"
	natsConnectTimeout   = 5 * time.Second
	natsMaxReconnects    = 10
	natsReconnectWait    = time.Second
	natsFlushTimeout     = 2 * time.Second
	natsClientIdentifier = "ransomradar"
)

// NATSConfig configures the NATS event stream.
type NATSConfig struct {
	URL     string
	Subject string // Events go to <Subject>.<channel>
}

// NATSPublisher publishes every event as JSON to a per-channel subject, for
// example ransomradar.events.signature.
type NATSPublisher struct {
	conn      *nats.Conn
	subject   string
	published atomic.Int64
	failed    atomic.Int64
}

// NewNATSPublisher connects to the server. The client reconnects on its own
// after the initial connection succeeds.
func NewNATSPublisher(config NATSConfig) (*NATSPublisher, error) {
	subject := config.Subject
	if subject == "" {
		subject = DefaultNATSSubject
	}

	conn, err := nats.Connect(config.URL,
		nats.Name(natsClientIdentifier),
		nats.Timeout(natsConnectTimeout),
		nats.MaxReconnects(natsMaxReconnects),
		nats.ReconnectWait(natsReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", config.URL, err)
	}

	log.Info().Str("url", config.URL).Str("subject", subject).Msg("NATS publisher initialized")

	return &NATSPublisher{conn: conn, subject: subject}, nil
}

// SubjectFor returns the subject an event on channel is published to.
func (p *NATSPublisher) SubjectFor(channel domain.Channel) string {
	return p.subject + "." + string(channel)
}

// Send implements ports.Alerter.
func (p *NATSPublisher) Send(ctx context.Context, event *domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(p.SubjectFor(event.Channel), data); err != nil {
		p.failed.Add(1)
		return fmt.Errorf("failed to publish event: %w", err)
	}
	p.published.Add(1)
	return nil
}

func (p *NATSPublisher) Flush() error {
	return p.conn.FlushTimeout(natsFlushTimeout)
}

// Close drains pending publishes before closing the connection.
func (p *NATSPublisher) Close() error {
	log.Info().
		Int64("published", p.published.Load()).
		Int64("failed", p.failed.Load()).
		Msg("Closing NATS publisher")
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return err
	}
	return nil
}

func (p *NATSPublisher) Published() int64 { return p.published.Load() }
func (p *NATSPublisher) Failed() int64    { return p.failed.Load() }
