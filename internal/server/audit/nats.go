package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/iudanet/leadsauth/internal/models"
)

// DefaultSubjectPrefix префикс subject для событий; полный subject: <prefix>.<type>
const DefaultSubjectPrefix = "leadsauth.events"

// NATSPublisher публикует события в NATS (core, без JetStream)
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSPublisher подключается к NATS по url
func NewNATSPublisher(url, prefix string, opts ...nats.Option) (*NATSPublisher, error) {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}

	opts = append([]nats.Option{nats.Name("leadsauth-audit")}, opts...)
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	return &NATSPublisher{conn: nc, prefix: prefix}, nil
}

// Subject returns the subject an event of typ is published to.
func (p *NATSPublisher) Subject(typ models.AuthEventType) string {
	return p.prefix + "." + string(typ)
}

// Publish кодирует событие в JSON и публикует его
func (p *NATSPublisher) Publish(ctx context.Context, event *models.AuthEvent) error {
	if p == nil || p.conn == nil {
		return errors.New("nil publisher")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.conn.Publish(p.Subject(event.Type), data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close сбрасывает буфер и закрывает соединение
func (p *NATSPublisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
