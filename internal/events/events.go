package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects published by the auth service.
const (
	UserRegistered  = "auth.user.registered"
	PasswordChanged = "auth.password.changed"
	PasswordReset   = "auth.password.reset"
)

// UserRegisteredEvent is published after a successful registration.
type UserRegisteredEvent struct {
	UserID       int64     `json:"user_id"`
	Email        string    `json:"email"`
	CountryCode  string    `json:"country_code"`
	RegisteredAt time.Time `json:"registered_at"`
}

// PasswordEvent is published after a password change or reset.
type PasswordEvent struct {
	UserID    int64     `json:"user_id"`
	Method    string    `json:"method"`
	ChangedAt time.Time `json:"changed_at"`
}

// Publisher emits domain events.
type Publisher interface {
	Publish(ctx context.Context, subject string, data any) error
	Close() error
}

// NATSPublisher publishes JSON events on a NATS connection.
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects to url.
func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("portal-auth"))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

// Publish marshals data to JSON and publishes it on subject.
func (p *NATSPublisher) Publish(_ context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.conn.Publish(subject, payload)
}

// Connected reports the connection state, for health checks.
func (p *NATSPublisher) Connected() bool {
	return p.conn.IsConnected()
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// NopPublisher discards events. Used when NATS is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }
func (NopPublisher) Close() error                               { return nil }
