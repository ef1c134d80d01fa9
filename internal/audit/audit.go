package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/JustineRobert/society-community-savings-app-sub001/pkg/logging"
)

const publishTimeout = 5 * time.Second

// Event types emitted on the auth_events topic. auth_failed carries the
// true sub-reason that the HTTP layer deliberately hides from callers.
const (
	EventLogin          = "login"
	EventRefreshRotated = "refresh_rotated"
	EventReuseDetected  = "reuse_detected"
	EventLogout         = "logout"
	EventLogoutAll      = "logout_all"
	EventSessionRevoked = "session_revoked"
	EventAuthFailed     = "auth_failed"
)

type Event struct {
	Type      string    `json:"type"`
	OwnerID   string    `json:"owner_id,omitempty"`
	RecordID  string    `json:"record_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	At        time.Time `json:"at"`
}

// Emitter is the audit sink boundary. Delivery is best-effort; the session
// flow never fails because an event could not be published.
type Emitter interface {
	Emit(ctx context.Context, ev Event)
}

// KafkaEmitter publishes events keyed by owner so one member's trail stays
// ordered within a partition.
type KafkaEmitter struct {
	writer *kafka.Writer
}

func NewKafkaEmitter(brokers []string, topic string) *KafkaEmitter {
	return &KafkaEmitter{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
	}
}

func (e *KafkaEmitter) Emit(ctx context.Context, ev Event) {
	l := logging.FromContext(ctx).With("component", "audit")
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		l.Error("audit_marshal_failed", "type", ev.Type, "error", err)
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(ev.OwnerID),
		Value: data,
	}
	if err := e.writer.WriteMessages(pubCtx, msg); err != nil {
		l.Error("audit_publish_failed", "type", ev.Type, "error", fmt.Sprintf("%v", err))
	}
}

func (e *KafkaEmitter) Close() error {
	return e.writer.Close()
}

// NopEmitter drops events; used in tests and when no brokers are
// configured.
type NopEmitter struct{}

func (NopEmitter) Emit(context.Context, Event) {}
