// Package notify delivers user-facing engine events to pluggable sinks.
package notify

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/cloudnest/cloudnest-client/internal/logging"
)

// Level classifies an event for presentation.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Event is a single user-facing notification.
type Event struct {
	ID      string    `json:"id"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Sink receives engine events. Implementations must not block.
type Sink interface {
	Notify(ev Event)
}

// NewEvent builds an event with a fresh id and timestamp.
func NewEvent(level Level, message string) Event {
	return Event{
		ID:      uuid.New().String(),
		Level:   level,
		Message: message,
		At:      time.Now().UTC(),
	}
}

// LogSink writes events to the structured log.
type LogSink struct{}

func (LogSink) Notify(ev Event) {
	fields := []zap.Field{
		zap.String("event_id", ev.ID),
		zap.Time("at", ev.At),
	}
	switch ev.Level {
	case LevelError:
		logging.Error(ev.Message, fields...)
	case LevelWarn:
		logging.Warn(ev.Message, fields...)
	default:
		logging.Info(ev.Message, fields...)
	}
}

// ChannelSink forwards events to a channel, dropping when the receiver
// is not keeping up.
type ChannelSink struct {
	C chan Event
}

// NewChannelSink creates a sink buffered to n events.
func NewChannelSink(n int) *ChannelSink {
	return &ChannelSink{C: make(chan Event, n)}
}

func (s *ChannelSink) Notify(ev Event) {
	select {
	case s.C <- ev:
	default:
	}
}

// NATSSink publishes events as JSON to a NATS subject so other local
// processes can observe engine activity.
type NATSSink struct {
	conn    *nats.Conn
	subject string
}

// NewNATSSink connects to url and publishes to subject.
func NewNATSSink(url, subject string) (*NATSSink, error) {
	opts := []nats.Option{
		nats.Name("cloudnest-client"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logging.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &NATSSink{conn: conn, subject: subject}, nil
}

func (s *NATSSink) Notify(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := s.conn.Publish(s.subject, data); err != nil {
		logging.Warn("nats publish failed", zap.Error(err))
	}
}

// Close drains the underlying connection.
func (s *NATSSink) Close() {
	if s.conn != nil {
		s.conn.Close()
	}
}

// Multi fans one event out to every sink.
type Multi []Sink

func (m Multi) Notify(ev Event) {
	for _, s := range m {
		s.Notify(ev)
	}
}
