// Package audit publishes security relevant room events.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const (
	KindRoomCreated  = "room_created"
	KindJoinRejected = "join_rejected"
	KindViolation    = "abuse_violation"
	KindRoomEvicted  = "room_evicted"
)

type Event struct {
	Kind      string    `json:"kind"`
	Room      string    `json:"room"`
	SessionID string    `json:"session_id,omitempty"`
	Name      string    `json:"name,omitempty"`
	Addr      string    `json:"addr,omitempty"`
	Code      string    `json:"code,omitempty"`
	Time      time.Time `json:"time"`
}

type Sink interface {
	Publish(ctx context.Context, event Event)
	Close() error
}

// LogSink writes audit events to the process log. It is used when no
// brokers are configured.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log.With().Str("component", "audit").Logger()}
}

func (s *LogSink) Publish(_ context.Context, event Event) {
	s.log.Debug().
		Str("kind", event.Kind).
		Str("room", event.Room).
		Str("session_id", event.SessionID).
		Str("code", event.Code).
		Msg("audit event")
}

func (s *LogSink) Close() error {
	return nil
}

// KafkaSink publishes events keyed by room to a Kafka topic. Writes are
// asynchronous so publishing never blocks a room.
type KafkaSink struct {
	writer *kafka.Writer
	log    zerolog.Logger
}

func NewKafkaSink(brokers []string, topic string, log zerolog.Logger) *KafkaSink {
	log = log.With().Str("component", "audit").Str("topic", topic).Logger()

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		Async:                  true,
		AllowAutoTopicCreation: true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Error().Err(err).Int("count", len(messages)).Msg("error writing audit events")
			}
		},
	}

	return &KafkaSink{writer: writer, log: log}
}

func (s *KafkaSink) Publish(ctx context.Context, event Event) {
	msg, err := newMessage(event)
	if err != nil {
		s.log.Error().Err(err).Msg("error marshalling audit event")
		return
	}

	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		s.log.Error().Err(err).Str("kind", event.Kind).Msg("error publishing audit event")
	}
}

// newMessage keys the event by room so one room's events keep their order
// within a partition.
func newMessage(event Event) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(event.Room),
		Value: value,
		Time:  event.Time,
	}, nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// New picks the Kafka sink when brokers are configured.
func New(brokers []string, topic string, log zerolog.Logger) Sink {
	if len(brokers) == 0 {
		return NewLogSink(log)
	}
	return NewKafkaSink(brokers, topic, log)
}
