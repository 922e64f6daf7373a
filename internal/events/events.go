// Package events carries domain events between the web process and the
// janitor, over Kafka or in-process.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"mygizmo/internal/models"
)

type Type string

const (
	ArtifactStored      Type = "artifact.stored"
	AccountDeleted      Type = "account.deleted"
	SubscriptionChanged Type = "subscription.changed"
)

type Event struct {
	Type        Type      `json:"type"`
	AccountID   int64     `json:"account_id"`
	StoredName  string    `json:"stored_name,omitempty"`
	StoredNames []string  `json:"stored_names,omitempty"`
	Tool        string    `json:"tool,omitempty"`
	Status      string    `json:"status,omitempty"`
	At          time.Time `json:"at"`
}

type Handler interface {
	Handle(ctx context.Context, e Event) error
}

type HandlerFunc func(ctx context.Context, e Event) error

func (f HandlerFunc) Handle(ctx context.Context, e Event) error { return f(ctx, e) }

// Fanout hands every event to each of hs in order. All handlers run even
// when one fails; the failures are joined.
func Fanout(hs ...Handler) Handler {
	return HandlerFunc(func(ctx context.Context, e Event) error {
		var errs []error
		for _, h := range hs {
			if err := h.Handle(ctx, e); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events keyed by account id, so all events of one
// account land on the same partition.
type KafkaPublisher struct {
	w messageWriter
}

func NewKafkaPublisher(cfg models.KafkaConfig) *KafkaPublisher {
	return &KafkaPublisher{w: &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Broker),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	const op = "events.KafkaPublisher.Publish"

	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(e.AccountID, 10)),
		Value: value,
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

// InlinePublisher hands events straight to a handler. It is used when no
// broker is configured.
type InlinePublisher struct {
	h Handler
}

func NewInlinePublisher(h Handler) *InlinePublisher {
	return &InlinePublisher{h: h}
}

func (p *InlinePublisher) Publish(ctx context.Context, e Event) error {
	if p.h == nil {
		return nil
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	return p.h.Handle(ctx, e)
}

func (p *InlinePublisher) Close() error { return nil }

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

func NewReader(cfg models.KafkaConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: []string{cfg.Broker},
		Topic:   cfg.Topic,
		GroupID: cfg.GroupID,
	})
}

// Consume feeds every message from r to h until ctx is cancelled or the
// reader is closed. Undecodable messages and handler failures are logged
// and skipped.
func Consume(ctx context.Context, r messageReader, h Handler) {
	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return
			}
			log.Error().Err(err).Msg("error reading event")
			continue
		}

		var e Event
		if err := json.Unmarshal(msg.Value, &e); err != nil {
			log.Warn().Err(err).Int64("offset", msg.Offset).Msg("dropping undecodable event")
			continue
		}
		if err := h.Handle(ctx, e); err != nil {
			log.Error().Err(err).Str("type", string(e.Type)).Int64("account_id", e.AccountID).Msg("error handling event")
		}
	}
}
