// Package resolveevents publishes one Kafka message per resolved search.
package resolveevents

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/geodata-search/internal/core/observability"
	"github.com/mohammed-shakir/geodata-search/internal/search"
)

type Event struct {
	Provider  string      `json:"provider"`
	Key       string      `json:"key"`
	Tier      search.Tier `json:"tier"`
	Items     int         `json:"items"`
	Truncated bool        `json:"truncated"`
	Signal    string      `json:"signal,omitempty"`
	TS        time.Time   `json:"ts"`
}

// FromStatus builds the event for a search that has already resolved.
func FromStatus(key string, st search.Status, items int) Event {
	return Event{
		Provider:  st.Provider,
		Key:       key,
		Tier:      st.ResolvedTier,
		Items:     items,
		Truncated: st.Truncated,
		Signal:    st.Signal,
		TS:        time.Now().UTC(),
	}
}

type Publisher struct {
	topic   string
	events  chan Event
	prod    sarama.AsyncProducer
	log     *slog.Logger
	stopped chan struct{}
}

func NewPublisher(brokers []string, topic string, queueSize int, logger *slog.Logger) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("resolveevents: create async producer: %w", err)
	}
	return NewWithProducer(prod, topic, queueSize, logger), nil
}

// NewWithProducer starts a publisher on an existing producer, which it owns
// from then on.
func NewWithProducer(prod sarama.AsyncProducer, topic string, queueSize int, logger *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Publisher{
		topic:   topic,
		events:  make(chan Event, queueSize),
		prod:    prod,
		log:     logger,
		stopped: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				p.log.Error("resolveevents: marshal", "err", err)
				continue
			}
			p.prod.Input() <- &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(ev.Key),
				Value: sarama.ByteEncoder(b),
			}
		}
	}()

	go func() {
		for perr := range p.prod.Errors() {
			if perr != nil {
				observability.IncEvent("error")
				p.log.Warn("resolveevents: producer error", "err", perr.Err)
			}
		}
	}()

	return p
}

// Publish enqueues ev without blocking; a full queue drops the event.
func (p *Publisher) Publish(ev Event) {
	select {
	case p.events <- ev:
		observability.IncEvent("enqueued")
	default:
		observability.IncEvent("dropped")
	}
}

func (p *Publisher) Close() error {
	close(p.events)
	<-p.stopped

	if err := p.prod.Close(); err != nil {
		return fmt.Errorf("resolveevents: close producer: %w", err)
	}
	return nil
}
