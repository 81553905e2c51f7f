package kafka

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
	"github.com/niksmo/storefront/pkg/schema"
	"github.com/twmb/franz-go/pkg/kgo"
)

var (
	_ port.ClientEventsProducer = (*ClientEventsProducer)(nil)
	_ port.ClientEventsProducer = NopProducer{}
)

// A ClientEventsProducer produces [domain.ClientEvent] keyed by the
// session id, so events of one session stay ordered within a partition.
type ClientEventsProducer struct {
	cl      ProducerClient
	encoder Encoder
}

func NewClientEventsProducer(
	opts ...ProducerOpt,
) (ClientEventsProducer, error) {
	const op = "NewClientEventsProducer"

	var options producerOpts
	for _, opt := range opts {
		if err := opt(&options); err != nil {
			if options.cl != nil {
				options.cl.Close()
			}
			return ClientEventsProducer{}, fmt.Errorf("%s: %w", op, err)
		}
	}
	if options.cl == nil || options.encoder == nil {
		if options.cl != nil {
			options.cl.Close()
		}
		return ClientEventsProducer{}, fmt.Errorf("%s: %w", op, ErrTooFewOpts)
	}
	return ClientEventsProducer{options.cl, options.encoder}, nil
}

func (p ClientEventsProducer) Close() {
	const op = "ClientEventsProducer.Close"
	log := slog.With("op", op)
	log.Info("closing producer...")
	p.cl.Close()
	log.Info("producer is closed")
}

func (p ClientEventsProducer) ProduceEvent(
	ctx context.Context, ev domain.ClientEvent,
) error {
	const op = "ClientEventsProducer.ProduceEvent"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	v, err := p.encoder.Encode(p.toSchema(ev))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	r := &kgo.Record{Key: []byte(ev.SessionID), Value: v}
	if err := p.cl.ProduceSync(ctx, r).FirstErr(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (ClientEventsProducer) toSchema(
	ev domain.ClientEvent,
) schema.ClientEventV1 {
	return schema.ClientEventV1{
		SessionID:  ev.SessionID,
		Action:     string(ev.Action),
		ProductID:  ev.ProductID,
		Query:      ev.Query,
		CategoryID: ev.CategoryID,
		Succeeded:  ev.Succeeded,
		OccurredAt: ev.OccurredAt,
	}
}

// A NopProducer drops every event. It stands in when no brokers are
// configured.
type NopProducer struct{}

func (NopProducer) Close() {}

func (NopProducer) ProduceEvent(context.Context, domain.ClientEvent) error {
	return nil
}
