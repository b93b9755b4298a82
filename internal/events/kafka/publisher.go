// Package kafka publishes order events with franz-go.
package kafka

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/xenking/storefront/internal/domain/order"
)

// DefaultTopic receives OrderPlaced events when no topic is configured.
const DefaultTopic = "orders.placed"

type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

var _ order.Publisher = (*Publisher)(nil)

// Publisher writes one record per placed order, keyed by order id so that
// events of an order land on one partition.
type Publisher struct {
	client *kgo.Client
	p      producer
	topic  string
}

// NewPublisher creates a client for brokers producing to topic.
func NewPublisher(brokers []string, topic string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("no brokers")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create kafka client")
	}
	return &Publisher{client: client, p: client, topic: topic}, nil
}

// OrderPlaced implements order.Publisher.
func (p *Publisher) OrderPlaced(ctx context.Context, o *order.Order) error {
	rec := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(o.ID),
		Value: encodeOrderPlaced(o),
		Headers: []kgo.RecordHeader{
			{Key: "event", Value: []byte("OrderPlaced")},
		},
	}
	if err := p.p.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return errors.Wrapf(err, "produce order %s", o.ID)
	}
	return nil
}

// Ping checks that at least one broker is reachable.
func (p *Publisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Close flushes buffered records and closes the client.
func (p *Publisher) Close() {
	p.client.Close()
}

func encodeOrderPlaced(o *order.Order) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.Obj(func(e *jx.Encoder) {
		e.Field("orderId", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("userId", func(e *jx.Encoder) { e.Str(o.UserID) })
		e.Field("total", func(e *jx.Encoder) { e.Str(o.Total.StringFixed(2)) })
		e.Field("paymentMethod", func(e *jx.Encoder) { e.Str(o.PaymentMethod) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("source", func(e *jx.Encoder) { e.Str(string(o.Source)) })
		e.Field("createdAt", func(e *jx.Encoder) { e.Str(o.CreatedAt.UTC().Format(time.RFC3339Nano)) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range o.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("productId", func(e *jx.Encoder) { e.Str(it.ProductID) })
						e.Field("name", func(e *jx.Encoder) { e.Str(it.Name) })
						e.Field("offerPrice", func(e *jx.Encoder) { e.Str(it.OfferPrice.StringFixed(2)) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
					})
				}
			})
		})
	})

	out := make([]byte, len(e.Bytes()))
	copy(out, e.Bytes())
	return out
}
