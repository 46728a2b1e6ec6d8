package worker

import (
	"context"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/godswillmedia-source/stylesync-pwa/internal/events"
	"github.com/godswillmedia-source/stylesync-pwa/internal/service"
	"github.com/godswillmedia-source/stylesync-pwa/pkg/mq"
)

// Consumer pulls message.stored events and runs the pipeline. Handler
// errors nack with requeue: processing is idempotent end to end, so a
// redelivery can only ever no-op or finish the work.
type Consumer struct {
	cons     *mq.Consumer
	pipeline *service.Pipeline
}

func NewConsumer(cons *mq.Consumer, p *service.Pipeline) *Consumer {
	return &Consumer{cons: cons, pipeline: p}
}

func (c *Consumer) Run(ctx context.Context) error {
	msgs, err := c.cons.Deliveries(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			if err := c.handleDelivery(ctx, d); err != nil {
				log.Printf("[worker] handle error key=%s err=%v -> Nack&requeue", d.RoutingKey, err)
				_ = d.Nack(false, true)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery) error {
	switch d.RoutingKey {
	case events.RKMessageStored:
		ev, err := events.Decode[events.MessageStored](d.Body)
		if err != nil {
			// poison payload; drop rather than requeue forever
			log.Printf("[worker] bad payload on %s: %v", d.RoutingKey, err)
			return nil
		}
		if ev.MessageID == "" {
			log.Printf("[worker] empty message id, dropping")
			return nil
		}
		return c.pipeline.Process(ctx, ev.MessageID)
	default:
		log.Printf("[worker] skip unknown key=%s", d.RoutingKey)
		return nil
	}
}
