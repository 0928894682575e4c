package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/streadway/amqp"
	"go.uber.org/multierr"

	"github.com/cjeanneret/svmdrive/internal/debug"
	"github.com/cjeanneret/svmdrive/internal/logic/drive"
)

// ErrDeliveriesClosed is returned by Run when the broker closes the
// delivery channel.
var ErrDeliveriesClosed = errors.New("amqp: delivery channel closed")

// CommandHandler receives decoded commands. Controller.Send fits.
type CommandHandler func(context.Context, drive.Command) error

// Consumer reads drive commands from a fanout exchange through an exclusive
// auto-deleted queue, so every running drive sees every command.
type Consumer struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	deliveries <-chan amqp.Delivery
}

// Dial connects, declares the exchange and binds a private queue to it.
func Dial(url, exchange string) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("amqp channel: %w", err), conn.Close())
	}
	c := &Consumer{conn: conn, ch: ch}

	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		return nil, multierr.Append(fmt.Errorf("amqp exchange %s: %w", exchange, err), c.Close())
	}
	q, err := ch.QueueDeclare("", false, false, true, false, nil)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("amqp queue: %w", err), c.Close())
	}
	if err := ch.QueueBind(q.Name, "", exchange, false, nil); err != nil {
		return nil, multierr.Append(fmt.Errorf("amqp bind %s: %w", q.Name, err), c.Close())
	}
	c.deliveries, err = ch.Consume(q.Name, "", true, false, false, false, nil)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("amqp consume: %w", err), c.Close())
	}
	debug.Info("AMQP consuming commands from exchange %s", exchange)
	return c, nil
}

// Run hands every delivery to h until ctx is done.
func (c *Consumer) Run(ctx context.Context, h CommandHandler) error {
	return consume(ctx, c.deliveries, h)
}

func consume(ctx context.Context, deliveries <-chan amqp.Delivery, h CommandHandler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return ErrDeliveriesClosed
			}
			cmd, err := DecodeCommand(d.ContentType, d.Body)
			if err != nil {
				debug.Error(fmt.Errorf("amqp: %w", err))
				continue
			}
			debug.Verbose("AMQP command: %s", cmd)
			if err := h(ctx, cmd); err != nil {
				debug.Error(fmt.Errorf("amqp: %s rejected: %w", cmd, err))
			}
		}
	}
}

// Close closes the channel and the connection.
func (c *Consumer) Close() error {
	return multierr.Combine(c.ch.Close(), c.conn.Close())
}
