package rabbitmq

import (
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DeadLetterQueue names the queue rejected interaction messages end up in.
func DeadLetterQueue(queue string) string { return queue + ".dlq" }

// DeclareTopology declares the main queue and its dead-letter queue. The
// publisher and the worker both call it so their arguments always match.
// Failed logs are not retried: a nack without requeue parks them in the DLQ.
func DeclareTopology(ch *amqp.Channel, queue string) error {
	dlq := DeadLetterQueue(queue)

	if _, err := ch.QueueDeclare(
		dlq,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false,
		nil,
	); err != nil {
		return errors.Wrapf(err, "declare %s", dlq)
	}

	// Main queue: dead-letter to DLQ on reject/nack(requeue=false)
	if _, err := ch.QueueDeclare(
		queue,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": dlq,
		},
	); err != nil {
		return errors.Wrapf(err, "declare %s", queue)
	}
	return nil
}
