package queue

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// SQSQueue stores job ids as SQS messages. A received message stays
// invisible to other consumers for the visibility timeout and is deleted on
// Ack.
type SQSQueue struct {
	client     sqsAPI
	queueURL   string
	waitTime   int32
	visTimeout int32
	log        zerolog.Logger
}

// NewSQSQueue creates an SQSQueue targeting the given queue URL.
func NewSQSQueue(client sqsAPI, cfg Config, log zerolog.Logger) *SQSQueue {
	cfg = cfg.withDefaults()
	return &SQSQueue{
		client:     client,
		queueURL:   cfg.SQSQueueURL,
		waitTime:   cfg.SQSWaitTime,
		visTimeout: cfg.SQSVisTimeout,
		log:        log.With().Str("component", "sqs_queue").Logger(),
	}
}

// Enqueue serializes the id into a message body and sends it via SQS
// SendMessage.
func (q *SQSQueue) Enqueue(ctx context.Context, id string) error {
	body, err := NewMessage(id).encode()
	if err != nil {
		return err
	}

	if _, err := q.client.SendMessage(ctx, &sqsSendInput{
		QueueURL:    q.queueURL,
		MessageBody: body,
	}); err != nil {
		return fmt.Errorf("sqs send message: %w", err)
	}

	MessagesEnqueuedTotal.WithLabelValues("sqs").Inc()
	return nil
}

// Dequeue long-polls until one message arrives or ctx is done. Malformed
// messages are deleted to prevent infinite redelivery.
func (q *SQSQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out, err := q.client.ReceiveMessage(ctx, &sqsReceiveInput{
			QueueURL:            q.queueURL,
			MaxNumberOfMessages: 1,
			WaitTimeSeconds:     q.waitTime,
			VisibilityTimeout:   q.visTimeout,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("sqs receive message: %w", err)
		}

		for _, sqsMsg := range out.Messages {
			msg, err := decodeMessage(sqsMsg.Body)
			if err != nil {
				q.log.Error().Err(err).
					Str("sqs_message_id", sqsMsg.MessageID).
					Msg("failed to decode sqs message")
				MalformedMessagesTotal.WithLabelValues("sqs").Inc()
				if delErr := q.delete(ctx, sqsMsg.ReceiptHandle); delErr != nil {
					q.log.Error().Err(delErr).Str("sqs_message_id", sqsMsg.MessageID).Msg("failed to delete malformed message")
				}
				continue
			}

			receipt := sqsMsg.ReceiptHandle
			return &Delivery{
				JobID: msg.JobID,
				Ref:   sqsMsg.MessageID,
				ack: func(ctx context.Context) error {
					if err := q.delete(ctx, receipt); err != nil {
						return err
					}
					MessagesAckedTotal.WithLabelValues("sqs").Inc()
					return nil
				},
			}, nil
		}
	}
}

func (q *SQSQueue) delete(ctx context.Context, receiptHandle string) error {
	if err := q.client.DeleteMessage(ctx, &sqsDeleteInput{
		QueueURL:      q.queueURL,
		ReceiptHandle: receiptHandle,
	}); err != nil {
		return fmt.Errorf("sqs delete message: %w", err)
	}
	return nil
}

// Close is a no-op; the SDK client holds no long-lived connections.
func (q *SQSQueue) Close() error { return nil }
