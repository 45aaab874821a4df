package matching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/sqs"
)

// sqsAPI is the slice of the SQS client the consumer uses; tests substitute
// a fake.
type sqsAPI interface {
	ReceiveMessageWithContext(aws.Context, *sqs.ReceiveMessageInput, ...request.Option) (*sqs.ReceiveMessageOutput, error)
	DeleteMessageWithContext(aws.Context, *sqs.DeleteMessageInput, ...request.Option) (*sqs.DeleteMessageOutput, error)
	SendMessageWithContext(aws.Context, *sqs.SendMessageInput, ...request.Option) (*sqs.SendMessageOutput, error)
}

// ConsumerConfig configures the queue consumer.
type ConsumerConfig struct {
	QueueURL           string
	DeadLetterQueueURL string
	Workers            int
	BatchSize          int
	WaitTime           time.Duration
	VisibilityTimeout  time.Duration

	// MaxReceiveCount bounds delivery attempts; beyond it a message goes to
	// the dead-letter queue instead of being retried forever.
	MaxReceiveCount int
}

// Consumer drains the match queue: batched receive, per-message dispatch to
// the lifecycle service, per-message delete. Failures are individual — a bad
// message never aborts its batch.
type Consumer struct {
	client  sqsAPI
	service Service
	cfg     ConsumerConfig
}

// NewConsumer creates a queue consumer over an SQS client.
func NewConsumer(client sqsAPI, service Service, cfg ConsumerConfig) *Consumer {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > 10 {
		cfg.BatchSize = 10
	}
	if cfg.MaxReceiveCount <= 0 {
		cfg.MaxReceiveCount = 5
	}
	return &Consumer{client: client, service: service, cfg: cfg}
}

// Run starts the worker pool and blocks until ctx is cancelled and every
// worker has drained its in-flight batch.
func (c *Consumer) Run(ctx context.Context) {
	var wg sync.WaitGroup

	for i := 0; i < c.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				if err := c.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
					log.Printf("queue receive failed: %v", err)
					// Back off briefly so an unavailable queue is not hammered.
					select {
					case <-time.After(2 * time.Second):
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	wg.Wait()
}

// ProcessBatch receives and handles up to one batch of messages.
func (c *Consumer) ProcessBatch(ctx context.Context) error {
	out, err := c.client.ReceiveMessageWithContext(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.cfg.QueueURL),
		MaxNumberOfMessages: aws.Int64(int64(c.cfg.BatchSize)),
		WaitTimeSeconds:     aws.Int64(int64(c.cfg.WaitTime / time.Second)),
		VisibilityTimeout:   aws.Int64(int64(c.cfg.VisibilityTimeout / time.Second)),
		AttributeNames:      aws.StringSlice([]string{sqs.MessageSystemAttributeNameApproximateReceiveCount}),
	})
	if err != nil {
		return err
	}

	for _, msg := range out.Messages {
		c.handle(ctx, msg)
	}

	return nil
}

// handle dispatches one message and settles it: delete on success, dead-letter
// on permanent failure or exhausted retries, leave in place (for redelivery
// after the visibility timeout) on transient failure.
func (c *Consumer) handle(ctx context.Context, msg *sqs.Message) {
	err := c.dispatch(ctx, msg)

	switch {
	case err == nil:
		RecordQueueMessage("ok")
		c.delete(ctx, msg)

	case isPermanent(err) || c.receiveCount(msg) >= c.cfg.MaxReceiveCount:
		// The main-queue copy is the only copy until the dead-letter send
		// succeeds; a failed send keeps the message for redelivery.
		if dlErr := c.deadLetter(ctx, msg); dlErr != nil {
			RecordQueueMessage("retry")
			log.Printf("keeping message %s on the queue: %v", aws.StringValue(msg.MessageId), dlErr)
			return
		}
		RecordQueueMessage("dead_letter")
		log.Printf("dead-lettered message %s: %v", aws.StringValue(msg.MessageId), err)
		c.delete(ctx, msg)

	default:
		// Transient: the message reappears after its visibility timeout.
		RecordQueueMessage("retry")
		log.Printf("retrying message %s: %v", aws.StringValue(msg.MessageId), err)
	}
}

func (c *Consumer) dispatch(ctx context.Context, msg *sqs.Message) error {
	var qm QueueMessage
	if err := json.Unmarshal([]byte(aws.StringValue(msg.Body)), &qm); err != nil {
		return &permanentError{err: err}
	}

	switch qm.Action {
	case ActionFindNext:
		_, err := c.service.FindNextMatch(ctx, qm.RequesterID)
		return err
	case ActionAccept:
		_, err := c.service.AcceptMatch(ctx, qm.RequesterID, qm.CandidateID)
		return err
	case ActionPass:
		_, err := c.service.PassMatch(ctx, qm.RequesterID, qm.CandidateID)
		return err
	case ActionBatchScore:
		_, err := c.service.ScoreBatch(ctx, qm.RequesterID, qm.CandidateIDs)
		return err
	default:
		return &permanentError{err: errors.New("unknown queue action " + string(qm.Action))}
	}
}

func (c *Consumer) delete(ctx context.Context, msg *sqs.Message) {
	_, err := c.client.DeleteMessageWithContext(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.cfg.QueueURL),
		ReceiptHandle: msg.ReceiptHandle,
	})
	if err != nil {
		log.Printf("delete message %s failed: %v", aws.StringValue(msg.MessageId), err)
	}
}

func (c *Consumer) deadLetter(ctx context.Context, msg *sqs.Message) error {
	if c.cfg.DeadLetterQueueURL == "" {
		return errors.New("no dead-letter queue configured")
	}

	_, err := c.client.SendMessageWithContext(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(c.cfg.DeadLetterQueueURL),
		MessageBody: msg.Body,
	})
	if err != nil {
		return fmt.Errorf("dead-letter send for %s: %w", aws.StringValue(msg.MessageId), err)
	}

	return nil
}

func (c *Consumer) receiveCount(msg *sqs.Message) int {
	raw, ok := msg.Attributes[sqs.MessageSystemAttributeNameApproximateReceiveCount]
	if !ok || raw == nil {
		return 1
	}

	n, err := strconv.Atoi(*raw)
	if err != nil {
		return 1
	}
	return n
}

// permanentError marks failures that retrying can never fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// isPermanent classifies an error: malformed payloads, unknown users and
// wrong-state transitions are permanent; everything else is assumed
// transient infrastructure trouble and retried with backoff.
func isPermanent(err error) bool {
	var perm *permanentError
	if errors.As(err, &perm) {
		return true
	}
	return errors.Is(err, ErrProfileNotFound) || errors.Is(err, ErrInvalidState) || errors.Is(err, ErrInvalidCursor)
}
