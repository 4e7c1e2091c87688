package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// sqsAPI is the minimal AWS SQS interface required by Client.
// *sqs.Client from aws-sdk-go-v2 satisfies this interface.
type sqsAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Message is one leased queue message. ReceiptHandle is the lease token used
// to delete the message; ReceiveCount is how many times the queue has
// delivered it, this delivery included.
type Message struct {
	Body          string
	ReceiptHandle string
	ReceiveCount  int
}

// ReceiveOptions bounds one poll cycle.
type ReceiveOptions struct {
	MaxMessages       int32
	VisibilityTimeout int32 // lease duration in seconds
	WaitTime          int32 // long-poll wait in seconds
}

// Client wraps one SQS queue.
type Client struct {
	api      sqsAPI
	queueURL string
}

// New creates a queue Client for the given queue URL.
func New(api sqsAPI, queueURL string) (*Client, error) {
	if api == nil {
		return nil, errors.New("queue: api must not be nil")
	}
	if strings.TrimSpace(queueURL) == "" {
		return nil, errors.New("queue: queue URL must not be empty")
	}
	return &Client{api: api, queueURL: queueURL}, nil
}

// Send enqueues one message body.
func (c *Client) Send(ctx context.Context, body string) error {
	if strings.TrimSpace(body) == "" {
		return errors.New("queue: Send: body must not be empty")
	}
	_, err := c.api.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(c.queueURL),
		MessageBody: aws.String(body),
	})
	if err != nil {
		return fmt.Errorf("queue: Send: %w", err)
	}
	return nil
}

// Receive claims up to opts.MaxMessages messages under a visibility-timeout
// lease. Claimed messages stay on the queue until deleted; once the lease
// expires an undeleted message becomes claimable again.
func (c *Client) Receive(ctx context.Context, opts ReceiveOptions) ([]Message, error) {
	out, err := c.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: opts.MaxMessages,
		VisibilityTimeout:   opts.VisibilityTimeout,
		WaitTimeSeconds:     opts.WaitTime,
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("queue: Receive: %w", err)
	}

	msgs := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msg := Message{ReceiveCount: 1}
		if m.Body != nil {
			msg.Body = *m.Body
		}
		if m.ReceiptHandle != nil {
			msg.ReceiptHandle = *m.ReceiptHandle
		}
		if v, ok := m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)]; ok {
			if n, err := strconv.Atoi(v); err == nil {
				msg.ReceiveCount = n
			}
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Delete removes a leased message by its receipt handle, releasing the lease
// permanently.
func (c *Client) Delete(ctx context.Context, receiptHandle string) error {
	if strings.TrimSpace(receiptHandle) == "" {
		return errors.New("queue: Delete: receipt handle must not be empty")
	}
	_, err := c.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("queue: Delete: %w", err)
	}
	return nil
}
