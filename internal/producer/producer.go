package producer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/jianxion/Dining-Concierge-Chatbot/internal/domain"
)

// QueueSender sends one message body to the durable request queue.
// *queue.Client satisfies this interface.
type QueueSender interface {
	Send(ctx context.Context, body string) error
}

// Producer turns a completed dining request into a queued work item.
// Validation happens here so a malformed item never reaches the queue.
type Producer struct {
	queue    QueueSender
	validate *validator.Validate
}

func New(q QueueSender) (*Producer, error) {
	if q == nil {
		return nil, errors.New("producer: queue sender must not be nil")
	}
	return &Producer{
		queue:    q,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

// Enqueue validates the work item and sends it to the queue as a JSON
// message. The send is at-least-once; duplicates are tolerated downstream.
func (p *Producer) Enqueue(ctx context.Context, item domain.WorkItem) error {
	if err := p.validate.Struct(item); err != nil {
		return fmt.Errorf("producer: work item rejected: %w", err)
	}
	body, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("producer: encode work item: %w", err)
	}
	if err := p.queue.Send(ctx, string(body)); err != nil {
		return fmt.Errorf("producer: Enqueue: %w", err)
	}
	return nil
}
