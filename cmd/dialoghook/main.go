package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/jianxion/Dining-Concierge-Chatbot/internal/dialog"
	"github.com/jianxion/Dining-Concierge-Chatbot/internal/integrations/queue"
	"github.com/jianxion/Dining-Concierge-Chatbot/internal/producer"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	queueURL := os.Getenv("SQS_QUEUE_URL")

	// ---- Clients ----
	// Without a queue URL the hook still answers turns; fulfillment closes
	// with a configuration error until one is set.
	var enq dialog.Enqueuer
	if queueURL == "" {
		slog.Warn("SQS_QUEUE_URL is not set, dining requests cannot be queued")
	} else {
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			slog.Error("failed to load AWS config", "err", err)
			os.Exit(1)
		}
		queueClient, err := queue.New(awssqs.NewFromConfig(cfg), queueURL)
		if err != nil {
			slog.Error("failed to create queue client", "err", err)
			os.Exit(1)
		}
		prod, err := producer.New(queueClient)
		if err != nil {
			slog.Error("failed to create producer", "err", err)
			os.Exit(1)
		}
		enq = prod
	}

	// ---- Handler ----
	controller := dialog.New(enq)
	lambda.Start(func(ctx context.Context, ev dialog.Event) (dialog.Response, error) {
		return controller.HandleTurn(ctx, ev), nil
	})
}
