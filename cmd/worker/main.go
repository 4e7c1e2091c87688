package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsses "github.com/aws/aws-sdk-go-v2/service/ses"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/jianxion/Dining-Concierge-Chatbot/internal/fulfillment"
	"github.com/jianxion/Dining-Concierge-Chatbot/internal/integrations/mailer"
	"github.com/jianxion/Dining-Concierge-Chatbot/internal/integrations/queue"
	"github.com/jianxion/Dining-Concierge-Chatbot/internal/integrations/search"
	"github.com/jianxion/Dining-Concierge-Chatbot/internal/repository"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	queueURL := mustEnv("SQS_QUEUE_URL")
	searchEndpoint := mustEnv("OPENSEARCH_ENDPOINT")
	tableName := envStr("RESTAURANTS_TABLE", "yelp-restaurants")
	fromAddress := mustEnv("SES_FROM_ADDRESS")
	hitsPerEmail := envInt("HITS_PER_EMAIL", 3)

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	queueClient, err := queue.New(awssqs.NewFromConfig(cfg), queueURL)
	if err != nil {
		slog.Error("failed to create queue client", "err", err)
		os.Exit(1)
	}

	// Domains with fine-grained access control take basic auth; everything
	// else is signed with the Lambda role.
	searchOpts := []search.Option{search.WithAWSConfig(cfg)}
	if user := os.Getenv("OPENSEARCH_USERNAME"); user != "" {
		searchOpts = []search.Option{search.WithBasicAuth(user, mustEnv("OPENSEARCH_PASSWORD"))}
	}
	searchClient, err := search.New(searchEndpoint, searchOpts...)
	if err != nil {
		slog.Error("failed to create search client", "err", err)
		os.Exit(1)
	}

	repoClient, err := repository.New(awsdynamodb.NewFromConfig(cfg), tableName)
	if err != nil {
		slog.Error("failed to create repository client", "err", err)
		os.Exit(1)
	}

	mailClient, err := mailer.New(awsses.NewFromConfig(cfg), fromAddress)
	if err != nil {
		slog.Error("failed to create mailer client", "err", err)
		os.Exit(1)
	}

	// ---- Worker ----
	worker, err := fulfillment.New(queueClient, searchClient, repoClient, mailClient, hitsPerEmail)
	if err != nil {
		slog.Error("failed to create fulfillment worker", "err", err)
		os.Exit(1)
	}

	lambda.Start(func(ctx context.Context) error {
		res, err := worker.Run(ctx)
		if err != nil {
			return err
		}
		slog.Info("poll cycle finished",
			"received", res.Received,
			"processed", res.Processed,
			"failed", res.Failed,
		)
		return nil
	})
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
