// Command indexrestaurants is a one-shot job that projects the restaurant
// lookup table into the search index the fulfillment worker samples from.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/jianxion/Dining-Concierge-Chatbot/internal/integrations/search"
	"github.com/jianxion/Dining-Concierge-Chatbot/internal/repository"
	"github.com/jianxion/Dining-Concierge-Chatbot/internal/seeding"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	tableName := envStr("RESTAURANTS_TABLE", "yelp-restaurants")
	searchEndpoint := mustEnv("OPENSEARCH_ENDPOINT")

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	repoClient, err := repository.New(awsdynamodb.NewFromConfig(cfg), tableName)
	if err != nil {
		slog.Error("failed to create repository client", "err", err)
		os.Exit(1)
	}

	// Domains with fine-grained access control take basic auth; everything
	// else is signed with the caller's role.
	searchOpts := []search.Option{search.WithAWSConfig(cfg)}
	if user := os.Getenv("OPENSEARCH_USERNAME"); user != "" {
		searchOpts = []search.Option{search.WithBasicAuth(user, mustEnv("OPENSEARCH_PASSWORD"))}
	}
	searchClient, err := search.New(searchEndpoint, searchOpts...)
	if err != nil {
		slog.Error("failed to create search client", "err", err)
		os.Exit(1)
	}

	// ---- Job ----
	indexer, err := seeding.NewIndexer(repoClient, searchClient)
	if err != nil {
		slog.Error("failed to create indexer", "err", err)
		os.Exit(1)
	}

	stats, err := indexer.Run(ctx)
	if err != nil {
		slog.Error("indexing failed", "err", err)
		os.Exit(1)
	}
	slog.Info("indexing finished", "indexed", stats.Indexed, "failed", stats.Failed)
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
