// Command loadrestaurants is a one-shot job that fills the restaurant lookup
// table from the Yelp business search API.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/jianxion/Dining-Concierge-Chatbot/internal/integrations/paramstore"
	"github.com/jianxion/Dining-Concierge-Chatbot/internal/integrations/yelp"
	"github.com/jianxion/Dining-Concierge-Chatbot/internal/repository"
	"github.com/jianxion/Dining-Concierge-Chatbot/internal/seeding"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	tableName := envStr("RESTAURANTS_TABLE", "yelp-restaurants")
	yelpKeyParam := mustEnv("YELP_API_KEY_PARAM")

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	yelpClient, err := yelp.NewClient(ssmClient, yelpKeyParam)
	if err != nil {
		slog.Error("failed to create Yelp client", "err", err)
		os.Exit(1)
	}
	repoClient, err := repository.New(awsdynamodb.NewFromConfig(cfg), tableName)
	if err != nil {
		slog.Error("failed to create repository client", "err", err)
		os.Exit(1)
	}

	// ---- Job ----
	loader, err := seeding.NewLoader(yelpClient, repoClient)
	if err != nil {
		slog.Error("failed to create loader", "err", err)
		os.Exit(1)
	}

	count, err := loader.Run(ctx)
	if err != nil {
		slog.Error("seeding failed", "err", err)
		os.Exit(1)
	}
	slog.Info("seeding finished", "written", count)
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
