package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awslexruntimev2 "github.com/aws/aws-sdk-go-v2/service/lexruntimev2"

	"github.com/jianxion/Dining-Concierge-Chatbot/handler"
	"github.com/jianxion/Dining-Concierge-Chatbot/internal/integrations/lexbot"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	botID := mustEnv("LEX_BOT_ID")
	aliasID := mustEnv("LEX_BOT_ALIAS_ID")
	localeID := os.Getenv("LEX_LOCALE_ID") // empty falls back to en_US

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	lexClient, err := lexbot.New(awslexruntimev2.NewFromConfig(cfg), botID, aliasID, localeID)
	if err != nil {
		slog.Error("failed to create Lex client", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	h, err := handler.NewHandler(lexClient)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}
