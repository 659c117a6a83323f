package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"gold-agent/handler"
	"gold-agent/internal/conversation"
	"gold-agent/internal/integrations/gemini"
	"gold-agent/internal/integrations/goldprice"
	"gold-agent/internal/integrations/paramstore"
	"gold-agent/internal/repository"
	"gold-agent/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	orderTable := mustEnv("ORDER_TABLE")
	paramPrefix := mustEnv("PARAM_PREFIX")

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
	ledger, err := repository.New(awsdynamodb.NewFromConfig(cfg), orderTable)
	if err != nil {
		slog.Error("failed to create order ledger", "err", err)
		os.Exit(1)
	}

	// Model name and buy-link base live in Parameter Store next to the API
	// tokens; env vars override for local runs.
	geminiModel := paramOrEnv(ctx, ssmClient, paramPrefix+"/gemini-model", "GEMINI_MODEL")
	endpointBase := paramOrEnv(ctx, ssmClient, paramPrefix+"/buy-endpoint-base", "BUY_ENDPOINT_BASE")

	var geminiOpts []gemini.Option
	if geminiModel != "" {
		geminiOpts = append(geminiOpts, gemini.WithModel(geminiModel))
	}
	geminiClient, err := gemini.NewClient(ssmClient, paramPrefix, geminiOpts...)
	if err != nil {
		slog.Error("failed to create Gemini client", "err", err)
		os.Exit(1)
	}
	priceClient, err := goldprice.NewClient(ssmClient, paramPrefix)
	if err != nil {
		slog.Error("failed to create gold price client", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	classifier, err := usecase.NewClassifier(geminiClient)
	if err != nil {
		slog.Error("failed to create classifier", "err", err)
		os.Exit(1)
	}
	purchaseService, err := usecase.NewPurchaseService(ledger, priceClient, endpointBase)
	if err != nil {
		slog.Error("failed to create purchase service", "err", err)
		os.Exit(1)
	}
	chatService, err := usecase.NewChatService(conversation.NewStore(), classifier, priceClient, purchaseService)
	if err != nil {
		slog.Error("failed to create chat service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(chatService, purchaseService)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

func paramOrEnv(ctx context.Context, ps *paramstore.Client, paramName, envKey string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	v, err := ps.GetParameter(ctx, paramName)
	if err != nil {
		slog.Warn("optional parameter not available, using defaults", "name", paramName, "err", err)
		return ""
	}
	return v
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}
