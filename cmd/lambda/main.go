// Package main is the entry point for the translation Lambda function.
package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/MimeLyc/seabridge/internal/app"
	"github.com/MimeLyc/seabridge/internal/handler"
	"github.com/MimeLyc/seabridge/pkg/log"
)

func main() {
	log.InitLogger(log.ParseLevel(os.Getenv("LOG_LEVEL")))

	cfg, _, err := app.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}
	a, err := app.Build(context.Background(), cfg)
	if err != nil {
		log.Fatal("Failed to build service: %v", err)
	}

	h := handler.New(a.Service)
	lambda.Start(func(ctx context.Context, event json.RawMessage) (any, error) {
		return handleRequest(ctx, h, event)
	})
}

func handleRequest(ctx context.Context, h *handler.Handler, event json.RawMessage) (any, error) {
	// Warmup detection must run before the event is parsed as a request.
	if warmup, ok := IsWarmupEvent(event); ok {
		return HandleWarmup(ctx, warmup)
	}

	var req handler.Request
	if err := json.Unmarshal(event, &req); err != nil {
		return nil, err
	}
	return h.Handle(ctx, req)
}
