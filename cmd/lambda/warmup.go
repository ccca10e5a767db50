// Package main contains the Lambda warmup handler for preventing cold starts.
// Scheduled events trigger it periodically to keep instances warm.
package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	lambdasdk "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"golang.org/x/sync/errgroup"

	"github.com/MimeLyc/seabridge/internal/provider"
	"github.com/MimeLyc/seabridge/pkg/log"
)

const (
	// WarmupSource identifies warmup events.
	WarmupSource = "warmup"

	// WarmupDelay keeps this instance busy long enough for self-invocations
	// to land on other instances.
	WarmupDelay = 75 * time.Millisecond
)

type WarmupEvent struct {
	Source      string `json:"source"`
	Concurrency int    `json:"concurrency"`
}

type WarmupResponse struct {
	Status          string `json:"status"`
	InstancesWarmed int    `json:"instancesWarmed"`
}

// IsWarmupEvent checks if the event is a warmup event.
func IsWarmupEvent(event json.RawMessage) (*WarmupEvent, bool) {
	var warmup WarmupEvent
	if err := json.Unmarshal(event, &warmup); err != nil {
		return nil, false
	}
	if warmup.Source != WarmupSource {
		return nil, false
	}
	if warmup.Concurrency < 0 {
		warmup.Concurrency = 0
	}
	return &warmup, true
}

// HandleWarmup processes a warmup event and optionally self-invokes to keep
// more instances warm.
func HandleWarmup(ctx context.Context, warmup *WarmupEvent) (any, error) {
	instancesWarmed := 1

	if warmup.Concurrency > 0 {
		if err := selfInvoke(ctx, warmup.Concurrency); err != nil {
			log.Warn("Warmup self-invocation failed: %v", err)
		} else {
			instancesWarmed += warmup.Concurrency
		}
	}

	time.Sleep(WarmupDelay)

	return map[string]any{
		"statusCode": 200,
		"body": WarmupResponse{
			Status:          "warm",
			InstancesWarmed: instancesWarmed,
		},
	}, nil
}

// selfInvoke invokes this function count times asynchronously.
func selfInvoke(ctx context.Context, count int) error {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return err
	}
	return invokeWarmups(ctx, lambdasdk.NewFromConfig(cfg), os.Getenv("AWS_LAMBDA_FUNCTION_NAME"), count)
}

func invokeWarmups(ctx context.Context, client provider.LambdaInvoker, functionName string, count int) error {
	// Children get concurrency 0 so they never invoke further.
	payload, err := json.Marshal(WarmupEvent{Source: WarmupSource})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < count; i++ {
		g.Go(func() error {
			_, err := client.Invoke(gctx, &lambdasdk.InvokeInput{
				FunctionName:   aws.String(functionName),
				InvocationType: types.InvocationTypeEvent,
				Payload:        payload,
			})
			return err
		})
	}
	return g.Wait()
}
