package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
)

// LambdaInvoker is the subset of the Lambda client used for translation.
type LambdaInvoker interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// TranslatorRequest is the payload sent to the translator function.
type TranslatorRequest struct {
	Chunks     [][]string `json:"chunks"`
	TargetLang string     `json:"target_lang"`
	SourceLang string     `json:"source_lang,omitempty"`
}

// TranslatorResponse is the payload returned by the translator function.
type TranslatorResponse struct {
	Translations [][]string `json:"translations"`
	Error        string     `json:"error,omitempty"`
}

// LambdaProvider translates by invoking a cloud translator function.
type LambdaProvider struct {
	client       LambdaInvoker
	functionName string
}

// NewLambdaProvider loads the default AWS configuration and returns a
// provider invoking functionName.
func NewLambdaProvider(ctx context.Context, functionName string, optFns ...func(*config.LoadOptions) error) (*LambdaProvider, error) {
	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewLambdaProviderWithClient(lambda.NewFromConfig(cfg), functionName), nil
}

func NewLambdaProviderWithClient(client LambdaInvoker, functionName string) *LambdaProvider {
	return &LambdaProvider{client: client, functionName: functionName}
}

func (p *LambdaProvider) Name() string {
	return "lambda:" + p.functionName
}

func (p *LambdaProvider) TranslateText(ctx context.Context, text, targetLang, sourceLang string) (string, error) {
	payload, err := json.Marshal(TranslatorRequest{
		Chunks:     [][]string{{text}},
		TargetLang: targetLang,
		SourceLang: sourceLang,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	out, err := p.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName: aws.String(p.functionName),
		Payload:      payload,
	})
	if err != nil {
		return "", fmt.Errorf("failed to invoke %s: %w", p.functionName, err)
	}
	if out.FunctionError != nil {
		return "", fmt.Errorf("lambda error: %s: %s", aws.ToString(out.FunctionError), string(out.Payload))
	}

	var resp TranslatorResponse
	if err := json.Unmarshal(out.Payload, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("translator error: %s", resp.Error)
	}
	if len(resp.Translations) == 0 || len(resp.Translations[0]) == 0 {
		return "", fmt.Errorf("%w: no translations returned", ErrMalformedResponse)
	}
	return resp.Translations[0][0], nil
}
