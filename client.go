package baton

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
)

// OpenAIClient is the slice of the chat completions API the dispatcher needs.
// Production code wraps the official SDK client; tests substitute a mock.
type OpenAIClient interface {
	CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
	CreateChatCompletionStream(ctx context.Context, params openai.ChatCompletionNewParams) (*ssestream.Stream[openai.ChatCompletionChunk], error)
}

// defaultAzureAPIVersion is used when AZURE_OPENAI_API_VERSION is not set.
const defaultAzureAPIVersion = "2025-03-01-preview"

type openAIClientWrapper struct {
	client *openai.Client
}

// NewOpenAIClient wraps the official SDK client for api.openai.com.
// Returns nil if apiKey is empty.
func NewOpenAIClient(apiKey string) OpenAIClient {
	if apiKey == "" {
		return nil
	}

	return &openAIClientWrapper{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
	}
}

// NewOpenAIClientWithBaseURL wraps the SDK client against an OpenAI-compatible
// endpoint such as a proxy or a local model runner. An empty baseURL falls back
// to the default endpoint.
func NewOpenAIClientWithBaseURL(apiKey string, baseURL string) OpenAIClient {
	if apiKey == "" {
		return nil
	}

	if baseURL == "" {
		return NewOpenAIClient(apiKey)
	}

	return &openAIClientWrapper{
		client: openai.NewClient(option.WithAPIKey(apiKey), option.WithBaseURL(baseURL)),
	}
}

// NewAzureOpenAIClient wraps the SDK client for an Azure OpenAI deployment.
// Returns nil if apiKey or endpoint is empty.
func NewAzureOpenAIClient(apiKey, endpoint, apiVersion string) OpenAIClient {
	if apiKey == "" || endpoint == "" {
		return nil
	}
	if apiVersion == "" {
		apiVersion = defaultAzureAPIVersion
	}

	return &openAIClientWrapper{
		client: openai.NewClient(
			azure.WithEndpoint(endpoint, apiVersion),
			azure.WithAPIKey(apiKey),
		),
	}
}

// NewClientFromEnv builds a client from the process environment: OPENAI_API_KEY
// with an optional OPENAI_API_BASE override, or the AZURE_OPENAI_API_KEY /
// AZURE_OPENAI_API_BASE / AZURE_OPENAI_API_VERSION triple. A missing credential
// is an error so a run cannot silently proceed unauthenticated.
func NewClientFromEnv() (OpenAIClient, error) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		return NewOpenAIClientWithBaseURL(apiKey, os.Getenv("OPENAI_API_BASE")), nil
	}

	azureAPIKey := os.Getenv("AZURE_OPENAI_API_KEY")
	azureAPIBase := os.Getenv("AZURE_OPENAI_API_BASE")
	azureAPIVersion := os.Getenv("AZURE_OPENAI_API_VERSION")

	var missingEnvs []string
	if azureAPIKey == "" {
		missingEnvs = append(missingEnvs, "OPENAI_API_KEY or AZURE_OPENAI_API_KEY")
	}
	if azureAPIBase == "" {
		missingEnvs = append(missingEnvs, "AZURE_OPENAI_API_BASE")
	}
	if len(missingEnvs) > 0 {
		return nil, fmt.Errorf("required environment variables not set: %s", strings.Join(missingEnvs, ", "))
	}

	return NewAzureOpenAIClient(azureAPIKey, azureAPIBase, azureAPIVersion), nil
}

// CreateChatCompletion implements OpenAIClient.
func (c *openAIClientWrapper) CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion: %w", err)
	}

	return completion, nil
}

// CreateChatCompletionStream implements OpenAIClient.
func (c *openAIClientWrapper) CreateChatCompletionStream(ctx context.Context, params openai.ChatCompletionNewParams) (*ssestream.Stream[openai.ChatCompletionChunk], error) {
	if ctx == nil {
		ctx = context.Background()
	}

	stream := c.client.Chat.Completions.NewStreaming(ctx, params)
	if stream == nil {
		return nil, fmt.Errorf("failed to create streaming completion")
	}

	return stream, nil
}
