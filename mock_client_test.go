package baton

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/ssestream"
)

// MockOpenAIClient implements OpenAIClient against canned responses. Queued
// completions and stream turns are consumed one per request, so a test can
// script an entire tool-call round trip. Every request's params are recorded
// for inspection.
type MockOpenAIClient struct {
	completions []*openai.ChatCompletion
	streamTurns [][]string
	err         error
	requests    []openai.ChatCompletionNewParams
}

func NewMockOpenAIClient() *MockOpenAIClient {
	return &MockOpenAIClient{}
}

// QueueCompletion appends a completion to be returned by a future
// CreateChatCompletion call.
func (m *MockOpenAIClient) QueueCompletion(completion *openai.ChatCompletion) {
	m.completions = append(m.completions, completion)
}

// QueueStreamTurn appends one streamed completion. Each event is the JSON
// payload of a single SSE data line.
func (m *MockOpenAIClient) QueueStreamTurn(events ...string) {
	m.streamTurns = append(m.streamTurns, events)
}

// SetError makes every subsequent request fail with err.
func (m *MockOpenAIClient) SetError(err error) {
	m.err = err
}

// Requests returns the params of every request received so far.
func (m *MockOpenAIClient) Requests() []openai.ChatCompletionNewParams {
	return m.requests
}

func (m *MockOpenAIClient) CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	m.requests = append(m.requests, params)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.completions) == 0 {
		return nil, fmt.Errorf("mock: no completion queued for request %d", len(m.requests))
	}
	completion := m.completions[0]
	m.completions = m.completions[1:]
	return completion, nil
}

func (m *MockOpenAIClient) CreateChatCompletionStream(ctx context.Context, params openai.ChatCompletionNewParams) (*ssestream.Stream[openai.ChatCompletionChunk], error) {
	m.requests = append(m.requests, params)
	if m.err != nil {
		return nil, m.err
	}

	var events []string
	if len(m.streamTurns) > 0 {
		events = m.streamTurns[0]
		m.streamTurns = m.streamTurns[1:]
	}

	var body bytes.Buffer
	for _, event := range events {
		body.WriteString("data: ")
		body.WriteString(event)
		body.WriteString("\n\n")
	}
	body.WriteString("data: [DONE]\n\n")

	httpRes := &http.Response{Body: io.NopCloser(&body)}
	return ssestream.NewStream[openai.ChatCompletionChunk](ssestream.NewDecoder(httpRes), nil), nil
}

// assistantCompletion builds a completion holding a plain assistant reply.
func assistantCompletion(content string) *openai.ChatCompletion {
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{
				Message: openai.ChatCompletionMessage{
					Role:    "assistant",
					Content: content,
				},
			},
		},
	}
}

// toolCallCompletion builds a completion requesting one function call.
func toolCallCompletion(callID, name, arguments string) *openai.ChatCompletion {
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{
				Message: openai.ChatCompletionMessage{
					Role: "assistant",
					ToolCalls: []openai.ChatCompletionMessageToolCall{
						{
							ID:   callID,
							Type: "function",
							Function: openai.ChatCompletionMessageToolCallFunction{
								Name:      name,
								Arguments: arguments,
							},
						},
					},
				},
			},
		},
	}
}

// contentTurn returns the SSE events of a streamed reply that finishes with
// stop, content delivered in a single delta.
func contentTurn(content string) []string {
	quoted, _ := json.Marshal(content)
	return []string{
		fmt.Sprintf(`{"id":"chatcmpl-mock","object":"chat.completion.chunk","created":1700000000,"model":"gpt-4o","choices":[{"index":0,"delta":{"role":"assistant","content":%s},"finish_reason":null}]}`, quoted),
		`{"id":"chatcmpl-mock","object":"chat.completion.chunk","created":1700000000,"model":"gpt-4o","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
	}
}

// toolCallTurn returns the SSE events of a streamed tool-call request, the
// arguments split off into a second delta the way the API fragments them.
func toolCallTurn(callID, name, arguments string) []string {
	quotedArgs, _ := json.Marshal(arguments)
	return []string{
		fmt.Sprintf(`{"id":"chatcmpl-mock","object":"chat.completion.chunk","created":1700000000,"model":"gpt-4o","choices":[{"index":0,"delta":{"role":"assistant","tool_calls":[{"index":0,"id":%q,"type":"function","function":{"name":%q,"arguments":""}}]},"finish_reason":null}]}`, callID, name),
		fmt.Sprintf(`{"id":"chatcmpl-mock","object":"chat.completion.chunk","created":1700000000,"model":"gpt-4o","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":%s}}]},"finish_reason":null}]}`, quotedArgs),
		`{"id":"chatcmpl-mock","object":"chat.completion.chunk","created":1700000000,"model":"gpt-4o","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
	}
}
