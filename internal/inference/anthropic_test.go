package inference

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civiclens/registry-cli/internal/config"
	"github.com/civiclens/registry-cli/internal/resilience"
	"github.com/civiclens/registry-cli/pkg/anthropic"
)

type fakeClient struct {
	responses []*anthropic.MessageResponse
	errs      []error
	calls     int
	requests  []anthropic.MessageRequest
}

func (f *fakeClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	i := f.calls
	f.calls++
	f.requests = append(f.requests, req)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return f.responses[len(f.responses)-1], nil
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}
}

func testAnthropicConfig() config.AnthropicConfig {
	return config.AnthropicConfig{
		ClassifyModel: "claude-haiku-4-5-20251001",
		ExtractModel:  "claude-sonnet-4-5-20250929",
		MatchModel:    "claude-haiku-4-5-20251001",
		MaxTokens:     1024,
	}
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestInfer_ReturnsJSON(t *testing.T) {
	client := &fakeClient{responses: []*anthropic.MessageResponse{
		textResponse(`{"category": "index", "confidence": 0.9}`),
	}}
	p := NewAnthropicPort(client, testAnthropicConfig(), fastRetry())

	raw, err := p.Infer(context.Background(), TaskClassifyPage, map[string]string{"url": "https://example.org/"})

	require.NoError(t, err)
	assert.JSONEq(t, `{"category": "index", "confidence": 0.9}`, string(raw))
	assert.Equal(t, 1, client.calls)
	require.Len(t, client.requests, 1)
	assert.Equal(t, "claude-haiku-4-5-20251001", client.requests[0].Model)
	require.Len(t, client.requests[0].System, 1)
	require.NotNil(t, client.requests[0].System[0].CacheControl)
	assert.Equal(t, "1h", client.requests[0].System[0].CacheControl.TTL)
}

func TestInfer_StripsCodeFences(t *testing.T) {
	client := &fakeClient{responses: []*anthropic.MessageResponse{
		textResponse("```json\n{\"candidates\": []}\n```"),
	}}
	p := NewAnthropicPort(client, testAnthropicConfig(), fastRetry())

	raw, err := p.Infer(context.Background(), TaskExtractCandidates, map[string]string{})

	require.NoError(t, err)
	assert.JSONEq(t, `{"candidates": []}`, string(raw))
	assert.Equal(t, "claude-sonnet-4-5-20250929", client.requests[0].Model)
}

func TestInfer_NonJSONIsValidationError(t *testing.T) {
	client := &fakeClient{responses: []*anthropic.MessageResponse{
		textResponse("I could not find any members on this page."),
	}}
	p := NewAnthropicPort(client, testAnthropicConfig(), fastRetry())

	_, err := p.Infer(context.Background(), TaskMatchEntity, map[string]string{})

	require.Error(t, err)
	assert.True(t, resilience.IsValidation(err))
	assert.Equal(t, 1, client.calls, "deterministic bad output must not be retried")
}

func TestInfer_RetriesTransient(t *testing.T) {
	client := &fakeClient{
		errs: []error{
			resilience.NewTransientError(errors.New("overloaded"), 529),
			nil,
		},
		responses: []*anthropic.MessageResponse{
			nil,
			textResponse(`{"should_match": false}`),
		},
	}
	p := NewAnthropicPort(client, testAnthropicConfig(), fastRetry())

	raw, err := p.Infer(context.Background(), TaskMatchEntity, map[string]string{})

	require.NoError(t, err)
	assert.JSONEq(t, `{"should_match": false}`, string(raw))
	assert.Equal(t, 2, client.calls)
}

func TestInfer_UnknownTask(t *testing.T) {
	client := &fakeClient{}
	p := NewAnthropicPort(client, testAnthropicConfig(), fastRetry())

	_, err := p.Infer(context.Background(), Task("summarize"), map[string]string{})

	require.Error(t, err)
	assert.True(t, resilience.IsFatal(err))
	assert.Zero(t, client.calls)
}
