package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/civiclens/registry-cli/internal/config"
	"github.com/civiclens/registry-cli/internal/resilience"
	"github.com/civiclens/registry-cli/pkg/anthropic"
)

// System prompts per task. Each demands a bare JSON response so the caller
// can decode against its expected schema.
const (
	classifySystemPrompt = `You classify pages from political party and assembly websites into exactly one of: index (a navigation or listing hub that links to other pages), member_list (a page listing members of an assembly, party, or committee, with names and roles or affiliations), irrelevant (anything else). Respond with a single JSON object: {"category": "<index|member_list|irrelevant>", "confidence": <0.0-1.0>}`

	extractSystemPrompt = `You extract member records from political member-list pages. For each person listed, produce an object with their name, role (e.g. representative, councillor, chair), and affiliation (party or faction) exactly as written on the page. Respond with a single JSON object: {"candidates": [{"name": "...", "role": "...", "affiliation": "..."}]}. Use empty strings for fields the page does not state. Do not invent people.`

	matchSystemPrompt = `You decide whether an extracted member candidate refers to one of the canonical registry entries provided. Account for name variants, transliterations, honorifics, and affiliation renames. Respond with a single JSON object: {"should_match": <true|false>, "entity_id": <id or null>, "confidence": <0.0-1.0>, "rationale": "<one sentence>"}`
)

// AnthropicPort implements Port on top of the Anthropic messages API with
// bounded retry on transient failures.
type AnthropicPort struct {
	client anthropic.Client
	cfg    config.AnthropicConfig
	retry  resilience.RetryConfig
}

// NewAnthropicPort creates an inference port backed by the given client.
func NewAnthropicPort(client anthropic.Client, cfg config.AnthropicConfig, retry resilience.RetryConfig) *AnthropicPort {
	return &AnthropicPort{client: client, cfg: cfg, retry: retry}
}

// Infer marshals the structured input, prompts the model for the task, and
// returns the cleaned JSON output. The output is guaranteed syntactically
// valid JSON; schema validation is the caller's responsibility.
func (p *AnthropicPort) Infer(ctx context.Context, task Task, input any) (json.RawMessage, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return nil, resilience.NewFatalError(eris.Wrap(err, "inference: marshal input"))
	}

	system, model, err := p.taskParams(task)
	if err != nil {
		return nil, err
	}

	req := anthropic.MessageRequest{
		Model:     model,
		MaxTokens: int64(p.cfg.MaxTokens),
		System:    anthropic.BuildCachedSystemBlocks(system),
		Messages: []anthropic.Message{
			{Role: "user", Content: "Input:\n" + string(payload)},
		},
	}

	retryCfg := p.retry
	retryCfg.OnRetry = resilience.RetryLogger("anthropic", string(task))

	resp, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		resp, err := p.client.CreateMessage(ctx, req)
		if err != nil {
			return nil, classifySDKError(err)
		}
		return resp, nil
	})
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("inference: %s", task))
	}

	resp.Usage.LogUsage(model, string(task))

	text := CleanJSON(resp.Text())
	if !json.Valid([]byte(text)) {
		zap.L().Warn("inference: non-JSON model output",
			zap.String("task", string(task)),
			zap.Int("output_len", len(text)),
		)
		return nil, resilience.NewValidationError(
			eris.Errorf("inference: %s returned non-JSON output", task))
	}

	return json.RawMessage(text), nil
}

func (p *AnthropicPort) taskParams(task Task) (system, model string, err error) {
	switch task {
	case TaskClassifyPage:
		return classifySystemPrompt, p.cfg.ClassifyModel, nil
	case TaskExtractCandidates:
		return extractSystemPrompt, p.cfg.ExtractModel, nil
	case TaskMatchEntity:
		return matchSystemPrompt, p.cfg.MatchModel, nil
	default:
		return "", "", resilience.NewFatalError(eris.Errorf("inference: unknown task %q", task))
	}
}

// classifySDKError maps an SDK failure onto the error taxonomy: retryable
// HTTP statuses become transient, auth and bad-request failures are fatal.
func classifySDKError(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		if resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
			return resilience.NewTransientError(err, apiErr.StatusCode)
		}
		return resilience.NewFatalError(err)
	}
	// Network-level errors fall through to the default transient heuristics.
	return err
}
