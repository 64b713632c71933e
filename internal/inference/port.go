// Package inference defines the abstract inference port the pipeline uses
// for free-text understanding. Consumers pass structured input and decode
// the structured JSON output themselves; the port guarantees only that the
// returned bytes are syntactically valid JSON.
//
// Errors follow the resilience taxonomy: transient failures (rate limits,
// network) come back as resilience.TransientError and may be retried by the
// port itself; malformed model output is a resilience.ValidationError and
// must never be retried.
package inference

import (
	"context"
	"encoding/json"
	"strings"
)

// Task names an inference task the port knows how to prompt for.
type Task string

const (
	TaskClassifyPage      Task = "classify_page"
	TaskExtractCandidates Task = "extract_candidates"
	TaskMatchEntity       Task = "match_entity"
)

// Port is the narrow inference capability consumed by the classifier,
// extractor and matcher.
type Port interface {
	Infer(ctx context.Context, task Task, input any) (json.RawMessage, error)
}

// CleanJSON strips markdown code fences and surrounding prose from a model
// response, returning the first top-level JSON value found.
func CleanJSON(text string) string {
	text = strings.TrimSpace(text)

	// Strip ```json ... ``` fences.
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	// Trim prose before the first brace or bracket.
	objIdx := strings.IndexAny(text, "{[")
	if objIdx > 0 {
		text = text[objIdx:]
	}

	// Trim prose after the last closing brace or bracket.
	if end := strings.LastIndexAny(text, "}]"); end >= 0 && end < len(text)-1 {
		text = text[:end+1]
	}

	return text
}
