// Package extract converts member-list page content into candidate records
// via the inference port.
package extract

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/civiclens/registry-cli/internal/inference"
	"github.com/civiclens/registry-cli/internal/model"
	"github.com/civiclens/registry-cli/internal/resilience"
)

// maxExtractChars bounds the page text sent to the port.
const maxExtractChars = 12000

// Extractor pulls candidate member records out of member-list pages.
type Extractor struct {
	port inference.Port
	now  func() time.Time
}

// New creates an Extractor using the given inference port.
func New(port inference.Port) *Extractor {
	return &Extractor{port: port, now: time.Now}
}

type extractInput struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type extractOutput struct {
	Candidates []struct {
		Name        string `json:"name"`
		Role        string `json:"role"`
		Affiliation string `json:"affiliation"`
	} `json:"candidates"`
}

// Extract returns the candidate records found on a member-list page.
// Schema-invalid inference output is recovered locally as zero candidates;
// transient port failures that survive retries propagate.
func (e *Extractor) Extract(ctx context.Context, page *model.FetchedPage) ([]model.CandidateRecord, error) {
	content := page.Text
	if len(content) > maxExtractChars {
		content = content[:maxExtractChars]
	}

	raw, err := e.port.Infer(ctx, inference.TaskExtractCandidates, extractInput{
		URL:     page.URL,
		Title:   page.Title,
		Content: content,
	})
	if err != nil {
		if resilience.IsValidation(err) {
			zap.L().Warn("extract: unusable inference output, no candidates",
				zap.String("url", page.URL),
				zap.Error(err),
			)
			return nil, nil
		}
		return nil, eris.Wrap(err, "extract: infer")
	}

	var out extractOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		zap.L().Warn("extract: schema mismatch, no candidates",
			zap.String("url", page.URL),
			zap.Error(err),
		)
		return nil, nil
	}

	extractedAt := e.now().UTC()
	candidates := make([]model.CandidateRecord, 0, len(out.Candidates))
	for _, c := range out.Candidates {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		candidates = append(candidates, model.CandidateRecord{
			SourceURL:      page.URL,
			RawName:        name,
			RawRole:        strings.TrimSpace(c.Role),
			RawAffiliation: strings.TrimSpace(c.Affiliation),
			ExtractedAt:    extractedAt,
		})
	}

	zap.L().Info("extract: candidates from page",
		zap.String("url", page.URL),
		zap.Int("candidates", len(candidates)),
	)

	return candidates, nil
}
