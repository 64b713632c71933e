// Package classify labels fetched pages as index, member_list, or
// irrelevant. Cheap rule passes (URL path patterns, tiny-page filter) run
// first; only pages they cannot decide reach the inference port.
package classify

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/civiclens/registry-cli/internal/inference"
	"github.com/civiclens/registry-cli/internal/model"
	"github.com/civiclens/registry-cli/internal/resilience"
)

// urlPathPatterns maps first path segments to page categories. Covers the
// common member-roster slugs on party and assembly sites, including the
// romanized Japanese ones.
var urlPathPatterns = map[string]model.PageCategory{
	"members":         model.PageCategoryMemberList,
	"member":          model.PageCategoryMemberList,
	"roster":          model.PageCategoryMemberList,
	"representatives": model.PageCategoryMemberList,
	"councillors":     model.PageCategoryMemberList,
	"assembly":        model.PageCategoryMemberList,
	"giin":            model.PageCategoryMemberList,
	"meibo":           model.PageCategoryMemberList,
	"people":          model.PageCategoryMemberList,
	"sitemap":         model.PageCategoryIndex,
	"links":           model.PageCategoryIndex,
	"privacy":         model.PageCategoryIrrelevant,
	"terms":           model.PageCategoryIrrelevant,
	"contact":         model.PageCategoryIrrelevant,
	"news":            model.PageCategoryIrrelevant,
	"blog":            model.PageCategoryIrrelevant,
	"press":           model.PageCategoryIrrelevant,
}

// minClassifiableChars is the tiny-page cutoff: shorter pages (error stubs,
// redirect shells) carry no signal worth an inference call.
const minClassifiableChars = 100

// Classifier labels fetched pages.
type Classifier struct {
	port inference.Port
}

// New creates a Classifier using the given inference port.
func New(port inference.Port) *Classifier {
	return &Classifier{port: port}
}

// classifyByURL checks the first path segment against known patterns.
// The root path is always an index page.
func classifyByURL(rawURL string) (model.PageCategory, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	path := strings.Trim(u.Path, "/")
	if path == "" {
		return model.PageCategoryIndex, true
	}
	// First path segment only, to avoid false positives on deep paths.
	if idx := strings.Index(path, "/"); idx > 0 {
		path = path[:idx]
	}
	path = strings.ToLower(strings.TrimSuffix(path, ".html"))
	if cat, ok := urlPathPatterns[path]; ok {
		return cat, true
	}
	return "", false
}

// classifyInput is the structured input sent to the inference port.
type classifyInput struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// classifyOutput is the schema expected back from the port.
type classifyOutput struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// Classify labels a fetched page. Inference-port validation failures are
// recovered locally as irrelevant/zero-confidence; transient failures that
// survive the port's retries propagate to the caller.
func (c *Classifier) Classify(ctx context.Context, page *model.FetchedPage) (model.PageClassification, error) {
	if cat, ok := classifyByURL(page.URL); ok {
		zap.L().Debug("classify: url pattern",
			zap.String("url", page.URL),
			zap.String("category", string(cat)),
		)
		return model.PageClassification{
			URL:        page.URL,
			Category:   cat,
			Confidence: 0.9,
			RawSignal:  "url_pattern",
		}, nil
	}

	if len(strings.TrimSpace(page.Text)) < minClassifiableChars {
		zap.L().Debug("classify: tiny page",
			zap.String("url", page.URL),
			zap.Int("content_len", len(page.Text)),
		)
		return model.PageClassification{
			URL:        page.URL,
			Category:   model.PageCategoryIrrelevant,
			Confidence: 1.0,
			RawSignal:  "tiny_page",
		}, nil
	}

	content := page.Text
	if len(content) > 2000 {
		content = content[:2000]
	}

	raw, err := c.port.Infer(ctx, inference.TaskClassifyPage, classifyInput{
		URL:     page.URL,
		Title:   page.Title,
		Content: content,
	})
	if err != nil {
		if resilience.IsValidation(err) {
			zap.L().Warn("classify: unusable inference output, marking irrelevant",
				zap.String("url", page.URL),
				zap.Error(err),
			)
			return model.PageClassification{
				URL:        page.URL,
				Category:   model.PageCategoryIrrelevant,
				Confidence: 0.0,
				RawSignal:  "inference_invalid",
			}, nil
		}
		return model.PageClassification{}, eris.Wrap(err, "classify: infer")
	}

	return parseClassification(page.URL, raw), nil
}

func parseClassification(pageURL string, raw json.RawMessage) model.PageClassification {
	var out classifyOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return model.PageClassification{
			URL:        pageURL,
			Category:   model.PageCategoryIrrelevant,
			Confidence: 0.0,
			RawSignal:  "inference_invalid",
		}
	}

	cat := model.PageCategory(strings.ToLower(out.Category))
	valid := false
	for _, known := range model.AllPageCategories() {
		if known == cat {
			valid = true
			break
		}
	}
	if !valid {
		cat = model.PageCategoryIrrelevant
		out.Confidence = 0.0
	}

	if out.Confidence < 0 {
		out.Confidence = 0
	}
	if out.Confidence > 1 {
		out.Confidence = 1
	}

	return model.PageClassification{
		URL:        pageURL,
		Category:   cat,
		Confidence: out.Confidence,
		RawSignal:  "inference",
	}
}
