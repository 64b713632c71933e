// Package match resolves candidate records against the canonical store
// with a two-tier algorithm: a deterministic rule pass that short-circuits
// confident matches, and an inference-assisted pass for the rest.
package match

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/civiclens/registry-cli/internal/config"
	"github.com/civiclens/registry-cli/internal/inference"
	"github.com/civiclens/registry-cli/internal/model"
	"github.com/civiclens/registry-cli/internal/resilience"
)

// Matcher resolves candidates against canonical shortlists.
type Matcher struct {
	port inference.Port
	cfg  config.MatchConfig
}

// New creates a Matcher.
func New(port inference.Port, cfg config.MatchConfig) *Matcher {
	if cfg.FastPathThreshold <= 0 {
		cfg.FastPathThreshold = 0.9
	}
	if cfg.MatchedThreshold <= 0 {
		cfg.MatchedThreshold = 0.7
	}
	if cfg.ReviewThreshold <= 0 {
		cfg.ReviewThreshold = 0.5
	}
	if cfg.ShortlistLimit <= 0 {
		cfg.ShortlistLimit = 5
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	return &Matcher{port: port, cfg: cfg}
}

// matchInput is the structured input for the inference pass.
type matchInput struct {
	Candidate struct {
		Name        string `json:"name"`
		Role        string `json:"role,omitempty"`
		Affiliation string `json:"affiliation,omitempty"`
		SourceURL   string `json:"source_url,omitempty"`
	} `json:"candidate"`
	Entries []matchEntry `json:"entries"`
}

type matchEntry struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Role     string `json:"role,omitempty"`
	Party    string `json:"party,omitempty"`
	District string `json:"district,omitempty"`
}

// matchOutput is the schema expected back from the port.
type matchOutput struct {
	ShouldMatch bool    `json:"should_match"`
	EntityID    *int64  `json:"entity_id"`
	Confidence  float64 `json:"confidence"`
	Rationale   string  `json:"rationale"`
}

// Match resolves one candidate against a canonical shortlist.
//
// Rule pass first: the best deterministic score at or above the fast-path
// threshold returns matched without touching the inference port. Otherwise
// the top-N rule-scored entries go to the port, and the returned confidence
// is banded: ≥ matched threshold → matched, ≥ review threshold →
// needs_review, else no_match. A boundary value belongs to the band it
// opens.
func (m *Matcher) Match(ctx context.Context, candidate model.CandidateRecord, shortlist []model.Member) (model.MatchDecision, error) {
	decision := model.MatchDecision{
		Candidate: candidate,
		Status:    model.MatchStatusNoMatch,
	}

	if len(shortlist) == 0 {
		decision.Rationale = "no canonical candidates"
		return decision, nil
	}

	ranked := rankShortlist(candidate, shortlist)

	// Rule-based fast path.
	if best := ranked[0]; best.score >= m.cfg.FastPathThreshold {
		id := best.member.ID
		zap.L().Debug("match: rule fast path",
			zap.String("name", candidate.RawName),
			zap.Int64("entity_id", id),
			zap.Float64("score", best.score),
		)
		return model.MatchDecision{
			Candidate:  candidate,
			EntityID:   &id,
			Status:     model.MatchStatusMatched,
			Confidence: clamp(best.score),
			Rationale:  fmt.Sprintf("rule: normalized match against %q", best.member.Name),
		}, nil
	}

	// Inference-assisted pass over the top-N rule-scored entries.
	if len(ranked) > m.cfg.ShortlistLimit {
		ranked = ranked[:m.cfg.ShortlistLimit]
	}

	input := matchInput{Entries: make([]matchEntry, 0, len(ranked))}
	input.Candidate.Name = candidate.RawName
	input.Candidate.Role = candidate.RawRole
	input.Candidate.Affiliation = candidate.RawAffiliation
	input.Candidate.SourceURL = candidate.SourceURL
	byID := make(map[int64]bool, len(ranked))
	for _, s := range ranked {
		byID[s.member.ID] = true
		input.Entries = append(input.Entries, matchEntry{
			ID:       s.member.ID,
			Name:     s.member.Name,
			Role:     s.member.Role,
			Party:    s.member.Party,
			District: s.member.District,
		})
	}

	raw, err := m.port.Infer(ctx, inference.TaskMatchEntity, input)
	if err != nil {
		if resilience.IsValidation(err) {
			return m.invalidOutputDecision(candidate, err), nil
		}
		return decision, eris.Wrap(err, "match: infer")
	}

	var out matchOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return m.invalidOutputDecision(candidate, err), nil
	}
	// Schema validation: a positive match must name a shortlist entry.
	if out.ShouldMatch && (out.EntityID == nil || !byID[*out.EntityID]) {
		return m.invalidOutputDecision(candidate,
			eris.New("should_match without a valid entity_id")), nil
	}

	confidence := clamp(out.Confidence)
	if !out.ShouldMatch {
		return model.MatchDecision{
			Candidate:  candidate,
			Status:     model.MatchStatusNoMatch,
			Confidence: confidence,
			Rationale:  out.Rationale,
		}, nil
	}

	decision = model.MatchDecision{
		Candidate:  candidate,
		EntityID:   out.EntityID,
		Confidence: confidence,
		Rationale:  out.Rationale,
	}
	switch {
	case confidence >= m.cfg.MatchedThreshold:
		decision.Status = model.MatchStatusMatched
	case confidence >= m.cfg.ReviewThreshold:
		decision.Status = model.MatchStatusNeedsReview
	default:
		decision.Status = model.MatchStatusNoMatch
		decision.EntityID = nil
	}
	return decision, nil
}

// invalidOutputDecision downgrades malformed inference output to a
// conservative no-match. Deterministic bad output is never retried.
func (m *Matcher) invalidOutputDecision(candidate model.CandidateRecord, cause error) model.MatchDecision {
	zap.L().Warn("match: inference output failed validation",
		zap.String("name", candidate.RawName),
		zap.Error(cause),
	)
	return model.MatchDecision{
		Candidate:  candidate,
		Status:     model.MatchStatusNoMatch,
		Confidence: 0.0,
		Rationale:  "inference output failed validation",
	}
}

// MatchAll resolves a page's candidates concurrently with a bounded group.
// Decisions come back in candidate order. The first transport-level error
// cancels the remaining work.
func (m *Matcher) MatchAll(ctx context.Context, candidates []model.CandidateRecord, shortlistFor func(context.Context, model.CandidateRecord) ([]model.Member, error)) ([]model.MatchDecision, error) {
	decisions := make([]model.MatchDecision, len(candidates))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.MaxConcurrent)

	var mu sync.Mutex
	for i, candidate := range candidates {
		g.Go(func() error {
			shortlist, err := shortlistFor(gCtx, candidate)
			if err != nil {
				return eris.Wrap(err, "match: shortlist")
			}
			decision, err := m.Match(gCtx, candidate, shortlist)
			if err != nil {
				return err
			}
			mu.Lock()
			decisions[i] = decision
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return decisions, nil
}
