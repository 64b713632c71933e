// Package reconcile turns match decisions into canonical-store updates.
//
// Every decision is logged to the Bronze trail first, whatever its outcome;
// only then may the canonical record change, and only through the guarded
// conditional update. A member that a human has verified is never modified
// by this path.
package reconcile

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/civiclens/registry-cli/internal/model"
	"github.com/civiclens/registry-cli/internal/store"
)

// Reason explains why a reconciliation did or did not update the canonical
// record.
type Reason string

const (
	ReasonUpdated          Reason = "updated"
	ReasonUnmatched        Reason = "unmatched"
	ReasonEntityNotFound   Reason = "entity_not_found"
	ReasonManuallyVerified Reason = "manually_verified"
	ReasonConflict         Reason = "conflict"
)

// Result reports one reconciliation outcome. LogID is always set: the
// Bronze entry exists even when no canonical update happened.
type Result struct {
	Updated bool   `json:"updated"`
	Reason  Reason `json:"reason"`
	LogID   string `json:"log_id"`
}

// Engine applies match decisions to the store.
type Engine struct {
	store           store.Store
	pipelineVersion string
}

// New creates an Engine stamping entries with the given pipeline version.
func New(s store.Store, pipelineVersion string) *Engine {
	return &Engine{store: s, pipelineVersion: pipelineVersion}
}

// Reconcile processes one match decision.
//
// The Bronze append always happens, so a re-run of the same decision
// produces a new log entry; the canonical fields converge because the same
// values are re-applied against the freshly read row.
func (e *Engine) Reconcile(ctx context.Context, decision model.MatchDecision) (Result, error) {
	logID, err := e.appendLog(ctx, decision)
	if err != nil {
		return Result{}, err
	}
	result := Result{Reason: ReasonUnmatched, LogID: logID}

	if decision.Status != model.MatchStatusMatched || decision.EntityID == nil {
		zap.L().Debug("reconcile: decision not matched",
			zap.String("name", decision.Candidate.RawName),
			zap.String("status", string(decision.Status)),
		)
		return result, nil
	}

	member, err := e.store.GetMember(ctx, *decision.EntityID)
	if err != nil {
		return result, eris.Wrap(err, "reconcile: get member")
	}
	if member == nil {
		result.Reason = ReasonEntityNotFound
		zap.L().Warn("reconcile: matched entity missing",
			zap.Int64("entity_id", *decision.EntityID),
			zap.String("name", decision.Candidate.RawName),
		)
		return result, nil
	}
	if member.IsManuallyVerified {
		result.Reason = ReasonManuallyVerified
		zap.L().Info("reconcile: member is manually verified, skipping",
			zap.Int64("entity_id", member.ID),
		)
		return result, nil
	}

	applyFields(member, decision.Candidate)
	member.LatestExtractionLogID = &logID

	updated, err := e.store.UpdateMemberGuarded(ctx, member)
	if err != nil {
		return result, eris.Wrap(err, "reconcile: guarded update")
	}
	if !updated {
		// The row changed between read and write, or the guard was raised
		// concurrently. The Bronze entry stands; the canonical row does not
		// move.
		result.Reason = ReasonConflict
		zap.L().Warn("reconcile: guarded update lost",
			zap.Int64("entity_id", member.ID),
			zap.Int64("version", member.Version),
		)
		return result, nil
	}

	result.Updated = true
	result.Reason = ReasonUpdated
	return result, nil
}

// ReconcileAll processes decisions in order and counts updates. A failure on
// one decision stops the batch; callers that want per-item error
// accumulation handle it at the crawl layer.
func (e *Engine) ReconcileAll(ctx context.Context, decisions []model.MatchDecision) (int, error) {
	updated := 0
	for _, d := range decisions {
		res, err := e.Reconcile(ctx, d)
		if err != nil {
			return updated, err
		}
		if res.Updated {
			updated++
		}
	}
	return updated, nil
}

// appendLog writes the Bronze entry for a decision.
func (e *Engine) appendLog(ctx context.Context, decision model.MatchDecision) (string, error) {
	data, err := json.Marshal(decision.Candidate)
	if err != nil {
		return "", eris.Wrap(err, "reconcile: marshal candidate")
	}

	entry := model.ExtractionLogEntry{
		EntityType:      model.EntityTypeMember,
		EntityID:        decision.EntityID,
		PipelineVersion: e.pipelineVersion,
		ExtractedData:   data,
		ConfidenceScore: decision.Confidence,
		Metadata: map[string]any{
			"match_status": string(decision.Status),
			"source_url":   decision.Candidate.SourceURL,
		},
		CreatedAt: time.Now().UTC(),
	}
	if decision.Rationale != "" {
		entry.Metadata["rationale"] = decision.Rationale
	}

	logID, err := e.store.AppendExtractionLog(ctx, &entry)
	if err != nil {
		return "", eris.Wrap(err, "reconcile: append log")
	}
	return logID, nil
}

// applyFields copies non-empty extracted values onto the member. An empty
// extraction never clears an existing canonical value.
func applyFields(member *model.Member, candidate model.CandidateRecord) {
	if candidate.RawName != "" {
		member.Name = candidate.RawName
	}
	if candidate.RawRole != "" {
		member.Role = candidate.RawRole
	}
	if candidate.RawAffiliation != "" {
		member.Party = candidate.RawAffiliation
	}
	if candidate.SourceURL != "" {
		member.SourceURL = candidate.SourceURL
	}
}
