package model

import "time"

// CandidateRecord is a structured member candidate pulled from a
// member-list page. It exists only between extraction and matching; the
// extraction log keeps the durable copy.
type CandidateRecord struct {
	SourceURL      string    `json:"source_url"`
	RawName        string    `json:"raw_name"`
	RawRole        string    `json:"raw_role,omitempty"`
	RawAffiliation string    `json:"raw_affiliation,omitempty"`
	ExtractedAt    time.Time `json:"extracted_at"`
}

// MatchStatus is the discrete outcome of matching a candidate.
type MatchStatus string

const (
	MatchStatusMatched     MatchStatus = "matched"
	MatchStatusNeedsReview MatchStatus = "needs_review"
	MatchStatusNoMatch     MatchStatus = "no_match"
)

// MatchDecision resolves a candidate against the canonical store. Produced
// once per candidate and immutable once written to the extraction log.
type MatchDecision struct {
	Candidate  CandidateRecord `json:"candidate"`
	EntityID   *int64          `json:"entity_id,omitempty"`
	Status     MatchStatus     `json:"status"`
	Confidence float64         `json:"confidence"`
	Rationale  string          `json:"rationale,omitempty"`
}
