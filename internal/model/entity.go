package model

import (
	"encoding/json"
	"time"
)

// EntityType identifies a class of canonical record. The extraction log is
// keyed by entity type so additional registries (parties, statements) can
// share the same Bronze trail.
type EntityType string

const (
	EntityTypeMember    EntityType = "member"
	EntityTypeParty     EntityType = "party"
	EntityTypeStatement EntityType = "statement"
)

// Member is the canonical (Gold) record for a political member.
//
// IsManuallyVerified is the protection guard: once a human has corrected a
// member through the verify path, automated reconciliation must never touch
// its fields again. Version backs the optimistic conditional update.
type Member struct {
	ID                    int64     `json:"id"`
	Name                  string    `json:"name"`
	Role                  string    `json:"role,omitempty"`
	Party                 string    `json:"party,omitempty"`
	District              string    `json:"district,omitempty"`
	SourceURL             string    `json:"source_url,omitempty"`
	IsManuallyVerified    bool      `json:"is_manually_verified"`
	LatestExtractionLogID *string   `json:"latest_extraction_log_id,omitempty"`
	Version               int64     `json:"version"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// ExtractionLogEntry is a single Bronze-layer record. Entries are append-only:
// the store exposes no update or delete for them, and total order follows
// (CreatedAt, ID).
type ExtractionLogEntry struct {
	ID              string          `json:"id"`
	EntityType      EntityType      `json:"entity_type"`
	EntityID        *int64          `json:"entity_id,omitempty"`
	PipelineVersion string          `json:"pipeline_version"`
	ExtractedData   json.RawMessage `json:"extracted_data"`
	ConfidenceScore float64         `json:"confidence_score"`
	Metadata        map[string]any  `json:"metadata,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}
