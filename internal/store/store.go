// Package store persists the canonical registry (Gold) and the append-only
// extraction log (Bronze). The log exposes append and query only: entries
// are never updated or deleted.
package store

import (
	"context"
	"time"

	"github.com/civiclens/registry-cli/internal/model"
)

// Store defines the persistence interface for the registry pipeline.
type Store interface {
	// Canonical members (Gold). UpdateMemberGuarded is the only automated
	// write path: it applies the update conditionally on the member's
	// version and on is_manually_verified being false, returning whether a
	// row changed. VerifyMember is the human path and also sets the guard.
	CreateMember(ctx context.Context, m *model.Member) error
	GetMember(ctx context.Context, id int64) (*model.Member, error)
	SearchMembers(ctx context.Context, query string, limit int) ([]model.Member, error)
	UpdateMemberGuarded(ctx context.Context, m *model.Member) (bool, error)
	VerifyMember(ctx context.Context, m *model.Member) error

	// Extraction log (Bronze). Append-only; query returns entries in
	// (created_at, id) order.
	AppendExtractionLog(ctx context.Context, e *model.ExtractionLogEntry) (string, error)
	ListExtractionLog(ctx context.Context, entityType model.EntityType, entityID int64) ([]model.ExtractionLogEntry, error)

	// Page cache
	GetCachedPage(ctx context.Context, url string) (*model.PageCache, error)
	SetCachedPage(ctx context.Context, url string, page model.FetchedPage, ttl time.Duration) error
	DeleteExpiredPages(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
