package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/civiclens/registry-cli/internal/model"
)

// SQLiteStore implements Store on an embedded SQLite database. It is the
// zero-setup path for local runs; the schema mirrors the Postgres one.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (and creates if needed) a SQLite database at path.
// Use ":memory:" for an ephemeral database.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// modernc.org/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent reconciliation.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL; PRAGMA foreign_keys = ON;`); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "sqlite: pragmas")
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS members (
	id                       INTEGER PRIMARY KEY AUTOINCREMENT,
	name                     TEXT NOT NULL,
	role                     TEXT NOT NULL DEFAULT '',
	party                    TEXT NOT NULL DEFAULT '',
	district                 TEXT NOT NULL DEFAULT '',
	source_url               TEXT NOT NULL DEFAULT '',
	is_manually_verified     INTEGER NOT NULL DEFAULT 0,
	latest_extraction_log_id TEXT,
	version                  INTEGER NOT NULL DEFAULT 1,
	created_at               TEXT NOT NULL,
	updated_at               TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS extraction_log (
	id               TEXT PRIMARY KEY,
	entity_type      TEXT NOT NULL,
	entity_id        INTEGER,
	pipeline_version TEXT NOT NULL,
	extracted_data   TEXT NOT NULL,
	confidence_score REAL NOT NULL,
	metadata         TEXT,
	created_at       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_extraction_log_entity
	ON extraction_log (entity_type, entity_id, created_at);

CREATE TABLE IF NOT EXISTS page_cache (
	id         TEXT PRIMARY KEY,
	url        TEXT NOT NULL UNIQUE,
	page       TEXT NOT NULL,
	fetched_at TEXT NOT NULL,
	expires_at TEXT NOT NULL
);
`

// Migrate creates the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteTimeLayout = time.RFC3339Nano

// CreateMember inserts a new canonical member.
func (s *SQLiteStore) CreateMember(ctx context.Context, m *model.Member) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO members (name, role, party, district, source_url, is_manually_verified, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		m.Name, m.Role, m.Party, m.District, m.SourceURL, boolToInt(m.IsManuallyVerified),
		now.Format(sqliteTimeLayout), now.Format(sqliteTimeLayout),
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: create member")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: create member id")
	}
	m.ID = id
	m.Version = 1
	m.CreatedAt = now
	m.UpdatedAt = now
	return nil
}

// GetMember loads a member by id. Returns (nil, nil) when absent.
func (s *SQLiteStore) GetMember(ctx context.Context, id int64) (*model.Member, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE id = ?`, id)
	m, err := scanSQLiteMember(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: get member")
	}
	return m, nil
}

// SearchMembers returns members whose name or party matches the query.
func (s *SQLiteStore) SearchMembers(ctx context.Context, query string, limit int) ([]model.Member, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memberColumns+` FROM members
		 WHERE name LIKE '%' || ? || '%' OR party LIKE '%' || ? || '%'
		 ORDER BY name LIMIT ?`,
		query, query, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: search members")
	}
	defer rows.Close()

	var out []model.Member
	for rows.Next() {
		m, err := scanSQLiteMember(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan member")
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: search members rows")
	}
	return out, nil
}

// UpdateMemberGuarded applies the automated update conditionally on version
// and the manual-verification guard.
func (s *SQLiteStore) UpdateMemberGuarded(ctx context.Context, m *model.Member) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE members
		 SET name = ?, role = ?, party = ?, district = ?, source_url = ?,
		     latest_extraction_log_id = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ? AND is_manually_verified = 0`,
		m.Name, m.Role, m.Party, m.District, m.SourceURL,
		m.LatestExtractionLogID, time.Now().UTC().Format(sqliteTimeLayout),
		m.ID, m.Version,
	)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: update member")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: update member rows")
	}
	return n > 0, nil
}

// VerifyMember applies the fields and raises the guard.
func (s *SQLiteStore) VerifyMember(ctx context.Context, m *model.Member) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE members
		 SET name = ?, role = ?, party = ?, district = ?, source_url = ?,
		     is_manually_verified = 1, version = version + 1, updated_at = ?
		 WHERE id = ?`,
		m.Name, m.Role, m.Party, m.District, m.SourceURL,
		time.Now().UTC().Format(sqliteTimeLayout), m.ID,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: verify member")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: verify member rows")
	}
	if n == 0 {
		return eris.Errorf("sqlite: verify member %d: not found", m.ID)
	}
	return nil
}

// AppendExtractionLog inserts a Bronze entry and returns its id.
func (s *SQLiteStore) AppendExtractionLog(ctx context.Context, e *model.ExtractionLogEntry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal log metadata")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO extraction_log (id, entity_type, entity_id, pipeline_version, extracted_data, confidence_score, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.EntityType), e.EntityID, e.PipelineVersion,
		string(e.ExtractedData), e.ConfidenceScore, string(metadata),
		e.CreatedAt.Format(sqliteTimeLayout),
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: append extraction log")
	}
	return e.ID, nil
}

// ListExtractionLog returns the Bronze trail for an entity in append order.
func (s *SQLiteStore) ListExtractionLog(ctx context.Context, entityType model.EntityType, entityID int64) ([]model.ExtractionLogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entity_type, entity_id, pipeline_version, extracted_data, confidence_score, metadata, created_at
		 FROM extraction_log
		 WHERE entity_type = ? AND entity_id = ?
		 ORDER BY created_at, id`,
		string(entityType), entityID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list extraction log")
	}
	defer rows.Close()

	var out []model.ExtractionLogEntry
	for rows.Next() {
		var e model.ExtractionLogEntry
		var entityType, extracted, metadata, createdAt string
		if err := rows.Scan(&e.ID, &entityType, &e.EntityID, &e.PipelineVersion,
			&extracted, &e.ConfidenceScore, &metadata, &createdAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan extraction log")
		}
		e.EntityType = model.EntityType(entityType)
		e.ExtractedData = json.RawMessage(extracted)
		if metadata != "" && metadata != "null" {
			if err := json.Unmarshal([]byte(metadata), &e.Metadata); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal log metadata")
			}
		}
		if e.CreatedAt, err = time.Parse(sqliteTimeLayout, createdAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: parse log timestamp")
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list extraction log rows")
	}
	return out, nil
}

// GetCachedPage returns an unexpired cached fetch, or (nil, nil).
func (s *SQLiteStore) GetCachedPage(ctx context.Context, url string) (*model.PageCache, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, url, page, fetched_at, expires_at FROM page_cache WHERE url = ?`, url)

	var pc model.PageCache
	var page, fetchedAt, expiresAt string
	if err := row.Scan(&pc.ID, &pc.URL, &page, &fetchedAt, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: get cached page")
	}
	var err error
	if pc.FetchedAt, err = time.Parse(sqliteTimeLayout, fetchedAt); err != nil {
		return nil, eris.Wrap(err, "sqlite: parse cache timestamp")
	}
	if pc.ExpiresAt, err = time.Parse(sqliteTimeLayout, expiresAt); err != nil {
		return nil, eris.Wrap(err, "sqlite: parse cache expiry")
	}
	if !pc.ExpiresAt.After(time.Now().UTC()) {
		return nil, nil
	}
	if err := json.Unmarshal([]byte(page), &pc.Page); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal cached page")
	}
	return &pc, nil
}

// SetCachedPage upserts a fetch result with the given TTL.
func (s *SQLiteStore) SetCachedPage(ctx context.Context, url string, page model.FetchedPage, ttl time.Duration) error {
	payload, err := json.Marshal(page)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal cached page")
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO page_cache (id, url, page, fetched_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (url) DO UPDATE SET page = excluded.page,
		     fetched_at = excluded.fetched_at, expires_at = excluded.expires_at`,
		uuid.NewString(), url, string(payload),
		now.Format(sqliteTimeLayout), now.Add(ttl).Format(sqliteTimeLayout),
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: set cached page")
	}
	return nil
}

// DeleteExpiredPages removes expired cache rows and reports how many.
func (s *SQLiteStore) DeleteExpiredPages(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM page_cache WHERE expires_at <= ?`,
		time.Now().UTC().Format(sqliteTimeLayout))
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired pages")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired pages rows")
	}
	return int(n), nil
}

type sqliteScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteMember(row sqliteScanner) (*model.Member, error) {
	var m model.Member
	var verified int
	var createdAt, updatedAt string
	err := row.Scan(&m.ID, &m.Name, &m.Role, &m.Party, &m.District, &m.SourceURL,
		&verified, &m.LatestExtractionLogID, &m.Version, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	m.IsManuallyVerified = verified != 0
	if m.CreatedAt, err = time.Parse(sqliteTimeLayout, createdAt); err != nil {
		return nil, err
	}
	if m.UpdatedAt, err = time.Parse(sqliteTimeLayout, updatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
