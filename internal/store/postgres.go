package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/civiclens/registry-cli/internal/db"
	"github.com/civiclens/registry-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access (e.g., the seed importer).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS members (
	id                       BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	name                     TEXT NOT NULL,
	role                     TEXT NOT NULL DEFAULT '',
	party                    TEXT NOT NULL DEFAULT '',
	district                 TEXT NOT NULL DEFAULT '',
	source_url               TEXT NOT NULL DEFAULT '',
	is_manually_verified     BOOLEAN NOT NULL DEFAULT FALSE,
	latest_extraction_log_id TEXT,
	version                  BIGINT NOT NULL DEFAULT 1,
	created_at               TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at               TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_members_name ON members (lower(name));

CREATE TABLE IF NOT EXISTS extraction_log (
	id               TEXT PRIMARY KEY,
	entity_type      TEXT NOT NULL,
	entity_id        BIGINT,
	pipeline_version TEXT NOT NULL,
	extracted_data   JSONB NOT NULL,
	confidence_score DOUBLE PRECISION NOT NULL,
	metadata         JSONB,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_extraction_log_entity
	ON extraction_log (entity_type, entity_id, created_at);

CREATE TABLE IF NOT EXISTS page_cache (
	id         TEXT PRIMARY KEY,
	url        TEXT NOT NULL UNIQUE,
	page       JSONB NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);
`

// Migrate creates the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const memberColumns = `id, name, role, party, district, source_url, is_manually_verified, latest_extraction_log_id, version, created_at, updated_at`

// CreateMember inserts a new canonical member.
func (s *PostgresStore) CreateMember(ctx context.Context, m *model.Member) error {
	now := time.Now().UTC()
	row := s.pool.QueryRow(ctx,
		`INSERT INTO members (name, role, party, district, source_url, is_manually_verified, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $7)
		 RETURNING id`,
		m.Name, m.Role, m.Party, m.District, m.SourceURL, m.IsManuallyVerified, now,
	)
	if err := row.Scan(&m.ID); err != nil {
		return eris.Wrap(err, "postgres: create member")
	}
	m.Version = 1
	m.CreatedAt = now
	m.UpdatedAt = now
	return nil
}

// GetMember loads a member by id. Returns (nil, nil) when absent.
func (s *PostgresStore) GetMember(ctx context.Context, id int64) (*model.Member, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM members WHERE id = $1`, id)
	m, err := scanMember(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get member")
	}
	return m, nil
}

// SearchMembers returns a shortlist of members whose name or party matches
// the query, ordered by name.
func (s *PostgresStore) SearchMembers(ctx context.Context, query string, limit int) ([]model.Member, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+memberColumns+` FROM members
		 WHERE name ILIKE '%' || $1 || '%' OR party ILIKE '%' || $1 || '%'
		 ORDER BY name LIMIT $2`,
		query, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: search members")
	}
	defer rows.Close()

	var out []model.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan member")
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: search members rows")
	}
	return out, nil
}

// UpdateMemberGuarded applies an automated update conditionally: the row
// must still carry the version the caller read, and must not be manually
// verified. Returns false when the condition failed (no row changed).
func (s *PostgresStore) UpdateMemberGuarded(ctx context.Context, m *model.Member) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE members
		 SET name = $1, role = $2, party = $3, district = $4, source_url = $5,
		     latest_extraction_log_id = $6, version = version + 1, updated_at = now()
		 WHERE id = $7 AND version = $8 AND is_manually_verified = FALSE`,
		m.Name, m.Role, m.Party, m.District, m.SourceURL,
		m.LatestExtractionLogID, m.ID, m.Version,
	)
	if err != nil {
		return false, eris.Wrap(err, "postgres: update member")
	}
	return tag.RowsAffected() > 0, nil
}

// VerifyMember is the human write path: it applies the fields and raises
// the manual-verification guard unconditionally.
func (s *PostgresStore) VerifyMember(ctx context.Context, m *model.Member) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE members
		 SET name = $1, role = $2, party = $3, district = $4, source_url = $5,
		     is_manually_verified = TRUE, version = version + 1, updated_at = now()
		 WHERE id = $6`,
		m.Name, m.Role, m.Party, m.District, m.SourceURL, m.ID,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: verify member")
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: verify member %d: not found", m.ID)
	}
	return nil
}

// AppendExtractionLog inserts a Bronze entry and returns its id.
func (s *PostgresStore) AppendExtractionLog(ctx context.Context, e *model.ExtractionLogEntry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal log metadata")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO extraction_log (id, entity_type, entity_id, pipeline_version, extracted_data, confidence_score, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, string(e.EntityType), e.EntityID, e.PipelineVersion,
		[]byte(e.ExtractedData), e.ConfidenceScore, metadata, e.CreatedAt,
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: append extraction log")
	}
	return e.ID, nil
}

// ListExtractionLog returns the Bronze trail for an entity in append order.
func (s *PostgresStore) ListExtractionLog(ctx context.Context, entityType model.EntityType, entityID int64) ([]model.ExtractionLogEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, entity_type, entity_id, pipeline_version, extracted_data, confidence_score, metadata, created_at
		 FROM extraction_log
		 WHERE entity_type = $1 AND entity_id = $2
		 ORDER BY created_at, id`,
		string(entityType), entityID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list extraction log")
	}
	defer rows.Close()

	var out []model.ExtractionLogEntry
	for rows.Next() {
		var e model.ExtractionLogEntry
		var entityType string
		var extracted, metadata []byte
		if err := rows.Scan(&e.ID, &entityType, &e.EntityID, &e.PipelineVersion,
			&extracted, &e.ConfidenceScore, &metadata, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan extraction log")
		}
		e.EntityType = model.EntityType(entityType)
		e.ExtractedData = json.RawMessage(extracted)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal log metadata")
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list extraction log rows")
	}
	return out, nil
}

// GetCachedPage returns an unexpired cached fetch, or (nil, nil).
func (s *PostgresStore) GetCachedPage(ctx context.Context, url string) (*model.PageCache, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, url, page, fetched_at, expires_at FROM page_cache
		 WHERE url = $1 AND expires_at > now()`,
		url)

	var pc model.PageCache
	var page []byte
	if err := row.Scan(&pc.ID, &pc.URL, &page, &pc.FetchedAt, &pc.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get cached page")
	}
	if err := json.Unmarshal(page, &pc.Page); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal cached page")
	}
	return &pc, nil
}

// SetCachedPage upserts a fetch result with the given TTL.
func (s *PostgresStore) SetCachedPage(ctx context.Context, url string, page model.FetchedPage, ttl time.Duration) error {
	payload, err := json.Marshal(page)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal cached page")
	}
	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO page_cache (id, url, page, fetched_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (url) DO UPDATE SET page = $3, fetched_at = $4, expires_at = $5`,
		uuid.NewString(), url, payload, now, now.Add(ttl),
	)
	if err != nil {
		return eris.Wrap(err, "postgres: set cached page")
	}
	return nil
}

// DeleteExpiredPages removes expired cache rows and reports how many.
func (s *PostgresStore) DeleteExpiredPages(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM page_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired pages")
	}
	return int(tag.RowsAffected()), nil
}

// scanMember scans a member row from either pgx.Row or pgx.Rows.
func scanMember(row pgx.Row) (*model.Member, error) {
	var m model.Member
	err := row.Scan(&m.ID, &m.Name, &m.Role, &m.Party, &m.District, &m.SourceURL,
		&m.IsManuallyVerified, &m.LatestExtractionLogID, &m.Version,
		&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
