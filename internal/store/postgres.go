package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hkfcheung/regintel-sub001/internal/pipeline"
)

// uniqueViolation is the SQLSTATE raised when an insert races the unique
// fingerprint index.
const uniqueViolation = "23505"

// PGConfig controls the Postgres connection pool.
type PGConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PG implements the pipeline store interfaces on Postgres.
type PG struct {
	pool pgPool
	sb   sq.StatementBuilderType
}

// NewPG connects a pool and returns a PG store.
func NewPG(ctx context.Context, cfg PGConfig) (*PG, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewPGWithPool(pool), nil
}

// NewPGWithPool constructs a store from an existing pool (primarily for
// testing with pgxmock).
func NewPGWithPool(pool pgPool) *PG {
	return &PG{
		pool: pool,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Close releases the underlying pool resources.
func (s *PG) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the pipeline tables when they do not exist.
func (s *PG) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS source_items (
	id            TEXT PRIMARY KEY,
	url           TEXT NOT NULL,
	secondary_url TEXT NOT NULL DEFAULT '',
	source        TEXT NOT NULL,
	category      TEXT NOT NULL,
	title         TEXT NOT NULL,
	published_at  TIMESTAMPTZ,
	fingerprint   TEXT NOT NULL,
	status        TEXT NOT NULL,
	tags          TEXT[] NOT NULL DEFAULT '{}',
	bookmark_id   TEXT NOT NULL DEFAULT '',
	fetched_at    TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS source_items_fingerprint_key ON source_items (fingerprint);
CREATE INDEX IF NOT EXISTS source_items_url_idx ON source_items (url);

CREATE TABLE IF NOT EXISTS analyses (
	id         TEXT PRIMARY KEY,
	item_id    TEXT NOT NULL REFERENCES source_items (id),
	summary    TEXT NOT NULL,
	impact     TEXT NOT NULL,
	citations  TEXT[] NOT NULL DEFAULT '{}',
	model_meta JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS analyses_item_idx ON analyses (item_id, created_at DESC);

CREATE TABLE IF NOT EXISTS domain_policies (
	domain             TEXT PRIMARY KEY,
	active             BOOLEAN NOT NULL DEFAULT TRUE,
	description        TEXT NOT NULL DEFAULT '',
	last_discovered_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS feed_subscriptions (
	id             TEXT PRIMARY KEY,
	url            TEXT NOT NULL,
	title          TEXT NOT NULL DEFAULT '',
	last_polled_at TIMESTAMPTZ
);
`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// InsertItem inserts a new source item. A unique violation on the
// fingerprint index comes back as pipeline.ErrConflict so the state machine
// can reinterpret the race as a duplicate.
func (s *PG) InsertItem(ctx context.Context, item pipeline.SourceItem) error {
	query, args, err := s.sb.Insert("source_items").
		Columns(
			"id", "url", "secondary_url", "source", "category", "title",
			"published_at", "fingerprint", "status", "tags", "bookmark_id", "fetched_at",
		).
		Values(
			item.ID, item.URL, item.SecondaryURL, item.Source, string(item.Category), item.Title,
			item.PublishedAt, item.Fingerprint, string(item.Status), item.Tags, item.BookmarkID, item.FetchedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("insert item: %w", pipeline.ErrConflict)
		}
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

const itemColumns = "id, url, secondary_url, source, category, title, published_at, fingerprint, status, tags, bookmark_id, fetched_at"

func scanItem(row pgx.Row) (pipeline.SourceItem, error) {
	var (
		item     pipeline.SourceItem
		category string
		status   string
	)
	err := row.Scan(
		&item.ID, &item.URL, &item.SecondaryURL, &item.Source, &category, &item.Title,
		&item.PublishedAt, &item.Fingerprint, &status, &item.Tags, &item.BookmarkID, &item.FetchedAt,
	)
	if err != nil {
		return pipeline.SourceItem{}, err
	}
	item.Category = pipeline.Category(category)
	item.Status = pipeline.ItemStatus(status)
	return item, nil
}

func (s *PG) findItem(ctx context.Context, column, value string) (pipeline.SourceItem, bool, error) {
	query, args, err := s.sb.Select(itemColumns).
		From("source_items").
		Where(sq.Eq{column: value}).
		Limit(1).
		ToSql()
	if err != nil {
		return pipeline.SourceItem{}, false, fmt.Errorf("build select: %w", err)
	}
	item, err := scanItem(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return pipeline.SourceItem{}, false, nil
	}
	if err != nil {
		return pipeline.SourceItem{}, false, fmt.Errorf("select item by %s: %w", column, err)
	}
	return item, true, nil
}

// FindByFingerprint is the deduplication index lookup.
func (s *PG) FindByFingerprint(ctx context.Context, fingerprint string) (pipeline.SourceItem, bool, error) {
	return s.findItem(ctx, "fingerprint", fingerprint)
}

// FindByURL looks an item up by its origin URL.
func (s *PG) FindByURL(ctx context.Context, url string) (pipeline.SourceItem, bool, error) {
	return s.findItem(ctx, "url", url)
}

// GetItem fetches an item by ID.
func (s *PG) GetItem(ctx context.Context, id string) (pipeline.SourceItem, error) {
	item, ok, err := s.findItem(ctx, "id", id)
	if err != nil {
		return pipeline.SourceItem{}, err
	}
	if !ok {
		return pipeline.SourceItem{}, pipeline.ErrNotFound
	}
	return item, nil
}

// SetBookmarkID records the external bookmark identifier on an item.
func (s *PG) SetBookmarkID(ctx context.Context, id, bookmarkID string) error {
	query, args, err := s.sb.Update("source_items").
		Set("bookmark_id", bookmarkID).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update bookmark id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pipeline.ErrNotFound
	}
	return nil
}

// InsertAnalysis appends an analysis record for an item.
func (s *PG) InsertAnalysis(ctx context.Context, rec pipeline.AnalysisRecord) error {
	meta, err := json.Marshal(rec.ModelMeta)
	if err != nil {
		return fmt.Errorf("marshal model meta: %w", err)
	}
	query, args, err := s.sb.Insert("analyses").
		Columns("id", "item_id", "summary", "impact", "citations", "model_meta", "created_at").
		Values(rec.ID, rec.ItemID, rec.Summary, rec.Impact, rec.Citations, meta, rec.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

// LatestAnalysis returns the newest analysis record for an item.
func (s *PG) LatestAnalysis(ctx context.Context, itemID string) (pipeline.AnalysisRecord, bool, error) {
	query, args, err := s.sb.Select("id", "item_id", "summary", "impact", "citations", "model_meta", "created_at").
		From("analyses").
		Where(sq.Eq{"item_id": itemID}).
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return pipeline.AnalysisRecord{}, false, fmt.Errorf("build select: %w", err)
	}
	var (
		rec  pipeline.AnalysisRecord
		meta []byte
	)
	err = s.pool.QueryRow(ctx, query, args...).Scan(
		&rec.ID, &rec.ItemID, &rec.Summary, &rec.Impact, &rec.Citations, &meta, &rec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return pipeline.AnalysisRecord{}, false, nil
	}
	if err != nil {
		return pipeline.AnalysisRecord{}, false, fmt.Errorf("select latest analysis: %w", err)
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &rec.ModelMeta); err != nil {
			return pipeline.AnalysisRecord{}, false, fmt.Errorf("unmarshal model meta: %w", err)
		}
	}
	return rec, true, nil
}

// PutPolicy inserts or replaces an allow-list entry.
func (s *PG) PutPolicy(ctx context.Context, p pipeline.DomainPolicy) error {
	query, args, err := s.sb.Insert("domain_policies").
		Columns("domain", "active", "description", "last_discovered_at").
		Values(p.Domain, p.Active, p.Description, p.LastDiscoveredAt).
		Suffix("ON CONFLICT (domain) DO UPDATE SET active = EXCLUDED.active, description = EXCLUDED.description").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert policy: %w", err)
	}
	return nil
}

// ActivePolicies lists active allow-list entries.
func (s *PG) ActivePolicies(ctx context.Context) ([]pipeline.DomainPolicy, error) {
	query, args, err := s.sb.Select("domain", "active", "description", "last_discovered_at").
		From("domain_policies").
		Where(sq.Eq{"active": true}).
		OrderBy("domain").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select policies: %w", err)
	}
	defer rows.Close()
	var out []pipeline.DomainPolicy
	for rows.Next() {
		var p pipeline.DomainPolicy
		if err := rows.Scan(&p.Domain, &p.Active, &p.Description, &p.LastDiscoveredAt); err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate policies: %w", err)
	}
	return out, nil
}

// GetPolicy fetches one allow-list entry.
func (s *PG) GetPolicy(ctx context.Context, domain string) (pipeline.DomainPolicy, bool, error) {
	query, args, err := s.sb.Select("domain", "active", "description", "last_discovered_at").
		From("domain_policies").
		Where(sq.Eq{"domain": domain}).
		ToSql()
	if err != nil {
		return pipeline.DomainPolicy{}, false, fmt.Errorf("build select: %w", err)
	}
	var p pipeline.DomainPolicy
	err = s.pool.QueryRow(ctx, query, args...).Scan(&p.Domain, &p.Active, &p.Description, &p.LastDiscoveredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return pipeline.DomainPolicy{}, false, nil
	}
	if err != nil {
		return pipeline.DomainPolicy{}, false, fmt.Errorf("select policy: %w", err)
	}
	return p, true, nil
}

// SetLastDiscovered stamps a domain after a discovery pass.
func (s *PG) SetLastDiscovered(ctx context.Context, domain string, t time.Time) error {
	query, args, err := s.sb.Update("domain_policies").
		Set("last_discovered_at", t).
		Where(sq.Eq{"domain": domain}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update last discovered: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pipeline.ErrNotFound
	}
	return nil
}

// PutFeed inserts or replaces a feed subscription.
func (s *PG) PutFeed(ctx context.Context, f pipeline.FeedSubscription) error {
	query, args, err := s.sb.Insert("feed_subscriptions").
		Columns("id", "url", "title", "last_polled_at").
		Values(f.ID, f.URL, f.Title, f.LastPolledAt).
		Suffix("ON CONFLICT (id) DO UPDATE SET url = EXCLUDED.url, title = EXCLUDED.title").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert feed: %w", err)
	}
	return nil
}

// ListFeeds returns all feed subscriptions.
func (s *PG) ListFeeds(ctx context.Context) ([]pipeline.FeedSubscription, error) {
	query, args, err := s.sb.Select("id", "url", "title", "last_polled_at").
		From("feed_subscriptions").
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select feeds: %w", err)
	}
	defer rows.Close()
	var out []pipeline.FeedSubscription
	for rows.Next() {
		var f pipeline.FeedSubscription
		if err := rows.Scan(&f.ID, &f.URL, &f.Title, &f.LastPolledAt); err != nil {
			return nil, fmt.Errorf("scan feed: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feeds: %w", err)
	}
	return out, nil
}

// GetFeed fetches one feed subscription.
func (s *PG) GetFeed(ctx context.Context, id string) (pipeline.FeedSubscription, bool, error) {
	query, args, err := s.sb.Select("id", "url", "title", "last_polled_at").
		From("feed_subscriptions").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return pipeline.FeedSubscription{}, false, fmt.Errorf("build select: %w", err)
	}
	var f pipeline.FeedSubscription
	err = s.pool.QueryRow(ctx, query, args...).Scan(&f.ID, &f.URL, &f.Title, &f.LastPolledAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return pipeline.FeedSubscription{}, false, nil
	}
	if err != nil {
		return pipeline.FeedSubscription{}, false, fmt.Errorf("select feed: %w", err)
	}
	return f, true, nil
}

// SetLastPolled stamps a feed after a poll attempt.
func (s *PG) SetLastPolled(ctx context.Context, id string, t time.Time) error {
	query, args, err := s.sb.Update("feed_subscriptions").
		Set("last_polled_at", t).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update last polled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pipeline.ErrNotFound
	}
	return nil
}
