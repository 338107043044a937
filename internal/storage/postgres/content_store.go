package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
)

// ContentStoreConfig controls the Postgres connection pool used for content rows.
type ContentStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// ContentStore persists discovered content records in Postgres. The hero
// mirror is stored as a JSONB column so the read path can render cards
// without a join.
type ContentStore struct {
	pool  pgxPool
	table string
}

// NewContentStore creates a Postgres-backed ContentStore using the provided config.
func NewContentStore(ctx context.Context, cfg ContentStoreConfig) (*ContentStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	table, err := contentTable(cfg.Table)
	if err != nil {
		return nil, err
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
	return &ContentStore{pool: pool, table: table}, nil
}

// NewContentStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewContentStoreWithPool(pool pgxPool, table string) (*ContentStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	t, err := contentTable(table)
	if err != nil {
		return nil, err
	}
	return &ContentStore{pool: pool, table: t}, nil
}

func contentTable(name string) (string, error) {
	if name == "" {
		name = "content_records"
	}
	if !validTableName.MatchString(name) {
		return "", fmt.Errorf("invalid table name %q", name)
	}
	return name, nil
}

// Close releases the underlying pool resources.
func (s *ContentStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Create inserts a new content record.
func (s *ContentStore) Create(ctx context.Context, record discovery.ContentRecord) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("content store is not configured")
	}
	if record.ID == "" {
		return fmt.Errorf("record id is required")
	}
	heroJSON, err := marshalMirror(record.Hero)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	topic,
	source_url,
	canonical_url,
	title,
	summary,
	text_content,
	relevance_score,
	quality_score,
	status,
	hero,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`, s.table)
	_, err = s.pool.Exec(ctx, query,
		record.ID,
		record.Topic,
		record.SourceURL,
		record.CanonicalURL,
		record.Title,
		record.Summary,
		record.TextContent,
		record.RelevanceScore,
		record.QualityScore,
		string(record.Status),
		heroJSON,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert content record: %w", err)
	}
	return nil
}

// Get returns a content record by ID.
func (s *ContentStore) Get(ctx context.Context, id string) (discovery.ContentRecord, bool, error) {
	if s == nil || s.pool == nil {
		return discovery.ContentRecord{}, false, fmt.Errorf("content store is not configured")
	}
	query := fmt.Sprintf(`
SELECT id, topic, source_url, canonical_url, title, summary, text_content,
	relevance_score, quality_score, status, hero, created_at, updated_at
FROM %s WHERE id = $1`, s.table)
	var (
		record   discovery.ContentRecord
		status   string
		heroJSON []byte
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&record.ID,
		&record.Topic,
		&record.SourceURL,
		&record.CanonicalURL,
		&record.Title,
		&record.Summary,
		&record.TextContent,
		&record.RelevanceScore,
		&record.QualityScore,
		&status,
		&heroJSON,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return discovery.ContentRecord{}, false, nil
	}
	if err != nil {
		return discovery.ContentRecord{}, false, fmt.Errorf("read content record: %w", err)
	}
	record.Status = discovery.ContentStatus(status)
	if len(heroJSON) > 0 {
		var mirror discovery.HeroMirror
		if err := json.Unmarshal(heroJSON, &mirror); err != nil {
			return discovery.ContentRecord{}, false, fmt.Errorf("decode hero mirror: %w", err)
		}
		record.Hero = &mirror
	}
	return record, true, nil
}

// UpdateEnrichment applies the enrichment outcome to a content record.
func (s *ContentStore) UpdateEnrichment(ctx context.Context, id string, summary string, status discovery.ContentStatus, mirror *discovery.HeroMirror) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("content store is not configured")
	}
	heroJSON, err := marshalMirror(mirror)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
UPDATE %s SET summary = $2, status = $3, hero = $4, updated_at = now()
WHERE id = $1`, s.table)
	tag, err := s.pool.Exec(ctx, query, id, summary, string(status), heroJSON)
	if err != nil {
		return fmt.Errorf("update content record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("content record %s not found", id)
	}
	return nil
}

func marshalMirror(mirror *discovery.HeroMirror) ([]byte, error) {
	if mirror == nil {
		return nil, nil
	}
	data, err := json.Marshal(mirror)
	if err != nil {
		return nil, fmt.Errorf("marshal hero mirror: %w", err)
	}
	return data, nil
}
