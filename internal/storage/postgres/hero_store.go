// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const pgUniqueViolation = "23505"

type pgxPool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// HeroStoreConfig controls the Postgres connection pool used for hero rows.
type HeroStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// HeroStore persists hero rows in Postgres. A unique index on content_id
// guarantees at most one row per content record; concurrent inserts race on
// that index and the loser re-reads the winner.
type HeroStore struct {
	pool  pgxPool
	table string
}

// NewHeroStore creates a Postgres-backed HeroStore using the provided config.
func NewHeroStore(ctx context.Context, cfg HeroStoreConfig) (*HeroStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	table, err := heroTable(cfg.Table)
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
	return &HeroStore{pool: pool, table: table}, nil
}

// NewHeroStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewHeroStoreWithPool(pool pgxPool, table string) (*HeroStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	t, err := heroTable(table)
	if err != nil {
		return nil, err
	}
	return &HeroStore{pool: pool, table: t}, nil
}

func heroTable(name string) (string, error) {
	if name == "" {
		name = "heroes"
	}
	if !validTableName.MatchString(name) {
		return "", fmt.Errorf("invalid table name %q", name)
	}
	return name, nil
}

// Close releases the underlying pool resources.
func (s *HeroStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const heroColumns = `id, content_id, title, excerpt, quote_html, quote_char_count,
	image_url, image_source, source_url, status, error_code, error_message,
	trace_id, created_at, updated_at`

// Upsert creates the hero row for contentID if none exists. When a row is
// already present it is returned as-is: a READY row is never regressed and a
// DRAFT row means another worker owns the run. A unique-violation race on
// content_id resolves by re-reading the winner.
func (s *HeroStore) Upsert(ctx context.Context, contentID string, hero discovery.Hero) (discovery.UpsertResult, error) {
	if s == nil || s.pool == nil {
		return discovery.UpsertResult{}, fmt.Errorf("hero store is not configured")
	}
	if contentID == "" {
		return discovery.UpsertResult{}, fmt.Errorf("content id is required")
	}
	if existing, found, err := s.GetByContentID(ctx, contentID); err != nil {
		return discovery.UpsertResult{}, err
	} else if found {
		return discovery.UpsertResult{Created: false, HeroID: existing.ID}, nil
	}

	query := fmt.Sprintf(`
INSERT INTO %s (%s)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`, s.table, heroColumns)
	_, err := s.pool.Exec(ctx, query,
		hero.ID,
		contentID,
		hero.Title,
		hero.Excerpt,
		hero.QuoteHTML,
		hero.QuoteCharCount,
		hero.ImageURL,
		string(hero.ImageSource),
		hero.SourceURL,
		string(hero.Status),
		hero.ErrorCode,
		hero.ErrorMessage,
		hero.TraceID,
		hero.CreatedAt,
		hero.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			winner, found, readErr := s.GetByContentID(ctx, contentID)
			if readErr != nil {
				return discovery.UpsertResult{}, fmt.Errorf("re-read hero after unique violation: %w", readErr)
			}
			if !found {
				return discovery.UpsertResult{}, fmt.Errorf("hero for content %s vanished after unique violation", contentID)
			}
			return discovery.UpsertResult{Created: false, HeroID: winner.ID}, nil
		}
		return discovery.UpsertResult{}, fmt.Errorf("insert hero: %w", err)
	}
	return discovery.UpsertResult{Created: true, HeroID: hero.ID}, nil
}

// Update overwrites the mutable fields of an existing hero row.
func (s *HeroStore) Update(ctx context.Context, heroID string, hero discovery.Hero) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("hero store is not configured")
	}
	if heroID == "" {
		return fmt.Errorf("hero id is required")
	}
	query := fmt.Sprintf(`
UPDATE %s SET
	title = $2,
	excerpt = $3,
	quote_html = $4,
	quote_char_count = $5,
	image_url = $6,
	image_source = $7,
	source_url = $8,
	status = $9,
	error_code = $10,
	error_message = $11,
	updated_at = $12
WHERE id = $1`, s.table)
	tag, err := s.pool.Exec(ctx, query,
		heroID,
		hero.Title,
		hero.Excerpt,
		hero.QuoteHTML,
		hero.QuoteCharCount,
		hero.ImageURL,
		string(hero.ImageSource),
		hero.SourceURL,
		string(hero.Status),
		hero.ErrorCode,
		hero.ErrorMessage,
		hero.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update hero: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("hero %s not found", heroID)
	}
	return nil
}

// GetByContentID returns the hero row for a content record, if any.
func (s *HeroStore) GetByContentID(ctx context.Context, contentID string) (discovery.Hero, bool, error) {
	if s == nil || s.pool == nil {
		return discovery.Hero{}, false, fmt.Errorf("hero store is not configured")
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE content_id = $1`, heroColumns, s.table)
	var (
		hero        discovery.Hero
		imageSource string
		status      string
	)
	err := s.pool.QueryRow(ctx, query, contentID).Scan(
		&hero.ID,
		&hero.ContentID,
		&hero.Title,
		&hero.Excerpt,
		&hero.QuoteHTML,
		&hero.QuoteCharCount,
		&hero.ImageURL,
		&imageSource,
		&hero.SourceURL,
		&status,
		&hero.ErrorCode,
		&hero.ErrorMessage,
		&hero.TraceID,
		&hero.CreatedAt,
		&hero.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return discovery.Hero{}, false, nil
	}
	if err != nil {
		return discovery.Hero{}, false, fmt.Errorf("read hero: %w", err)
	}
	hero.ImageSource = discovery.ImageTier(imageSource)
	hero.Status = discovery.HeroStatus(status)
	return hero, true, nil
}
