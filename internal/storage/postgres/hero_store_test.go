package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
)

var heroCols = []string{
	"id", "content_id", "title", "excerpt", "quote_html", "quote_char_count",
	"image_url", "image_source", "source_url", "status", "error_code",
	"error_message", "trace_id", "created_at", "updated_at",
}

func sampleHero(now time.Time) discovery.Hero {
	return discovery.Hero{
		ID:             "hero-1",
		ContentID:      "content-1",
		Title:          "A Title",
		Excerpt:        "An excerpt.",
		QuoteHTML:      "<blockquote><p>Quote.</p></blockquote>",
		QuoteCharCount: 6,
		ImageURL:       "https://example.com/og.jpg",
		ImageSource:    discovery.TierOpenGraph,
		SourceURL:      "https://example.com/article",
		Status:         discovery.HeroDraft,
		TraceID:        "trace-1",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func heroRow(mock pgxmock.PgxPoolIface, h discovery.Hero) *pgxmock.Rows {
	return mock.NewRows(heroCols).AddRow(
		h.ID, h.ContentID, h.Title, h.Excerpt, h.QuoteHTML, h.QuoteCharCount,
		h.ImageURL, string(h.ImageSource), h.SourceURL, string(h.Status),
		h.ErrorCode, h.ErrorMessage, h.TraceID, h.CreatedAt, h.UpdatedAt,
	)
}

func TestHeroUpsertInsertsNewRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewHeroStoreWithPool(mock, "heroes")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	hero := sampleHero(now)

	mock.ExpectQuery("SELECT .+ FROM heroes WHERE content_id").
		WithArgs(hero.ContentID).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("INSERT INTO heroes").
		WithArgs(
			hero.ID, hero.ContentID, hero.Title, hero.Excerpt, hero.QuoteHTML,
			hero.QuoteCharCount, hero.ImageURL, string(hero.ImageSource),
			hero.SourceURL, string(hero.Status), hero.ErrorCode,
			hero.ErrorMessage, hero.TraceID, hero.CreatedAt, hero.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	res, err := store.Upsert(context.Background(), hero.ContentID, hero)
	require.NoError(t, err)
	require.True(t, res.Created)
	require.Equal(t, hero.ID, res.HeroID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHeroUpsertReturnsExistingRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewHeroStoreWithPool(mock, "heroes")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	existing := sampleHero(now)
	existing.ID = "hero-existing"
	existing.Status = discovery.HeroReady

	mock.ExpectQuery("SELECT .+ FROM heroes WHERE content_id").
		WithArgs(existing.ContentID).
		WillReturnRows(heroRow(mock, existing))

	res, err := store.Upsert(context.Background(), existing.ContentID, sampleHero(now))
	require.NoError(t, err)
	require.False(t, res.Created)
	require.Equal(t, "hero-existing", res.HeroID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHeroUpsertUniqueViolationReturnsWinner(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewHeroStoreWithPool(mock, "heroes")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	hero := sampleHero(now)
	winner := sampleHero(now)
	winner.ID = "hero-winner"

	mock.ExpectQuery("SELECT .+ FROM heroes WHERE content_id").
		WithArgs(hero.ContentID).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("INSERT INTO heroes").
		WithArgs(
			hero.ID, hero.ContentID, hero.Title, hero.Excerpt, hero.QuoteHTML,
			hero.QuoteCharCount, hero.ImageURL, string(hero.ImageSource),
			hero.SourceURL, string(hero.Status), hero.ErrorCode,
			hero.ErrorMessage, hero.TraceID, hero.CreatedAt, hero.UpdatedAt,
		).
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})
	mock.ExpectQuery("SELECT .+ FROM heroes WHERE content_id").
		WithArgs(hero.ContentID).
		WillReturnRows(heroRow(mock, winner))

	res, err := store.Upsert(context.Background(), hero.ContentID, hero)
	require.NoError(t, err)
	require.False(t, res.Created)
	require.Equal(t, "hero-winner", res.HeroID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHeroUpdateRequiresExistingRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewHeroStoreWithPool(mock, "heroes")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	hero := sampleHero(now)
	hero.Status = discovery.HeroReady

	mock.ExpectExec("UPDATE heroes SET").
		WithArgs(
			hero.ID, hero.Title, hero.Excerpt, hero.QuoteHTML,
			hero.QuoteCharCount, hero.ImageURL, string(hero.ImageSource),
			hero.SourceURL, string(hero.Status), hero.ErrorCode,
			hero.ErrorMessage, hero.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = store.Update(context.Background(), hero.ID, hero)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not found")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHeroGetByContentIDMissing(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewHeroStoreWithPool(mock, "heroes")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT .+ FROM heroes WHERE content_id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, found, err := store.GetByContentID(context.Background(), "missing")
	require.NoError(t, err)
	require.False(t, found)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHeroStoreRejectsBadTableName(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewHeroStoreWithPool(mock, "heroes; drop table")
	require.Error(t, err)
}
