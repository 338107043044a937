package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
)

func TestContentCreateInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewContentStoreWithPool(mock, "content_records")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	rec := discovery.ContentRecord{
		ID:             "content-1",
		Topic:          "chicago-bulls",
		SourceURL:      "https://example.com/article",
		CanonicalURL:   "https://example.com/article",
		Title:          "A Title",
		Summary:        "A summary.",
		TextContent:    "Body text.",
		RelevanceScore: 0.7,
		QualityScore:   82,
		Status:         discovery.ContentPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	mock.ExpectExec("INSERT INTO content_records").
		WithArgs(
			rec.ID, rec.Topic, rec.SourceURL, rec.CanonicalURL, rec.Title,
			rec.Summary, rec.TextContent, rec.RelevanceScore, rec.QualityScore,
			string(rec.Status), []byte(nil), rec.CreatedAt, rec.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Create(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContentGetDecodesHeroMirror(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewContentStoreWithPool(mock, "content_records")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	heroJSON := []byte(`{"url":"https://example.com/og.jpg","source":"og","updated_at":"2023-11-14T22:13:20Z"}`)

	rows := mock.NewRows([]string{
		"id", "topic", "source_url", "canonical_url", "title", "summary",
		"text_content", "relevance_score", "quality_score", "status", "hero",
		"created_at", "updated_at",
	}).AddRow(
		"content-1", "chicago-bulls", "https://example.com/article",
		"https://example.com/article", "A Title", "A summary.", "Body text.",
		0.7, 82, "enriched", heroJSON, now, now,
	)

	mock.ExpectQuery("SELECT .+ FROM content_records WHERE id").
		WithArgs("content-1").
		WillReturnRows(rows)

	rec, found, err := store.Get(context.Background(), "content-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, discovery.ContentEnriched, rec.Status)
	require.NotNil(t, rec.Hero)
	require.Equal(t, "https://example.com/og.jpg", rec.Hero.URL)
	require.Equal(t, discovery.TierOpenGraph, rec.Hero.Source)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContentGetMissing(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewContentStoreWithPool(mock, "content_records")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT .+ FROM content_records WHERE id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, found, err := store.Get(context.Background(), "missing")
	require.NoError(t, err)
	require.False(t, found)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContentUpdateEnrichmentWritesMirror(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewContentStoreWithPool(mock, "content_records")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	mirror := &discovery.HeroMirror{
		URL:       "https://example.com/og.jpg",
		Source:    discovery.TierOpenGraph,
		UpdatedAt: now,
	}
	mirrorJSON, err := marshalMirror(mirror)
	require.NoError(t, err)

	mock.ExpectExec("UPDATE content_records SET").
		WithArgs("content-1", "A summary.", "enriched", mirrorJSON).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = store.UpdateEnrichment(context.Background(), "content-1", "A summary.", discovery.ContentEnriched, mirror)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
