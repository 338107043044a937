package enrich

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
	"github.com/ddoubleg123/carrot-discovery/internal/extract"
	hashsha "github.com/ddoubleg123/carrot-discovery/internal/hash/sha256"
	"github.com/ddoubleg123/carrot-discovery/internal/images"
	"github.com/ddoubleg123/carrot-discovery/internal/progress"
	publishmem "github.com/ddoubleg123/carrot-discovery/internal/publish/memory"
	queuemem "github.com/ddoubleg123/carrot-discovery/internal/queue/memory"
	"github.com/ddoubleg123/carrot-discovery/internal/snapshot"
	storemem "github.com/ddoubleg123/carrot-discovery/internal/storage/memory"
	"github.com/ddoubleg123/carrot-discovery/internal/summarize"
)

type stubClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

type stubIDs struct {
	mu sync.Mutex
	n  int
}

func (g *stubIDs) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%d", g.n), nil
}

type stubFetcher struct {
	result discovery.FetchResult
	panics bool
}

func (f *stubFetcher) Fetch(context.Context, string) discovery.FetchResult {
	if f.panics {
		panic("fetcher exploded")
	}
	return f.result
}

func bullsProfile() discovery.GroupProfile {
	return discovery.GroupProfile{
		Topic:              "chicago-bulls",
		CanonicalEntities:  []string{"Chicago Bulls"},
		Synonyms:           []string{"Bulls"},
		KeyPeople:          []string{"Michael Jordan"},
		BlockDomains:       []string{"blocked.example.com"},
		RelevanceThreshold: 0.5,
	}
}

func articleHTML() string {
	var b strings.Builder
	b.WriteString(`<html><head>`)
	b.WriteString(`<title>Chicago Bulls Win Championship Again | Example News</title>`)
	b.WriteString(`<meta property="og:image" content="https://example.com/bulls.jpg">`)
	b.WriteString(`</head><body><article><h1>Chicago Bulls Win Championship Again</h1>`)
	for i := 0; i < 10; i++ {
		b.WriteString(`<p>The Chicago Bulls secured another decisive victory on the road last night, with Michael Jordan leading all scorers and the bench adding steady production throughout every quarter of the game.</p>`)
	}
	b.WriteString(`</article></body></html>`)
	return b.String()
}

func successFetch(html string) discovery.FetchResult {
	return discovery.FetchResult{
		HTML:    html,
		Success: true,
		Metadata: discovery.FetchMetadata{
			BranchUsed: discovery.BranchDirect,
			StatusCode: 200,
			HTMLBytes:  len(html),
			FetchClass: discovery.FetchSuccess,
		},
	}
}

type testEnv struct {
	deps    Deps
	content *storemem.ContentStore
	heroes  *storemem.HeroStore
	snaps   *snapshot.MemoryStore
	queue   *queuemem.Queue
	pub     *publishmem.Publisher
}

func newTestEnv(fetcher discovery.Fetcher) *testEnv {
	env := &testEnv{
		content: storemem.NewContentStore(),
		heroes:  storemem.NewHeroStore(),
		snaps:   snapshot.NewMemory(),
		queue:   queuemem.NewQueue(16),
		pub:     publishmem.New(),
	}
	env.deps = Deps{
		Fetcher:    fetcher,
		Extractor:  extract.New(),
		Summarizer: summarize.New(nil, zap.NewNop()),
		Images:     images.NewResolver(nil, nil, images.Config{}, zap.NewNop()),
		Content:    env.content,
		Heroes:     env.heroes,
		Snapshots:  env.snaps,
		Queue:      env.queue,
		Publisher:  env.pub,
		Profiles:   map[string]discovery.GroupProfile{"chicago-bulls": bullsProfile()},
		Clock:      &stubClock{t: time.Unix(1700000000, 0).UTC()},
		IDs:        &stubIDs{},
		Logger:     zap.NewNop(),
		EventTopic: "hero-events",
	}
	return env
}

func TestSubmitAcceptsAndSchedulesEnrichment(t *testing.T) {
	t.Parallel()

	env := newTestEnv(&stubFetcher{result: successFetch(articleHTML())})
	svc := NewService(env.deps)
	ctx := context.Background()

	res, err := svc.Submit(ctx, SubmitRequest{URL: "https://example.com/bulls-win", Topic: "chicago-bulls"})
	require.NoError(t, err)
	require.Equal(t, discovery.ContentPending, res.Status)
	require.True(t, res.Queued)
	require.GreaterOrEqual(t, res.QualityScore, extract.ValidThreshold)
	require.GreaterOrEqual(t, res.RelevanceScore, 0.5)

	record, found, err := env.content.Get(ctx, res.ContentID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, discovery.ContentPending, record.Status)

	hero, found, err := env.heroes.GetByContentID(ctx, res.ContentID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, discovery.HeroDraft, hero.Status)
	require.NotEmpty(t, hero.ImageURL, "draft hero must already carry an image")

	_, found, err = env.snaps.Get(ctx, res.ContentID)
	require.NoError(t, err)
	require.True(t, found, "accepted content must be archived")

	task, err := env.queue.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, res.ContentID, task.ContentID)
	require.NotEmpty(t, task.TraceID)
}

func TestSnapshotAddressedByURLDigest(t *testing.T) {
	t.Parallel()

	env := newTestEnv(&stubFetcher{result: successFetch(articleHTML())})
	env.deps.Hasher = hashsha.New()
	svc := NewService(env.deps)
	ctx := context.Background()

	res, err := svc.Submit(ctx, SubmitRequest{URL: "https://example.com/bulls-win", Topic: "chicago-bulls"})
	require.NoError(t, err)
	require.True(t, res.Queued)

	key, err := env.deps.Hasher.Hash([]byte("https://example.com/bulls-win"))
	require.NoError(t, err)
	_, found, err := env.snaps.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, found, "the archive is keyed by the page URL digest")
	_, found, err = env.snaps.Get(ctx, res.ContentID)
	require.NoError(t, err)
	require.False(t, found)

	// A later run resolves the same key from the stored record, so it never
	// re-fetches.
	env.deps.Fetcher = &stubFetcher{panics: true}
	orch := NewOrchestrator(env.deps)
	task, err := env.queue.Dequeue(ctx)
	require.NoError(t, err)
	orch.Enrich(ctx, task)

	hero, found, err := env.heroes.GetByContentID(ctx, res.ContentID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, discovery.HeroReady, hero.Status)
}

func TestSubmitRejectsIrrelevantContent(t *testing.T) {
	t.Parallel()

	html := strings.Replace(articleHTML(), "Chicago Bulls", "Green Bay Packers", -1)
	env := newTestEnv(&stubFetcher{result: successFetch(html)})
	svc := NewService(env.deps)
	ctx := context.Background()

	res, err := svc.Submit(ctx, SubmitRequest{URL: "https://example.com/packers", Topic: "chicago-bulls"})
	require.NoError(t, err)
	require.Equal(t, discovery.ContentRejected, res.Status)
	require.False(t, res.Queued)
	require.Zero(t, res.RelevanceScore, "missing canonical entity must zero the score")

	record, found, err := env.content.Get(ctx, res.ContentID)
	require.NoError(t, err)
	require.True(t, found, "rejections are persisted for auditing")
	require.Equal(t, discovery.ContentRejected, record.Status)

	_, found, err = env.heroes.GetByContentID(ctx, res.ContentID)
	require.NoError(t, err)
	require.False(t, found, "rejected content gets no hero row")
}

func TestSubmitRejectsThinContent(t *testing.T) {
	t.Parallel()

	html := `<html><head><title>Chicago Bulls Update</title></head><body><article><p>The Chicago Bulls played a game.</p></article></body></html>`
	env := newTestEnv(&stubFetcher{result: successFetch(html)})
	svc := NewService(env.deps)

	res, err := svc.Submit(context.Background(), SubmitRequest{URL: "https://example.com/thin", Topic: "chicago-bulls"})
	require.NoError(t, err)
	require.Equal(t, discovery.ContentRejected, res.Status)
	require.Less(t, res.QualityScore, extract.ValidThreshold)
	require.False(t, res.Queued)
}

func TestSubmitRejectsBlockedDomain(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{panics: true} // must never be reached
	env := newTestEnv(fetcher)
	svc := NewService(env.deps)

	res, err := svc.Submit(context.Background(), SubmitRequest{URL: "https://blocked.example.com/story", Topic: "chicago-bulls"})
	require.NoError(t, err)
	require.Equal(t, discovery.ContentRejected, res.Status)
	require.Empty(t, res.ContentID)
}

func TestSubmitUnknownTopic(t *testing.T) {
	t.Parallel()

	env := newTestEnv(&stubFetcher{})
	svc := NewService(env.deps)

	_, err := svc.Submit(context.Background(), SubmitRequest{URL: "https://example.com/x", Topic: "nope"})
	require.Error(t, err)
}

func TestSubmitClassifiesFetchFailure(t *testing.T) {
	t.Parallel()

	env := newTestEnv(&stubFetcher{result: discovery.FetchResult{
		Success: false,
		Metadata: discovery.FetchMetadata{
			BranchUsed: discovery.BranchRendered,
			FetchClass: discovery.FetchPaywallOrBlock,
			StatusCode: 403,
		},
	}})
	svc := NewService(env.deps)

	res, err := svc.Submit(context.Background(), SubmitRequest{URL: "https://example.com/paywalled", Topic: "chicago-bulls"})
	require.Error(t, err)
	var stageErr *discovery.StageError
	require.ErrorAs(t, err, &stageErr)
	require.Equal(t, discovery.CodePaywallOrBlock, stageErr.Code)
	require.Equal(t, discovery.BranchRendered, res.Fetch.BranchUsed)
}

func seedRecord(t *testing.T, env *testEnv, withSnapshot bool) discovery.ContentRecord {
	t.Helper()
	ctx := context.Background()
	record := discovery.ContentRecord{
		ID:        "content-1",
		Topic:     "chicago-bulls",
		SourceURL: "https://example.com/bulls-win",
		Title:     "Chicago Bulls Win Championship Again",
		Status:    discovery.ContentPending,
	}
	require.NoError(t, env.content.Create(ctx, record))
	_, err := env.heroes.Upsert(ctx, record.ID, discovery.Hero{
		ID:          "hero-1",
		ContentID:   record.ID,
		Title:       record.Title,
		ImageURL:    "https://placehold.co/800x450?text=draft",
		ImageSource: discovery.TierPlaceholder,
		Status:      discovery.HeroDraft,
	})
	require.NoError(t, err)
	if withSnapshot {
		_, err := env.snaps.Put(ctx, record.ID, []byte(articleHTML()))
		require.NoError(t, err)
	}
	return record
}

func TestEnrichHappyPathFromSnapshot(t *testing.T) {
	t.Parallel()

	env := newTestEnv(&stubFetcher{panics: true}) // snapshot hit must not re-fetch
	record := seedRecord(t, env, true)
	orch := NewOrchestrator(env.deps)
	ctx := context.Background()

	orch.Enrich(ctx, discovery.EnrichTask{ContentID: record.ID, Topic: record.Topic, TraceID: "trace-1"})

	hero, found, err := env.heroes.GetByContentID(ctx, record.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, discovery.HeroReady, hero.Status)
	require.Equal(t, "https://example.com/bulls.jpg", hero.ImageURL)
	require.Equal(t, discovery.TierOpenGraph, hero.ImageSource)
	require.NotEmpty(t, hero.Excerpt)
	require.NotEmpty(t, hero.QuoteHTML)
	require.LessOrEqual(t, hero.QuoteCharCount, summarize.MaxQuoteChars)

	got, _, err := env.content.Get(ctx, record.ID)
	require.NoError(t, err)
	require.Equal(t, discovery.ContentEnriched, got.Status)
	require.NotNil(t, got.Hero)
	require.Equal(t, hero.ImageURL, got.Hero.URL)

	events := env.pub.Messages()
	require.NotEmpty(t, events)
	last := events[len(events)-1].Payload.(lifecycleEvent)
	require.Equal(t, "hero.ready", last.Kind)
}

type stubSummarizeClient struct {
	resp discovery.SummarizeResponse
}

func (c *stubSummarizeClient) Summarize(context.Context, discovery.SummarizeRequest) (discovery.SummarizeResponse, error) {
	return c.resp, nil
}

func TestEnrichPrefersServiceQuotes(t *testing.T) {
	t.Parallel()

	env := newTestEnv(&stubFetcher{panics: true})
	env.deps.Summarizer = summarize.New(&stubSummarizeClient{resp: discovery.SummarizeResponse{
		Summary: "The Bulls closed out the series on the road.",
		NotableQuotes: []discovery.Quote{
			{Quote: "This group refused to lose.", Attribution: "Head Coach"},
		},
	}}, zap.NewNop())
	record := seedRecord(t, env, true)
	orch := NewOrchestrator(env.deps)
	ctx := context.Background()

	orch.Enrich(ctx, discovery.EnrichTask{ContentID: record.ID, Topic: record.Topic, TraceID: "trace-1"})

	hero, found, err := env.heroes.GetByContentID(ctx, record.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, discovery.HeroReady, hero.Status)
	require.Contains(t, hero.QuoteHTML, "<p>This group refused to lose.</p>")
	require.Contains(t, hero.QuoteHTML, "<cite>Head Coach</cite>")
	require.Equal(t, len("This group refused to lose."), hero.QuoteCharCount)
}

func TestEnrichFetchFailureWritesErrorHero(t *testing.T) {
	t.Parallel()

	env := newTestEnv(&stubFetcher{result: discovery.FetchResult{
		Success: false,
		Metadata: discovery.FetchMetadata{
			BranchUsed: discovery.BranchRendered,
			FetchClass: discovery.FetchTimeout,
		},
	}})
	record := seedRecord(t, env, false)
	orch := NewOrchestrator(env.deps)
	ctx := context.Background()

	orch.Enrich(ctx, discovery.EnrichTask{ContentID: record.ID, TraceID: "trace-1"})

	hero, found, err := env.heroes.GetByContentID(ctx, record.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, discovery.HeroError, hero.Status)
	require.Equal(t, string(discovery.CodeTimeout), hero.ErrorCode)
	require.NotEmpty(t, hero.ImageURL, "error heroes still need an image")

	got, _, err := env.content.Get(ctx, record.ID)
	require.NoError(t, err)
	require.Equal(t, discovery.ContentFailed, got.Status)
}

func TestEnrichAbsorbsPanics(t *testing.T) {
	t.Parallel()

	env := newTestEnv(&stubFetcher{panics: true})
	record := seedRecord(t, env, false) // no snapshot forces the fetch path
	orch := NewOrchestrator(env.deps)
	ctx := context.Background()

	require.NotPanics(t, func() {
		orch.Enrich(ctx, discovery.EnrichTask{ContentID: record.ID, TraceID: "trace-1"})
	})

	// A panicking stage must still close out the run as an error, never leave
	// the hero parked in DRAFT without a cause.
	hero, found, err := env.heroes.GetByContentID(ctx, record.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, discovery.HeroError, hero.Status)
	require.Equal(t, string(discovery.CodeUnknown), hero.ErrorCode)
	require.Contains(t, hero.ErrorMessage, "panic")
	require.NotEmpty(t, hero.ImageURL, "error heroes still need an image")

	got, _, err := env.content.Get(ctx, record.ID)
	require.NoError(t, err)
	require.Equal(t, discovery.ContentFailed, got.Status)
}

func TestEnrichEmitsStageEvents(t *testing.T) {
	t.Parallel()

	env := newTestEnv(&stubFetcher{panics: true})
	record := seedRecord(t, env, true)

	sink := &captureSink{}
	hub := progress.NewHub(progress.Config{MaxBatchWait: 10 * time.Millisecond}, sink)
	env.deps.Hub = hub
	orch := NewOrchestrator(env.deps)
	ctx := context.Background()

	orch.Enrich(ctx, discovery.EnrichTask{ContentID: record.ID, TraceID: "trace-1"})
	require.NoError(t, hub.Close(ctx))

	phases := make(map[progress.Phase]progress.Event)
	for _, evt := range sink.events() {
		phases[evt.Phase] = evt
	}
	for _, want := range []progress.Phase{
		progress.PhaseRunStart, progress.PhaseFetch, progress.PhaseExtract,
		progress.PhaseQuote, progress.PhaseSummarize, progress.PhaseImage,
		progress.PhaseUpsert, progress.PhaseRunDone,
	} {
		evt, ok := phases[want]
		require.True(t, ok, "missing phase %s", want)
		require.True(t, evt.OK, "phase %s should succeed", want)
		require.Equal(t, "trace-1", evt.TraceID)
	}
	require.Equal(t, "snapshot", phases[progress.PhaseFetch].Note)
}

type captureSink struct {
	mu   sync.Mutex
	evts []progress.Event
}

func (c *captureSink) Consume(_ context.Context, batch []progress.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evts = append(c.evts, batch...)
	return nil
}

func (c *captureSink) Close(context.Context) error { return nil }

func (c *captureSink) events() []progress.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]progress.Event, len(c.evts))
	copy(out, c.evts)
	return out
}

func TestPoolProcessesQueuedTasks(t *testing.T) {
	t.Parallel()

	env := newTestEnv(&stubFetcher{panics: true})
	record := seedRecord(t, env, true)
	orch := NewOrchestrator(env.deps)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := NewPool(env.queue, orch, 2, zap.NewNop())
	pool.Start(ctx)

	require.NoError(t, env.queue.Enqueue(ctx, discovery.EnrichTask{ContentID: record.ID, TraceID: "trace-1"}))

	require.Eventually(t, func() bool {
		hero, found, err := env.heroes.GetByContentID(context.Background(), record.ID)
		return err == nil && found && hero.Status == discovery.HeroReady
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	pool.Wait()
}
