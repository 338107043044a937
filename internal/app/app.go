// Package app initializes and holds the long-lived services of the discovery
// daemon, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"time"

	gpubsub "cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ddoubleg123/carrot-discovery/internal/api"
	"github.com/ddoubleg123/carrot-discovery/internal/clock/system"
	"github.com/ddoubleg123/carrot-discovery/internal/config"
	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
	"github.com/ddoubleg123/carrot-discovery/internal/enrich"
	"github.com/ddoubleg123/carrot-discovery/internal/extract"
	"github.com/ddoubleg123/carrot-discovery/internal/fetch"
	"github.com/ddoubleg123/carrot-discovery/internal/hash/sha256"
	"github.com/ddoubleg123/carrot-discovery/internal/id/uuid"
	"github.com/ddoubleg123/carrot-discovery/internal/images"
	"github.com/ddoubleg123/carrot-discovery/internal/metrics"
	"github.com/ddoubleg123/carrot-discovery/internal/progress"
	"github.com/ddoubleg123/carrot-discovery/internal/progress/sinks"
	publishmem "github.com/ddoubleg123/carrot-discovery/internal/publish/memory"
	publishps "github.com/ddoubleg123/carrot-discovery/internal/publish/pubsub"
	queuemem "github.com/ddoubleg123/carrot-discovery/internal/queue/memory"
	"github.com/ddoubleg123/carrot-discovery/internal/render"
	"github.com/ddoubleg123/carrot-discovery/internal/snapshot"
	storemem "github.com/ddoubleg123/carrot-discovery/internal/storage/memory"
	"github.com/ddoubleg123/carrot-discovery/internal/storage/postgres"
	"github.com/ddoubleg123/carrot-discovery/internal/summarize"
)

// App owns every long-lived service of the daemon. Construction fails fast if
// any critical dependency cannot be initialized.
type App struct {
	Config config.Config
	Logger *zap.Logger
	Server *api.Server
	Queue  *queuemem.Queue
	Pool   *enrich.Pool
	Hub    *progress.Hub

	closers []func()
}

// New wires the full service graph from configuration.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()

	a := &App{Config: cfg, Logger: logger}

	profiles, err := discovery.LoadProfiles(cfg.Profiles.Path)
	if err != nil {
		return nil, fmt.Errorf("load group profiles: %w", err)
	}

	clock := system.New()
	ids := uuid.NewGenerator()

	var renderer discovery.Renderer
	if cfg.Render.Enabled {
		renderer = render.NewChromedp(render.Config{
			Enabled:         true,
			MaxParallel:     cfg.Render.MaxParallel,
			NavTimeout:      cfg.NavTimeout(),
			ContentPoll:     cfg.ContentPollBudget(),
			DomainQPS:       cfg.Render.DomainQPS,
			MaxImagePayload: int64(cfg.Render.MaxImagePayloadMB) << 20,
		}, logger.Named("render"))
	} else {
		renderer = render.NewNoop()
	}

	getter := fetch.NewHTTPGetter(fetch.Config{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	})
	fetcher := fetch.NewSelector(getter, renderer, logger.Named("fetch"))

	var summarizeClient discovery.SummarizationClient
	if cfg.Summarize.Endpoint != "" {
		summarizeClient = summarize.NewHTTPClient(summarize.ClientConfig{
			Endpoint:    cfg.Summarize.Endpoint,
			APIKey:      cfg.Summarize.APIKey,
			Temperature: cfg.Summarize.Temperature,
			Timeout:     time.Duration(cfg.Summarize.TimeoutSeconds) * time.Second,
		})
	}
	summarizer := summarize.New(summarizeClient, logger.Named("summarize"))

	imageCache := images.NewCache(cfg.ImageCacheTTL(), clock)
	var searcher discovery.ImageSearcher
	if cfg.Images.SearchEndpoint != "" {
		searcher = images.NewCommonsSearcher(cfg.Images.SearchEndpoint,
			time.Duration(cfg.Images.TimeoutSeconds)*time.Second, imageCache)
	}
	var generator discovery.ImageGenerator
	if cfg.Images.GenerateEndpoint != "" {
		generator = images.NewAIGenerator(cfg.Images.GenerateEndpoint,
			time.Duration(cfg.Images.TimeoutSeconds)*time.Second)
	}
	resolver := images.NewResolver(searcher, generator, images.Config{
		Style:             cfg.Images.GenerateStyle,
		PlaceholderFormat: cfg.Images.PlaceholderFormat,
	}, logger.Named("images"))

	contentStore, heroStore, err := a.buildStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	snapshots, err := a.buildSnapshots(ctx, cfg)
	if err != nil {
		return nil, err
	}

	publisher, err := a.buildPublisher(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, fmt.Errorf("register progress collectors: %w", err)
	}
	a.Hub = progress.NewHub(progress.Config{Logger: logger.Named("progress")},
		sinks.NewLogSink(logger.Named("progress")), promSink)

	a.Queue = queuemem.NewQueue(cfg.Enrich.QueueDepth)

	deps := enrich.Deps{
		Fetcher:    fetcher,
		Extractor:  extract.New(),
		Summarizer: summarizer,
		Images:     resolver,
		Content:    contentStore,
		Heroes:     heroStore,
		Snapshots:  snapshots,
		Queue:      a.Queue,
		Publisher:  publisher,
		Profiles:   profiles,
		Clock:      clock,
		IDs:        ids,
		Hasher:     sha256.New(),
		Hub:        a.Hub,
		Logger:     logger.Named("enrich"),
		EventTopic: cfg.PubSub.TopicName,
	}

	orchestrator := enrich.NewOrchestrator(deps)
	a.Pool = enrich.NewPool(a.Queue, orchestrator, cfg.Enrich.Workers, logger.Named("worker"))

	intake := enrich.NewService(deps)
	a.Server = api.NewServer(intake, contentStore, heroStore, logger.Named("api"))

	return a, nil
}

func (a *App) buildStores(ctx context.Context, cfg config.Config) (discovery.ContentStore, discovery.HeroStore, error) {
	if cfg.DB.DSN == "" {
		a.Logger.Info("no database configured, using in-memory stores")
		return storemem.NewContentStore(), storemem.NewHeroStore(), nil
	}
	contentStore, err := postgres.NewContentStore(ctx, postgres.ContentStoreConfig{
		DSN:      cfg.DB.DSN,
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init content store: %w", err)
	}
	a.closers = append(a.closers, contentStore.Close)
	heroStore, err := postgres.NewHeroStore(ctx, postgres.HeroStoreConfig{
		DSN:      cfg.DB.DSN,
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init hero store: %w", err)
	}
	a.closers = append(a.closers, heroStore.Close)
	return contentStore, heroStore, nil
}

func (a *App) buildSnapshots(ctx context.Context, cfg config.Config) (discovery.SnapshotStore, error) {
	switch cfg.Snapshot.Provider {
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		return snapshot.NewGCS(client, snapshot.GCSConfig{
			Bucket: cfg.Snapshot.GCSBucket,
			Prefix: cfg.Snapshot.Prefix,
		})
	case "local":
		return snapshot.NewLocal(cfg.Snapshot.LocalDir)
	case "memory":
		return snapshot.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown snapshot provider %q", cfg.Snapshot.Provider)
	}
}

func (a *App) buildPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (discovery.Publisher, error) {
	if !cfg.PubSub.Enabled {
		logger.Info("pubsub disabled, lifecycle events stay in memory")
		return publishmem.New(), nil
	}
	client, err := gpubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("init pubsub client: %w", err)
	}
	pub, err := publishps.New(client)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = pub.Close() })
	return pub, nil
}

// Close shuts down background services and releases external clients.
func (a *App) Close(ctx context.Context) {
	a.Queue.Close()
	a.Pool.Wait()
	if err := a.Hub.Close(ctx); err != nil {
		a.Logger.Warn("progress hub close failed", zap.Error(err))
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	if err := a.Logger.Sync(); err != nil {
		// Best effort; stderr sync commonly fails on some platforms.
		_ = err
	}
}
