package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"

	orchestratorx "github.com/tanpawarit/bitebot/agent/agents/orchestrator"
	specialistx "github.com/tanpawarit/bitebot/agent/agents/specialist"
	bookingx "github.com/tanpawarit/bitebot/agent/booking"
	contractx "github.com/tanpawarit/bitebot/agent/contract"
	llmx "github.com/tanpawarit/bitebot/agent/llm"
	memoryx "github.com/tanpawarit/bitebot/agent/memory"
	restaurantx "github.com/tanpawarit/bitebot/agent/restaurant"
	reviewsx "github.com/tanpawarit/bitebot/agent/reviews"
	sessionx "github.com/tanpawarit/bitebot/agent/session"
	toolx "github.com/tanpawarit/bitebot/agent/tool"
	configx "github.com/tanpawarit/bitebot/pkg/config"
	openrouterx "github.com/tanpawarit/bitebot/pkg/openrouter"
	postgresx "github.com/tanpawarit/bitebot/pkg/postgres"
	telemetryx "github.com/tanpawarit/bitebot/pkg/telemetry"
)

// dataFiles point at Yelp dataset files used when no database is configured.
type dataFiles struct {
	restaurants string
	reviews     string
}

// app owns everything a serving command needs.
type app struct {
	orchestrator *orchestratorx.Orchestrator
	closers      []func(context.Context) error
}

func (a *app) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			log.Warn().Err(err).Msg("shutdown step failed")
		}
	}
}

func buildApp(ctx context.Context, files dataFiles) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close(context.Background())
		}
	}()

	otelCfg, err := configx.New[telemetryx.Config]("OTEL")
	if err != nil {
		return nil, err
	}
	shutdown, err := telemetryx.Init(ctx, *otelCfg, Version)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, shutdown)

	embedder, err := newEmbedder()
	if err != nil {
		return nil, err
	}

	db, err := openDatabase(ctx)
	if err != nil {
		return nil, err
	}
	var (
		lookup   restaurantx.Lookup
		searcher reviewsx.Searcher
	)
	if db != nil {
		a.closers = append(a.closers, func(context.Context) error { return db.Close() })
		lookup = restaurantx.NewBunRepository(db)
		searcher = reviewsx.NewPGVectorSearcher(db, embedder)
	} else {
		lookup, searcher, err = loadDataFiles(files)
		if err != nil {
			return nil, err
		}
	}

	sessionCfg, err := configx.New[sessionx.Config]("SESSION")
	if err != nil {
		return nil, err
	}
	store := sessionx.NewStoreFromConfig(*sessionCfg)

	catalog := toolx.NewCatalog(toolx.Deps{
		Restaurants: lookup,
		Reviews:     searcher,
		Store:       store,
		Checker:     bookingx.NewChecker(lookup, store, nil),
		Committer:   bookingx.NewCommitter(lookup, store, nil, nil),
		Ledger:      bookingx.NewLedger(lookup, nil),
	})

	llmCfg, err := configx.New[llmx.Config]("LLM")
	if err != nil {
		return nil, err
	}
	models, err := specialistx.NewModels(ctx, *llmCfg)
	if err != nil {
		return nil, err
	}
	registry, err := specialistx.NewRegistry(ctx, *llmCfg, models, catalog, specialistx.Options{})
	if err != nil {
		return nil, err
	}

	memory, err := newCheckpointer(ctx, a)
	if err != nil {
		return nil, err
	}

	a.orchestrator, err = orchestratorx.New(store, registry, memory, orchestratorx.Config{})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func newEmbedder() (reviewsx.Embedder, error) {
	cfg, err := configx.New[reviewsx.EmbeddingConfig]("EMBEDDING")
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled() {
		log.Info().Msg("embedding api key not set, review search falls back to usefulness order")
		return nil, nil
	}
	client := openrouterx.NewClient(openrouterx.Config{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL})
	return reviewsx.NewOpenAIEmbedder(client, cfg.Model), nil
}

func openDatabase(ctx context.Context) (*bun.DB, error) {
	cfg, err := configx.New[postgresx.Config]("DATABASE")
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled() {
		return nil, nil
	}
	return postgresx.Open(ctx, *cfg)
}

func newCheckpointer(ctx context.Context, a *app) (contractx.Checkpointer, error) {
	cfg, err := configx.New[memoryx.RedisConfig]("REDIS")
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled() {
		log.Info().Msg("redis not configured, conversation memory is in-process")
		return memoryx.NewInMemory(), nil
	}
	client, err := cfg.Client(ctx)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { return client.Close() })
	return memoryx.NewRedisCheckpointer(client,
		memoryx.WithKeyPrefix(cfg.KeyPrefix),
		memoryx.WithTTL(cfg.TTL),
	)
}

// loadDataFiles builds in-memory catalogs from Yelp JSONL files. Reviews are
// kept only for restaurants that were loaded.
func loadDataFiles(files dataFiles) (restaurantx.Lookup, reviewsx.Searcher, error) {
	path := strings.TrimSpace(files.restaurants)
	if path == "" {
		return nil, nil, errors.New("either DATABASE_URL or --restaurants must be set")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open restaurants file: %w", err)
	}
	defer f.Close()

	items, err := restaurantx.LoadYelpJSONL(f)
	if err != nil {
		return nil, nil, err
	}
	lookup := restaurantx.NewMemoryLookup(items...)
	log.Info().Int("restaurants", lookup.Len()).Str("path", path).Msg("restaurant catalog loaded")

	searcher := reviewsx.NewMemorySearcher()
	if p := strings.TrimSpace(files.reviews); p != "" {
		if err := scanReviewsFile(p, businessIDs(items), func(rows []reviewsx.Review) error {
			searcher.Add(rows...)
			return nil
		}); err != nil {
			return nil, nil, err
		}
	}
	return lookup, searcher, nil
}

func scanReviewsFile(path string, keep map[string]struct{}, fn func([]reviewsx.Review) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open reviews file: %w", err)
	}
	defer f.Close()

	total := 0
	err = reviewsx.ScanYelpReviews(f, func(id string) bool {
		_, ok := keep[id]
		return ok
	}, 0, func(rows []reviewsx.Review) error {
		total += len(rows)
		return fn(rows)
	})
	if err != nil {
		return err
	}
	log.Info().Int("reviews", total).Str("path", path).Msg("reviews loaded")
	return nil
}

func businessIDs(items []restaurantx.Restaurant) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, r := range items {
		out[r.BusinessID] = struct{}{}
	}
	return out
}
