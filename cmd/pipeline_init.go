package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/civiclens/registry-cli/internal/classify"
	"github.com/civiclens/registry-cli/internal/crawler"
	"github.com/civiclens/registry-cli/internal/extract"
	"github.com/civiclens/registry-cli/internal/fetch"
	"github.com/civiclens/registry-cli/internal/inference"
	"github.com/civiclens/registry-cli/internal/match"
	"github.com/civiclens/registry-cli/internal/reconcile"
	"github.com/civiclens/registry-cli/internal/resilience"
	"github.com/civiclens/registry-cli/internal/store"
	anthropicpkg "github.com/civiclens/registry-cli/pkg/anthropic"
)

// pipelineEnv holds the initialized store and pipeline components needed by
// the crawl/serve commands.
type pipelineEnv struct {
	Store   store.Store
	Crawler *crawler.Crawler
	Engine  *reconcile.Engine
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline opens the store, runs migrations, and wires the crawl
// pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic api key is required (REGISTRY_ANTHROPIC_KEY)")
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	retryCfg := resilience.FromConfig(
		cfg.Retry.MaxAttempts,
		cfg.Retry.InitialBackoffMs,
		cfg.Retry.MaxBackoffMs,
		cfg.Retry.Multiplier,
		cfg.Retry.JitterFraction,
	)

	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
	port := inference.NewAnthropicPort(anthropicClient, cfg.Anthropic, retryCfg)

	fetcher := fetch.NewHTTPFetcher(cfg.Fetch)
	classifier := classify.New(port)
	extractor := extract.New(port)
	matcher := match.New(port, cfg.Match)
	engine := reconcile.New(st, cfg.Pipeline.Version)

	c := crawler.New(fetcher, classifier, extractor, matcher, engine, st, cfg.Crawl)

	return &pipelineEnv{
		Store:   st,
		Crawler: c,
		Engine:  engine,
	}, nil
}

// initStore opens the store without the inference stack, for commands that
// only touch the database.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}
