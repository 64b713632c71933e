// Package crawler drives the registry pipeline: it walks a site frontier,
// classifies each page, extracts and matches member candidates, and hands
// decisions to the reconciliation engine.
package crawler

import (
	"context"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/civiclens/registry-cli/internal/config"
	"github.com/civiclens/registry-cli/internal/fetch"
	"github.com/civiclens/registry-cli/internal/model"
	"github.com/civiclens/registry-cli/internal/reconcile"
	"github.com/civiclens/registry-cli/internal/store"
)

// state is the crawl loop's explicit position. One state transition per
// iteration keeps termination auditable: every path ends in statePopNext or
// stateDone, and statePopNext is bounded by max steps.
type state int

const (
	stateInitialize state = iota
	statePopNext
	stateClassify
	stateExploreChildren
	stateExtractMembers
	stateDone
)

// Classifier labels a fetched page.
type Classifier interface {
	Classify(ctx context.Context, page *model.FetchedPage) (model.PageClassification, error)
}

// Extractor pulls candidate records from a member-list page.
type Extractor interface {
	Extract(ctx context.Context, page *model.FetchedPage) ([]model.CandidateRecord, error)
}

// Matcher resolves candidates against canonical shortlists.
type Matcher interface {
	MatchAll(ctx context.Context, candidates []model.CandidateRecord, shortlistFor func(context.Context, model.CandidateRecord) ([]model.Member, error)) ([]model.MatchDecision, error)
}

// Reconciler applies a match decision to the store.
type Reconciler interface {
	Reconcile(ctx context.Context, decision model.MatchDecision) (reconcile.Result, error)
}

// Crawler runs the end-to-end pipeline over one frontier.
type Crawler struct {
	fetcher    fetch.Fetcher
	classifier Classifier
	extractor  Extractor
	matcher    Matcher
	reconciler Reconciler
	store      store.Store
	cfg        config.CrawlConfig
}

// New wires a Crawler.
func New(f fetch.Fetcher, c Classifier, e Extractor, m Matcher, r Reconciler, s store.Store, cfg config.CrawlConfig) *Crawler {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 200
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 5
	}
	return &Crawler{
		fetcher:    f,
		classifier: c,
		extractor:  e,
		matcher:    m,
		reconciler: r,
		store:      s,
		cfg:        cfg,
	}
}

// Run crawls from the seed URLs until the frontier drains or the step
// budget runs out. Per-page failures are recorded in the summary and the
// crawl moves on; only context cancellation aborts the run.
func (c *Crawler) Run(ctx context.Context, seeds []string) (*model.CrawlSummary, error) {
	summary := &model.CrawlSummary{}
	frontier := NewFrontier()

	st := stateInitialize
	var current model.FrontierItem
	var page *model.FetchedPage

	for {
		if err := ctx.Err(); err != nil {
			return summary, eris.Wrap(err, "crawler: canceled")
		}

		switch st {
		case stateInitialize:
			if !c.cfg.NoCache {
				if n, err := c.store.DeleteExpiredPages(ctx); err != nil {
					zap.L().Warn("crawler: cache sweep failed", zap.Error(err))
				} else if n > 0 {
					zap.L().Debug("crawler: expired pages swept", zap.Int("count", n))
				}
			}
			for _, seed := range seeds {
				if !frontier.Enqueue(model.FrontierItem{URL: seed, Depth: 0}) {
					zap.L().Warn("crawler: seed rejected", zap.String("url", seed))
				}
			}
			st = statePopNext

		case statePopNext:
			if summary.PagesVisited >= c.cfg.MaxSteps {
				zap.L().Info("crawler: step budget reached",
					zap.Int("max_steps", c.cfg.MaxSteps))
				st = stateDone
				continue
			}
			item, ok := frontier.Pop()
			if !ok {
				st = stateDone
				continue
			}
			current = item
			summary.PagesVisited++
			st = stateClassify

		case stateClassify:
			var err error
			page, err = c.fetchPage(ctx, current.URL)
			if err != nil {
				c.recordError(summary, current.URL, "fetch", err)
				st = statePopNext
				continue
			}

			classification, err := c.classifier.Classify(ctx, page)
			if err != nil {
				c.recordError(summary, current.URL, "classify", err)
				st = statePopNext
				continue
			}

			zap.L().Info("crawler: page classified",
				zap.String("url", current.URL),
				zap.String("category", string(classification.Category)),
				zap.Float64("confidence", classification.Confidence),
			)

			switch classification.Category {
			case model.PageCategoryIndex:
				st = stateExploreChildren
			case model.PageCategoryMemberList:
				st = stateExtractMembers
			default:
				st = statePopNext
			}

		case stateExploreChildren:
			c.enqueueChildren(frontier, current, page)
			st = statePopNext

		case stateExtractMembers:
			if err := c.processMemberList(ctx, summary, current, page); err != nil {
				return summary, err
			}
			st = statePopNext

		case stateDone:
			zap.L().Info("crawler: run complete",
				zap.Int("pages_visited", summary.PagesVisited),
				zap.Int("members_extracted", summary.MembersExtracted),
				zap.Int("members_updated", summary.MembersUpdated),
				zap.Int("errors", len(summary.Errors)),
			)
			return summary, nil
		}
	}
}

// fetchPage serves from the page cache when possible and caches fresh
// fetches with the configured TTL.
func (c *Crawler) fetchPage(ctx context.Context, pageURL string) (*model.FetchedPage, error) {
	if !c.cfg.NoCache {
		cached, err := c.store.GetCachedPage(ctx, pageURL)
		if err != nil {
			zap.L().Warn("crawler: page cache read failed",
				zap.String("url", pageURL), zap.Error(err))
		} else if cached != nil {
			zap.L().Debug("crawler: page cache hit", zap.String("url", pageURL))
			page := cached.Page
			return &page, nil
		}
	}

	page, err := c.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	if !c.cfg.NoCache {
		ttl := time.Duration(c.cfg.CacheTTLHours) * time.Hour
		if err := c.store.SetCachedPage(ctx, pageURL, *page, ttl); err != nil {
			zap.L().Warn("crawler: page cache write failed",
				zap.String("url", pageURL), zap.Error(err))
		}
	}
	return page, nil
}

// enqueueChildren pushes an index page's same-host links onto the frontier,
// respecting the depth cap. The frontier's own dedup handles revisits.
func (c *Crawler) enqueueChildren(frontier *Frontier, parent model.FrontierItem, page *model.FetchedPage) {
	if parent.Depth >= c.cfg.MaxDepth {
		zap.L().Debug("crawler: depth cap, not expanding",
			zap.String("url", parent.URL), zap.Int("depth", parent.Depth))
		return
	}
	base, err := url.Parse(page.URL)
	if err != nil {
		return
	}

	enqueued := 0
	for _, link := range fetch.ParseLinks(page.HTML, base) {
		if frontier.Visited(link) {
			continue
		}
		if frontier.Enqueue(model.FrontierItem{
			URL:            link,
			Depth:          parent.Depth + 1,
			DiscoveredFrom: parent.URL,
		}) {
			enqueued++
		}
	}
	zap.L().Debug("crawler: children enqueued",
		zap.String("url", parent.URL), zap.Int("count", enqueued))
}

// processMemberList runs extract, match, and reconcile for one member-list
// page. Stage failures are accumulated per page; a store-level failure
// inside reconciliation is recorded and the page is abandoned.
func (c *Crawler) processMemberList(ctx context.Context, summary *model.CrawlSummary, item model.FrontierItem, page *model.FetchedPage) error {
	candidates, err := c.extractor.Extract(ctx, page)
	if err != nil {
		c.recordError(summary, item.URL, "extract", err)
		return nil
	}
	summary.MembersExtracted += len(candidates)
	if len(candidates) == 0 {
		return nil
	}

	decisions, err := c.matcher.MatchAll(ctx, candidates, c.shortlistFor)
	if err != nil {
		c.recordError(summary, item.URL, "match", err)
		return nil
	}

	for _, decision := range decisions {
		result, err := c.reconciler.Reconcile(ctx, decision)
		if err != nil {
			c.recordError(summary, item.URL, "reconcile", err)
			continue
		}
		if result.Updated {
			summary.MembersUpdated++
		}
	}
	return nil
}

// shortlistFor pulls the canonical shortlist for one candidate by name.
func (c *Crawler) shortlistFor(ctx context.Context, candidate model.CandidateRecord) ([]model.Member, error) {
	return c.store.SearchMembers(ctx, candidate.RawName, 20)
}

func (c *Crawler) recordError(summary *model.CrawlSummary, pageURL, stage string, err error) {
	zap.L().Warn("crawler: stage failed",
		zap.String("url", pageURL),
		zap.String("stage", stage),
		zap.Error(err),
	)
	summary.Errors = append(summary.Errors, model.CrawlError{
		URL:   pageURL,
		Stage: stage,
		Err:   err.Error(),
	})
}
