package observer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stackwatch/election-observer/internal/api"
	"github.com/stackwatch/election-observer/internal/badge"
	"github.com/stackwatch/election-observer/internal/config"
	"github.com/stackwatch/election-observer/internal/fetch"
	"github.com/stackwatch/election-observer/internal/metrics"
	"github.com/stackwatch/election-observer/internal/notify"
	"github.com/stackwatch/election-observer/internal/report"
	"github.com/stackwatch/election-observer/internal/store"
)

// Tracked is one badge under observation: its loaded award set plus the
// store and fetcher that maintain it.
type Tracked struct {
	Site string
	Name string
	ID   int
	Role string
	Set  *badge.AwardSet

	store   *store.Store
	fetcher *fetch.Fetcher
}

// Options are the run-mode flags for the update loop.
type Options struct {
	NoUpdate bool // use on-disk data only
	NoWrite  bool // never persist merged data
	Forever  bool // repeat the cycle with an inter-run delay
	Interval time.Duration
}

// RunResult summarizes one update cycle.
type RunResult struct {
	RunID    string
	Fetched  int
	Merged   int
	Awards   int
	Errors   []string
	Duration time.Duration
}

// Observer owns the update loop: load stores once, then per cycle optionally
// fetch and merge, optionally persist, and hand the merged sets to the
// reporter.
type Observer struct {
	cfg      *config.Config
	tracked  []*Tracked
	renderer *report.Renderer
	notifier notify.Notifier
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// New builds the observer and loads every tracked badge's persisted set.
// A corrupt store file fails construction; it must reach the operator, not
// be silently discarded.
func New(cfg *config.Config, client api.Client, notifier notify.Notifier, m *metrics.Metrics, logger *zap.Logger) (*Observer, error) {
	o := &Observer{
		cfg:      cfg,
		renderer: report.NewRenderer(cfg.Output.ImageDirectory, logger),
		notifier: notifier,
		metrics:  m,
		logger:   logger,
	}

	for _, bc := range cfg.Badges {
		st := store.New(cfg.Output.DataDirectory, bc.Site, bc.Name, bc.ID, logger)
		set, err := st.Load()
		if err != nil {
			return nil, fmt.Errorf("loading %s/%s: %w", bc.Site, bc.Name, err)
		}

		o.tracked = append(o.tracked, &Tracked{
			Site:    bc.Site,
			Name:    bc.Name,
			ID:      bc.ID,
			Role:    bc.Role,
			Set:     set,
			store:   st,
			fetcher: fetch.New(client, bc.Site, bc.ID, fetch.Options{BackoffBudget: cfg.Fetch.BackoffBudget()}, logger),
		})
	}

	return o, nil
}

// Run executes a single update cycle, or repeats it indefinitely under
// Forever. In forever mode iteration failures are logged and the next
// iteration proceeds on schedule; cancellation is honored only between
// iterations, never mid-fetch or mid-write within a completed step.
func (o *Observer) Run(ctx context.Context, opts Options) error {
	if !opts.Forever {
		result := o.runOnce(ctx, opts)
		return o.finish(ctx, result)
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = o.cfg.Fetch.Interval()
	}

	for {
		result := o.runOnce(ctx, opts)
		if err := o.finish(ctx, result); err != nil {
			o.logger.Error("update cycle failed", zap.String("run", result.RunID), zap.Error(err))
		}

		o.logger.Info("sleeping until next cycle",
			zap.String("run", result.RunID),
			zap.Duration("interval", interval))

		select {
		case <-ctx.Done():
			o.logger.Info("shutdown between iterations")
			return nil
		case <-time.After(interval):
		}
	}
}

func (o *Observer) runOnce(ctx context.Context, opts Options) *RunResult {
	result := &RunResult{RunID: uuid.NewString()[:8]}
	start := time.Now()

	o.logger.Info("starting update cycle",
		zap.String("run", result.RunID),
		zap.Bool("no_update", opts.NoUpdate),
		zap.Bool("no_write", opts.NoWrite))

	if !opts.NoUpdate {
		for _, tr := range o.tracked {
			o.updateOne(ctx, tr, opts, result)
			if ctx.Err() != nil {
				break
			}
		}
	}

	o.render(result)

	for _, tr := range o.tracked {
		result.Awards += tr.Set.Len()
		if o.metrics != nil {
			o.metrics.AwardsTotal.WithLabelValues(tr.Site, tr.Name).Set(float64(tr.Set.Len()))
		}
	}

	result.Duration = time.Since(start)
	if o.metrics != nil {
		o.metrics.RunDuration.Observe(result.Duration.Seconds())
		if len(result.Errors) == 0 {
			o.metrics.LastSuccess.SetToCurrentTime()
		}
	}

	o.logger.Info("update cycle complete",
		zap.String("run", result.RunID),
		zap.Int("fetched", result.Fetched),
		zap.Int("merged", result.Merged),
		zap.Int("awards", result.Awards),
		zap.Int("errors", len(result.Errors)),
		zap.Duration("duration", result.Duration))

	return result
}

// updateOne fetches one badge's new awards, merges, and persists. A fetch
// failure means "no new data this run" for that badge; persisted data is
// untouched either way.
func (o *Observer) updateOne(ctx context.Context, tr *Tracked, opts Options, result *RunResult) {
	cursor := tr.Set.Cursor()
	awards, err := tr.fetcher.FetchSince(ctx, cursor)
	if err != nil {
		o.logger.Error("fetch failed, keeping existing data",
			zap.String("run", result.RunID),
			zap.String("site", tr.Site),
			zap.String("badge", tr.Name),
			zap.Error(err))
		result.Errors = append(result.Errors, err.Error())
		if o.metrics != nil {
			o.metrics.FetchErrors.WithLabelValues(tr.Site, tr.Name).Inc()
		}
		return
	}

	added, conflicts := tr.Set.Merge(awards)
	result.Fetched += len(awards)
	result.Merged += added

	for _, c := range conflicts {
		// Identifiers are authoritative and immutable once observed; a
		// differing payload is a data-source anomaly, not an update.
		o.logger.Warn("re-observed award differs from stored payload",
			zap.String("site", tr.Site),
			zap.String("badge", tr.Name),
			zap.String("award", c.String()))
	}

	o.logger.Info("badge updated",
		zap.String("run", result.RunID),
		zap.String("site", tr.Site),
		zap.String("badge", tr.Name),
		zap.Int64("cursor", cursor),
		zap.Int("fetched", len(awards)),
		zap.Int("new", added))

	if opts.NoWrite {
		return
	}

	if err := tr.store.Save(tr.Set); err != nil {
		o.logger.Error("persisting badge data failed",
			zap.String("site", tr.Site),
			zap.String("badge", tr.Name),
			zap.Error(err))
		result.Errors = append(result.Errors, fmt.Sprintf("saving %s/%s: %v", tr.Site, tr.Name, err))
	}
}

// render charts every site that tracks a constituent or caucus badge.
func (o *Observer) render(result *RunResult) {
	bySite := make(map[string]struct {
		constituents *badge.AwardSet
		caucus       *badge.AwardSet
	})

	var sites []string
	for _, tr := range o.tracked {
		entry, ok := bySite[tr.Site]
		if !ok {
			entry.constituents = badge.NewSet()
			entry.caucus = badge.NewSet()
			sites = append(sites, tr.Site)
		}
		switch tr.Role {
		case config.RoleConstituent:
			entry.constituents = tr.Set
		case config.RoleCaucus:
			entry.caucus = tr.Set
		}
		bySite[tr.Site] = entry
	}

	for _, site := range sites {
		entry := bySite[site]
		if entry.constituents.Len() == 0 && entry.caucus.Len() == 0 {
			continue
		}

		elections := report.BuildElections(site, entry.constituents, entry.caucus, o.logger)
		o.logger.Info("rendering election charts",
			zap.String("run", result.RunID),
			zap.String("site", site),
			zap.Int("elections", len(elections)))

		if err := o.renderer.RenderAll(elections); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("rendering %s: %v", site, err))
		}
	}
}

// finish reports the cycle outcome through the notifier and folds errors
// into a single error for the caller.
func (o *Observer) finish(ctx context.Context, result *RunResult) error {
	summary := &notify.RunSummary{
		RunID:    result.RunID,
		Fetched:  result.Fetched,
		Merged:   result.Merged,
		Awards:   result.Awards,
		Errors:   result.Errors,
		Duration: result.Duration,
	}

	if len(result.Errors) == 0 {
		if err := o.notifier.SendSuccess(ctx, summary); err != nil {
			o.logger.Warn("success notification failed", zap.Error(err))
		}
		return nil
	}

	err := errors.New(strings.Join(result.Errors, "; "))
	if notifyErr := o.notifier.SendFailure(ctx, summary, err); notifyErr != nil {
		o.logger.Warn("failure notification failed", zap.Error(notifyErr))
	}
	return fmt.Errorf("%d of this cycle's steps failed: %w", len(result.Errors), err)
}
