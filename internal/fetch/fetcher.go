package fetch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/stackwatch/election-observer/internal/api"
	"github.com/stackwatch/election-observer/internal/badge"
)

// ErrBackoffBudget marks a fetch that spent its whole throttle-wait budget
// without the API letting it back in.
var ErrBackoffBudget = errors.New("backoff wait budget exhausted")

// FetchError wraps any failure that aborts an incremental fetch. Callers
// treat it as "no new data this run": already-persisted awards are untouched.
type FetchError struct {
	Site    string
	BadgeID int
	Page    int
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s badge %d page %d: %v", e.Site, e.BadgeID, e.Page, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

const DefaultBackoffBudget = 5 * time.Minute

type Options struct {
	// BackoffBudget caps the total time one FetchSince call may spend
	// sleeping on throttle signals before giving up with a FetchError.
	BackoffBudget time.Duration
}

// Fetcher pages through one badge's awards on one site.
type Fetcher struct {
	client  api.Client
	site    string
	badgeID int
	budget  time.Duration
	logger  *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

func New(client api.Client, site string, badgeID int, opts Options, logger *zap.Logger) *Fetcher {
	budget := opts.BackoffBudget
	if budget <= 0 {
		budget = DefaultBackoffBudget
	}
	return &Fetcher{
		client:  client,
		site:    site,
		badgeID: badgeID,
		budget:  budget,
		logger:  logger,
		sleep:   sleepCtx,
	}
}

// FetchSince returns all awards strictly newer than cursor, in ascending
// timestamp order, paging until the API reports no continuation or a page
// comes back empty. A throttle signal suspends the fetch for the signaled
// duration and retries the same page, up to the configured wait budget.
func (f *Fetcher) FetchSince(ctx context.Context, cursor int64) ([]badge.Award, error) {
	var out []badge.Award
	seen := make(map[badge.Key]struct{})

	fromDate := int64(0)
	if cursor > 0 {
		fromDate = cursor + 1
	}

	var waited time.Duration
	for page := 1; ; {
		p, err := f.client.BadgeRecipients(ctx, f.site, f.badgeID, fromDate, page)
		if err != nil {
			return nil, &FetchError{Site: f.site, BadgeID: f.badgeID, Page: page, Err: err}
		}

		if p.Backoff > 0 {
			delay := time.Duration(p.Backoff) * time.Second
			if waited+delay > f.budget {
				return nil, &FetchError{Site: f.site, BadgeID: f.badgeID, Page: page, Err: ErrBackoffBudget}
			}
			waited += delay

			f.logger.Info("api requested backoff",
				zap.String("site", f.site),
				zap.Int("badge", f.badgeID),
				zap.Int("page", page),
				zap.Duration("delay", delay))

			if err := f.sleep(ctx, delay); err != nil {
				return nil, &FetchError{Site: f.site, BadgeID: f.badgeID, Page: page, Err: err}
			}
			continue // retry the same page
		}

		if p.QuotaRemaining == 0 && p.HasMore {
			return nil, &FetchError{Site: f.site, BadgeID: f.badgeID, Page: page, Err: api.ErrQuotaExhausted}
		}

		if len(p.Items) == 0 {
			break
		}

		for _, it := range p.Items {
			// Page boundaries can overlap as the list grows under us.
			if it.AwardedAt <= cursor {
				continue
			}
			a := badge.Award{
				BadgeID:   f.badgeID,
				UserID:    it.User.UserID,
				Timestamp: it.AwardedAt,
				Reason:    it.Reason,
			}
			if _, dup := seen[a.Key()]; dup {
				continue
			}
			seen[a.Key()] = struct{}{}
			out = append(out, a)
		}

		f.logger.Debug("fetched page",
			zap.String("site", f.site),
			zap.Int("badge", f.badgeID),
			zap.Int("page", page),
			zap.Int("items", len(p.Items)))

		if !p.HasMore {
			break
		}
		page++
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})

	return out, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
