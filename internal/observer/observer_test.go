package observer

import (
	"context"
	"errors"
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/stackwatch/election-observer/internal/api"
	"github.com/stackwatch/election-observer/internal/config"
	"github.com/stackwatch/election-observer/internal/notify"
	"github.com/stackwatch/election-observer/internal/store"
)

// fakeClient serves a fixed award list filtered by fromdate, one page.
type fakeClient struct {
	items []api.Item
	err   error
	calls int
}

func (c *fakeClient) BadgeRecipients(ctx context.Context, site string, badgeID int, fromDate int64, page int) (*api.RecipientsPage, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}

	p := &api.RecipientsPage{QuotaRemaining: 100}
	for _, it := range c.items {
		if it.BadgeID == badgeID && it.AwardedAt >= fromDate {
			p.Items = append(p.Items, it)
		}
	}
	return p, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Fetch: config.FetchConfig{BackoffBudgetSec: 60, IntervalSec: 300},
		Badges: []config.BadgeConfig{
			{Site: "stackoverflow.com", Name: "constituent", ID: 1974, Role: config.RoleConstituent},
			{Site: "stackoverflow.com", Name: "caucus", ID: 1973, Role: config.RoleCaucus},
		},
		Output: config.OutputConfig{
			DataDirectory:  t.TempDir(),
			ImageDirectory: t.TempDir(),
		},
	}
}

func TestRunFetchesMergesAndPersists(t *testing.T) {
	cfg := testConfig(t)
	client := &fakeClient{
		items: []api.Item{
			{BadgeID: 1974, User: api.User{UserID: 1}, AwardedAt: 1_000_000, Reason: "/election/7"},
			{BadgeID: 1973, User: api.User{UserID: 2}, AwardedAt: 999_000, Reason: "/election/7"},
			{BadgeID: 1973, User: api.User{UserID: 3}, AwardedAt: 999_500, Reason: "/election/7"},
		},
	}

	o, err := New(cfg, client, &notify.NoopNotifier{}, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := o.Run(context.Background(), Options{}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// The merged set must have been persisted and reloadable.
	st := store.New(cfg.Output.DataDirectory, "stackoverflow.com", "constituent", 1974, zap.NewNop())
	set, err := st.Load()
	if err != nil {
		t.Fatalf("Load after run: %v", err)
	}
	if set.Len() != 1 || set.Cursor() != 1_000_000 {
		t.Errorf("persisted constituent set: len=%d cursor=%d", set.Len(), set.Cursor())
	}
}

func TestRunIsIdempotentAcrossCycles(t *testing.T) {
	cfg := testConfig(t)
	client := &fakeClient{
		items: []api.Item{
			{BadgeID: 1974, User: api.User{UserID: 1}, AwardedAt: 1_000_000, Reason: "/election/7"},
		},
	}

	o, err := New(cfg, client, &notify.NoopNotifier{}, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := o.Run(context.Background(), Options{}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := o.Run(context.Background(), Options{}); err != nil {
		t.Fatalf("second run: %v", err)
	}

	st := store.New(cfg.Output.DataDirectory, "stackoverflow.com", "constituent", 1974, zap.NewNop())
	set, err := st.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if set.Len() != 1 {
		t.Errorf("expected 1 award after two cycles, got %d", set.Len())
	}
}

func TestRunNoWriteLeavesStoreUntouched(t *testing.T) {
	cfg := testConfig(t)
	client := &fakeClient{
		items: []api.Item{
			{BadgeID: 1974, User: api.User{UserID: 1}, AwardedAt: 1_000_000, Reason: "/election/7"},
		},
	}

	o, err := New(cfg, client, &notify.NoopNotifier{}, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := o.Run(context.Background(), Options{NoWrite: true}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	st := store.New(cfg.Output.DataDirectory, "stackoverflow.com", "constituent", 1974, zap.NewNop())
	if _, err := os.Stat(st.Path()); !os.IsNotExist(err) {
		t.Error("no-write run must not create a store file")
	}
}

func TestRunNoUpdateSkipsFetching(t *testing.T) {
	cfg := testConfig(t)
	client := &fakeClient{}

	o, err := New(cfg, client, &notify.NoopNotifier{}, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := o.Run(context.Background(), Options{NoUpdate: true}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if client.calls != 0 {
		t.Errorf("no-update run made %d API calls", client.calls)
	}
}

func TestRunFetchErrorIsContained(t *testing.T) {
	cfg := testConfig(t)
	client := &fakeClient{err: errors.New("network down")}

	o, err := New(cfg, client, &notify.NoopNotifier{}, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	runErr := o.Run(context.Background(), Options{})
	if runErr == nil {
		t.Fatal("expected run error when every fetch fails")
	}

	// No store file appears: existing (absent) data stays as-is.
	st := store.New(cfg.Output.DataDirectory, "stackoverflow.com", "constituent", 1974, zap.NewNop())
	if _, err := os.Stat(st.Path()); !os.IsNotExist(err) {
		t.Error("failed fetch must not write a store file")
	}
}

func TestNewSurfacesCorruptStore(t *testing.T) {
	cfg := testConfig(t)

	st := store.New(cfg.Output.DataDirectory, "stackoverflow.com", "constituent", 1974, zap.NewNop())
	if err := os.MkdirAll(cfg.Output.DataDirectory, 0750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(st.Path(), []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := New(cfg, &fakeClient{}, &notify.NoopNotifier{}, nil, zap.NewNop())
	var corrupt *store.CorruptDataError
	if !errors.As(err, &corrupt) {
		t.Fatalf("expected CorruptDataError to surface, got %v", err)
	}
}
