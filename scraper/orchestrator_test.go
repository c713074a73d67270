package scraper

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"flipscout/config"
	"flipscout/models"
	"flipscout/services"
	"flipscout/storage"
)

type fakeHandler struct {
	result *ScanResult
	err    error
	scans  int
}

func (f *fakeHandler) ID() string { return "market" }

func (f *fakeHandler) Scan(ctx context.Context, params ScanParams) (*ScanResult, error) {
	f.scans++
	return f.result, f.err
}

func newTestOrchestrator(t *testing.T, h Handler) (*Orchestrator, *storage.SQLiteStore) {
	t.Helper()
	store, err := storage.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{
		Scan: config.ScanConfig{Location: "london", MinMargin: 0.25, Limit: 15},
		Sites: map[string]*config.SiteConfig{
			"market": {ID: "market", Name: "Test Marketplace"},
		},
	}

	o := NewOrchestrator(cfg, store, nil)
	o.handlers["market"] = h
	o.SetServices(services.NewFlipService(store, nil), nil)
	return o, store
}

func scanResult(titles ...string) *ScanResult {
	r := &ScanResult{ItemCount: len(titles)}
	for i, title := range titles {
		r.Listings = append(r.Listings, models.Listing{
			SiteID:    "market",
			Title:     title,
			Price:     100 + i,
			URL:       "https://market.example.com/item/" + title,
			Viable:    true,
			ScrapedAt: time.Now().UTC(),
		})
	}
	return r
}

func TestRunSite_Completed(t *testing.T) {
	h := &fakeHandler{result: scanResult("sofa", "armchair")}
	o, store := newTestOrchestrator(t, h)

	if err := o.RunSite(context.Background(), "market"); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if h.scans != 1 {
		t.Fatalf("expected 1 scan, got %d", h.scans)
	}

	listings, err := store.GetViableListings(10)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(listings) != 2 {
		t.Fatalf("expected 2 persisted listings, got %d", len(listings))
	}
}

func TestRunSite_PartialResultsOnFailure(t *testing.T) {
	// A run-level failure after some listings were gathered still persists
	// them, and the run is marked failed.
	h := &fakeHandler{result: scanResult("sofa"), err: ErrNavigationTimeout}
	o, store := newTestOrchestrator(t, h)

	err := o.RunSite(context.Background(), "market")
	if !errors.Is(err, ErrNavigationTimeout) {
		t.Fatalf("expected navigation timeout, got %v", err)
	}

	listings, qerr := store.GetViableListings(10)
	if qerr != nil {
		t.Fatalf("query failed: %v", qerr)
	}
	if len(listings) != 1 {
		t.Fatalf("expected partial listing persisted, got %d", len(listings))
	}
}

func TestRunSite_UnknownSite(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakeHandler{result: scanResult()})
	if err := o.RunSite(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for unknown site")
	}
}

func TestPauseResume(t *testing.T) {
	h := &fakeHandler{result: scanResult("sofa")}
	o, store := newTestOrchestrator(t, h)
	ctx := context.Background()

	if err := o.HandleCommand(&models.Command{Command: models.CmdPause}); err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	if !o.IsPaused() {
		t.Fatal("expected paused")
	}
	if err := o.RunAll(ctx); err != nil {
		t.Fatalf("paused RunAll must be a no-op, got %v", err)
	}
	if h.scans != 0 {
		t.Fatalf("paused orchestrator must not scan, got %d scans", h.scans)
	}

	if err := o.HandleCommand(&models.Command{Command: models.CmdResume}); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if err := o.RunAll(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if h.scans != 1 {
		t.Fatalf("expected 1 scan after resume, got %d", h.scans)
	}

	listings, err := store.GetViableListings(10)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(listings) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(listings))
	}
}

// blockingHandler holds each scan open long enough for a second caller to
// land on it if the orchestrator fails to serialize.
type blockingHandler struct {
	active  int32
	overlap int32
	scans   int32
}

func (b *blockingHandler) ID() string { return "market" }

func (b *blockingHandler) Scan(ctx context.Context, params ScanParams) (*ScanResult, error) {
	if atomic.AddInt32(&b.active, 1) > 1 {
		atomic.StoreInt32(&b.overlap, 1)
	}
	time.Sleep(20 * time.Millisecond)
	atomic.AddInt32(&b.active, -1)
	atomic.AddInt32(&b.scans, 1)
	return &ScanResult{}, nil
}

func TestRunSite_SerializesConcurrentCallers(t *testing.T) {
	// The cron tick and the command poller can both reach RunSite; the
	// handler must never see two scans in flight.
	h := &blockingHandler{}
	o, _ := newTestOrchestrator(t, h)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := o.RunSite(context.Background(), "market"); err != nil {
				t.Errorf("run failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if atomic.LoadInt32(&h.overlap) != 0 {
		t.Fatal("handler entered concurrently, scans must be serialized")
	}
	if got := atomic.LoadInt32(&h.scans); got != 4 {
		t.Fatalf("expected 4 scans, got %d", got)
	}
}

func TestHandleCommand_Status(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakeHandler{result: scanResult()})

	if err := o.HandleCommand(&models.Command{Command: models.CmdStatus}); err != nil {
		t.Fatalf("status command failed: %v", err)
	}

	status, err := o.MarshalStatus()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(status), `"paused":false`) {
		t.Fatalf("expected paused flag in status, got %s", status)
	}
	if !strings.Contains(string(status), "market") {
		t.Fatalf("expected site in status, got %s", status)
	}
}
