package scraper

import (
	"context"
	"testing"
	"time"
)

type fakePage struct {
	counts      []int
	idx         int
	loadVisible bool
	clicks      int
	scrolls     int
}

func (f *fakePage) ClickIfVisible(selectors []string) bool {
	if f.loadVisible && len(selectors) > 0 {
		f.clicks++
		return true
	}
	return false
}

func (f *fakePage) ScrollToBottom() error {
	f.scrolls++
	return nil
}

func (f *fakePage) CountItems(selector string) (int, error) {
	if f.idx >= len(f.counts) {
		return f.counts[len(f.counts)-1], nil
	}
	count := f.counts[f.idx]
	f.idx++
	return count, nil
}

func (f *fakePage) Settle(d time.Duration) {}

func TestPaginate_ReachesTarget(t *testing.T) {
	page := &fakePage{counts: []int{8, 16, 24, 32}}
	cfg := PaginateConfig{Container: "[role='article']", Target: 20}

	count, err := Paginate(context.Background(), page, cfg)
	if err != nil {
		t.Fatalf("paginate failed: %v", err)
	}
	if count != 24 {
		t.Fatalf("count = %d, want 24", count)
	}
}

func TestPaginate_StableCountEndsFeed(t *testing.T) {
	// Two consecutive probes at 40 terminate even with a higher target.
	page := &fakePage{counts: []int{40, 40}}
	cfg := PaginateConfig{Container: "[role='article']", Target: 100}

	count, err := Paginate(context.Background(), page, cfg)
	if err != nil {
		t.Fatalf("paginate failed: %v", err)
	}
	if count != 40 {
		t.Fatalf("count = %d, want 40", count)
	}
	if page.scrolls != 1 {
		t.Fatalf("scrolls = %d, want 1", page.scrolls)
	}
}

func TestPaginate_IterationCeiling(t *testing.T) {
	// Strictly growing counts never stabilize; the ceiling bounds the loop.
	counts := make([]int, 100)
	for i := range counts {
		counts[i] = i + 1
	}
	page := &fakePage{counts: counts}
	cfg := PaginateConfig{Container: "x", Target: 1000, MaxIterations: 5}

	count, err := Paginate(context.Background(), page, cfg)
	if err != nil {
		t.Fatalf("paginate failed: %v", err)
	}
	if count != 6 {
		t.Fatalf("count = %d, want 6 after 5 iterations", count)
	}
	if page.scrolls != 5 {
		t.Fatalf("scrolls = %d, want 5", page.scrolls)
	}
}

func TestPaginate_ClicksLoadMore(t *testing.T) {
	page := &fakePage{counts: []int{5, 10, 10}, loadVisible: true}
	cfg := PaginateConfig{Container: "x", Target: 50, LoadMore: []string{"text=Load more"}}

	if _, err := Paginate(context.Background(), page, cfg); err != nil {
		t.Fatalf("paginate failed: %v", err)
	}
	if page.clicks == 0 {
		t.Fatalf("expected load-more clicks")
	}
}

func TestPaginate_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	page := &fakePage{counts: []int{5, 10, 15}}
	cfg := PaginateConfig{Container: "x", Target: 50}

	count, err := Paginate(ctx, page, cfg)
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
	if count != 5 {
		t.Fatalf("count = %d, want initial probe 5", count)
	}
}
