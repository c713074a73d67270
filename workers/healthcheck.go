package workers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"flipscout/config"
	"flipscout/models"
	"flipscout/services"
	"flipscout/storage"
)

// HealthcheckWorker checks whether active listings are still live. Flip
// candidates go fast; a listing that 404s or redirects to search is gone
// and should stop showing up as an opportunity.
type HealthcheckWorker struct {
	store      *storage.SQLiteStore
	flips      *services.FlipService
	sites      map[string]*config.SiteConfig
	httpClient *http.Client
	triggerCh  chan struct{}
	logFunc    LogFunc
}

func (w *HealthcheckWorker) SetLogger(fn LogFunc) {
	w.logFunc = fn
}

// NewHealthcheckWorker creates a new healthcheck worker
func NewHealthcheckWorker(store *storage.SQLiteStore, flips *services.FlipService, sites map[string]*config.SiteConfig, client *http.Client) *HealthcheckWorker {
	if client == nil {
		client = &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse // Don't follow redirects
			},
		}
	}
	return &HealthcheckWorker{
		store:      store,
		flips:      flips,
		sites:      sites,
		httpClient: client,
		triggerCh:  make(chan struct{}, 1),
		logFunc:    NoOpLogger,
	}
}

// Trigger causes the worker to run immediately
func (w *HealthcheckWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// CheckResult contains the outcome of checking a listing
type CheckResult struct {
	IsLive     bool
	StatusCode int
	Error      error
}

// Check does a lightweight HEAD request to decide whether a listing URL is
// still reachable.
func (w *HealthcheckWorker) Check(ctx context.Context, listingURL string) CheckResult {
	req, err := http.NewRequestWithContext(ctx, "HEAD", listingURL, nil)
	if err != nil {
		return CheckResult{Error: err}
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return CheckResult{Error: err}
	}
	resp.Body.Close()

	result := CheckResult{StatusCode: resp.StatusCode}

	switch resp.StatusCode {
	case 200:
		result.IsLive = true
	case 404, 410:
		result.IsLive = false
	case 301, 302:
		location := resp.Header.Get("Location")
		result.IsLive = !isRemovalRedirect(location)
	default:
		// For other codes, assume still live
		result.IsLive = true
	}

	return result
}

// isRemovalRedirect checks if a redirect URL indicates the listing was taken
// down. Marketplaces bounce dead listing URLs back to search or login.
func isRemovalRedirect(location string) bool {
	removalPatterns := []string{
		"/search",
		"/browse",
		"/login",
		"notfound",
		"unavailable",
		"error",
	}

	lower := strings.ToLower(location)
	for _, pattern := range removalPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// Run starts the healthcheck worker loop
func (w *HealthcheckWorker) Run(ctx context.Context, staleDuration time.Duration, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Healthcheck worker stopping")
			return
		case <-ticker.C:
			w.processBatch(ctx, staleDuration, batchSize)
		case <-w.triggerCh:
			log.Println("Healthcheck worker triggered manually")
			w.processBatch(ctx, staleDuration, batchSize)
		}
	}
}

func (w *HealthcheckWorker) processBatch(ctx context.Context, staleDuration time.Duration, batchSize int) {
	listings, err := w.store.GetStaleActive(staleDuration, batchSize)
	if err != nil {
		log.Printf("Healthcheck: query error: %v", err)
		return
	}

	if len(listings) == 0 {
		return
	}

	log.Printf("Healthcheck: checking %d stale listings", len(listings))

	var checked, removed int
	for i := range listings {
		listing := &listings[i]
		if listing.URL == "" {
			continue
		}

		result := w.Check(ctx, listing.URL)
		checked++

		if result.Error != nil {
			log.Printf("Healthcheck: error checking %s: %v", listing.URL, result.Error)
			w.store.TouchListing(listing.ID.String(), time.Now())
			continue
		}

		if !result.IsLive {
			log.Printf("Healthcheck: listing removed (status %d): %s", result.StatusCode, listing.URL)
			if err := w.flips.MarkRemoved(ctx, listing.ID); err != nil {
				log.Printf("Healthcheck: failed to mark removed: %v", err)
			} else {
				removed++
			}
		} else {
			w.store.TouchListing(listing.ID.String(), time.Now())
		}

		// Rate limit between requests
		time.Sleep(siteRateLimit(w.sites, listing.SiteID))
	}

	if removed > 0 {
		log.Printf("Healthcheck: checked %d, removed %d", checked, removed)
		w.logFunc(models.LogLevelInfo, "healthcheck", fmt.Sprintf("Checked %d listings, %d removed", checked, removed))
	}
}
