package workers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"flipscout/config"
	"flipscout/storage"
)

// EnrichmentWorker fetches detail pages for viable listings and pulls out
// the fields the result tiles don't show: full description and condition.
type EnrichmentWorker struct {
	store      *storage.SQLiteStore
	sites      map[string]*config.SiteConfig
	httpClient *http.Client
	triggerCh  chan struct{}
}

func NewEnrichmentWorker(store *storage.SQLiteStore, sites map[string]*config.SiteConfig, client *http.Client) *EnrichmentWorker {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &EnrichmentWorker{
		store:      store,
		sites:      sites,
		httpClient: client,
		triggerCh:  make(chan struct{}, 1),
	}
}

// Trigger causes the worker to run immediately
func (w *EnrichmentWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// EnrichedData holds what a detail page yielded.
type EnrichedData struct {
	Description string
	Condition   string
}

// Enrich fetches a listing URL and extracts detail fields using the site's
// selector candidates.
func (w *EnrichmentWorker) Enrich(ctx context.Context, siteID, listingURL string) (*EnrichedData, error) {
	site, ok := w.sites[siteID]
	if !ok {
		return nil, fmt.Errorf("unknown site: %s", siteID)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", listingURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	return &EnrichedData{
		Description: firstSelectorText(doc, site.Enrichment.Description),
		Condition:   firstSelectorText(doc, site.Enrichment.Condition),
	}, nil
}

const defaultRateLimit = 500 * time.Millisecond

// siteRateLimit returns the per-site delay between outbound requests.
func siteRateLimit(sites map[string]*config.SiteConfig, siteID string) time.Duration {
	if site, ok := sites[siteID]; ok && site.RateLimitMS > 0 {
		return time.Duration(site.RateLimitMS) * time.Millisecond
	}
	return defaultRateLimit
}

// firstSelectorText returns the trimmed text of the first candidate selector
// that matches a non-empty node.
func firstSelectorText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		text := strings.TrimSpace(doc.Find(sel).First().Text())
		if text != "" {
			return text
		}
	}
	return ""
}

// Run starts the enrichment worker loop
func (w *EnrichmentWorker) Run(ctx context.Context, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Enrichment worker stopping")
			return
		case <-ticker.C:
			w.processBatch(ctx, batchSize)
		case <-w.triggerCh:
			log.Println("Enrichment worker triggered manually")
			w.processBatch(ctx, batchSize)
		}
	}
}

func (w *EnrichmentWorker) processBatch(ctx context.Context, batchSize int) {
	listings, err := w.store.GetViableUnenriched(batchSize)
	if err != nil {
		log.Printf("Enrichment: query error: %v", err)
		return
	}
	if len(listings) == 0 {
		return
	}

	log.Printf("Enrichment: processing %d listings", len(listings))

	for i := range listings {
		l := &listings[i]
		if l.URL == "" {
			continue
		}

		data, err := w.Enrich(ctx, l.SiteID, l.URL)
		if err != nil {
			log.Printf("Enrichment: failed to enrich %s: %v", l.URL, err)
			continue
		}

		if data.Description == "" && data.Condition == "" {
			// Nothing found; record the attempt so the listing stops
			// coming back every batch
			data.Description = "-"
		}

		if err := w.store.SetEnrichment(l.ID.String(), data.Description, data.Condition); err != nil {
			log.Printf("Enrichment: failed to update %s: %v", l.ID, err)
			continue
		}

		log.Printf("Enrichment: enriched %s (%s)", l.ID, l.Title)

		// Rate limit between requests
		time.Sleep(siteRateLimit(w.sites, l.SiteID))
	}
}
