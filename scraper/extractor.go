package scraper

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"flipscout/config"
	"flipscout/models"
	"flipscout/pricing"
)

// DropStats counts items excluded during extraction, per reason. Dropped
// items are expected and silent at the per-item level; the counts exist so
// a run can report why its yield was low.
type DropStats struct {
	NoTitle       int
	NoPrice       int
	NoLink        int
	PriceUnparsed int
	KeywordMiss   int
}

func (d DropStats) Total() int {
	return d.NoTitle + d.NoPrice + d.NoLink + d.PriceUnparsed + d.KeywordMiss
}

// Extractor turns item containers into draft listings using ordered
// selector candidate chains. First non-empty result per field wins.
type Extractor struct {
	selectors config.SelectorConfig
	origin    string
	siteID    string
	keywords  []string

	Drops DropStats
}

func NewExtractor(site *config.SiteConfig, keywords []string) *Extractor {
	return &Extractor{
		selectors: site.Selectors,
		origin:    site.Origin,
		siteID:    site.ID,
		keywords:  keywords,
	}
}

// Extract produces a draft listing (title, price, link, scraped_at) or nil
// when the item should be dropped. Resale estimation and scoring happen
// downstream.
func (e *Extractor) Extract(item ItemHandle, now time.Time) *models.Listing {
	title, err := firstText(item, e.selectors.Title)
	if err != nil {
		e.Drops.NoTitle++
		return nil
	}

	priceText, err := firstText(item, e.selectors.Price)
	if err != nil {
		e.Drops.NoPrice++
		return nil
	}

	price, err := pricing.ParsePrice(priceText)
	if err != nil {
		e.Drops.PriceUnparsed++
		return nil
	}

	link, err := firstAttr(item, e.selectors.Link, "href")
	if err != nil {
		e.Drops.NoLink++
		return nil
	}

	if !e.matchesKeywords(title) {
		e.Drops.KeywordMiss++
		return nil
	}

	return &models.Listing{
		ID:        uuid.New(),
		SiteID:    e.siteID,
		Title:     title,
		Price:     price,
		URL:       e.absoluteURL(link),
		Status:    models.ListingStatusActive,
		ScrapedAt: now,
	}
}

// firstText iterates candidates in order; extraction errors advance to the
// next candidate rather than aborting the scrape.
func firstText(item ItemHandle, selectors []string) (string, error) {
	for _, sel := range selectors {
		text, err := item.Text(sel)
		if err != nil {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			return text, nil
		}
	}
	return "", ErrSelectorExhausted
}

func firstAttr(item ItemHandle, selectors []string, name string) (string, error) {
	for _, sel := range selectors {
		val, err := item.Attr(sel, name)
		if err != nil {
			continue
		}
		if val = strings.TrimSpace(val); val != "" {
			return val, nil
		}
	}
	return "", ErrSelectorExhausted
}

// absoluteURL resolves site-relative paths against the configured origin.
func (e *Extractor) absoluteURL(link string) string {
	if strings.HasPrefix(link, "/") {
		return e.origin + link
	}
	return link
}

// matchesKeywords: an empty keyword set accepts everything.
func (e *Extractor) matchesKeywords(title string) bool {
	if len(e.keywords) == 0 {
		return true
	}
	lower := strings.ToLower(title)
	for _, kw := range e.keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
