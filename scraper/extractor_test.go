package scraper

import (
	"fmt"
	"testing"
	"time"

	"flipscout/config"
)

type fakeItem struct {
	texts map[string]string
	attrs map[string]string
}

func (f *fakeItem) Text(selector string) (string, error) {
	if text, ok := f.texts[selector]; ok {
		return text, nil
	}
	return "", fmt.Errorf("no element for %s", selector)
}

func (f *fakeItem) Attr(selector, name string) (string, error) {
	if val, ok := f.attrs[selector+"@"+name]; ok {
		return val, nil
	}
	return "", fmt.Errorf("no element for %s", selector)
}

func testSite() *config.SiteConfig {
	return &config.SiteConfig{
		ID:     "marketplace",
		Origin: "https://www.example.com",
		Selectors: config.SelectorConfig{
			Container: "[role='article']",
			Title:     []string{"h2", "span"},
			Price:     []string{"[aria-label*='£']", "span.price"},
			Link:      []string{"a"},
		},
	}
}

func TestExtract_Basic(t *testing.T) {
	e := NewExtractor(testSite(), nil)
	item := &fakeItem{
		texts: map[string]string{
			"h2":               "iPhone 12, great condition",
			"[aria-label*='£']": "£300",
		},
		attrs: map[string]string{"a@href": "/marketplace/item/123"},
	}

	l := e.Extract(item, time.Now())
	if l == nil {
		t.Fatalf("expected listing, got drop (stats %+v)", e.Drops)
	}
	if l.Title != "iPhone 12, great condition" {
		t.Fatalf("unexpected title %q", l.Title)
	}
	if l.Price != 300 {
		t.Fatalf("price = %d, want 300", l.Price)
	}
	if l.URL != "https://www.example.com/marketplace/item/123" {
		t.Fatalf("unexpected URL %q", l.URL)
	}
	if e.Drops.Total() != 0 {
		t.Fatalf("unexpected drops: %+v", e.Drops)
	}
}

func TestExtract_FallbackOrder(t *testing.T) {
	e := NewExtractor(testSite(), nil)
	// No h2, title comes from the second candidate. Primary price selector
	// matches but is empty, so the fallback wins.
	item := &fakeItem{
		texts: map[string]string{
			"span":              "Leather Sofa",
			"[aria-label*='£']": "   ",
			"span.price":        "£1,250",
		},
		attrs: map[string]string{"a@href": "https://other.example.com/sofa"},
	}

	l := e.Extract(item, time.Now())
	if l == nil {
		t.Fatalf("expected listing, got drop (stats %+v)", e.Drops)
	}
	if l.Title != "Leather Sofa" {
		t.Fatalf("unexpected title %q", l.Title)
	}
	if l.Price != 1250 {
		t.Fatalf("price = %d, want 1250", l.Price)
	}
	// Absolute links pass through untouched.
	if l.URL != "https://other.example.com/sofa" {
		t.Fatalf("unexpected URL %q", l.URL)
	}
}

func TestExtract_DropReasons(t *testing.T) {
	e := NewExtractor(testSite(), nil)

	noTitle := &fakeItem{
		texts: map[string]string{"[aria-label*='£']": "£50"},
		attrs: map[string]string{"a@href": "/x"},
	}
	if l := e.Extract(noTitle, time.Now()); l != nil {
		t.Fatalf("expected drop for missing title")
	}
	if e.Drops.NoTitle != 1 {
		t.Fatalf("NoTitle = %d, want 1", e.Drops.NoTitle)
	}

	freeItem := &fakeItem{
		texts: map[string]string{"h2": "Old shelf", "[aria-label*='£']": "Free"},
		attrs: map[string]string{"a@href": "/x"},
	}
	if l := e.Extract(freeItem, time.Now()); l != nil {
		t.Fatalf("expected drop for unparsable price")
	}
	if e.Drops.PriceUnparsed != 1 {
		t.Fatalf("PriceUnparsed = %d, want 1", e.Drops.PriceUnparsed)
	}

	noLink := &fakeItem{
		texts: map[string]string{"h2": "Lamp", "[aria-label*='£']": "£10"},
	}
	if l := e.Extract(noLink, time.Now()); l != nil {
		t.Fatalf("expected drop for missing link")
	}
	if e.Drops.NoLink != 1 {
		t.Fatalf("NoLink = %d, want 1", e.Drops.NoLink)
	}

	if e.Drops.Total() != 3 {
		t.Fatalf("total drops = %d, want 3", e.Drops.Total())
	}
}

func TestExtract_KeywordFilter(t *testing.T) {
	item := &fakeItem{
		texts: map[string]string{"h2": "MacBook Pro 2021", "[aria-label*='£']": "£900"},
		attrs: map[string]string{"a@href": "/mac"},
	}

	// Empty keyword set accepts everything.
	open := NewExtractor(testSite(), nil)
	if l := open.Extract(item, time.Now()); l == nil {
		t.Fatalf("empty keyword set must accept all listings")
	}

	// Case-insensitive match.
	matching := NewExtractor(testSite(), []string{"bike", "macbook"})
	if l := matching.Extract(item, time.Now()); l == nil {
		t.Fatalf("expected keyword match on macbook")
	}

	// No keyword matches: dropped, counted.
	miss := NewExtractor(testSite(), []string{"sofa"})
	if l := miss.Extract(item, time.Now()); l != nil {
		t.Fatalf("expected keyword-miss drop")
	}
	if miss.Drops.KeywordMiss != 1 {
		t.Fatalf("KeywordMiss = %d, want 1", miss.Drops.KeywordMiss)
	}
}

func TestExtract_Idempotent(t *testing.T) {
	e := NewExtractor(testSite(), nil)
	item := &fakeItem{
		texts: map[string]string{"h2": "Armchair", "[aria-label*='£']": "£80"},
		attrs: map[string]string{"a@href": "/chair"},
	}

	now := time.Now()
	a := e.Extract(item, now)
	b := e.Extract(item, now)
	if a == nil || b == nil {
		t.Fatalf("expected listings")
	}
	if a.Title != b.Title || a.Price != b.Price || a.URL != b.URL {
		t.Fatalf("re-extraction differs: %+v vs %+v", a, b)
	}
}
