package workers

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"flipscout/config"
)

func loadDoc(t *testing.T, name string) *goquery.Document {
	t.Helper()
	path := filepath.Join("testdata", name)
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		t.Fatalf("failed to parse fixture %s: %v", name, err)
	}
	return doc
}

func TestFirstSelectorText_FallbackOrder(t *testing.T) {
	doc := loadDoc(t, "listing_detail.html")

	// First candidate matches an empty node, second holds the text.
	got := firstSelectorText(doc, []string{".old-description", "div[data-testid='description']"})
	if !strings.Contains(got, "three-seater leather sofa") {
		t.Fatalf("unexpected description: %q", got)
	}

	cond := firstSelectorText(doc, []string{"span[data-testid='condition']"})
	if cond != "Used - Like New" {
		t.Fatalf("expected condition, got %q", cond)
	}
}

func TestFirstSelectorText_NoMatch(t *testing.T) {
	doc := loadDoc(t, "listing_detail.html")

	if got := firstSelectorText(doc, []string{".missing", "#also-missing"}); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
	if got := firstSelectorText(doc, nil); got != "" {
		t.Fatalf("expected empty string for no selectors, got %q", got)
	}
}

func TestSiteRateLimit(t *testing.T) {
	sites := map[string]*config.SiteConfig{
		"market": {RateLimitMS: 3000},
		"local":  {},
	}

	if got := siteRateLimit(sites, "market"); got != 3*time.Second {
		t.Fatalf("expected configured rate limit, got %v", got)
	}
	if got := siteRateLimit(sites, "local"); got != defaultRateLimit {
		t.Fatalf("expected default for unset rate limit, got %v", got)
	}
	if got := siteRateLimit(sites, "unknown"); got != defaultRateLimit {
		t.Fatalf("expected default for unknown site, got %v", got)
	}
	if got := siteRateLimit(nil, "market"); got != defaultRateLimit {
		t.Fatalf("expected default for nil site map, got %v", got)
	}
}
