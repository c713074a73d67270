package config

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	path := filepath.Join("testdata", name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return data
}

func TestSiteConfig_Parse(t *testing.T) {
	data := loadFixture(t, "market_basic.yaml")

	var site SiteConfig
	if err := yaml.Unmarshal(data, &site); err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if site.ID != "market" {
		t.Fatalf("expected id market, got %s", site.ID)
	}
	if site.SearchURL != "https://market.example.com/search/%s/?query=furniture" {
		t.Fatalf("unexpected search URL %s", site.SearchURL)
	}
	if site.LoginURLMarker != "login" {
		t.Fatalf("expected login marker, got %s", site.LoginURLMarker)
	}
	if len(site.CheckpointMarkers) != 2 {
		t.Fatalf("expected 2 checkpoint markers, got %d", len(site.CheckpointMarkers))
	}
	if site.Selectors.Container != "[role='article']" {
		t.Fatalf("unexpected container selector %s", site.Selectors.Container)
	}
	if len(site.Selectors.Title) != 2 || site.Selectors.Title[0] != "h2" {
		t.Fatalf("unexpected title selectors %v", site.Selectors.Title)
	}
	if len(site.Selectors.Price) != 2 {
		t.Fatalf("expected 2 price selectors, got %d", len(site.Selectors.Price))
	}
	if site.Login.Email != "input[name='email']" {
		t.Fatalf("unexpected login email selector %s", site.Login.Email)
	}
	if site.Actions.CreateURL != "https://market.example.com/create/item" {
		t.Fatalf("unexpected create URL %s", site.Actions.CreateURL)
	}
	if len(site.Enrichment.Description) != 1 {
		t.Fatalf("expected 1 description selector, got %d", len(site.Enrichment.Description))
	}
}

func TestSplitKeywords(t *testing.T) {
	got := splitKeywords("sofa, iphone , ,macbook")
	want := []string{"sofa", "iphone", "macbook"}
	if len(got) != len(want) {
		t.Fatalf("expected %d keywords, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("keyword %d: expected %q, got %q", i, want[i], got[i])
		}
	}

	if out := splitKeywords(""); out != nil {
		t.Fatalf("expected nil for empty input, got %v", out)
	}
}
