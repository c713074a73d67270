package scraper

import (
	"context"

	"flipscout/config"
	"flipscout/models"
)

// ScanParams are the explicit per-run inputs. The handler never reads
// ambient state.
type ScanParams struct {
	Keywords    []string
	Location    string
	MinMargin   float64
	Limit       int
	Headless    bool
	BrowserPath string
}

// ScanResult carries everything a run produced. On a run-level failure the
// listings gathered before the error are still present.
type ScanResult struct {
	Listings  []models.Listing
	Dropped   DropStats
	ItemCount int
}

type Handler interface {
	ID() string
	Scan(ctx context.Context, params ScanParams) (*ScanResult, error)
}

func NewHandler(siteCfg *config.SiteConfig, creds config.Credentials, sessions SessionStore) Handler {
	return NewBrowserHandler(siteCfg, creds, sessions)
}
