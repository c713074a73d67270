package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"flipscout/config"
	"flipscout/models"
	"flipscout/services"
	"flipscout/storage"
)

type Orchestrator struct {
	cfg      *config.Config
	store    *storage.SQLiteStore
	handlers map[string]Handler

	// runMu serializes everything that drives a browser handler: scans and
	// command-driven page actions. The scheduler's cron tick and command
	// poller would otherwise race on the same handler and session key.
	runMu sync.Mutex

	mu     sync.Mutex
	paused bool

	flipService *services.FlipService
	drafter     *services.Drafter
}

func NewOrchestrator(cfg *config.Config, store *storage.SQLiteStore, sessions SessionStore) *Orchestrator {
	handlers := make(map[string]Handler)
	for id, siteCfg := range cfg.Sites {
		handlers[id] = NewHandler(siteCfg, cfg.Credentials, sessions)
	}

	return &Orchestrator{
		cfg:      cfg,
		store:    store,
		handlers: handlers,
	}
}

// SetServices injects the processing services
func (o *Orchestrator) SetServices(flips *services.FlipService, drafter *services.Drafter) {
	o.flipService = flips
	o.drafter = drafter
}

func (o *Orchestrator) RunAll(ctx context.Context) error {
	if o.IsPaused() {
		log.Println("Scanner is paused, skipping run")
		return nil
	}

	for siteID := range o.cfg.Sites {
		if err := o.RunSite(ctx, siteID); err != nil {
			log.Printf("Error running site %s: %v", siteID, err)
		}
	}

	return nil
}

func (o *Orchestrator) RunSite(ctx context.Context, siteID string) error {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	siteCfg, ok := o.cfg.Sites[siteID]
	if !ok {
		return fmt.Errorf("unknown site: %s", siteID)
	}

	handler, ok := o.handlers[siteID]
	if !ok {
		return fmt.Errorf("no handler for site: %s", siteID)
	}

	run := &models.ScanRun{
		SiteID:    siteID,
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}

	runID, err := o.store.CreateRun(run)
	if err != nil {
		return err
	}
	run.ID = runID

	o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Starting scan for %s", siteCfg.Name), siteID)

	stats := &services.ProcessStats{}

	var centralID int64
	if o.flipService != nil {
		centralID = o.flipService.BeginCentralRun(ctx, run)
	}

	defer func() {
		now := time.Now()
		run.FinishedAt = &now
		run.ListingsNew = stats.New
		run.ListingsViable = stats.Viable
		run.PriceChanges = stats.PriceChanges
		o.store.UpdateRun(run)
		o.store.UpdateSiteStats(siteID)
		if o.flipService != nil {
			o.flipService.FinishCentralRun(ctx, centralID, run)
		}
	}()

	result, scanErr := handler.Scan(ctx, o.scanParams())
	if result != nil {
		run.ListingsFound = len(result.Listings)
		run.ItemsDropped = result.Dropped.Total()
		o.log(run.ID, models.LogLevelInfo,
			fmt.Sprintf("Scan yielded %d listings from %d items (%d dropped)",
				len(result.Listings), result.ItemCount, result.Dropped.Total()), siteID)

		// Listings gathered before a run-level failure still get processed
		for i := range result.Listings {
			if err := o.processListing(ctx, &result.Listings[i], run.ID, stats); err != nil {
				o.log(run.ID, models.LogLevelError,
					fmt.Sprintf("Process error for %q: %v", result.Listings[i].Title, err), siteID)
				run.ErrorsCount++
				stats.Errors++
			}
		}
	}

	if scanErr != nil {
		o.log(run.ID, models.LogLevelError, fmt.Sprintf("Scan error: %v", scanErr), siteID)
		run.ErrorsCount++
		run.Status = models.RunStatusFailed
		return scanErr
	}

	run.Status = models.RunStatusCompleted
	o.log(run.ID, models.LogLevelInfo,
		fmt.Sprintf("Completed: %d found, %d new, %d viable, %d price changes",
			run.ListingsFound, stats.New, stats.Viable, stats.PriceChanges), siteID)

	return nil
}

func (o *Orchestrator) scanParams() ScanParams {
	return ScanParams{
		Keywords:    o.cfg.Scan.Keywords,
		Location:    o.cfg.Scan.Location,
		MinMargin:   o.cfg.Scan.MinMargin,
		Limit:       o.cfg.Scan.Limit,
		Headless:    o.cfg.Scan.Headless,
		BrowserPath: o.cfg.Scan.BrowserPath,
	}
}

func (o *Orchestrator) processListing(ctx context.Context, listing *models.Listing, runID int64, stats *services.ProcessStats) error {
	if o.flipService == nil {
		return fmt.Errorf("flip service not initialized")
	}

	result, err := o.flipService.ProcessListing(ctx, listing, runID)
	if err != nil {
		return err
	}
	stats.Aggregate(result)
	return nil
}

func (o *Orchestrator) HandleCommand(cmd *models.Command) error {
	params, err := o.store.ParseCommandParams(cmd)
	if err != nil {
		return err
	}

	ctx := context.Background()

	switch cmd.Command {
	case models.CmdScanNow:
		return o.RunAll(ctx)
	case models.CmdScanSite:
		if params.Site != "" {
			return o.RunSite(ctx, params.Site)
		}
		return o.RunAll(ctx)
	case models.CmdPause:
		o.setPaused(true)
		log.Println("Scanner paused")
	case models.CmdResume:
		o.setPaused(false)
		log.Println("Scanner resumed")
	case models.CmdSendMessage:
		return o.sendMessage(ctx, params)
	case models.CmdRelist:
		return o.relist(ctx, params)
	case models.CmdStatus:
		status, err := o.MarshalStatus()
		if err != nil {
			return err
		}
		log.Printf("Status: %s", status)
		o.store.Log(nil, models.LogLevelInfo, string(status), "")
	}

	return nil
}

func (o *Orchestrator) sendMessage(ctx context.Context, params *models.CommandParams) error {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	listing, handler, err := o.listingAndHandler(params.ListingID)
	if err != nil {
		return err
	}

	message := params.Message
	if message == "" && o.drafter != nil {
		message = o.drafter.Draft(ctx, listing)
	}
	if message == "" {
		return fmt.Errorf("no message to send for %s", listing.ID)
	}

	bh, ok := handler.(*BrowserHandler)
	if !ok {
		return fmt.Errorf("site %s does not support page actions", listing.SiteID)
	}
	return bh.SendMessage(ctx, o.scanParams(), listing.URL, message)
}

func (o *Orchestrator) relist(ctx context.Context, params *models.CommandParams) error {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	listing, handler, err := o.listingAndHandler(params.ListingID)
	if err != nil {
		return err
	}

	bh, ok := handler.(*BrowserHandler)
	if !ok {
		return fmt.Errorf("site %s does not support page actions", listing.SiteID)
	}
	return bh.Relist(ctx, o.scanParams(), listing, params.Markup)
}

func (o *Orchestrator) listingAndHandler(listingID string) (*models.Listing, Handler, error) {
	if listingID == "" {
		return nil, nil, fmt.Errorf("command requires a listing_id")
	}

	listing, err := o.store.GetListingByID(listingID)
	if err != nil {
		return nil, nil, err
	}
	if listing == nil {
		return nil, nil, fmt.Errorf("listing not found: %s", listingID)
	}

	handler, ok := o.handlers[listing.SiteID]
	if !ok {
		return nil, nil, fmt.Errorf("no handler for site: %s", listing.SiteID)
	}
	return listing, handler, nil
}

func (o *Orchestrator) IsPaused() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.paused
}

func (o *Orchestrator) setPaused(v bool) {
	o.mu.Lock()
	o.paused = v
	o.mu.Unlock()
}

func (o *Orchestrator) log(runID int64, level models.LogLevel, message, siteID string) {
	log.Printf("[%s] %s: %s", level, siteID, message)
	o.store.Log(&runID, level, message, siteID)
}

func (o *Orchestrator) GetSiteIDs() []string {
	var ids []string
	for id := range o.cfg.Sites {
		ids = append(ids, id)
	}
	return ids
}

func (o *Orchestrator) MarshalStatus() ([]byte, error) {
	status := map[string]interface{}{
		"paused": o.IsPaused(),
		"sites":  o.GetSiteIDs(),
	}
	return json.Marshal(status)
}
