package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"flipscout/identity"
	"flipscout/models"
	"flipscout/storage"
)

// FlipService handles the fan-out logic for processing scraped listings:
// fingerprint dedupe, event generation and write-through to the optional
// central Postgres sink.
type FlipService struct {
	store   *storage.SQLiteStore
	central *storage.PostgresStore
}

// NewFlipService creates a new FlipService. central may be nil when no
// DATABASE_URL is configured.
func NewFlipService(store *storage.SQLiteStore, central *storage.PostgresStore) *FlipService {
	return &FlipService{
		store:   store,
		central: central,
	}
}

// ProcessResult contains the outcome of processing one listing
type ProcessResult struct {
	ListingID    uuid.UUID
	IsNew        bool
	PriceChanged bool
	Viable       bool
}

// ProcessListing reconciles a freshly scraped listing against the store.
// This is idempotent - safe to call multiple times for the same listing.
func (s *FlipService) ProcessListing(ctx context.Context, scraped *models.Listing, runID int64) (*ProcessResult, error) {
	result := &ProcessResult{}
	now := time.Now()

	fingerprint := identity.Fingerprint(scraped.SiteID, scraped.Title, scraped.URL)
	scraped.Fingerprint = fingerprint
	scraped.RunID = runID

	existing, err := s.store.GetListingByFingerprint(fingerprint)
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}

	if existing == nil {
		scraped.ID = uuid.New()
		scraped.Status = models.ListingStatusActive
		scraped.FirstSeenAt = now
		scraped.LastSeenAt = now
		if err := s.store.UpsertListing(scraped); err != nil {
			return nil, fmt.Errorf("create listing: %w", err)
		}
		result.IsNew = true
		result.ListingID = scraped.ID

		event := &models.ListingEvent{
			ListingID: scraped.ID,
			EventType: models.EventTypeFirstSeen,
			Price:     scraped.Price,
		}
		if err := s.store.CreateEvent(event); err != nil {
			log.Printf("Warning: failed to create first_seen event: %v", err)
		}
	} else {
		scraped.ID = existing.ID
		scraped.FirstSeenAt = existing.FirstSeenAt
		scraped.LastSeenAt = now
		scraped.Status = models.ListingStatusActive
		// Keep enrichment fields already gathered for this listing
		if scraped.Description == "" {
			scraped.Description = existing.Description
		}
		if scraped.Condition == "" {
			scraped.Condition = existing.Condition
		}
		result.ListingID = existing.ID

		if err := s.store.UpsertListing(scraped); err != nil {
			return nil, fmt.Errorf("update listing: %w", err)
		}

		if existing.Price != scraped.Price {
			result.PriceChanged = true
			event := &models.ListingEvent{
				ListingID:     existing.ID,
				EventType:     models.EventTypePriceChange,
				Price:         scraped.Price,
				PreviousPrice: existing.Price,
			}
			if err := s.store.CreateEvent(event); err != nil {
				log.Printf("Warning: failed to create price_change event: %v", err)
			}
		}
	}

	result.Viable = scraped.Viable

	// Write-through to the central sink; local store stays authoritative
	if s.central != nil {
		if err := s.central.UpsertListing(ctx, scraped); err != nil {
			log.Printf("Warning: failed to sync listing to central store: %v", err)
		}
	}

	return result, nil
}

// BeginCentralRun mirrors a run record to the central store. Returns 0 when
// no central store is configured or the insert fails; mirroring is advisory.
func (s *FlipService) BeginCentralRun(ctx context.Context, run *models.ScanRun) int64 {
	if s.central == nil {
		return 0
	}
	mirror := *run
	mirror.ID = 0
	if err := s.central.CreateScanRun(ctx, &mirror); err != nil {
		log.Printf("Warning: failed to mirror run to central store: %v", err)
		return 0
	}
	return mirror.ID
}

// FinishCentralRun finalizes a mirrored run record.
func (s *FlipService) FinishCentralRun(ctx context.Context, centralID int64, run *models.ScanRun) {
	if s.central == nil || centralID == 0 {
		return
	}
	mirror := *run
	mirror.ID = centralID
	if err := s.central.UpdateScanRun(ctx, &mirror); err != nil {
		log.Printf("Warning: failed to finalize mirrored run: %v", err)
	}
}

// MarkRemoved marks a listing as removed and records a removed event.
func (s *FlipService) MarkRemoved(ctx context.Context, listingID uuid.UUID) error {
	listing, err := s.store.GetListingByID(listingID.String())
	if err != nil {
		return fmt.Errorf("get listing: %w", err)
	}
	if listing == nil {
		return fmt.Errorf("listing not found: %s", listingID)
	}

	if err := s.store.MarkListingRemoved(listingID.String()); err != nil {
		return fmt.Errorf("mark removed: %w", err)
	}

	event := &models.ListingEvent{
		ListingID: listingID,
		EventType: models.EventTypeRemoved,
		Price:     listing.Price,
	}
	if err := s.store.CreateEvent(event); err != nil {
		log.Printf("Warning: failed to create removed event: %v", err)
	}

	return nil
}

// ProcessStats tracks aggregate statistics for a scan run
type ProcessStats struct {
	Processed    int
	New          int
	Viable       int
	PriceChanges int
	Errors       int
}

// Aggregate adds a ProcessResult to the stats
func (s *ProcessStats) Aggregate(r *ProcessResult) {
	s.Processed++
	if r.IsNew {
		s.New++
	}
	if r.Viable {
		s.Viable++
	}
	if r.PriceChanged {
		s.PriceChanges++
	}
}

// ToJSON returns JSON-serializable metadata
func (s *ProcessStats) ToJSON() json.RawMessage {
	data, _ := json.Marshal(map[string]int{
		"processed":     s.Processed,
		"new":           s.New,
		"viable":        s.Viable,
		"price_changes": s.PriceChanges,
		"errors":        s.Errors,
	})
	return data
}
