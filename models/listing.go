package models

import (
	"time"

	"github.com/google/uuid"
)

// Listing is one normalized marketplace item. Immutable once scored.
type Listing struct {
	ID             uuid.UUID `json:"id" db:"id"`
	Fingerprint    string    `json:"fingerprint" db:"fingerprint"`
	SiteID         string    `json:"site_id" db:"site_id"`
	Title          string    `json:"title" db:"title"`
	Price          int       `json:"price" db:"price"`
	ResaleEstimate int       `json:"resale_estimate" db:"resale_estimate"`
	Margin         float64   `json:"margin" db:"margin"`
	Viable         bool      `json:"viable" db:"viable"`
	Category       string    `json:"category" db:"category"`
	URL            string    `json:"url" db:"url"`
	Location       string    `json:"location" db:"location"`
	Description    string    `json:"description" db:"description"`
	Condition      string    `json:"condition" db:"condition"`
	Status         string    `json:"status" db:"status"`
	ScrapedAt      time.Time `json:"scraped_at" db:"scraped_at"`
	FirstSeenAt    time.Time `json:"first_seen_at" db:"first_seen_at"`
	LastSeenAt     time.Time `json:"last_seen_at" db:"last_seen_at"`
	RunID          int64     `json:"run_id" db:"run_id"`
}

const (
	ListingStatusActive  = "active"
	ListingStatusRemoved = "removed"
)

// ListingEvent records a change observed for a known listing across runs.
type ListingEvent struct {
	ID            int64     `json:"id" db:"id"`
	ListingID     uuid.UUID `json:"listing_id" db:"listing_id"`
	EventType     string    `json:"event_type" db:"event_type"`
	Price         int       `json:"price" db:"price"`
	PreviousPrice int       `json:"previous_price" db:"previous_price"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

const (
	EventTypeFirstSeen   = "first_seen"
	EventTypePriceChange = "price_change"
	EventTypeRemoved     = "removed"
)
