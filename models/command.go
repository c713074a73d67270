package models

import (
	"encoding/json"
	"time"
)

type CommandType string

const (
	CmdScanNow     CommandType = "scan_now"
	CmdScanSite    CommandType = "scan_site"
	CmdPause       CommandType = "pause"
	CmdResume      CommandType = "resume"
	CmdSendMessage CommandType = "send_message"
	CmdRelist      CommandType = "relist"
	CmdStatus      CommandType = "status"

	CmdRunEnrichment  CommandType = "run_enrichment"
	CmdRunHealthcheck CommandType = "run_healthcheck"
)

type Command struct {
	ID          int64           `json:"id" db:"id"`
	Command     CommandType     `json:"command" db:"command"`
	Params      json.RawMessage `json:"params" db:"params"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at" db:"processed_at"`
}

type CommandParams struct {
	Site      string  `json:"site,omitempty"`
	ListingID string  `json:"listing_id,omitempty"`
	Message   string  `json:"message,omitempty"`
	Markup    float64 `json:"markup,omitempty"`
}
