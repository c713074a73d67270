package scraper

import "errors"

// Per-field: every candidate selector failed or came back empty. The
// enclosing item is dropped, the run continues.
var ErrSelectorExhausted = errors.New("all candidate selectors exhausted")

// Run-level errors. These abort the run; listings gathered before the
// failure are still returned.
var (
	ErrLaunchFailure      = errors.New("no usable browser binary")
	ErrNavigationTimeout  = errors.New("navigation timed out")
	ErrAuthRequired       = errors.New("login required but no credentials configured")
	ErrSecurityCheckpoint = errors.New("security checkpoint encountered, manual action required")
)
