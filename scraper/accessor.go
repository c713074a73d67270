package scraper

import "time"

// ItemHandle is an opaque accessor over a single listing's rendered subtree.
// Implementations are expected to fail fast on selectors that match nothing;
// the extractor treats any error as "try the next candidate".
type ItemHandle interface {
	Text(selector string) (string, error)
	Attr(selector, name string) (string, error)
}

// PageHandle is the slice of page behavior the pagination driver needs.
type PageHandle interface {
	// ClickIfVisible clicks the first visible selector in the chain and
	// reports whether anything was clicked.
	ClickIfVisible(selectors []string) bool
	ScrollToBottom() error
	CountItems(selector string) (int, error)
	Settle(d time.Duration)
}
