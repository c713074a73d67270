package scraper

import (
	"context"
	"log"
	"time"
)

const (
	defaultMaxIterations  = 30
	defaultSettleInterval = 1500 * time.Millisecond
)

// PaginateConfig drives lazy-load pagination for one page.
type PaginateConfig struct {
	Container      string
	LoadMore       []string
	Target         int
	MaxIterations  int
	SettleInterval time.Duration
}

// Paginate triggers more content until the container count reaches the
// target, stops growing between two consecutive probes, or the iteration
// ceiling is hit. Feeds with endless ads never stabilize, hence the ceiling.
// Returns the final count observed.
func Paginate(ctx context.Context, page PageHandle, cfg PaginateConfig) (int, error) {
	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIterations
	}
	settle := cfg.SettleInterval
	if settle <= 0 {
		settle = defaultSettleInterval
	}

	count, err := page.CountItems(cfg.Container)
	if err != nil {
		return 0, err
	}

	for i := 0; i < maxIter; i++ {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		if cfg.Target > 0 && count >= cfg.Target {
			return count, nil
		}

		if page.ClickIfVisible(cfg.LoadMore) {
			log.Printf("Clicked load-more control (iteration %d)", i+1)
		}
		if err := page.ScrollToBottom(); err != nil {
			return count, err
		}
		page.Settle(settle)

		next, err := page.CountItems(cfg.Container)
		if err != nil {
			return count, err
		}
		if next == count {
			log.Printf("Item count stable at %d, end of feed", count)
			return count, nil
		}
		count = next
	}

	log.Printf("Pagination ceiling reached at %d items", count)
	return count, nil
}
