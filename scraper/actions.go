package scraper

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/playwright-community/playwright-go"

	"flipscout/models"
)

// Page actions driven by commands rather than scans. Both are best-effort:
// the selectors live in site config and break whenever the site redesigns.

// SendMessage opens the listing and sends a message through the site's
// composer. The session is launched and torn down within the call.
func (h *BrowserHandler) SendMessage(ctx context.Context, params ScanParams, listingURL, message string) error {
	if listingURL == "" {
		return fmt.Errorf("listing has no URL")
	}

	defer h.Close()
	if err := h.ensureBrowser(ctx, params); err != nil {
		return err
	}

	if err := h.navigate(ctx, listingURL); err != nil {
		return err
	}

	page := &pwPage{page: h.page}
	if !page.ClickIfVisible(h.cfg.Actions.MessageButton) {
		return fmt.Errorf("%w: message button", ErrSelectorExhausted)
	}
	h.page.WaitForTimeout(1000)

	var filled bool
	for _, sel := range h.cfg.Actions.Composer {
		if err := h.page.Locator(sel).First().Fill(message, playwright.LocatorFillOptions{
			Timeout: playwright.Float(2000),
		}); err == nil {
			filled = true
			break
		}
	}
	if !filled {
		return fmt.Errorf("%w: message composer", ErrSelectorExhausted)
	}

	if err := h.page.Keyboard().Press("Enter"); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	h.page.WaitForTimeout(1000)

	log.Printf("[%s] message sent for %s", h.cfg.ID, listingURL)
	h.persistSession(ctx)
	return nil
}

// Relist opens the site's create flow and pre-fills title, price and
// description from the listing with the given markup. It never submits;
// the operator reviews and posts manually.
func (h *BrowserHandler) Relist(ctx context.Context, params ScanParams, listing *models.Listing, markup float64) error {
	if h.cfg.Actions.CreateURL == "" {
		return fmt.Errorf("site %s has no create flow configured", h.cfg.ID)
	}
	if markup <= 0 {
		markup = 1.25
	}

	defer h.Close()
	if err := h.ensureBrowser(ctx, params); err != nil {
		return err
	}

	if err := h.navigate(ctx, h.cfg.Actions.CreateURL); err != nil {
		return err
	}
	h.page.WaitForTimeout(2000)

	act := h.cfg.Actions
	if err := h.page.Locator(act.TitleField).Fill(listing.Title); err != nil {
		return fmt.Errorf("fill title: %w", err)
	}

	askPrice := int(float64(listing.Price) * markup)
	if err := h.page.Locator(act.PriceField).Fill(strconv.Itoa(askPrice)); err != nil {
		return fmt.Errorf("fill price: %w", err)
	}

	desc := fmt.Sprintf("Resale: %s. In good condition. Local pickup in %s.", listing.Title, listing.Location)
	if err := h.page.Locator(act.DescField).Fill(desc); err != nil {
		return fmt.Errorf("fill description: %w", err)
	}

	log.Printf("[%s] create flow pre-filled for %q at %d", h.cfg.ID, listing.Title, askPrice)
	h.persistSession(ctx)
	return nil
}
