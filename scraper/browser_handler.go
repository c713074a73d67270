package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"flipscout/config"
	"flipscout/pricing"
)

// State tracks where a scan session is in its lifecycle. Closed is terminal
// and reached on every exit path.
type State string

const (
	StateIdle       State = "idle"
	StateLaunching  State = "launching"
	StateNavigating State = "navigating"
	StateLoggingIn  State = "logging_in"
	StatePaginating State = "paginating"
	StateExtracting State = "extracting"
	StateClosed     State = "closed"
)

// SessionStore persists browser storage state (cookies, local storage)
// between runs. Load returns (nil, nil) when no blob exists.
type SessionStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, blob []byte) error
}

// Common chromium locations in container environments, tried when no
// explicit path is configured.
var chromiumPaths = []string{
	"/usr/bin/chromium-browser",
	"/usr/bin/chromium",
	"/usr/bin/google-chrome",
}

type BrowserHandler struct {
	cfg       *config.SiteConfig
	creds     config.Credentials
	sessions  SessionStore
	estimator *pricing.Estimator

	mu          sync.Mutex
	pw          *playwright.Playwright
	browser     playwright.Browser
	context     playwright.BrowserContext
	page        playwright.Page
	state       State
	initialized bool
}

func NewBrowserHandler(cfg *config.SiteConfig, creds config.Credentials, sessions SessionStore) *BrowserHandler {
	return &BrowserHandler{
		cfg:       cfg,
		creds:     creds,
		sessions:  sessions,
		estimator: pricing.DefaultEstimator(),
		state:     StateIdle,
	}
}

// SetEstimator swaps the default multiplier table for an injected policy.
func (h *BrowserHandler) SetEstimator(e *pricing.Estimator) {
	h.estimator = e
}

func (h *BrowserHandler) ID() string {
	return h.cfg.ID
}

func (h *BrowserHandler) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *BrowserHandler) setState(s State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

// Scan runs one full scrape: launch, navigate (logging in if the site
// bounces us), paginate, extract, score. The browser is torn down on every
// exit. A run-level error still returns the listings gathered before it.
func (h *BrowserHandler) Scan(ctx context.Context, params ScanParams) (*ScanResult, error) {
	result := &ScanResult{}

	// Close is nil-safe; registering it before launch guarantees teardown
	// even when the browser only partially came up.
	defer h.Close()
	if err := h.ensureBrowser(ctx, params); err != nil {
		return result, err
	}

	searchURL := fmt.Sprintf(h.cfg.SearchURL, strings.ToLower(params.Location))
	if err := h.navigate(ctx, searchURL); err != nil {
		return result, err
	}

	h.setState(StatePaginating)
	page := &pwPage{page: h.page}
	count, err := Paginate(ctx, page, PaginateConfig{
		Container: h.cfg.Selectors.Container,
		LoadMore:  h.cfg.Selectors.LoadMore,
		Target:    params.Limit,
	})
	if err != nil {
		return result, err
	}
	result.ItemCount = count
	log.Printf("[%s] %d item containers after pagination", h.cfg.ID, count)

	h.setState(StateExtracting)
	extractor := NewExtractor(h.cfg, params.Keywords)

	containers, err := h.page.Locator(h.cfg.Selectors.Container).All()
	if err != nil {
		return result, fmt.Errorf("query item containers: %w", err)
	}

	for _, container := range containers {
		if err := ctx.Err(); err != nil {
			result.Dropped = extractor.Drops
			return result, err
		}
		if params.Limit > 0 && len(result.Listings) >= params.Limit {
			break
		}

		listing := extractor.Extract(&pwItem{loc: container}, time.Now().UTC())
		if listing == nil {
			continue
		}

		listing.Location = params.Location
		listing.Category, _ = h.estimator.Categorize(listing.Title)
		listing.ResaleEstimate = h.estimator.Estimate(listing.Title, listing.Price)
		pricing.Score(listing, params.MinMargin)
		result.Listings = append(result.Listings, *listing)
	}

	result.Dropped = extractor.Drops
	if result.Dropped.Total() > 0 {
		log.Printf("[%s] dropped %d items: %+v", h.cfg.ID, result.Dropped.Total(), result.Dropped)
	}

	h.persistSession(ctx)
	return result, nil
}

func (h *BrowserHandler) ensureBrowser(ctx context.Context, params ScanParams) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.initialized {
		return nil
	}
	h.state = StateLaunching

	var err error
	h.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("%w: start playwright: %v", ErrLaunchFailure, err)
	}

	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(params.Headless),
		Args: []string{
			"--no-sandbox",
			"--disable-dev-shm-usage",
			"--disable-gpu",
			"--disable-setuid-sandbox",
		},
	}
	if path := h.findExecutable(params.BrowserPath); path != "" {
		opts.ExecutablePath = playwright.String(path)
	}

	h.browser, err = h.pw.Chromium.Launch(opts)
	if err != nil {
		h.releaseLocked()
		return fmt.Errorf("%w: launch chromium: %v", ErrLaunchFailure, err)
	}

	ctxOpts := playwright.BrowserNewContextOptions{}
	if statePath := h.seedSessionFile(ctx); statePath != "" {
		ctxOpts.StorageStatePath = playwright.String(statePath)
		defer os.Remove(statePath)
	}

	h.context, err = h.browser.NewContext(ctxOpts)
	if err != nil {
		h.releaseLocked()
		return fmt.Errorf("create browser context: %w", err)
	}

	h.page, err = h.context.NewPage()
	if err != nil {
		h.releaseLocked()
		return fmt.Errorf("create page: %w", err)
	}

	h.initialized = true
	return nil
}

// findExecutable returns an explicit chromium path when one is configured
// or discoverable, empty to let playwright use its bundled browser.
func (h *BrowserHandler) findExecutable(configured string) string {
	if configured != "" {
		return configured
	}
	for _, path := range chromiumPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// seedSessionFile writes a previously persisted session blob to a temp file
// for playwright to load. Missing blob means start unauthenticated.
func (h *BrowserHandler) seedSessionFile(ctx context.Context) string {
	if h.sessions == nil {
		return ""
	}
	blob, err := h.sessions.Load(ctx, h.cfg.ID)
	if err != nil {
		log.Printf("[%s] session load failed: %v", h.cfg.ID, err)
		return ""
	}
	if len(blob) == 0 {
		return ""
	}

	f, err := os.CreateTemp("", "flipscout-session-*.json")
	if err != nil {
		return ""
	}
	if _, err := f.Write(blob); err != nil {
		f.Close()
		os.Remove(f.Name())
		return ""
	}
	f.Close()
	log.Printf("[%s] reusing persisted session (%d bytes)", h.cfg.ID, len(blob))
	return f.Name()
}

// persistSession saves the current storage state for reuse. Failure is
// logged and otherwise ignored.
func (h *BrowserHandler) persistSession(ctx context.Context) {
	if h.sessions == nil || h.context == nil {
		return
	}
	state, err := h.context.StorageState()
	if err != nil {
		log.Printf("[%s] read storage state failed: %v", h.cfg.ID, err)
		return
	}
	blob, err := json.Marshal(state)
	if err != nil {
		return
	}
	if err := h.sessions.Save(ctx, h.cfg.ID, blob); err != nil {
		log.Printf("[%s] session save failed: %v", h.cfg.ID, err)
	}
}

// navigate goes to url and crosses the login boundary if the site redirects
// there. Ends on the target page or with a run-level error.
func (h *BrowserHandler) navigate(ctx context.Context, url string) error {
	h.setState(StateNavigating)

	if err := h.gotoPage(url); err != nil {
		return err
	}

	if h.atCheckpoint() {
		return ErrSecurityCheckpoint
	}

	if h.atLoginBoundary() {
		if err := h.login(ctx); err != nil {
			return err
		}
		// Back to the page we actually wanted.
		h.setState(StateNavigating)
		if err := h.gotoPage(url); err != nil {
			return err
		}
		if h.atLoginBoundary() {
			return ErrAuthRequired
		}
	}

	return nil
}

func (h *BrowserHandler) gotoPage(url string) error {
	_, err := h.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(60000),
		WaitUntil: playwright.WaitUntilStateNetworkidle,
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNavigationTimeout, url, err)
	}
	return nil
}

func (h *BrowserHandler) atLoginBoundary() bool {
	if h.cfg.LoginURLMarker == "" {
		return false
	}
	return strings.Contains(strings.ToLower(h.page.URL()), h.cfg.LoginURLMarker)
}

func (h *BrowserHandler) atCheckpoint() bool {
	url := strings.ToLower(h.page.URL())
	content, _ := h.page.Content()
	lower := strings.ToLower(content)
	for _, marker := range h.cfg.CheckpointMarkers {
		m := strings.ToLower(marker)
		if strings.Contains(url, m) || strings.Contains(lower, m) {
			log.Printf("[%s] checkpoint marker hit: %s", h.cfg.ID, marker)
			return true
		}
	}
	return false
}

func (h *BrowserHandler) login(ctx context.Context) error {
	if !h.creds.Configured() {
		return ErrAuthRequired
	}
	h.setState(StateLoggingIn)
	log.Printf("[%s] login boundary, authenticating as %s", h.cfg.ID, h.creds.Email)

	sel := h.cfg.Login
	if err := h.page.Locator(sel.Email).Fill(h.creds.Email); err != nil {
		return fmt.Errorf("fill email: %w", err)
	}
	if err := h.page.Locator(sel.Password).Fill(h.creds.Password); err != nil {
		return fmt.Errorf("fill password: %w", err)
	}
	if err := h.page.Locator(sel.Submit).Click(); err != nil {
		return fmt.Errorf("submit login: %w", err)
	}
	h.page.WaitForTimeout(5000)

	if h.atCheckpoint() {
		return ErrSecurityCheckpoint
	}
	return nil
}

func (h *BrowserHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.releaseLocked()
}

// releaseLocked tears down whatever part of the browser stack is up and
// lands in StateClosed. Safe to call at any point of the launch sequence;
// caller holds h.mu.
func (h *BrowserHandler) releaseLocked() {
	if h.page != nil {
		h.page.Close()
		h.page = nil
	}
	if h.context != nil {
		h.context.Close()
		h.context = nil
	}
	if h.browser != nil {
		h.browser.Close()
		h.browser = nil
	}
	if h.pw != nil {
		h.pw.Stop()
		h.pw = nil
	}
	h.initialized = false
	h.state = StateClosed
}

// pwPage adapts a playwright page to the pagination driver.
type pwPage struct {
	page playwright.Page
}

func (p *pwPage) ClickIfVisible(selectors []string) bool {
	for _, sel := range selectors {
		btn := p.page.Locator(sel).First()
		if visible, _ := btn.IsVisible(); visible {
			if err := btn.Click(); err == nil {
				return true
			}
		}
	}
	return false
}

func (p *pwPage) ScrollToBottom() error {
	_, err := p.page.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`)
	return err
}

func (p *pwPage) CountItems(selector string) (int, error) {
	return p.page.Locator(selector).Count()
}

func (p *pwPage) Settle(d time.Duration) {
	p.page.WaitForTimeout(float64(d.Milliseconds()))
}

// pwItem adapts one container locator to the extractor. Short timeouts keep
// a missing selector from stalling the whole scrape.
type pwItem struct {
	loc playwright.Locator
}

func (i *pwItem) Text(selector string) (string, error) {
	return i.loc.Locator(selector).First().InnerText(playwright.LocatorInnerTextOptions{
		Timeout: playwright.Float(1000),
	})
}

func (i *pwItem) Attr(selector, name string) (string, error) {
	return i.loc.Locator(selector).First().GetAttribute(name, playwright.LocatorGetAttributeOptions{
		Timeout: playwright.Float(1000),
	})
}
