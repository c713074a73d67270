package scraper

import (
	"testing"

	"flipscout/config"
)

func TestClose_SafeBeforeLaunch(t *testing.T) {
	// Close is registered before the browser launches, so it must be safe
	// with nothing initialized and must always land in the terminal state.
	h := NewBrowserHandler(testSite(), config.Credentials{}, nil)

	h.Close()
	if got := h.State(); got != StateClosed {
		t.Fatalf("state = %s, want %s", got, StateClosed)
	}
	if h.initialized {
		t.Fatal("expected initialized false after Close")
	}
}

func TestClose_TerminalFromPartialLaunch(t *testing.T) {
	h := NewBrowserHandler(testSite(), config.Credentials{}, nil)
	h.setState(StateLaunching)

	// A launch that failed partway leaves no live handles; release must
	// still reach Closed and be idempotent.
	h.Close()
	if got := h.State(); got != StateClosed {
		t.Fatalf("state = %s, want %s", got, StateClosed)
	}
	h.Close()
	if got := h.State(); got != StateClosed {
		t.Fatalf("second close: state = %s, want %s", got, StateClosed)
	}
	if h.pw != nil || h.browser != nil || h.context != nil || h.page != nil {
		t.Fatal("expected all browser handles nil after Close")
	}
}
