package services

import (
	"context"
	"strings"
	"testing"

	"flipscout/models"
)

func TestDraft_TemplateWithoutAPIKey(t *testing.T) {
	d := NewDrafter(nil, nil)

	msg := d.Draft(context.Background(), &models.Listing{Title: "Leather Sofa", Price: 300})
	if !strings.Contains(msg, "Leather Sofa") {
		t.Fatalf("expected title in message, got %q", msg)
	}
	// 15% under asking
	if !strings.Contains(msg, "255") {
		t.Fatalf("expected offer of 255 in message, got %q", msg)
	}
}

func TestTemplateMessage_FloorsOfferAtOne(t *testing.T) {
	msg := templateMessage(&models.Listing{Title: "Free Chair", Price: 0})
	if !strings.Contains(msg, "pay 1 in cash") {
		t.Fatalf("expected floor offer of 1, got %q", msg)
	}
}
