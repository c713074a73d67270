package pricing

import (
	"testing"

	"flipscout/models"
)

func TestScore_Margin(t *testing.T) {
	l := &models.Listing{Price: 300, ResaleEstimate: 480}
	Score(l, 0.25)
	if l.Margin != 0.6 {
		t.Fatalf("margin = %v, want 0.6", l.Margin)
	}
	if !l.Viable {
		t.Fatalf("expected viable at threshold 0.25")
	}
}

func TestScore_ThresholdBoundary(t *testing.T) {
	l := &models.Listing{Price: 100, ResaleEstimate: 125}
	Score(l, 0.25)
	if !l.Viable {
		t.Fatalf("margin equal to threshold must be viable")
	}

	Score(l, 0.26)
	if l.Viable {
		t.Fatalf("margin below threshold must not be viable")
	}
}

func TestScore_ZeroPrice(t *testing.T) {
	l := &models.Listing{Price: 0, ResaleEstimate: 1}
	Score(l, 0.25)
	if l.Margin != 1 {
		t.Fatalf("zero-price margin = %v, want resale estimate", l.Margin)
	}
	if !l.Viable {
		t.Fatalf("expected viable")
	}
}
