package pricing

import (
	"errors"
	"testing"
)

func TestParsePrice_WholeAmounts(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"£300", 300},
		{"£1,250", 1250},
		{"£1.250", 1250},
		{"$45 ono", 45},
		{"  99  ", 99},
		{"Price: 1,500 GBP", 1500},
	}
	for _, c := range cases {
		got, err := ParsePrice(c.text)
		if err != nil {
			t.Fatalf("ParsePrice(%q) failed: %v", c.text, err)
		}
		if got != c.want {
			t.Fatalf("ParsePrice(%q) = %d, want %d", c.text, got, c.want)
		}
	}
}

func TestParsePrice_FractionalTail(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"£12.50", 13},
		{"£12.49", 12},
		{"£12.5", 13},
		{"£1,250.00", 1250},
		{"£1,250.99", 1251},
		{"0.75", 1},
	}
	for _, c := range cases {
		got, err := ParsePrice(c.text)
		if err != nil {
			t.Fatalf("ParsePrice(%q) failed: %v", c.text, err)
		}
		if got != c.want {
			t.Fatalf("ParsePrice(%q) = %d, want %d", c.text, got, c.want)
		}
	}
}

func TestParsePrice_NoDigits(t *testing.T) {
	for _, text := range []string{"Free", "", "£", "contact seller"} {
		_, err := ParsePrice(text)
		if !errors.Is(err, ErrNoPrice) {
			t.Fatalf("ParsePrice(%q): expected ErrNoPrice, got %v", text, err)
		}
	}
}

func TestParsePrice_NeverNegative(t *testing.T) {
	for _, text := range []string{"-50", "£-1,000", "minus 20"} {
		got, err := ParsePrice(text)
		if err != nil {
			t.Fatalf("ParsePrice(%q) failed: %v", text, err)
		}
		if got < 0 {
			t.Fatalf("ParsePrice(%q) = %d, want non-negative", text, got)
		}
	}
}
