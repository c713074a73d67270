package workers

import "testing"

func TestIsRemovalRedirect(t *testing.T) {
	removed := []string{
		"https://market.example.com/search/?q=sofa",
		"https://market.example.com/login/?next=%2Fitem%2F42",
		"/marketplace/notfound",
		"https://market.example.com/unavailable",
	}
	for _, loc := range removed {
		if !isRemovalRedirect(loc) {
			t.Fatalf("expected %s to indicate removal", loc)
		}
	}

	live := []string{
		"https://market.example.com/item/42/",
		"https://market.example.com/marketplace/item/99",
	}
	for _, loc := range live {
		if isRemovalRedirect(loc) {
			t.Fatalf("expected %s to look live", loc)
		}
	}
}
