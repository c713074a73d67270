package pricing

import "flipscout/models"

// Score fills in Margin and Viable on a listing with Price and
// ResaleEstimate already set. max(price, 1) guards zero-price listings,
// which are tolerated rather than rejected.
func Score(l *models.Listing, minMargin float64) {
	divisor := l.Price
	if divisor < 1 {
		divisor = 1
	}
	l.Margin = float64(l.ResaleEstimate-l.Price) / float64(divisor)
	l.Viable = l.Margin >= minMargin
}
