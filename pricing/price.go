package pricing

import (
	"errors"
	"strconv"
)

// ErrNoPrice means the text carried no digits at all. Callers skip the item.
var ErrNoPrice = errors.New("no price found in text")

// ParsePrice turns free-form price text ("£1,250", "$300 ono", "12.50") into
// a whole-unit amount. Currency symbols, separators and surrounding words are
// ignored. A trailing separator followed by one or two digits is treated as a
// fractional part and rounded half up to the nearest whole unit; everything
// else is digit concatenation, so "£1,250" and "£1.250" both parse to 1250
// while "£12.50" parses to 13.
func ParsePrice(text string) (int, error) {
	var digits []byte
	fracIdx := -1
	lastWasDigit := false

	for _, r := range text {
		switch {
		case r >= '0' && r <= '9':
			digits = append(digits, byte(r))
			lastWasDigit = true
		case (r == '.' || r == ',') && lastWasDigit:
			fracIdx = len(digits)
			lastWasDigit = false
		default:
			lastWasDigit = false
		}
	}

	if len(digits) == 0 {
		return 0, ErrNoPrice
	}

	// Only a 1-2 digit tail after the final separator counts as fractional.
	fracLen := len(digits) - fracIdx
	if fracIdx <= 0 || fracLen < 1 || fracLen > 2 {
		return atoiDigits(digits), nil
	}

	whole := atoiDigits(digits[:fracIdx])
	frac := atoiDigits(digits[fracIdx:])
	half := 50
	if fracLen == 1 {
		half = 5
	}
	if frac >= half {
		whole++
	}
	return whole, nil
}

func atoiDigits(digits []byte) int {
	n, err := strconv.Atoi(string(digits))
	if err != nil {
		return 0
	}
	return n
}
