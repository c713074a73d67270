package pricing

import "strings"

// CategoryRule maps title keywords to a resale markup multiplier.
type CategoryRule struct {
	Name       string   `yaml:"name"`
	Keywords   []string `yaml:"keywords"`
	Multiplier float64  `yaml:"multiplier"`
}

// Estimator guesses a resale price from a listing title. The rule table is
// injectable; the defaults are a rough heuristic, not market data.
type Estimator struct {
	rules      []CategoryRule
	defaultMul float64
}

const defaultMultiplier = 1.4

func NewEstimator(rules []CategoryRule, defaultMul float64) *Estimator {
	if defaultMul <= 0 {
		defaultMul = defaultMultiplier
	}
	return &Estimator{rules: rules, defaultMul: defaultMul}
}

func DefaultEstimator() *Estimator {
	return NewEstimator([]CategoryRule{
		{Name: "furniture", Keywords: []string{"sofa", "couch", "armchair"}, Multiplier: 1.8},
		{Name: "electronics", Keywords: []string{"iphone", "phone", "macbook", "laptop"}, Multiplier: 1.6},
	}, defaultMultiplier)
}

// Categorize returns the first rule whose keywords match the title, "" and
// the default multiplier otherwise. Matching is case-insensitive substring.
func (e *Estimator) Categorize(title string) (string, float64) {
	lower := strings.ToLower(title)
	for _, rule := range e.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return rule.Name, rule.Multiplier
			}
		}
	}
	return "", e.defaultMul
}

// Estimate returns floor(price * multiplier), bumped to price+1 when the
// floor does not exceed the asking price. The result is always strictly
// greater than price.
func (e *Estimator) Estimate(title string, price int) int {
	_, mul := e.Categorize(title)
	est := int(float64(price) * mul)
	if est <= price {
		est = price + 1
	}
	return est
}
