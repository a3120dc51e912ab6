// Package tokens provides token count estimation for text.
//
// Estimates use a fixed characters-per-token ratio and are approximate by
// design. Consumers needing billing-grade counts must use the serving
// model's own tokenizer instead.
package tokens

// defaultCharsPerToken is the assumed ratio for English text.
const defaultCharsPerToken = 4

// Estimator estimates the token count of a piece of text.
//
// The default implementation is a chars/4 heuristic. Provide a custom
// implementation for model-accurate counting.
type Estimator interface {
	Estimate(text string) int
}

// CharEstimator estimates tokens using a characters-per-token ratio.
type CharEstimator struct {
	// CharsPerToken defaults to 4 when zero or negative.
	CharsPerToken int
}

func (e CharEstimator) ratio() int {
	if e.CharsPerToken <= 0 {
		return defaultCharsPerToken
	}
	return e.CharsPerToken
}

// Estimate returns the estimated token count for text.
//
// Empty text estimates to 0. Non-empty text estimates to at least 1 token
// so that short inputs are never accounted as free.
func (e CharEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	n := len(text) / e.ratio()
	if n < 1 {
		return 1
	}
	return n
}
