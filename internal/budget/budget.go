// Package budget estimates prompt sizes and trims candidate summaries so an
// analysis prompt fits the model's context window. Backends use different
// tokenizers, so estimation uses a conservative character heuristic:
// 1 token ≈ 4 characters.
package budget

import (
	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input budget in tokens. It fits
	// 8k-context models such as Llama 3 8B with room left for the output.
	DefaultMaxContextTokens = 6000

	// summaryOverhead covers the list numbering and newline per summary.
	summaryOverhead = 2
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for msgs, summing
// role and content plus a small per-message overhead.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// FitSummaries returns the longest prefix of summaries whose estimated cost,
// added to fixed, stays within maxTokens. Summaries arrive best-first, so
// trailing (lowest-ranked) entries are dropped first. At least one summary is
// always kept when any were given; the model needs something to compare
// against even if the budget is exceeded. maxTokens <= 0 disables trimming.
func FitSummaries(fixed []*schema.Message, summaries []string, maxTokens int) []string {
	if maxTokens <= 0 || len(summaries) <= 1 {
		return summaries
	}
	used := EstimateMessages(fixed)
	for i, s := range summaries {
		used += Estimate(s) + summaryOverhead
		if used > maxTokens {
			return summaries[:max(i, 1)]
		}
	}
	return summaries
}
