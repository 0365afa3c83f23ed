package corpus

import "math"

// Match is a scored record within one result set. Ranks are dense and start
// at 1; Score is normalised into [0, 1] with 1 being most similar.
type Match struct {
	// Record is embedded so JSON output carries the record fields inline.
	Record
	// Score is the similarity in [0, 1].
	Score float64 `json:"similarity_score"`
	// Rank is the 1-based position in the result set.
	Rank int `json:"rank"`
}

// Rerank assigns dense ranks 1..n in slice order.
func Rerank(matches []Match) []Match {
	for i := range matches {
		matches[i].Rank = i + 1
	}
	return matches
}

// RoundScore clamps v into [0, 1] and rounds it to the given decimal places.
// NaN maps to 0.
func RoundScore(v float64, places int) float64 {
	if math.IsNaN(v) {
		return 0
	}
	v = min(max(v, 0), 1)
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
