package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Novelty is the model's assessment of how new an idea is.
type Novelty string

const (
	NoveltyHigh    Novelty = "High"
	NoveltyMedium  Novelty = "Medium"
	NoveltyLow     Novelty = "Low"
	NoveltyUnknown Novelty = "Unknown"
)

// ParseNovelty maps s case-insensitively onto a Novelty. Anything that is not
// high, medium or low is NoveltyUnknown.
func ParseNovelty(s string) Novelty {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return NoveltyHigh
	case "medium":
		return NoveltyMedium
	case "low":
		return NoveltyLow
	}
	return NoveltyUnknown
}

// Result is the structured difference and novelty assessment. Every field is
// always populated.
type Result struct {
	// Differences lists how the idea differs from the retrieved records.
	Differences []string `json:"differences"`
	// Novelty is the overall novelty rating.
	Novelty Novelty `json:"novelty_score"`
	// NovelAspects lists the genuinely new parts of the idea.
	NovelAspects []string `json:"novel_aspects"`
	// ImprovementSuggestions lists ways to strengthen the idea.
	ImprovementSuggestions []string `json:"improvement_suggestions"`
	// StrategicAdvice is free-text filing or positioning advice.
	StrategicAdvice string `json:"strategic_advice"`
	// RiskAssessment is free-text infringement and rejection risk.
	RiskAssessment string `json:"risk_assessment"`
}

// Default returns the result used whenever the model cannot be called or its
// output cannot be decoded.
func Default() Result {
	return Result{
		Differences:            []string{"Analysis could not be performed"},
		Novelty:                NoveltyUnknown,
		NovelAspects:           []string{"Analysis could not be performed"},
		ImprovementSuggestions: []string{"System error"},
		StrategicAdvice:        "Try again",
		RiskAssessment:         "Unknown",
	}
}

// ErrNoJSON is returned by Parse when the text holds no object delimiters.
var ErrNoJSON = errors.New("analysis: no JSON object in model output")

// wireResult mirrors Result with optional fields so absent keys can be told
// apart from empty ones.
type wireResult struct {
	Differences            []string `json:"differences"`
	Novelty                *string  `json:"novelty_score"`
	NovelAspects           []string `json:"novel_aspects"`
	ImprovementSuggestions []string `json:"improvement_suggestions"`
	StrategicAdvice        *string  `json:"strategic_advice"`
	RiskAssessment         *string  `json:"risk_assessment"`
}

// Parse decodes the slice of raw between its first '{' and last '}'. Keys
// missing from an otherwise valid object take their values from Default.
func Parse(raw string) (Result, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return Result{}, ErrNoJSON
	}

	var w wireResult
	if err := json.Unmarshal([]byte(raw[start:end+1]), &w); err != nil {
		return Result{}, fmt.Errorf("analysis: decode model output: %w", err)
	}

	res := Default()
	if w.Differences != nil {
		res.Differences = w.Differences
	}
	if w.Novelty != nil {
		res.Novelty = ParseNovelty(*w.Novelty)
	}
	if w.NovelAspects != nil {
		res.NovelAspects = w.NovelAspects
	}
	if w.ImprovementSuggestions != nil {
		res.ImprovementSuggestions = w.ImprovementSuggestions
	}
	if w.StrategicAdvice != nil {
		res.StrategicAdvice = *w.StrategicAdvice
	}
	if w.RiskAssessment != nil {
		res.RiskAssessment = *w.RiskAssessment
	}
	return res, nil
}
