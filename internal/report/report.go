// Package report turns a structured analysis into a short narrative report.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/priorart-go/internal/analysis"
	"github.com/54b3r/priorart-go/internal/logging"
	"github.com/54b3r/priorart-go/internal/stage"
)

// Fallback is the report text used whenever generation fails.
const Fallback = "Report could not be generated."

// ErrNoModel marks a call made while no chat model is configured.
var ErrNoModel = errors.New("report: chat model unavailable")

const promptTemplate = `Write a patent analysis report.

Analysis results: %s

Write a professional patent analysis report in English with these sections:
- Introduction
- Novelty Assessment
- Difference Analysis
- Risks and Opportunities
- Recommendations
- Conclusion

The report must be at most 500 words.`

// Synthesizer writes reports with a generative model.
type Synthesizer struct {
	// chat is the generative model; nil means unavailable.
	chat model.BaseChatModel
	// opts are passed to every Generate call.
	opts []model.Option
}

// New returns a Synthesizer. chat may be nil, in which case every call
// returns Fallback.
func New(chat model.BaseChatModel, opts ...model.Option) *Synthesizer {
	return &Synthesizer{chat: chat, opts: opts}
}

// Write renders res as a narrative report.
func (s *Synthesizer) Write(ctx context.Context, res analysis.Result) stage.Result[string] {
	if s == nil || s.chat == nil {
		return stage.Degraded(Fallback, ErrNoModel)
	}

	payload, err := json.Marshal(res)
	if err != nil {
		return stage.Degraded(Fallback, fmt.Errorf("report: encode analysis: %w", err))
	}

	ctx = callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
		Name:      "priorart.report",
		Component: components.ComponentOfChatModel,
	})
	msgs := []*schema.Message{schema.UserMessage(fmt.Sprintf(promptTemplate, payload))}
	resp, err := s.chat.Generate(ctx, msgs, s.opts...)
	if err == nil && (resp == nil || strings.TrimSpace(resp.Content) == "") {
		err = errors.New("empty response")
	}
	if err != nil {
		logging.FromContext(ctx).Warn("report: model call failed", slog.Any("error", err))
		return stage.Degraded(Fallback, fmt.Errorf("report: generate: %w", err))
	}
	return stage.OK(resp.Content)
}
