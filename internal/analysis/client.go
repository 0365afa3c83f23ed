// Package analysis asks a generative model to compare a free-text idea with
// retrieved prior-art summaries and decodes its structured answer. Analyze
// never fails from the caller's point of view: any model or decode error
// yields Default with a degraded status.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/priorart-go/internal/budget"
	"github.com/54b3r/priorart-go/internal/logging"
	"github.com/54b3r/priorart-go/internal/stage"
)

// ErrNoModel marks a call made while no chat model is configured.
var ErrNoModel = errors.New("analysis: chat model unavailable")

const systemPrompt = `You are a patent analyst. You compare an inventor's idea against existing
patents and answer only with a single JSON object, without markdown fencing or
commentary.`

const taskTemplate = `Patent difference analysis.

Inventor's idea: %s

Similar patents:
%s

Please:
1. Identify the key differences between the idea and the similar patents
2. Rate the novelty potential (High/Medium/Low)
3. State which aspects are genuinely new
4. Suggest improvements
5. Give strategic advice

Answer in this JSON format:
{
  "differences": ["difference 1", "difference 2"],
  "novelty_score": "High/Medium/Low",
  "novel_aspects": ["aspect 1", "aspect 2"],
  "improvement_suggestions": ["suggestion 1", "suggestion 2"],
  "strategic_advice": "strategic advice",
  "risk_assessment": "risk assessment"
}`

// Config holds generation settings for the analysis call.
type Config struct {
	// Temperature is the sampling temperature; nil means DefaultTemperature.
	// An explicit 0 requests greedy decoding.
	Temperature *float32
	// TopP is the nucleus sampling cutoff; nil means DefaultTopP.
	TopP *float32
	// MaxTokens caps the response length; 0 leaves the backend default.
	MaxTokens int
	// DisableSampling omits temperature and top-p for models that reject them.
	DisableSampling bool
	// MaxContextTokens bounds the prompt; trailing summaries are dropped to
	// fit. Defaults to budget.DefaultMaxContextTokens.
	MaxContextTokens int
}

const (
	// DefaultTemperature keeps the structured answer close to deterministic.
	DefaultTemperature float32 = 0.3
	// DefaultTopP is the nucleus cutoff used when none is configured.
	DefaultTopP float32 = 0.9
)

func ptr[T any](v T) *T { return &v }

// Options returns the per-call model options implied by c.
func (c Config) Options() []model.Option {
	c = c.withDefaults()
	var opts []model.Option
	if !c.DisableSampling {
		opts = append(opts, model.WithTemperature(*c.Temperature), model.WithTopP(*c.TopP))
	}
	if c.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(c.MaxTokens))
	}
	return opts
}

func (c Config) withDefaults() Config {
	if c.Temperature == nil {
		c.Temperature = ptr(DefaultTemperature)
	}
	if c.TopP == nil {
		c.TopP = ptr(DefaultTopP)
	}
	if c.MaxContextTokens <= 0 {
		c.MaxContextTokens = budget.DefaultMaxContextTokens
	}
	return c
}

// Client runs the difference and novelty analysis.
type Client struct {
	// chat is the generative model; nil means unavailable.
	chat model.BaseChatModel
	// cfg holds the resolved generation settings.
	cfg Config
}

// New returns a Client. chat may be nil, in which case every call degrades
// to Default.
func New(chat model.BaseChatModel, cfg Config) *Client {
	return &Client{chat: chat, cfg: cfg.withDefaults()}
}

// Analyze compares query with the candidate summaries.
func (c *Client) Analyze(ctx context.Context, query string, summaries []string) stage.Result[Result] {
	if c == nil || c.chat == nil {
		return stage.Degraded(Default(), ErrNoModel)
	}
	log := logging.FromContext(ctx)

	msgs := c.buildMessages(ctx, query, summaries)
	ctx = callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
		Name:      "priorart.analysis",
		Component: components.ComponentOfChatModel,
	})
	resp, err := c.chat.Generate(ctx, msgs, c.cfg.Options()...)
	if err == nil && resp == nil {
		err = errors.New("empty response")
	}
	if err != nil {
		log.Warn("analysis: model call failed", slog.Any("error", err))
		return stage.Degraded(Default(), fmt.Errorf("analysis: generate: %w", err))
	}

	res, err := Parse(resp.Content)
	if err != nil {
		log.Warn("analysis: unparseable model output",
			slog.Any("error", err),
			slog.Int("output_len", len(resp.Content)),
		)
		return stage.Degraded(Default(), err)
	}
	return stage.OK(res)
}

// buildMessages renders the prompt, dropping trailing summaries that do not
// fit the context budget.
func (c *Client) buildMessages(ctx context.Context, query string, summaries []string) []*schema.Message {
	fixed := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(fmt.Sprintf(taskTemplate, query, "")),
	}
	kept := budget.FitSummaries(fixed, summaries, c.cfg.MaxContextTokens)
	if dropped := len(summaries) - len(kept); dropped > 0 {
		logging.FromContext(ctx).Warn("budget: dropped candidate summaries to fit context window",
			slog.Int("dropped", dropped),
			slog.Int("retained", len(kept)),
			slog.Int("max_tokens", c.cfg.MaxContextTokens),
		)
	}

	return []*schema.Message{
		fixed[0],
		schema.UserMessage(fmt.Sprintf(taskTemplate, query, enumerate(kept))),
	}
}

// enumerate renders summaries as a 1-based numbered list.
func enumerate(summaries []string) string {
	var sb strings.Builder
	for i, s := range summaries {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%d. %s", i+1, s)
	}
	return sb.String()
}
