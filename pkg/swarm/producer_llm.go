package swarm

import (
	"context"
	stderrors "errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/XiaoConstantine/ramanujan-go/pkg/errors"
	"github.com/XiaoConstantine/ramanujan-go/pkg/logging"
)

// LLMProducer proposes candidate expressions by prompting a language model
// with the current gene pool. It is optional; a session without one runs on
// grammar producers alone.
type LLMProducer struct {
	client      *anthropic.Client
	model       anthropic.Model
	temperature float64
	maxTokens   int
	batch       int
	fallback    *Grammar
}

// LLMProducerConfig configures an LLMProducer.
type LLMProducerConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Batch       int
}

// NewLLMProducer creates a model-backed producer. A grammar must be supplied
// so the producer can degrade to exploration when the API is unreachable.
func NewLLMProducer(cfg LLMProducerConfig, fallback *Grammar) (*LLMProducer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New(errors.InvalidInput, "API key is required")
	}
	if fallback == nil {
		return nil, errors.New(errors.InvalidInput, "fallback grammar is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	batch := cfg.Batch
	if batch <= 0 {
		batch = 5
	}
	return &LLMProducer{
		client:      &client,
		model:       anthropic.Model(cfg.Model),
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		batch:       batch,
		fallback:    fallback,
	}, nil
}

func (p *LLMProducer) Name() string { return "llm-" + string(p.model) }

func (p *LLMProducer) Produce(ctx context.Context, target Target, pool []*Candidate) ([]string, error) {
	prompt := p.buildPrompt(target, pool)

	message, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model: p.model,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(prompt),
			),
		},
		MaxTokens:   int64(p.maxTokens),
		Temperature: anthropic.Float(p.temperature),
	})
	if err != nil {
		var apiErr *anthropic.Error
		if stderrors.As(err, &apiErr) {
			logging.GetLogger().Warn(ctx, "Anthropic API error: status code %d, falling back to grammar", apiErr.StatusCode)
		} else {
			logging.GetLogger().Warn(ctx, "LLM producer failed (%v), falling back to grammar", err)
		}
		return p.exploreFallback(), nil
	}
	if message == nil || len(message.Content) == 0 {
		return p.exploreFallback(), nil
	}

	var text string
	if block := message.Content[0]; block.Type == "text" {
		text = block.Text
	}
	expressions := parseExpressionLines(text, p.batch)
	if len(expressions) == 0 {
		logging.GetLogger().Warn(ctx, "LLM producer returned no parseable expressions, falling back to grammar")
		return p.exploreFallback(), nil
	}
	return expressions, nil
}

func (p *LLMProducer) exploreFallback() []string {
	out := make([]string, 0, p.batch)
	for i := 0; i < p.batch; i++ {
		out = append(out, p.fallback.Explore())
	}
	return out
}

func (p *LLMProducer) buildPrompt(target Target, pool []*Candidate) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are searching for elegant closed-form expressions that approximate the constant %s.\n\n", target.Name)
	sb.WriteString("Allowed vocabulary: numbers, + - * / ^ ( ), and the symbols pi, e, phi, gamma, zeta3, sqrt, log, exp, sin, cos, tan.\n")
	if len(pool) > 0 {
		sb.WriteString("\nThe best survivors so far, ranked by elegance (lower is better):\n")
		for i, c := range pool {
			if i >= 8 {
				break
			}
			fmt.Fprintf(&sb, "  %s\n", c.Expression)
		}
		sb.WriteString("\nPropose variations of these and entirely new forms.\n")
	}
	fmt.Fprintf(&sb, "\nRespond with exactly %d expressions, one per line, no numbering, no commentary.\n", p.batch)
	return sb.String()
}

// listMarker matches a leading bullet or numbering, e.g. "- ", "* ", "3. ",
// "12) ". The trailing space requirement keeps expressions that merely start
// with a digit intact.
var listMarker = regexp.MustCompile(`^(?:[-*]|\d+[.)])\s+`)

// parseExpressionLines extracts candidate expressions from model output,
// tolerating list markers and code fences.
func parseExpressionLines(text string, limit int) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = listMarker.ReplaceAllString(line, "")
		line = strings.Trim(line, "`")
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		if !plausibleExpression(line) {
			continue
		}
		out = append(out, line)
		if len(out) == limit {
			break
		}
	}
	return out
}

// plausibleExpression filters out prose the model slips into its answer.
func plausibleExpression(line string) bool {
	if strings.ContainsAny(line, "=:;,") || strings.Contains(line, " is ") {
		return false
	}
	for _, r := range line {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'z':
		case strings.ContainsRune("+-*/^(). πφγζ√", r), r == 'e':
		default:
			return false
		}
	}
	return true
}
