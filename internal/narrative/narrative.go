// Package narrative drives the single completion call that turns an
// interpreted event into a cited first-person narrative, and lints the
// model's output against the allowed vocabulary and citation set.
package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"sdklens/internal/llm"
	"sdklens/internal/passage"
	"sdklens/internal/registry"
)

// ErrEmptyCompletion is returned when the service produced no usable
// narrative. A failed generation is surfaced, never papered over with a
// fabricated narrative.
var ErrEmptyCompletion = errors.New("narrative: empty completion")

// Output is one generation result. LintIssues is advisory; the text is
// returned as the model produced it.
type Output struct {
	Text          string   `json:"narrative"`
	CitationsUsed []string `json:"citationsUsed"`
	TokensUsed    []string `json:"tokensUsed"`
	Fallback      bool     `json:"-"`
	LintIssues    []string `json:"-"`
}

// Generator issues narrative completions.
type Generator struct {
	client llm.Client
	params llm.Params
	log    *zap.Logger
}

func New(client llm.Client, params llm.Params, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{client: client, params: params, log: log}
}

// NoTokenFallback is the fixed output for events that activate no SDK
// token at all. It is produced without a model call.
func NoTokenFallback() Output {
	return Output{
		Text: "No part of the SDK vocabulary can describe this event. " +
			"The input does not map to any known SDK token.",
		Fallback: true,
	}
}

// Generate builds the prompt from the event, the expanded token set and
// the selected passages, issues one completion and lints the result.
// banned carries the unrepresentable terms that must not leak into the
// narrative.
func (g *Generator) Generate(ctx context.Context, event string, tokens []registry.Token, selected []passage.Selected, banned []string) (Output, error) {
	prompt := BuildPrompt(event, tokens, selected)
	completion, err := g.client.Complete(ctx, prompt, g.params)
	if err != nil {
		return Output{}, fmt.Errorf("narrative: generation failed: %w", err)
	}
	out, err := parseOutput(completion)
	if err != nil {
		return Output{}, err
	}
	if strings.TrimSpace(out.Text) == "" {
		return Output{}, ErrEmptyCompletion
	}

	provided := make([]string, 0, len(selected))
	for _, s := range selected {
		provided = append(provided, s.Excerpt.ID)
	}
	out.CitationsUsed = intersect(out.CitationsUsed, provided)
	out.LintIssues = Lint(out, tokens, provided, banned)
	if len(out.LintIssues) > 0 {
		g.log.Warn("narrative failed lint", zap.Strings("issues", out.LintIssues))
	}
	return out, nil
}

// BuildPrompt embeds the event, the allowed tokens and the passages,
// each passage tagged with its source token so the model can cite it.
func BuildPrompt(event string, tokens []registry.Token, selected []passage.Selected) string {
	var sb strings.Builder
	sb.WriteString("Role: an engineer inside the SDK, speaking in the first person.\n")
	sb.WriteString("Task: describe the event below strictly in terms of the allowed SDK tokens.\n")
	sb.WriteString("Voice: transient, learning, human, physical - the work as it is lived, not marketed.\n")
	sb.WriteString("Do not claim anything not supported by the passages. Cite each factual claim like [passage-id].\n")
	sb.WriteString("Keep it concise (90-130 words).\n")
	sb.WriteString("Return ONLY JSON with keys: narrative, citationsUsed, tokensUsed.\n")

	sb.WriteString("\nAllowedTokens:\n")
	for _, t := range tokens {
		fmt.Fprintf(&sb, "- %s\n", t)
	}

	sb.WriteString("\nPassages:\n")
	for _, s := range selected {
		fmt.Fprintf(&sb, "[%s] (%s) %s\n", s.Excerpt.ID, s.Token, s.Excerpt.Text)
	}

	fmt.Fprintf(&sb, "\nEvent: %s\n", event)
	return sb.String()
}

// parseOutput accepts strict JSON, JSON buried in prose, or - as a last
// resort - treats the whole completion as the narrative text.
func parseOutput(completion string) (Output, error) {
	completion = strings.TrimSpace(completion)
	if completion == "" {
		return Output{}, ErrEmptyCompletion
	}

	var out Output
	if err := json.Unmarshal([]byte(completion), &out); err == nil {
		return out, nil
	}
	if start, end := strings.Index(completion, "{"), strings.LastIndex(completion, "}"); start >= 0 && end > start {
		if err := json.Unmarshal([]byte(completion[start:end+1]), &out); err == nil {
			return out, nil
		}
	}
	return Output{Text: completion}, nil
}

func intersect(got, allowed []string) []string {
	ok := make(map[string]bool, len(allowed))
	for _, id := range allowed {
		ok[id] = true
	}
	var out []string
	for _, id := range got {
		if ok[id] {
			out = append(out, id)
		}
	}
	return out
}
