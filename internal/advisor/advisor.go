// Package advisor proposes new lexicon entries for terms the
// interpreter could not map. Suggestions are candidates for human
// review; nothing is written back without an explicit Apply call, and
// Apply is serialized so two approved batches cannot race.
package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"sdklens/internal/lexicon"
	"sdklens/internal/llm"
	"sdklens/internal/registry"
)

// Candidate is one proposed lexicon entry awaiting human approval.
type Candidate struct {
	Term   string           `json:"term"`
	Tag    string           `json:"tag"`
	Tokens []registry.Token `json:"tokens"`
}

// Advisor issues suggestion calls constrained to the registry
// vocabulary and the lexicon's existing tag universe.
type Advisor struct {
	client llm.Client
	params llm.Params
	reg    *registry.Registry
	lex    *lexicon.Map
	log    *zap.Logger
}

func New(client llm.Client, params llm.Params, reg *registry.Registry, lex *lexicon.Map, log *zap.Logger) *Advisor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Advisor{client: client, params: params, reg: reg, lex: lex, log: log}
}

var termPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

type suggestion struct {
	Term string `json:"term"`
	Tag  string `json:"tag"`
}

// Suggest asks the model for surface terms and a neutral tag covering
// term, then sanitizes: terms must be short lowercase tokens, tags must
// already exist in the lexicon, and the resulting token sets are taken
// from the lexicon's own tag mapping so no unregistered token can enter.
func (a *Advisor) Suggest(ctx context.Context, term string) ([]Candidate, error) {
	term = lexicon.Normalize(term)
	if term == "" {
		return nil, fmt.Errorf("advisor: empty term")
	}

	completion, err := a.client.Complete(ctx, a.prompt(term), a.params)
	if err != nil {
		return nil, fmt.Errorf("advisor: suggestion call: %w", err)
	}

	var raw []suggestion
	if err := json.Unmarshal([]byte(completion), &raw); err != nil {
		if start, end := strings.Index(completion, "["), strings.LastIndex(completion, "]"); start >= 0 && end > start {
			err = json.Unmarshal([]byte(completion[start:end+1]), &raw)
		}
		if err != nil {
			return nil, fmt.Errorf("advisor: unparseable suggestion response: %w", err)
		}
	}

	tags := make(map[string]bool)
	for _, t := range a.lex.Tags() {
		tags[t] = true
	}

	var out []Candidate
	seen := make(map[string]bool)
	for _, s := range raw {
		t := strings.ToLower(strings.TrimSpace(s.Term))
		if len(t) < 3 || !termPattern.MatchString(t) || seen[t] {
			continue
		}
		if !tags[s.Tag] {
			a.log.Warn("advisor proposed unknown neutral tag, discarding",
				zap.String("term", t), zap.String("tag", s.Tag))
			continue
		}
		tokens := a.registered(a.lex.TokensForTag(s.Tag))
		if len(tokens) == 0 {
			continue
		}
		seen[t] = true
		out = append(out, Candidate{Term: t, Tag: s.Tag, Tokens: tokens})
	}
	return out, nil
}

func (a *Advisor) registered(tokens []registry.Token) []registry.Token {
	var out []registry.Token
	for _, t := range tokens {
		if a.reg.Has(t) {
			out = append(out, t)
		}
	}
	return out
}

func (a *Advisor) prompt(term string) string {
	var sb strings.Builder
	sb.WriteString("You are expanding a controlled lexicon for a curated SDK vocabulary.\n")
	sb.WriteString("Given the seed term below, propose synonyms or morphological variants and assign each to ONE of the existing neutral tags.\n")
	sb.WriteString("Rules: lowercase single tokens preferred; no punctuation; do not invent new tags; 3-12 items.\n")
	sb.WriteString("Return ONLY a JSON array of objects with keys \"term\" and \"tag\".\n\n")
	sb.WriteString("Existing neutral tags:\n")
	for _, t := range a.lex.Tags() {
		fmt.Fprintf(&sb, "- %s\n", t)
	}
	fmt.Fprintf(&sb, "\nSeed term: %s\n", term)
	return sb.String()
}
