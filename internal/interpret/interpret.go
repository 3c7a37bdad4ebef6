// Package interpret turns a free-text event description into a set of
// SDK tokens. It is a lookup-and-fallback matcher over the lexicon, not
// a semantic parser: whatever the lexicon cannot claim goes to a single
// LLM fallback call, and everything the fallback proposes is gated by
// the Symbol Registry.
package interpret

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"sdklens/internal/lexicon"
	"sdklens/internal/llm"
	"sdklens/internal/registry"
)

// Result is one interpretation, immutable downstream.
type Result struct {
	Event        string
	Matched      []registry.Token
	Unmatched    []string
	UsedFallback bool
}

// Interpreter matches events against the lexicon with an optional LLM
// fallback. A nil client disables the fallback entirely.
type Interpreter struct {
	lex    *lexicon.Map
	reg    *registry.Registry
	client llm.Client
	params llm.Params
	log    *zap.Logger
}

func New(lex *lexicon.Map, reg *registry.Registry, client llm.Client, params llm.Params, log *zap.Logger) *Interpreter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Interpreter{lex: lex, reg: reg, client: client, params: params, log: log}
}

// Interpret maps event text to registered tokens. An event that matches
// nothing is a normal outcome, not an error; a failing fallback call
// degrades to an empty match. Interpret never fails the pipeline.
func (in *Interpreter) Interpret(ctx context.Context, event string) Result {
	entries, leftover := in.lex.Match(event)

	set := make(map[registry.Token]bool)
	for _, e := range entries {
		for _, t := range e.Tokens {
			// The registry is the only source of truth; a stale lexicon
			// entry must not smuggle an unregistered token through.
			if in.reg.Has(t) {
				set[t] = true
			} else {
				in.log.Warn("lexicon entry references unregistered token",
					zap.String("term", e.Term), zap.String("token", string(t)))
			}
		}
	}

	res := Result{Event: event, Unmatched: leftover}
	if len(set) == 0 && in.client != nil {
		res.UsedFallback = true
		for _, t := range in.fallback(ctx, event) {
			set[t] = true
		}
	}

	for t := range set {
		res.Matched = append(res.Matched, t)
	}
	sort.Slice(res.Matched, func(i, j int) bool { return res.Matched[i] < res.Matched[j] })
	return res
}

var tokenPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_*()]*`)

// fallback asks the model to pick tokens from the registry vocabulary.
// Hallucinated tokens are discarded; any transport or parse failure
// degrades to no tokens at all.
func (in *Interpreter) fallback(ctx context.Context, event string) []registry.Token {
	completion, err := in.client.Complete(ctx, in.fallbackPrompt(event), in.params)
	if err != nil {
		in.log.Warn("interpreter fallback unavailable", zap.Error(err))
		return nil
	}

	var picked []registry.Token
	seen := make(map[registry.Token]bool)
	for _, raw := range tokenPattern.FindAllString(completion, -1) {
		t := registry.Token(raw)
		if seen[t] {
			continue
		}
		seen[t] = true
		if !in.reg.Has(t) {
			in.log.Warn("fallback proposed unregistered token, discarding", zap.String("token", raw))
			continue
		}
		picked = append(picked, t)
	}
	return picked
}

func (in *Interpreter) fallbackPrompt(event string) string {
	var sb strings.Builder
	sb.WriteString("You map runtime events onto a fixed SDK vocabulary.\n")
	sb.WriteString("Pick zero or more tokens from the vocabulary below that directly describe the event.\n")
	sb.WriteString("Return only the chosen tokens, one per line, with no commentary. Return nothing if no token fits.\n\n")
	sb.WriteString("Vocabulary:\n")
	for _, t := range in.reg.Tokens() {
		fmt.Fprintf(&sb, "- %s\n", t)
	}
	fmt.Fprintf(&sb, "\nEvent: %s\n", event)
	return sb.String()
}
