// Package pipeline wires the primary use case: interpret -> expand ->
// select -> generate, each stage a pure transformation over snapshots
// loaded once. Concurrent runs need no coordination; nothing here
// writes to a shared store.
package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"sdklens/internal/config"
	"sdklens/internal/interpret"
	"sdklens/internal/lexicon"
	"sdklens/internal/llm"
	"sdklens/internal/narrative"
	"sdklens/internal/passage"
	"sdklens/internal/registry"
	"sdklens/internal/relation"
)

// Snapshots are the immutable data stores one pipeline instance runs
// over.
type Snapshots struct {
	Registry *registry.Registry
	Graph    *relation.Graph
	Lexicon  *lexicon.Map
	Passages *passage.Store
}

// LoadSnapshots loads all four stores from the configured paths,
// failing fast on any schema mismatch.
func LoadSnapshots(cfg *config.Config) (*Snapshots, error) {
	reg, err := registry.Load(cfg.Data.Registry)
	if err != nil {
		return nil, err
	}
	graph, err := relation.Load(cfg.Data.Relations, reg)
	if err != nil {
		return nil, err
	}
	lex, err := lexicon.Load(cfg.Data.Lexicon)
	if err != nil {
		return nil, err
	}
	store, err := passage.Load(cfg.Data.Passages)
	if err != nil {
		return nil, err
	}
	return &Snapshots{Registry: reg, Graph: graph, Lexicon: lex, Passages: store}, nil
}

// Result is the full outcome of one pipeline run.
type Result struct {
	Interpretation interpret.Result
	Expanded       []registry.Token
	Selected       []passage.Selected
	Narrative      narrative.Output
}

type Pipeline struct {
	snaps     *Snapshots
	interp    *interpret.Interpreter
	gen       *narrative.Generator
	maxQuotes int
	log       *zap.Logger
}

func New(snaps *Snapshots, client llm.Client, params llm.Params, maxQuotes int, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		snaps:     snaps,
		interp:    interpret.New(snaps.Lexicon, snaps.Registry, client, params, log),
		gen:       narrative.New(client, params, log),
		maxQuotes: maxQuotes,
		log:       log,
	}
}

// Analyze runs interpretation, expansion and selection for one event.
// It never asks the completion service for a narrative, so it stays
// usable when that service is down; the only possible completion call
// is the interpreter's fallback, and only when the lexicon matched
// nothing.
func (p *Pipeline) Analyze(ctx context.Context, event string) (Result, error) {
	res := Result{Interpretation: p.interp.Interpret(ctx, event)}
	p.log.Info("interpreted event",
		zap.Int("matched", len(res.Interpretation.Matched)),
		zap.Int("unmatched", len(res.Interpretation.Unmatched)),
		zap.Bool("fallback", res.Interpretation.UsedFallback))

	if len(res.Interpretation.Matched) == 0 {
		return res, nil
	}

	expanded, err := p.snaps.Graph.Closure(res.Interpretation.Matched)
	if err != nil {
		return res, fmt.Errorf("pipeline: expand: %w", err)
	}
	res.Expanded = expanded
	p.log.Info("expanded prerequisites", zap.Int("tokens", len(expanded)))

	res.Selected = passage.Select(res.Interpretation.Matched, expanded, p.snaps.Passages,
		passage.Options{MaxQuotes: p.maxQuotes})
	p.log.Info("selected passages", zap.Int("quotes", len(res.Selected)))
	return res, nil
}

// Run executes the primary use case for one event description.
func (p *Pipeline) Run(ctx context.Context, event string) (Result, error) {
	res, err := p.Analyze(ctx, event)
	if err != nil {
		return res, err
	}

	if len(res.Interpretation.Matched) == 0 {
		res.Narrative = narrative.NoTokenFallback()
		return res, nil
	}

	out, err := p.gen.Generate(ctx, event, res.Expanded, res.Selected, res.Interpretation.Unmatched)
	if err != nil {
		return res, err
	}
	res.Narrative = out
	return res, nil
}
