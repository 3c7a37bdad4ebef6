// Package relation holds the directed prerequisite graph between SDK
// tokens and the closure operation over it. An edge dependent->prerequisite
// means the prerequisite must be in place before the dependent is usable.
package relation

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/katalvlaran/lvlath/bfs"
	"github.com/katalvlaran/lvlath/core"

	"sdklens/internal/registry"
)

// ErrUnknownToken is returned when a closure is requested for a token
// that is not in the Symbol Registry.
var ErrUnknownToken = errors.New("relation: unknown token")

// Edge is one dependency: Dependent requires Prerequisite first.
type Edge struct {
	Dependent    registry.Token `json:"dependent"`
	Prerequisite registry.Token `json:"prerequisite"`
}

// Graph is the immutable relation graph. Every registry token is a
// vertex even when it carries no edges, so a token without prerequisites
// is its own closure.
type Graph struct {
	g     *core.Graph
	reg   *registry.Registry
	edges []Edge
}

// New builds a Graph over the registry's token set. Edges whose
// endpoints are not registered are kept (the validator reports them);
// duplicate edges collapse silently. Cycles and self-loops are allowed,
// closure stays terminating either way.
func New(reg *registry.Registry, edges []Edge) (*Graph, error) {
	g := core.NewGraph(core.WithDirected(true), core.WithLoops())
	for _, t := range reg.Tokens() {
		if err := g.AddVertex(string(t)); err != nil {
			return nil, fmt.Errorf("relation: add vertex %q: %w", t, err)
		}
	}
	kept := make([]Edge, 0, len(edges))
	for _, e := range edges {
		if e.Dependent == "" || e.Prerequisite == "" {
			return nil, fmt.Errorf("relation: edge with empty endpoint (%q -> %q)", e.Dependent, e.Prerequisite)
		}
		if g.HasEdge(string(e.Dependent), string(e.Prerequisite)) {
			continue
		}
		if _, err := g.AddEdge(string(e.Dependent), string(e.Prerequisite), 0); err != nil {
			return nil, fmt.Errorf("relation: add edge %q -> %q: %w", e.Dependent, e.Prerequisite, err)
		}
		kept = append(kept, e)
	}
	return &Graph{g: g, reg: reg, edges: kept}, nil
}

// Load reads a relation snapshot (JSON array of edges) and builds the
// graph over reg.
func Load(path string, reg *registry.Registry) (*Graph, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("relation: read snapshot: %w", err)
	}
	var edges []Edge
	if err := json.Unmarshal(raw, &edges); err != nil {
		return nil, fmt.Errorf("relation: parse snapshot %s: %w", path, err)
	}
	return New(reg, edges)
}

// Edges returns the loaded edge set, deduplicated, for integrity checks.
func (gr *Graph) Edges() []Edge {
	out := make([]Edge, len(gr.edges))
	copy(out, gr.edges)
	return out
}

// Prerequisites returns the direct prerequisites of t in lexicographic
// order.
func (gr *Graph) Prerequisites(t registry.Token) ([]registry.Token, error) {
	if !gr.reg.Has(t) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownToken, t)
	}
	ids, err := gr.g.NeighborIDs(string(t))
	if err != nil {
		return nil, fmt.Errorf("relation: neighbors of %q: %w", t, err)
	}
	out := make([]registry.Token, 0, len(ids))
	for _, id := range ids {
		out = append(out, registry.Token(id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Closure expands tokens to the set closed under "requires": every
// token plus all transitive prerequisites, each exactly once, in
// lexicographic order. The result does not depend on the order of the
// input. Any seed absent from the Symbol Registry fails fast with
// ErrUnknownToken.
func (gr *Graph) Closure(tokens []registry.Token) ([]registry.Token, error) {
	seen := make(map[registry.Token]bool)
	for _, t := range tokens {
		if !gr.reg.Has(t) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownToken, t)
		}
		if seen[t] {
			continue
		}
		res, err := bfs.BFS(gr.g, string(t))
		if err != nil {
			return nil, fmt.Errorf("relation: closure of %q: %w", t, err)
		}
		for _, id := range res.Order {
			seen[registry.Token(id)] = true
		}
	}
	out := make([]registry.Token, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// PrerequisiteOnly returns Closure(tokens) minus the tokens themselves:
// the symbols pulled in purely as prerequisites.
func (gr *Graph) PrerequisiteOnly(tokens []registry.Token) ([]registry.Token, error) {
	closed, err := gr.Closure(tokens)
	if err != nil {
		return nil, err
	}
	activated := make(map[registry.Token]bool, len(tokens))
	for _, t := range tokens {
		activated[t] = true
	}
	out := closed[:0:0]
	for _, t := range closed {
		if !activated[t] {
			out = append(out, t)
		}
	}
	return out, nil
}
