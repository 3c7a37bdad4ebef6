package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Token is the canonical identifier for one SDK function, enum member,
// or literal constant.
type Token string

// Kind classifies what an SDK token names.
type Kind string

const (
	KindFunction Kind = "function"
	KindEnum     Kind = "enum"
	KindLiteral  Kind = "literal"
)

func (k Kind) valid() bool {
	switch k {
	case KindFunction, KindEnum, KindLiteral:
		return true
	}
	return false
}

// Entry is one registered SDK symbol.
type Entry struct {
	Token     Token  `json:"token"`
	Kind      Kind   `json:"kind"`
	Signature string `json:"signature,omitempty"`
	Header    string `json:"header,omitempty"`
}

// Registry is the read-only set of attested SDK symbols. It is the only
// source of truth for token validity: anything not registered here is
// discarded wherever it appears.
type Registry struct {
	entries map[Token]Entry
}

// New builds a Registry from entries, rejecting empty tokens, unknown
// kinds and duplicates.
func New(entries []Entry) (*Registry, error) {
	byToken := make(map[Token]Entry, len(entries))
	for _, e := range entries {
		if e.Token == "" {
			return nil, fmt.Errorf("registry: entry with empty token")
		}
		if !e.Kind.valid() {
			return nil, fmt.Errorf("registry: token %q has unknown kind %q", e.Token, e.Kind)
		}
		if _, dup := byToken[e.Token]; dup {
			return nil, fmt.Errorf("registry: duplicate token %q", e.Token)
		}
		byToken[e.Token] = e
	}
	return &Registry{entries: byToken}, nil
}

// Load reads a registry snapshot (JSON array of entries) from disk.
func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read snapshot: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("registry: parse snapshot %s: %w", path, err)
	}
	return New(entries)
}

// Has reports whether token is registered.
func (r *Registry) Has(t Token) bool {
	_, ok := r.entries[t]
	return ok
}

// Get returns the entry for token, if registered.
func (r *Registry) Get(t Token) (Entry, bool) {
	e, ok := r.entries[t]
	return e, ok
}

// Tokens returns all registered tokens in lexicographic order.
func (r *Registry) Tokens() []Token {
	out := make([]Token, 0, len(r.entries))
	for t := range r.entries {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the number of registered tokens.
func (r *Registry) Len() int {
	return len(r.entries)
}
