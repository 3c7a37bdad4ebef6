// Package passage holds the documentation excerpt store and the
// deterministic selection policy used to assemble citation material for
// the narrative prompt.
package passage

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"sdklens/internal/registry"
)

// Excerpt is one documentation quote. ID is the citation label the
// narrative cites it by. Backbone marks shared init/plumbing material
// that is only worth quoting when its token was pulled in as a
// prerequisite.
type Excerpt struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Backbone bool   `json:"backbone,omitempty"`
}

// Passage is the ordered excerpt list for one token.
type Passage struct {
	Token    registry.Token `json:"token"`
	Excerpts []Excerpt      `json:"excerpts"`
}

// Store is the immutable passage snapshot. A token with no passages is
// simply absent; that is not an error anywhere downstream.
type Store struct {
	byToken map[registry.Token][]Excerpt
}

// New builds a Store, rejecting empty tokens, duplicate token keys and
// excerpts without an ID.
func New(passages []Passage) (*Store, error) {
	byToken := make(map[registry.Token][]Excerpt, len(passages))
	for _, p := range passages {
		if p.Token == "" {
			return nil, fmt.Errorf("passage: entry with empty token")
		}
		if _, dup := byToken[p.Token]; dup {
			return nil, fmt.Errorf("passage: duplicate token %q", p.Token)
		}
		for _, ex := range p.Excerpts {
			if ex.ID == "" {
				return nil, fmt.Errorf("passage: token %q has excerpt without id", p.Token)
			}
		}
		byToken[p.Token] = append([]Excerpt(nil), p.Excerpts...)
	}
	return &Store{byToken: byToken}, nil
}

// Load reads a passage snapshot (JSON array) from disk.
func Load(path string) (*Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("passage: read snapshot: %w", err)
	}
	var passages []Passage
	if err := json.Unmarshal(raw, &passages); err != nil {
		return nil, fmt.Errorf("passage: parse snapshot %s: %w", path, err)
	}
	return New(passages)
}

// Get returns the stored excerpts for token in stored order.
func (s *Store) Get(t registry.Token) []Excerpt {
	return s.byToken[t]
}

// Tokens returns every token that has at least one excerpt, sorted.
func (s *Store) Tokens() []registry.Token {
	out := make([]registry.Token, 0, len(s.byToken))
	for t := range s.byToken {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Selected is one chosen excerpt tagged with its source token.
type Selected struct {
	Token   registry.Token
	Excerpt Excerpt
}

// Options controls selection. MaxQuotes caps the output; zero means
// DefaultMaxQuotes.
type Options struct {
	MaxQuotes int
}

// DefaultMaxQuotes bounds the quote material handed to the model.
const DefaultMaxQuotes = 4

// Select picks excerpts for the expanded token set. Tokens are visited
// in lexicographic order and excerpts in stored order, so two calls
// with the same inputs produce identical output. Non-backbone excerpts
// of any expanded token come first; backbone excerpts are admitted only
// for tokens that entered the set as prerequisites (in expanded but not
// in activated). Tokens without stored passages are skipped.
func Select(activated, expanded []registry.Token, store *Store, opts Options) []Selected {
	max := opts.MaxQuotes
	if max <= 0 {
		max = DefaultMaxQuotes
	}

	inActivated := make(map[registry.Token]bool, len(activated))
	for _, t := range activated {
		inActivated[t] = true
	}
	order := append([]registry.Token(nil), expanded...)
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	var out []Selected
	for _, t := range order {
		for _, ex := range store.Get(t) {
			if ex.Backbone {
				continue
			}
			out = append(out, Selected{Token: t, Excerpt: ex})
			if len(out) >= max {
				return out
			}
		}
	}
	for _, t := range order {
		if inActivated[t] {
			continue
		}
		for _, ex := range store.Get(t) {
			if !ex.Backbone {
				continue
			}
			out = append(out, Selected{Token: t, Excerpt: ex})
			if len(out) >= max {
				return out
			}
		}
	}
	return out
}
