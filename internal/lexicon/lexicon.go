// Package lexicon maps natural-language surface terms to neutral tags
// and on to SDK tokens. Terms are normalized at load time; matching is
// longest-term-first so multi-word terms are never shadowed by their
// own words.
package lexicon

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"sdklens/internal/registry"
)

// Entry is one surface term with its neutral tag and token set.
type Entry struct {
	Term   string           `json:"term"`
	Tag    string           `json:"tag"`
	Tokens []registry.Token `json:"tokens"`
}

// Map is the immutable lexicon snapshot.
type Map struct {
	entries []Entry
}

// Normalize lowercases, trims and collapses inner whitespace.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

// New builds a Map, normalizing terms and rejecting empty terms, empty
// tags and entries without tokens.
func New(entries []Entry) (*Map, error) {
	out := make([]Entry, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		term := Normalize(e.Term)
		if term == "" {
			return nil, fmt.Errorf("lexicon: entry with empty term (tag %q)", e.Tag)
		}
		if e.Tag == "" {
			return nil, fmt.Errorf("lexicon: term %q has no neutral tag", term)
		}
		if len(e.Tokens) == 0 {
			return nil, fmt.Errorf("lexicon: term %q (tag %q) maps to no tokens", term, e.Tag)
		}
		if seen[term] {
			return nil, fmt.Errorf("lexicon: duplicate term %q", term)
		}
		seen[term] = true
		out = append(out, Entry{Term: term, Tag: e.Tag, Tokens: append([]registry.Token(nil), e.Tokens...)})
	}
	// Longest term first; lexicographic among equals keeps matching stable.
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].Term) != len(out[j].Term) {
			return len(out[i].Term) > len(out[j].Term)
		}
		return out[i].Term < out[j].Term
	})
	return &Map{entries: out}, nil
}

// Load reads a lexicon snapshot (JSON array of entries) from disk.
func Load(path string) (*Map, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("lexicon: read snapshot: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("lexicon: parse snapshot %s: %w", path, err)
	}
	return New(entries)
}

// Entries returns the entries sorted longest-term-first.
func (m *Map) Entries() []Entry {
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Tags returns the neutral tag universe in lexicographic order.
func (m *Map) Tags() []string {
	set := make(map[string]bool)
	for _, e := range m.entries {
		set[e.Tag] = true
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// TokensForTag returns the union of token sets of all entries carrying
// tag, sorted.
func (m *Map) TokensForTag(tag string) []registry.Token {
	set := make(map[registry.Token]bool)
	for _, e := range m.entries {
		if e.Tag != tag {
			continue
		}
		for _, t := range e.Tokens {
			set[t] = true
		}
	}
	out := make([]registry.Token, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Match scans event text against the lexicon, longest term first. Each
// event word is consumed by at most one entry, so "controller
// disconnected" is claimed by the two-word entry before a lone
// "controller" entry can see it. Returns the matched entries in match
// order and the leftover words that no entry consumed.
func (m *Map) Match(event string) ([]Entry, []string) {
	words := strings.Fields(Normalize(event))
	if len(words) == 0 {
		return nil, nil
	}
	consumed := make([]bool, len(words))
	var matched []Entry

	for _, e := range m.entries {
		termWords := strings.Fields(e.Term)
	scan:
		for i := 0; i+len(termWords) <= len(words); i++ {
			for j, tw := range termWords {
				if consumed[i+j] || words[i+j] != tw {
					continue scan
				}
			}
			for j := range termWords {
				consumed[i+j] = true
			}
			matched = append(matched, e)
			break
		}
	}

	var leftover []string
	seen := make(map[string]bool)
	for i, w := range words {
		if consumed[i] || seen[w] || stopword(w) {
			continue
		}
		seen[w] = true
		leftover = append(leftover, w)
	}
	sort.Strings(leftover)
	return matched, leftover
}

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true,
	"was": true, "were": true, "of": true, "on": true, "in": true,
	"to": true, "and": true, "has": true, "have": true, "been": true,
	"it": true, "its": true, "my": true, "just": true,
}

func stopword(w string) bool {
	return stopwords[w]
}
