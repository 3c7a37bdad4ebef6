// Package attested holds the ground-truth index of symbols actually
// present in the SDK headers. The validator trusts this index over
// every curated data source.
package attested

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"sdklens/internal/registry"
)

// Record is one attested symbol as found in a header.
type Record struct {
	Token       registry.Token `json:"token"`
	Kind        registry.Kind  `json:"kind"`
	Declaration string         `json:"declaration,omitempty"`
	Header      string         `json:"header,omitempty"`
}

// Index is the immutable attested surface.
type Index struct {
	byToken map[registry.Token]Record
}

// New builds an Index; duplicate tokens keep the first record, since
// headers routinely redeclare the same macro.
func New(records []Record) (*Index, error) {
	byToken := make(map[registry.Token]Record, len(records))
	for _, r := range records {
		if r.Token == "" {
			return nil, fmt.Errorf("attested: record with empty token")
		}
		if _, ok := byToken[r.Token]; ok {
			continue
		}
		byToken[r.Token] = r
	}
	return &Index{byToken: byToken}, nil
}

// Load reads an attested-surface snapshot (JSON array of records).
func Load(path string) (*Index, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("attested: read snapshot: %w", err)
	}
	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("attested: parse snapshot %s: %w", path, err)
	}
	return New(records)
}

// Has reports whether token is attested.
func (ix *Index) Has(t registry.Token) bool {
	_, ok := ix.byToken[t]
	return ok
}

// Get returns the attested record for token, if present.
func (ix *Index) Get(t registry.Token) (Record, bool) {
	r, ok := ix.byToken[t]
	return r, ok
}

// Tokens returns every attested token, sorted.
func (ix *Index) Tokens() []registry.Token {
	out := make([]registry.Token, 0, len(ix.byToken))
	for t := range ix.byToken {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the number of attested tokens.
func (ix *Index) Len() int {
	return len(ix.byToken)
}

// Exported reports whether a token looks like public SDK surface worth
// a coverage-gap note: leading uppercase and not underscore-prefixed.
func Exported(t registry.Token) bool {
	s := string(t)
	if s == "" || strings.HasPrefix(s, "_") {
		return false
	}
	c := s[0]
	return c >= 'A' && c <= 'Z'
}
