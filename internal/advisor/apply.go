package advisor

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"sdklens/internal/lexicon"
)

// applyMu serializes write-back: the lexicon snapshot has exactly one
// writer at a time, so two approved batches cannot lose updates.
var applyMu sync.Mutex

// Apply merges approved candidates into the lexicon snapshot at path.
// The previous file is backed up first. Candidates whose tag is not
// already in the snapshot's tag universe are refused, matching the
// advisor's own gating. Apply is the only write path to the lexicon;
// the interpretation pipeline never calls it.
func Apply(path string, candidates []Candidate) error {
	applyMu.Lock()
	defer applyMu.Unlock()

	if len(candidates) == 0 {
		return nil
	}

	current, err := lexicon.Load(path)
	if err != nil {
		return fmt.Errorf("advisor: load lexicon for write-back: %w", err)
	}

	tags := make(map[string]bool)
	for _, t := range current.Tags() {
		tags[t] = true
	}

	entries := current.Entries()
	existing := make(map[string]bool, len(entries))
	for _, e := range entries {
		existing[e.Term] = true
	}

	for _, c := range candidates {
		term := lexicon.Normalize(c.Term)
		if !tags[c.Tag] {
			return fmt.Errorf("advisor: refusing term %q: tag %q not in lexicon", term, c.Tag)
		}
		if existing[term] {
			continue
		}
		existing[term] = true
		entries = append(entries, lexicon.Entry{Term: term, Tag: c.Tag, Tokens: c.Tokens})
	}

	// Validate the merged map before touching disk.
	if _, err := lexicon.New(entries); err != nil {
		return fmt.Errorf("advisor: merged lexicon invalid: %w", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("advisor: read lexicon for backup: %w", err)
	}
	backup := fmt.Sprintf("%s.bak-%s", path, time.Now().UTC().Format("20060102T150405"))
	if err := os.WriteFile(backup, raw, 0o644); err != nil {
		return fmt.Errorf("advisor: write backup: %w", err)
	}

	merged, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("advisor: marshal merged lexicon: %w", err)
	}
	if err := os.WriteFile(path, merged, 0o644); err != nil {
		return fmt.Errorf("advisor: write merged lexicon: %w", err)
	}
	return nil
}
