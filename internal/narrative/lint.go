package narrative

import (
	"fmt"
	"regexp"
	"strings"

	"sdklens/internal/registry"
)

var capitalizedWord = regexp.MustCompile(`\b[A-Z][A-Za-z0-9_]*\b`)

// identifierLike separates SDK-identifier-shaped words (CamelCase,
// CONSTANT_CASE, trailing digits) from ordinary sentence-initial
// capitalized English.
var identifierLike = regexp.MustCompile(`^[A-Z][a-z0-9]*[A-Z0-9_]`)

// lintAllowlist covers identifier-shaped words that are legitimate
// outside the SDK vocabulary in a first-person narrative.
var lintAllowlist = map[string]bool{"I": true, "SDK": true, "PS1": true}

// Lint checks a generated narrative against the allowed token set, the
// provided citation ids and the banned (unrepresentable) terms. One
// issue per violation; an empty slice means the output is clean.
func Lint(out Output, allowed []registry.Token, providedIDs []string, banned []string) []string {
	var issues []string

	allowedSet := make(map[string]bool, len(allowed))
	for _, t := range allowed {
		allowedSet[string(t)] = true
	}
	for _, w := range dedupe(capitalizedWord.FindAllString(out.Text, -1)) {
		if identifierLike.MatchString(w) && !allowedSet[w] && !lintAllowlist[w] {
			issues = append(issues, fmt.Sprintf("unallowed token: %s", w))
		}
	}

	valid := make(map[string]bool, len(providedIDs))
	for _, id := range providedIDs {
		valid[id] = true
	}
	if len(out.CitationsUsed) == 0 && len(providedIDs) > 0 {
		issues = append(issues, "no citations used")
	}
	for _, id := range out.CitationsUsed {
		if !valid[id] {
			issues = append(issues, fmt.Sprintf("bad citation id: %s", id))
		}
	}

	lower := strings.ToLower(out.Text)
	for _, term := range banned {
		if containsWord(lower, strings.ToLower(term)) {
			issues = append(issues, fmt.Sprintf("unrepresentable term present: %s", term))
		}
	}
	return issues
}

func containsWord(text, word string) bool {
	re, err := regexp.Compile(`\b` + regexp.QuoteMeta(word) + `\b`)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}

func dedupe(words []string) []string {
	seen := make(map[string]bool, len(words))
	var out []string
	for _, w := range words {
		if seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}
