// Package validate cross-checks the curated data sources against each
// other and against the attested SDK surface. Every violated rule
// becomes a finding; nothing is fixed, nothing short-circuits, nothing
// is mutated.
package validate

import (
	"fmt"
	"sort"

	"sdklens/internal/attested"
	"sdklens/internal/lexicon"
	"sdklens/internal/passage"
	"sdklens/internal/registry"
	"sdklens/internal/relation"
)

// Rule names one referential-integrity check.
type Rule string

const (
	RuleMissingSymbol Rule = "missing-symbol"
	RuleOrphanEdge    Rule = "orphan-relation-endpoint"
	RuleUnmappedToken Rule = "unmapped-lexicon-token"
	RuleOrphanPassage Rule = "passage-without-symbol"
	RuleCoverageGap   Rule = "coverage-gap"
)

// Severity separates hard integrity errors from advisory notes.
type Severity string

const (
	SeverityError  Severity = "error"
	SeverityAdvice Severity = "advice"
)

// Finding is one inconsistency, carrying the offending identifier.
type Finding struct {
	Rule       Rule
	Identifier string
	Detail     string
	Severity   Severity
}

// Report is the full, deterministically ordered finding set.
type Report struct {
	Findings []Finding
}

// HasErrors reports whether any finding is an error rather than advice.
func (r Report) HasErrors() bool {
	for _, f := range r.Findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns only the error-severity findings.
func (r Report) Errors() []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Severity == SeverityError {
			out = append(out, f)
		}
	}
	return out
}

// Run checks every rule family exhaustively and returns the union of
// findings, sorted by rule, then identifier, then detail.
func Run(reg *registry.Registry, graph *relation.Graph, lex *lexicon.Map, store *passage.Store, index *attested.Index) Report {
	var findings []Finding

	// Every registered symbol must be attested: the registry may not
	// fabricate SDK surface.
	for _, t := range reg.Tokens() {
		if !index.Has(t) {
			findings = append(findings, Finding{
				Rule:       RuleMissingSymbol,
				Identifier: string(t),
				Detail:     "registry token not present in attested surface",
				Severity:   SeverityError,
			})
		}
	}

	// Both endpoints of every relation edge must be registered.
	for _, e := range graph.Edges() {
		if !reg.Has(e.Dependent) {
			findings = append(findings, Finding{
				Rule:       RuleOrphanEdge,
				Identifier: string(e.Dependent),
				Detail:     fmt.Sprintf("dependent of edge %s -> %s not in registry", e.Dependent, e.Prerequisite),
				Severity:   SeverityError,
			})
		}
		if !reg.Has(e.Prerequisite) {
			findings = append(findings, Finding{
				Rule:       RuleOrphanEdge,
				Identifier: string(e.Prerequisite),
				Detail:     fmt.Sprintf("prerequisite of edge %s -> %s not in registry", e.Dependent, e.Prerequisite),
				Severity:   SeverityError,
			})
		}
	}

	// Every token a lexicon entry points at must be registered.
	for _, entry := range lex.Entries() {
		for _, t := range entry.Tokens {
			if !reg.Has(t) {
				findings = append(findings, Finding{
					Rule:       RuleUnmappedToken,
					Identifier: string(t),
					Detail:     fmt.Sprintf("lexicon term %q (tag %q) references unregistered token", entry.Term, entry.Tag),
					Severity:   SeverityError,
				})
			}
		}
	}

	// Every passage key must be registered.
	for _, t := range store.Tokens() {
		if !reg.Has(t) {
			findings = append(findings, Finding{
				Rule:       RuleOrphanPassage,
				Identifier: string(t),
				Detail:     "passage store key not in registry",
				Severity:   SeverityError,
			})
		}
	}

	// Coverage gaps: attested, exported-looking symbols the registry
	// does not carry. Advisory only.
	for _, t := range index.Tokens() {
		if attested.Exported(t) && !reg.Has(t) {
			findings = append(findings, Finding{
				Rule:       RuleCoverageGap,
				Identifier: string(t),
				Detail:     "attested symbol not covered by registry",
				Severity:   SeverityAdvice,
			})
		}
	}

	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Rule != findings[j].Rule {
			return findings[i].Rule < findings[j].Rule
		}
		if findings[i].Identifier != findings[j].Identifier {
			return findings[i].Identifier < findings[j].Identifier
		}
		return findings[i].Detail < findings[j].Detail
	})
	return Report{Findings: findings}
}
