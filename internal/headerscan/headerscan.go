// Package headerscan parses C SDK headers with tree-sitter and emits
// attested-surface records: function declarations, enum members and
// macro definitions. It runs as a separate command; the pipeline only
// ever sees its output as a pre-loaded snapshot.
package headerscan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"

	"sdklens/internal/attested"
	"sdklens/internal/registry"
)

const query = `
	(function_declarator) @func
	(preproc_def) @macro
	(enumerator) @enum
`

// ScanFile extracts attested records from one header file.
func ScanFile(path string) ([]attested.Record, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("headerscan: read %s: %w", path, err)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(c.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, fmt.Errorf("headerscan: parse %s: %w", path, err)
	}

	q, err := sitter.NewQuery([]byte(query), c.GetLanguage())
	if err != nil {
		return nil, fmt.Errorf("headerscan: compile query: %w", err)
	}

	qc := sitter.NewQueryCursor()
	qc.Exec(q, tree.RootNode())

	header := filepath.Base(path)
	var records []attested.Record
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, capture := range m.Captures {
			rec, ok := extract(q.CaptureNameForId(capture.Index), capture.Node, source, header)
			if ok {
				records = append(records, rec)
			}
		}
	}
	return records, nil
}

// Scan extracts records from every .h file in paths (files or
// directories), deduplicated on token with the first declaration kept,
// sorted by token.
func Scan(paths []string) ([]attested.Record, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("headerscan: stat %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(path, ".h") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("headerscan: walk %s: %w", p, err)
		}
	}
	sort.Strings(files)

	seen := make(map[registry.Token]bool)
	var out []attested.Record
	for _, f := range files {
		records, err := ScanFile(f)
		if err != nil {
			return nil, err
		}
		for _, r := range records {
			if seen[r.Token] {
				continue
			}
			seen[r.Token] = true
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out, nil
}

func extract(capture string, node *sitter.Node, source []byte, header string) (attested.Record, bool) {
	switch capture {
	case "func":
		name := node.ChildByFieldName("declarator")
		if name == nil || name.Type() != "identifier" {
			return attested.Record{}, false
		}
		return attested.Record{
			Token:       registry.Token(name.Content(source)),
			Kind:        registry.KindFunction,
			Declaration: declarationOf(node, source),
			Header:      header,
		}, true
	case "macro":
		name := node.ChildByFieldName("name")
		if name == nil {
			return attested.Record{}, false
		}
		return attested.Record{
			Token:       registry.Token(name.Content(source)),
			Kind:        registry.KindLiteral,
			Declaration: strings.TrimSpace(node.Content(source)),
			Header:      header,
		}, true
	case "enum":
		name := node.ChildByFieldName("name")
		if name == nil {
			return attested.Record{}, false
		}
		return attested.Record{
			Token:       registry.Token(name.Content(source)),
			Kind:        registry.KindEnum,
			Declaration: strings.TrimSpace(node.Content(source)),
			Header:      header,
		}, true
	}
	return attested.Record{}, false
}

// declarationOf climbs from a function declarator to the enclosing
// declaration so the record carries the full prototype.
func declarationOf(node *sitter.Node, source []byte) string {
	for p := node.Parent(); p != nil; p = p.Parent() {
		if p.Type() == "declaration" {
			return strings.TrimSpace(p.Content(source))
		}
	}
	return strings.TrimSpace(node.Content(source))
}
