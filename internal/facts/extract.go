// Package facts derives a FactSheet from a test unit's body: classified
// assertions, call sites with mock/boundary attribution, and the
// arrange/act/assert shape heuristic. Extraction asks whether the test would
// still pass against a dummy object with the right shape. It is approximate;
// its outputs are evidence for rules, never verdicts.
package facts

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"testlint/internal/adapter"
	"testlint/internal/config"
	"testlint/internal/logging"
	"testlint/internal/types"
)

// kindOrder is the classification precedence. A statement matching none of
// these but still recognized as an assertion defaults to value-equality.
var kindOrder = []types.AssertionKind{
	types.AssertErrorCheck,
	types.AssertTypeCheck,
	types.AssertAttributeExistence,
	types.AssertStateCheck,
}

// Extractor classifies one language's test bodies. Pattern sets come from
// RuleConfig; the extractor itself has no per-language branches.
type Extractor struct {
	lang        string
	assertCalls []*regexp.Regexp
	kinds       map[types.AssertionKind][]*regexp.Regexp
	mocks       []*regexp.Regexp
	boundary    []*regexp.Regexp
}

// NewExtractor compiles the pattern sets for a language tag.
func NewExtractor(cfg *config.Config, langTag string) (*Extractor, error) {
	lc, ok := cfg.Language(langTag)
	if !ok {
		return nil, fmt.Errorf("no language config for %q", langTag)
	}

	e := &Extractor{lang: langTag, kinds: make(map[types.AssertionKind][]*regexp.Regexp)}

	var err error
	if e.assertCalls, err = compileAll(lc.AssertionCalls); err != nil {
		return nil, fmt.Errorf("assertion_calls for %s: %w", langTag, err)
	}
	if e.mocks, err = compileAll(lc.MockPatterns); err != nil {
		return nil, fmt.Errorf("mock_patterns for %s: %w", langTag, err)
	}
	if e.boundary, err = compileAll(cfg.BoundaryPatterns); err != nil {
		return nil, fmt.Errorf("boundary_patterns: %w", err)
	}
	for kind, patterns := range lc.AssertionPatterns {
		res, err := compileAll(patterns)
		if err != nil {
			return nil, fmt.Errorf("assertion_patterns.%s for %s: %w", kind, langTag, err)
		}
		e.kinds[types.AssertionKind(kind)] = res
	}
	return e, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func matchAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

var assignRe = regexp.MustCompile(`^\s*(?:const\s+|let\s+|var\s+)?([A-Za-z_]\w*)\s*(?::?=)\s*(\S.*)$`)

// Extract derives the FactSheet for one unit. It never fails on a parseable
// body; worst case it yields an empty, Incomplete sheet.
func (e *Extractor) Extract(f *adapter.File, u *adapter.Unit) *types.FactSheet {
	sheet := &types.FactSheet{Unit: u.QualifiedName}
	if u.Body == nil {
		sheet.Incomplete = true
		return sheet
	}

	sut := sutStem(f.Path)
	mockedVars := map[string]struct{}{}

	type stmtClass struct {
		isAssert bool
		isAction bool
	}
	var classes []stmtClass

	for i := 0; i < int(u.Body.NamedChildCount()); i++ {
		stmt := u.Body.NamedChild(i)
		t := stmt.Type()
		if t == "comment" || t == "line_comment" || t == "block_comment" {
			continue
		}
		text := f.Text(stmt)
		line := int(stmt.StartPoint().Row) + 1
		sheet.Statements++

		// Track variables constructed from a recognized mock/stub/fake
		// pattern; later calls through them count as mocked.
		if m := assignRe.FindStringSubmatch(firstLine(text)); m != nil && matchAny(e.mocks, m[2]) {
			mockedVars[m[1]] = struct{}{}
		}

		calls := e.callSites(f, stmt, sut, mockedVars)

		if matchAny(e.assertCalls, text) {
			real := false
			for _, c := range calls {
				if !c.Mocked {
					real = true
					break
				}
			}
			sheet.Assertions = append(sheet.Assertions, types.Assertion{
				Kind:                     e.classify(text),
				Text:                     strings.TrimSpace(firstLine(text)),
				Line:                     line,
				SubjectIsRealComputation: real,
			})
			classes = append(classes, stmtClass{isAssert: true})
		} else {
			classes = append(classes, stmtClass{isAction: len(calls) > 0})
		}

		sheet.Calls = append(sheet.Calls, calls...)
	}

	if sheet.Statements == 0 {
		sheet.Incomplete = true
	}

	// Arrange/act/assert shape: a leading block with no assertions, exactly
	// one action call, then only assertions.
	sheet.ArrangeActSeparated = func() bool {
		firstAssert := -1
		for i, c := range classes {
			if c.isAssert {
				firstAssert = i
				break
			}
		}
		if firstAssert < 2 {
			return false
		}
		actions := 0
		for _, c := range classes[:firstAssert] {
			if c.isAction {
				actions++
			}
		}
		if actions != 1 || !classes[firstAssert-1].isAction {
			return false
		}
		for _, c := range classes[firstAssert:] {
			if !c.isAssert {
				return false
			}
		}
		return true
	}()

	logging.FactsDebug("%s: %d stmt, %d assertions, %d calls, shape=%.2f mock=%.2f",
		u.QualifiedName, sheet.Statements, len(sheet.Assertions), len(sheet.Calls),
		sheet.ShapeScore(), sheet.MockRatio())
	return sheet
}

// classify picks the assertion kind by configured precedence.
func (e *Extractor) classify(text string) types.AssertionKind {
	for _, kind := range kindOrder {
		if matchAny(e.kinds[kind], text) {
			return kind
		}
	}
	return types.AssertValueEquality
}

// callSites collects calls reachable from one statement subtree, skipping the
// assertion harness itself.
func (e *Extractor) callSites(f *adapter.File, stmt *sitter.Node, sut string, mockedVars map[string]struct{}) []types.CallSite {
	var sites []types.CallSite

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "call_expression", "call", "macro_invocation":
			callee := calleeText(f, n)
			if callee != "" && !matchAny(e.assertCalls, callee+"(") {
				root := rootIdentifier(callee)
				_, viaMock := mockedVars[root]
				mocked := viaMock || matchAny(e.mocks, callee)
				boundary := matchAny(e.boundary, callee) || matchAny(e.boundary, root)
				sites = append(sites, types.CallSite{
					Target:          callee,
					Module:          moduleOf(callee),
					Line:            int(n.StartPoint().Row) + 1,
					Mocked:          mocked,
					Boundary:        boundary,
					SystemUnderTest: sut != "" && strings.Contains(strings.ToLower(callee), sut),
				})
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(stmt)
	return sites
}

func calleeText(f *adapter.File, call *sitter.Node) string {
	if fn := call.ChildByFieldName("function"); fn != nil {
		return f.Text(fn)
	}
	if mac := call.ChildByFieldName("macro"); mac != nil {
		return f.Text(mac) + "!"
	}
	return ""
}

// moduleOf attributes a call target to a top-level module qualifier:
// billing.invoice.compute -> billing, storage::disk::write -> storage.
func moduleOf(callee string) string {
	callee = strings.TrimLeft(callee, "!&*")
	var sep string
	switch {
	case strings.Contains(callee, "::"):
		sep = "::"
	case strings.Contains(callee, "."):
		sep = "."
	default:
		return ""
	}
	head := strings.SplitN(callee, sep, 2)[0]
	if head == "" || !isIdent(head) {
		return ""
	}
	return strings.ToLower(head)
}

func rootIdentifier(callee string) string {
	end := len(callee)
	for i, r := range callee {
		if !(r == '_' || 'a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9' && i > 0) {
			end = i
			break
		}
	}
	return callee[:end]
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || 'a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' {
			continue
		}
		if '0' <= r && r <= '9' && i > 0 {
			continue
		}
		return false
	}
	return true
}

// sutStem derives the production symbol stem a test file is named after:
// test_invoice.py -> invoice, parser_test.go -> parser.
func sutStem(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.TrimSuffix(base, ".test")
	base = strings.TrimSuffix(base, ".spec")
	base = strings.TrimPrefix(base, "test_")
	base = strings.TrimSuffix(base, "_test")
	return strings.ToLower(base)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
