package adapter

import (
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"testlint/internal/config"
	"testlint/internal/logging"
	"testlint/internal/types"
)

// Unit is a recognized test unit plus its body node. Body is only valid while
// the owning File is open; it is consumed during fact extraction and never
// retained.
type Unit struct {
	types.TestUnit
	Body *sitter.Node
}

var tagDirective = regexp.MustCompile(`testlint:tags\s+([\w, -]+)`)

// ExtractTestUnits identifies test units in a parsed file using the
// language's configured recognition patterns. Recognition policy is data from
// RuleConfig, not hard-coded convention.
func (a *Adapter) ExtractTestUnits(f *File, lc config.LanguageConfig) ([]*Unit, error) {
	nameRe, err := regexp.Compile(lc.TestNamePattern)
	if err != nil {
		return nil, fmt.Errorf("test_name_pattern for %s: %w", f.Language, err)
	}

	suiteTags := fileTags(f)
	var units []*Unit

	var walk func(n *sitter.Node, enclosing string)
	walk = func(n *sitter.Node, enclosing string) {
		switch n.Type() {
		case "function_declaration", "method_declaration", "function_definition", "function_item":
			if u := a.unitFromFunction(f, n, lc, nameRe, enclosing); u != nil {
				u.Tags = append(u.Tags, suiteTags...)
				units = append(units, u)
				return
			}
		case "call_expression":
			// JS/TS harness style: test("name", () => { ... }) / it(...).
			if u := a.unitFromHarnessCall(f, n, lc); u != nil {
				u.Tags = append(u.Tags, suiteTags...)
				units = append(units, u)
				return
			}
		case "class_definition", "class_declaration":
			name := ""
			if nn := n.ChildByFieldName("name"); nn != nil {
				name = f.Text(nn)
			}
			for i := 0; i < int(n.ChildCount()); i++ {
				walk(n.Child(i), name)
			}
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i), enclosing)
		}
	}
	walk(f.Root(), "")

	logging.Adapter("extracted %d test unit(s) from %s", len(units), f.Path)
	return units, nil
}

// unitFromFunction recognizes a named function/method as a test unit by name
// pattern or marker annotation.
func (a *Adapter) unitFromFunction(f *File, n *sitter.Node, lc config.LanguageConfig, nameRe *regexp.Regexp, enclosing string) *Unit {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := f.Text(nameNode)

	markers := precedingMarkers(f, n)
	if !nameRe.MatchString(name) && !matchesMarker(markers, lc.TestMarkers) {
		return nil
	}

	body := n.ChildByFieldName("body")
	if body == nil {
		return nil
	}

	qualified := name
	if enclosing != "" {
		qualified = enclosing + "." + name
	}
	if recv := n.ChildByFieldName("receiver"); recv != nil {
		qualified = strings.Trim(f.Text(recv), "()") + "." + name
	}

	doc := docstringFor(f, n, body)
	tags := collectTags(doc, markers)

	return &Unit{
		TestUnit: types.TestUnit{
			Name:          name,
			QualifiedName: qualified,
			File:          f.Path,
			Language:      f.Language,
			Tags:          tags,
			Docstring:     doc,
			StartLine:     int(n.StartPoint().Row) + 1,
			EndLine:       int(n.EndPoint().Row) + 1,
		},
		Body: body,
	}
}

// unitFromHarnessCall recognizes test("name", fn) style units.
func (a *Adapter) unitFromHarnessCall(f *File, n *sitter.Node, lc config.LanguageConfig) *Unit {
	fn := n.ChildByFieldName("function")
	args := n.ChildByFieldName("arguments")
	if fn == nil || args == nil {
		return nil
	}
	callee := f.Text(fn)
	if !matchesMarker([]string{callee}, lc.TestMarkers) {
		return nil
	}

	var name string
	var body *sitter.Node
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		switch arg.Type() {
		case "string":
			if name == "" {
				name = strings.Trim(f.Text(arg), `"'`+"`")
			}
		case "arrow_function", "function", "function_expression":
			if b := arg.ChildByFieldName("body"); b != nil {
				body = b
			}
		}
	}
	if name == "" || body == nil {
		return nil
	}

	doc := docstringFor(f, n, nil)
	return &Unit{
		TestUnit: types.TestUnit{
			Name:          name,
			QualifiedName: name,
			File:          f.Path,
			Language:      f.Language,
			Tags:          collectTags(doc, nil),
			Docstring:     doc,
			StartLine:     int(n.StartPoint().Row) + 1,
			EndLine:       int(n.EndPoint().Row) + 1,
		},
		Body: body,
	}
}

// precedingMarkers gathers decorator/attribute/comment text immediately before
// a declaration: python decorators, rust attribute items, plus any adjacent
// comment lines.
func precedingMarkers(f *File, n *sitter.Node) []string {
	var markers []string

	// Python wraps decorated functions in decorated_definition.
	if p := n.Parent(); p != nil && p.Type() == "decorated_definition" {
		for i := 0; i < int(p.NamedChildCount()); i++ {
			c := p.NamedChild(i)
			if c.Type() == "decorator" {
				markers = append(markers, f.Text(c))
			}
		}
	}

	for prev := n.PrevNamedSibling(); prev != nil; prev = prev.PrevNamedSibling() {
		switch prev.Type() {
		case "comment", "line_comment", "block_comment", "attribute_item":
			markers = append(markers, f.Text(prev))
		default:
			return markers
		}
	}
	return markers
}

func matchesMarker(candidates, markers []string) bool {
	for _, c := range candidates {
		for _, m := range markers {
			if m != "" && strings.Contains(c, m) {
				return true
			}
		}
	}
	return false
}

// docstringFor returns the documentation text of a unit: the leading string
// statement of a Python body, or the contiguous comment block right above the
// declaration for other languages.
func docstringFor(f *File, n *sitter.Node, body *sitter.Node) string {
	if f.Language == "python" && body != nil {
		if first := body.NamedChild(0); first != nil && first.Type() == "expression_statement" {
			if s := first.NamedChild(0); s != nil && s.Type() == "string" {
				return strings.Trim(f.Text(s), `"'`)
			}
		}
		return ""
	}

	target := n
	if p := n.Parent(); p != nil && p.Type() == "decorated_definition" {
		target = p
	}
	var lines []string
	for prev := target.PrevNamedSibling(); prev != nil; prev = prev.PrevNamedSibling() {
		t := prev.Type()
		if t != "comment" && t != "line_comment" && t != "block_comment" {
			break
		}
		lines = append([]string{stripCommentMarkers(f.Text(prev))}, lines...)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func stripCommentMarkers(text string) string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "///")
		line = strings.TrimPrefix(line, "//")
		line = strings.TrimPrefix(line, "/**")
		line = strings.TrimPrefix(line, "/*")
		line = strings.TrimSuffix(line, "*/")
		line = strings.TrimPrefix(strings.TrimSpace(line), "* ")
		out = append(out, strings.TrimSpace(line))
	}
	return strings.Join(out, "\n")
}

// collectTags merges testlint:tags directives from the docstring with tags
// implied by markers (pytest marks, rust attributes).
func collectTags(doc string, markers []string) []string {
	seen := map[string]struct{}{}
	var tags []string
	add := func(t string) {
		t = strings.TrimSpace(strings.ToLower(t))
		if t == "" {
			return
		}
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
	}

	for _, m := range append([]string{doc}, markers...) {
		if match := tagDirective.FindStringSubmatch(m); match != nil {
			for _, t := range strings.Split(match[1], ",") {
				add(t)
			}
		}
		if strings.Contains(m, "pytest.mark.") {
			rest := m[strings.Index(m, "pytest.mark.")+len("pytest.mark."):]
			fields := strings.FieldsFunc(rest, func(r rune) bool {
				return !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9' || r == '_' || r == '-')
			})
			if len(fields) > 0 {
				add(fields[0])
			}
		}
		if strings.HasPrefix(m, "#[ignore") {
			add("ignore")
		}
	}
	return tags
}

// fileTags returns suite-level tags declared in comments at the top of the
// file; they apply to every unit in the file.
func fileTags(f *File) []string {
	root := f.Root()
	var tags []string
	for i := 0; i < int(root.NamedChildCount()); i++ {
		c := root.NamedChild(i)
		t := c.Type()
		if t != "comment" && t != "line_comment" && t != "block_comment" && t != "expression_statement" {
			break
		}
		if match := tagDirective.FindStringSubmatch(f.Text(c)); match != nil {
			for _, tag := range strings.Split(match[1], ",") {
				tag = strings.TrimSpace(strings.ToLower(tag))
				if tag != "" {
					tags = append(tags, tag)
				}
			}
		}
	}
	return tags
}
