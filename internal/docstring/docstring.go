// Package docstring parses test documentation against the two approved
// templates (standard and regression) and validates field completeness,
// code-reference syntax and style.
//
// Standard template fields: summary, Validates, Refs, Asserts, Steps,
// optional Related. Regression template: summary, Regression, Reference,
// Refs, Asserts. The regression template is selected by the presence of a
// Regression or Reference field.
package docstring

import (
	"regexp"
	"strconv"
	"strings"

	"testlint/internal/types"
)

// Field labels. Matching is case-insensitive on the label.
var fieldLabels = map[string]string{
	"validates":  "validates",
	"regression": "regression",
	"reference":  "reference",
	"refs":       "refs",
	"code":       "refs",
	"asserts":    "asserts",
	"steps":      "steps",
	"related":    "related",
}

var labelRe = regexp.MustCompile(`^([A-Za-z]+):\s*(.*)$`)

// Parse splits a raw docstring into its labeled fields. The leading unlabeled
// paragraph is the summary. Unknown labels are ignored rather than rejected;
// the validator decides completeness.
func Parse(text string) *types.Docstring {
	d := &types.Docstring{}
	if strings.TrimSpace(text) == "" {
		return d
	}

	current := "summary"
	var summary []string

	flushInto := func(field, value string) {
		value = strings.TrimSpace(value)
		switch field {
		case "summary":
			if value != "" {
				summary = append(summary, value)
			}
		case "validates":
			d.Validates = join(d.Validates, value)
		case "regression":
			d.Regression = join(d.Regression, value)
		case "reference":
			d.Reference = join(d.Reference, value)
		case "asserts":
			d.AssertionStatement = join(d.AssertionStatement, value)
		case "refs":
			for _, ref := range splitList(value) {
				d.RawRefs = append(d.RawRefs, ref)
			}
		case "steps":
			if v := strings.TrimPrefix(value, "- "); v != "" {
				d.MethodSteps = append(d.MethodSteps, v)
			}
		case "related":
			for _, rel := range splitList(value) {
				d.Related = append(d.Related, rel)
			}
		}
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if m := labelRe.FindStringSubmatch(trimmed); m != nil {
			if field, ok := fieldLabels[strings.ToLower(m[1])]; ok {
				current = field
				flushInto(current, m[2])
				continue
			}
		}
		flushInto(current, trimmed)
	}

	d.Summary = strings.Join(summary, " ")

	for _, raw := range d.RawRefs {
		if ref, ok := ParseCodeRef(raw); ok {
			d.CodeRefs = append(d.CodeRefs, ref)
		}
	}
	return d
}

func join(existing, more string) string {
	if more == "" {
		return existing
	}
	if existing == "" {
		return more
	}
	return existing + " " + more
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ' ' }) {
		part = strings.TrimSpace(strings.TrimPrefix(part, "-"))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

var codeRefRe = regexp.MustCompile(`^([\w./\-]+)::([\w.]+)(?::(\d+)-(\d+))?$`)

// ParseCodeRef parses path::Symbol with an optional :start-end line range.
func ParseCodeRef(raw string) (types.CodeRef, bool) {
	m := codeRefRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return types.CodeRef{}, false
	}
	ref := types.CodeRef{Path: m[1], Symbol: m[2]}
	if m[3] != "" {
		ref.StartLine, _ = strconv.Atoi(m[3])
		ref.EndLine, _ = strconv.Atoi(m[4])
		if ref.EndLine < ref.StartLine {
			return types.CodeRef{}, false
		}
	}
	return ref, true
}
