// Package types provides shared type definitions used across testlint packages.
// This package exists to break import cycles between adapter, facts, rules and
// report. Types in this package should be foundational data structures with no
// complex dependencies.
package types

import (
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// SEVERITY
// =============================================================================

// Severity is the reporting level of a Finding.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Rank orders severities for threshold comparison. Higher is worse.
func (s Severity) Rank() int {
	switch s {
	case SeverityError:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	}
	return 0
}

// ParseSeverity normalizes a user-supplied severity string.
func ParseSeverity(v string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "info":
		return SeverityInfo, nil
	case "warn", "warning":
		return SeverityWarning, nil
	case "error":
		return SeverityError, nil
	}
	return "", fmt.Errorf("unknown severity %q (want info, warning or error)", v)
}

// =============================================================================
// FACT SHEET
// =============================================================================

// AssertionKind classifies what an assertion statement actually checks.
type AssertionKind string

const (
	AssertValueEquality      AssertionKind = "value-equality"
	AssertStateCheck         AssertionKind = "state-check"
	AssertTypeCheck          AssertionKind = "type-check"
	AssertAttributeExistence AssertionKind = "attribute-existence"
	AssertErrorCheck         AssertionKind = "error-check"
)

// ShapeOnly reports whether the kind would pass against a dummy object that
// merely exposes the right attributes.
func (k AssertionKind) ShapeOnly() bool {
	return k == AssertTypeCheck || k == AssertAttributeExistence
}

// Assertion is one classified assertion statement inside a test body.
type Assertion struct {
	Kind AssertionKind `json:"kind"`
	Text string        `json:"text"`
	Line int           `json:"line"`

	// SubjectIsRealComputation is true when the asserted expression reaches a
	// call to a non-mocked target.
	SubjectIsRealComputation bool `json:"subject_is_real_computation"`
}

// CallSite is one call reachable from a test body.
type CallSite struct {
	Target string `json:"target"`
	// Module is the top-level production module the target belongs to, or ""
	// when the target cannot be attributed to one.
	Module string `json:"module,omitempty"`
	Line   int    `json:"line"`

	Mocked bool `json:"mocked"`
	// Boundary marks true I/O collaborators (clock, randomness, filesystem,
	// network) which are expected to be mocked without penalty.
	Boundary        bool `json:"boundary"`
	SystemUnderTest bool `json:"system_under_test"`
}

// FactSheet is the derived, immutable summary of a single test unit.
// Re-analysis produces a new FactSheet, never an in-place edit.
type FactSheet struct {
	Unit       string      `json:"unit"`
	Assertions []Assertion `json:"assertions"`
	Calls      []CallSite  `json:"calls"`

	// ArrangeActSeparated is the arrange/act/assert heuristic flag. Absence
	// downgrades confidence of other heuristics; it is evidence, not a verdict.
	ArrangeActSeparated bool `json:"arrange_act_separated"`

	Statements int `json:"statements"`

	// Incomplete marks extraction that gave up on part of the body.
	Incomplete bool `json:"incomplete"`
}

// ShapeScore is the fraction of assertions that only check shape
// (type-check + attribute-existence over total). Zero assertions score 0.
func (f *FactSheet) ShapeScore() float64 {
	if len(f.Assertions) == 0 {
		return 0
	}
	shape := 0
	for _, a := range f.Assertions {
		if a.Kind.ShapeOnly() {
			shape++
		}
	}
	return float64(shape) / float64(len(f.Assertions))
}

// MockRatio is the fraction of mocked call sites among non-boundary
// collaborators. Boundary collaborators are excluded entirely; with no
// non-boundary collaborators the ratio is 0.
func (f *FactSheet) MockRatio() float64 {
	total, mocked := 0, 0
	for _, c := range f.Calls {
		if c.Boundary {
			continue
		}
		total++
		if c.Mocked {
			mocked++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(mocked) / float64(total)
}

// RealModules returns the sorted set of top-level production modules touched
// by real (non-mocked) call sites. Used for E2E scope inference.
func (f *FactSheet) RealModules() []string {
	set := map[string]struct{}{}
	for _, c := range f.Calls {
		if c.Mocked || c.Boundary || c.Module == "" {
			continue
		}
		set[c.Module] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// =============================================================================
// TEST UNIT
// =============================================================================

// TestUnit identifies one recognized test function/method. The syntax tree it
// came from is owned by the adapter invocation and is not retained here.
type TestUnit struct {
	Name          string   `json:"name"`
	QualifiedName string   `json:"qualified_name"`
	File          string   `json:"file"`
	Language      string   `json:"language"`
	Tags          []string `json:"tags,omitempty"`
	Docstring     string   `json:"-"`
	StartLine     int      `json:"line_start"`
	EndLine       int      `json:"line_end"`
}

// HasTag reports whether the unit carries the given tag (case-insensitive).
func (u *TestUnit) HasTag(tag string) bool {
	for _, t := range u.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// =============================================================================
// DOCSTRING
// =============================================================================

// CodeRef is a reference from a docstring to production code.
// Wire syntax: path::Symbol with an optional :start-end line range.
type CodeRef struct {
	Path      string `json:"path"`
	Symbol    string `json:"symbol"`
	StartLine int    `json:"line_start,omitempty"`
	EndLine   int    `json:"line_end,omitempty"`
}

func (r CodeRef) String() string {
	if r.StartLine > 0 {
		return fmt.Sprintf("%s::%s:%d-%d", r.Path, r.Symbol, r.StartLine, r.EndLine)
	}
	return fmt.Sprintf("%s::%s", r.Path, r.Symbol)
}

// Docstring is the parsed form of a test unit's documentation. Standard and
// regression templates share the struct; the validator decides which field set
// is required.
type Docstring struct {
	Summary            string
	Validates          string
	Regression         string
	Reference          string
	RawRefs            []string
	CodeRefs           []CodeRef
	AssertionStatement string
	MethodSteps        []string
	Related            []string
}

// IsRegression reports whether the regression template applies.
func (d *Docstring) IsRegression() bool {
	return d.Regression != "" || d.Reference != ""
}

// =============================================================================
// FINDING
// =============================================================================

// Finding is one reported rule violation or informational signal. Findings are
// immutable once emitted and append-only within a run.
type Finding struct {
	RuleID    string            `json:"rule_id"`
	Severity  Severity          `json:"severity"`
	File      string            `json:"file"`
	StartLine int               `json:"line_start"`
	EndLine   int               `json:"line_end"`
	Message   string            `json:"message"`
	Evidence  map[string]string `json:"evidence,omitempty"`
}

// Key identifies a Finding for deduplication.
func (f Finding) Key() string {
	return fmt.Sprintf("%s|%s|%d-%d|%s", f.RuleID, f.File, f.StartLine, f.EndLine, f.Message)
}
