package rules

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"testlint/internal/types"
)

// =============================================================================
// shape-only-test
// =============================================================================

// ShapeOnlyTest fires when every assertion in a unit is a shape check: the
// test would pass against a dummy object exposing the right attributes.
type ShapeOnlyTest struct{}

func (ShapeOnlyTest) ID() string                      { return "shape-only-test" }
func (ShapeOnlyTest) DefaultSeverity() types.Severity { return types.SeverityError }

func (r ShapeOnlyTest) Evaluate(sheet *types.FactSheet, unit *types.TestUnit, repo *RepoContext) []types.Finding {
	if len(sheet.Assertions) == 0 || sheet.ShapeScore() < 1.0 {
		return nil
	}
	if unit.HasTag(repo.Cfg.ShapeExemptTag) {
		return nil
	}
	return []types.Finding{finding(r, repo, unit,
		fmt.Sprintf("every assertion in %s only checks shape (types or attribute presence), not behavior", unit.Name),
		map[string]string{
			"shape_score": "1.00",
			"assertions":  fmt.Sprintf("%d", len(sheet.Assertions)),
			"aaa_shape":   fmt.Sprintf("%v", sheet.ArrangeActSeparated),
		})}
}

// =============================================================================
// over-mocking
// =============================================================================

// OverMocking fires when the mock ratio over non-boundary collaborators meets
// the configured threshold. Boundary collaborators (clock, randomness,
// filesystem, network) never count against a test.
type OverMocking struct{}

func (OverMocking) ID() string                      { return "over-mocking" }
func (OverMocking) DefaultSeverity() types.Severity { return types.SeverityWarning }

func (r OverMocking) Evaluate(sheet *types.FactSheet, unit *types.TestUnit, repo *RepoContext) []types.Finding {
	nonBoundary := 0
	for _, c := range sheet.Calls {
		if !c.Boundary {
			nonBoundary++
		}
	}
	if nonBoundary == 0 {
		return nil
	}
	ratio := sheet.MockRatio()
	threshold := repo.Cfg.Thresholds.MockRatio
	if ratio < threshold {
		return nil
	}
	return []types.Finding{finding(r, repo, unit,
		fmt.Sprintf("%s mocks %.0f%% of its non-boundary collaborators (threshold %.0f%%)", unit.Name, ratio*100, threshold*100),
		map[string]string{
			"mock_ratio":    fmt.Sprintf("%.2f", ratio),
			"threshold":     fmt.Sprintf("%.2f", threshold),
			"collaborators": fmt.Sprintf("%d", nonBoundary),
			"aaa_shape":     fmt.Sprintf("%v", sheet.ArrangeActSeparated),
		})}
}

// =============================================================================
// brittle-assertion
// =============================================================================

// BrittleAssertion fires on assertions that pin exact free-text error
// messages or output formatting without a contract tag.
type BrittleAssertion struct{}

func (BrittleAssertion) ID() string                      { return "brittle-assertion" }
func (BrittleAssertion) DefaultSeverity() types.Severity { return types.SeverityWarning }

var brittleCache sync.Map // language -> []*regexp.Regexp

func (r BrittleAssertion) Evaluate(sheet *types.FactSheet, unit *types.TestUnit, repo *RepoContext) []types.Finding {
	if unit.HasTag(repo.Cfg.ContractTag) {
		return nil
	}
	lc, ok := repo.Cfg.Language(unit.Language)
	if !ok {
		return nil
	}

	var patterns []*regexp.Regexp
	if cached, ok := brittleCache.Load(unit.Language); ok {
		patterns = cached.([]*regexp.Regexp)
	} else {
		for _, p := range lc.BrittlePatterns {
			if re, err := regexp.Compile(p); err == nil {
				patterns = append(patterns, re)
			}
		}
		brittleCache.Store(unit.Language, patterns)
	}

	minLen := repo.Cfg.Thresholds.BrittleMinLength
	var out []types.Finding
	for _, a := range sheet.Assertions {
		if a.Kind != types.AssertValueEquality && a.Kind != types.AssertStateCheck {
			continue
		}
		if !longLiteral(a.Text, minLen) {
			continue
		}
		for _, re := range patterns {
			if re.MatchString(a.Text) {
				f := finding(r, repo, unit,
					fmt.Sprintf("%s compares exact message text; pin a contract tag or assert on structured fields", unit.Name),
					map[string]string{"assertion": a.Text})
				f.StartLine, f.EndLine = a.Line, a.Line
				out = append(out, f)
				break
			}
		}
	}
	return out
}

// longLiteral reports whether the text contains a quoted literal of at least
// minLen characters with interior whitespace, the signature of free text
// rather than a token or enum value.
func longLiteral(text string, minLen int) bool {
	for _, q := range []byte{'"', '\''} {
		start := -1
		for i := 0; i < len(text); i++ {
			if text[i] != q {
				continue
			}
			if start < 0 {
				start = i + 1
				continue
			}
			lit := text[start:i]
			if len(lit) >= minLen && strings.ContainsAny(lit, " \t") {
				return true
			}
			start = -1
		}
	}
	return false
}

// =============================================================================
// missing-arrange-act-assert
// =============================================================================

// MissingArrangeActAssert fires when a long test body lacks the
// arrange/act/assert shape. Short tests are exempt: a one-line state check is
// not penalized for lacking explicit structure.
type MissingArrangeActAssert struct{}

func (MissingArrangeActAssert) ID() string                      { return "missing-arrange-act-assert" }
func (MissingArrangeActAssert) DefaultSeverity() types.Severity { return types.SeverityInfo }

func (r MissingArrangeActAssert) Evaluate(sheet *types.FactSheet, unit *types.TestUnit, repo *RepoContext) []types.Finding {
	if sheet.ArrangeActSeparated || sheet.Statements <= repo.Cfg.Thresholds.AAAMinStatements {
		return nil
	}
	return []types.Finding{finding(r, repo, unit,
		fmt.Sprintf("%s has %d statements without a recognizable arrange/act/assert shape", unit.Name, sheet.Statements),
		map[string]string{
			"statements": fmt.Sprintf("%d", sheet.Statements),
			"threshold":  fmt.Sprintf("%d", repo.Cfg.Thresholds.AAAMinStatements),
		})}
}

// =============================================================================
// naming-intent
// =============================================================================

// NamingIntent fires when a unit's name does not follow the configured
// behavior_condition_expected convention.
type NamingIntent struct{}

func (NamingIntent) ID() string                      { return "naming-intent" }
func (NamingIntent) DefaultSeverity() types.Severity { return types.SeverityWarning }

var namingCache sync.Map // pattern -> *regexp.Regexp

func (r NamingIntent) Evaluate(sheet *types.FactSheet, unit *types.TestUnit, repo *RepoContext) []types.Finding {
	lc, ok := repo.Cfg.Language(unit.Language)
	if !ok || lc.NamingPattern == "" {
		return nil
	}

	var re *regexp.Regexp
	if cached, ok := namingCache.Load(lc.NamingPattern); ok {
		re = cached.(*regexp.Regexp)
	} else {
		var err error
		re, err = regexp.Compile(lc.NamingPattern)
		if err != nil {
			return nil
		}
		namingCache.Store(lc.NamingPattern, re)
	}

	normalized := snakeCase(trimTestAffixes(unit.Name))
	if re.MatchString(normalized) {
		return nil
	}
	return []types.Finding{finding(r, repo, unit,
		fmt.Sprintf("%s does not state behavior, condition and expected outcome", unit.Name),
		map[string]string{"name": unit.Name, "normalized": normalized})}
}

func trimTestAffixes(name string) string {
	name = strings.TrimPrefix(name, "Test")
	name = strings.TrimPrefix(name, "test_")
	name = strings.TrimPrefix(name, "test ")
	return name
}

// snakeCase lowers CamelCase and space-separated names to snake_case so one
// naming pattern serves every language convention.
func snakeCase(name string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range name {
		switch {
		case unicode.IsUpper(r):
			if prevLower {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			prevLower = false
		case r == ' ' || r == '-':
			b.WriteByte('_')
			prevLower = false
		default:
			b.WriteRune(r)
			prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
		}
	}
	return b.String()
}
