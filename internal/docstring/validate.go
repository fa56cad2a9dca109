package docstring

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"testlint/internal/config"
	"testlint/internal/types"
)

// Rule IDs emitted by the validator. They share the rule severity-override
// mechanism even though they live outside the fact-sheet rule registry.
const (
	RuleMissingFields     = "docstring-missing-required-fields"
	RuleCodeRefUnresolved = "coderef-unresolved"
	RuleStyleViolation    = "style-violation"
	RuleLanguageViolation = "language-violation"
)

// SymbolIndex maps repo-relative file path -> symbol name -> line.
type SymbolIndex map[string]map[string]int

// Validate checks a unit's docstring against the approved templates. Missing
// required fields are an error; unresolved code references, emoji and
// non-English text are soft warnings, since code moves and heuristics miss.
func Validate(cfg *config.Config, unit *types.TestUnit, symbols SymbolIndex) []types.Finding {
	var out []types.Finding
	emit := func(ruleID string, def types.Severity, msg string, evidence map[string]string) {
		if !cfg.RuleEnabled(ruleID) {
			return
		}
		out = append(out, types.Finding{
			RuleID:    ruleID,
			Severity:  cfg.RuleSeverity(ruleID, def),
			File:      unit.File,
			StartLine: unit.StartLine,
			EndLine:   unit.EndLine,
			Message:   msg,
			Evidence:  evidence,
		})
	}

	d := Parse(unit.Docstring)

	if missing := missingFields(d); len(missing) > 0 {
		template := "standard"
		if d.IsRegression() {
			template = "regression"
		}
		msg := fmt.Sprintf("%s docstring is missing required fields: %s", template, strings.Join(missing, ", "))
		if strings.TrimSpace(unit.Docstring) == "" {
			msg = fmt.Sprintf("%s has no docstring; the %s template requires %s", unit.Name, template, strings.Join(missing, ", "))
		}
		emit(RuleMissingFields, types.SeverityError, msg, map[string]string{"missing": strings.Join(missing, ",")})
	}

	for _, raw := range d.RawRefs {
		ref, ok := ParseCodeRef(raw)
		if !ok {
			emit(RuleMissingFields, types.SeverityError,
				fmt.Sprintf("code reference %q is malformed; want path::Symbol with optional :start-end", raw),
				map[string]string{"ref": raw})
			continue
		}
		if !resolves(ref, symbols) {
			emit(RuleCodeRefUnresolved, types.SeverityWarning,
				fmt.Sprintf("code reference %s does not resolve to a known symbol", ref),
				map[string]string{"ref": ref.String()})
		}
	}

	if r, ok := firstEmoji(unit.Docstring); ok {
		emit(RuleStyleViolation, types.SeverityWarning,
			fmt.Sprintf("docstring contains emoji %q; documentation must be plain text", r),
			nil)
	}

	if strings.TrimSpace(unit.Docstring) != "" && !looksEnglish(unit.Docstring) {
		emit(RuleLanguageViolation, types.SeverityWarning,
			"docstring does not appear to be written in English", nil)
	}

	return out
}

// missingFields returns the absent required fields for whichever template the
// docstring selects, sorted for stable messages.
func missingFields(d *types.Docstring) []string {
	var missing []string
	require := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}

	require("summary", d.Summary)
	require("asserts", d.AssertionStatement)
	if len(d.RawRefs) == 0 {
		missing = append(missing, "refs")
	}

	if d.IsRegression() {
		require("regression", d.Regression)
		require("reference", d.Reference)
	} else {
		require("validates", d.Validates)
		if len(d.MethodSteps) == 0 {
			missing = append(missing, "steps")
		}
	}

	sort.Strings(missing)
	return missing
}

func resolves(ref types.CodeRef, symbols SymbolIndex) bool {
	fileSyms, ok := symbols[ref.Path]
	if !ok {
		return false
	}
	// Dotted symbols (Class.method) resolve on their head.
	head := strings.SplitN(ref.Symbol, ".", 2)[0]
	if _, ok := fileSyms[ref.Symbol]; ok {
		return true
	}
	_, ok = fileSyms[head]
	return ok
}

// firstEmoji finds the first emoji-range rune in the text.
func firstEmoji(text string) (rune, bool) {
	for _, r := range text {
		switch {
		case r >= 0x1F300 && r <= 0x1FAFF, // pictographs, transport, supplemental
			r >= 0x2600 && r <= 0x27BF, // misc symbols, dingbats
			r == 0x2B50, r == 0x2705, r == 0x274C, r == 0xFE0F:
			return r, true
		}
	}
	return 0, false
}

// englishFunctionWords is the small closed-class vocabulary the language
// heuristic looks for. A soft signal, never a proof.
var englishFunctionWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "is": {}, "are": {}, "was": {}, "of": {},
	"to": {}, "with": {}, "for": {}, "and": {}, "or": {}, "not": {}, "that": {},
	"when": {}, "then": {}, "should": {}, "returns": {}, "return": {}, "if": {},
	"on": {}, "in": {}, "it": {}, "this": {}, "from": {}, "by": {}, "as": {},
}

// looksEnglish fails only when the text is non-ASCII-heavy AND contains no
// recognized English function word.
func looksEnglish(text string) bool {
	letters, nonASCII := 0, 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if r > unicode.MaxASCII {
				nonASCII++
			}
		}
	}
	if letters == 0 {
		return true
	}
	if float64(nonASCII)/float64(letters) < 0.3 {
		return true
	}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:()[]{}\"'")
		if _, ok := englishFunctionWords[w]; ok {
			return true
		}
	}
	return false
}
