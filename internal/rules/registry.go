// Package rules evaluates fact sheets against the canonical test-quality
// rules. Each rule is a pure, order-independent evaluator; the registry lets
// new rules plug in without touching existing ones.
package rules

import (
	"fmt"
	"sort"
	"sync"

	"testlint/internal/config"
	"testlint/internal/types"
)

// RepoContext is the repository-level context rules may consult. It is
// read-only during evaluation.
type RepoContext struct {
	Root string
	Cfg  *config.Config

	// Symbols maps repo-relative file path -> symbol name -> line.
	Symbols map[string]map[string]int

	// ModuleDirs maps top-level production module name -> directory.
	ModuleDirs map[string]string
}

// Rule is one pluggable evaluator over a unit's FactSheet.
type Rule interface {
	ID() string
	DefaultSeverity() types.Severity
	Evaluate(sheet *types.FactSheet, unit *types.TestUnit, repo *RepoContext) []types.Finding
}

// Registry manages rule evaluators, keyed by rule ID.
type Registry struct {
	mu    sync.RWMutex
	rules map[string]Rule
}

// DefaultRegistry holds the canonical rules.
var DefaultRegistry = NewRegistry()

// NewRegistry creates a registry with the canonical rules registered.
func NewRegistry() *Registry {
	r := &Registry{rules: make(map[string]Rule)}
	r.Register(ShapeOnlyTest{})
	r.Register(OverMocking{})
	r.Register(BrittleAssertion{})
	r.Register(MissingArrangeActAssert{})
	r.Register(NamingIntent{})
	return r
}

// Register adds a rule to the registry.
func (r *Registry) Register(rule Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[rule.ID()] = rule
}

// All returns every registered rule in lexical ID order.
func (r *Registry) All() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Enabled returns the rules active for this run: those enabled in config,
// optionally narrowed to an explicit ID list. Unknown IDs in the narrow list
// are an error so typos do not silently disable gating.
func (r *Registry) Enabled(cfg *config.Config, only []string) ([]Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	narrow := map[string]bool{}
	for _, id := range only {
		if _, ok := r.rules[id]; !ok {
			return nil, fmt.Errorf("unknown rule %q", id)
		}
		narrow[id] = true
	}

	var out []Rule
	for _, rule := range r.rules {
		if len(narrow) > 0 && !narrow[rule.ID()] {
			continue
		}
		if !cfg.RuleEnabled(rule.ID()) {
			continue
		}
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

// finding builds a Finding for a rule against a unit, applying any configured
// severity override.
func finding(rule Rule, repo *RepoContext, unit *types.TestUnit, msg string, evidence map[string]string) types.Finding {
	return types.Finding{
		RuleID:    rule.ID(),
		Severity:  repo.Cfg.RuleSeverity(rule.ID(), rule.DefaultSeverity()),
		File:      unit.File,
		StartLine: unit.StartLine,
		EndLine:   unit.EndLine,
		Message:   msg,
		Evidence:  evidence,
	}
}
