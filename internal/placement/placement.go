// Package placement validates test file discoverability conventions: unit
// tests co-located with the code they exercise, E2E tests in the directory
// tier matching their actual scope. Policy is a set of configurable globs,
// not hard-coded layout assumptions.
package placement

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"testlint/internal/config"
	"testlint/internal/types"
)

// Rule IDs emitted by the checker.
const (
	RuleUnitMisplaced = "unit-test-misplaced"
	RuleE2EMisscoped  = "e2e-test-misscoped"
)

// Role is the placement tier a test file's path claims.
type Role int

const (
	RoleNone Role = iota
	RoleUnit
	RoleE2EModule
	RoleE2EProject
)

// Checker validates placement against the configured discovery policy.
type Checker struct {
	cfg *config.Config
}

// New creates a placement checker.
func New(cfg *config.Config) *Checker {
	return &Checker{cfg: cfg}
}

func matchAnyGlob(globs []string, rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, g := range globs {
		if ok, err := doublestar.Match(g, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// Ignored reports whether discovery skips this path entirely.
func (c *Checker) Ignored(rel string) bool {
	return matchAnyGlob(c.cfg.Placement.IgnoreGlobs, rel)
}

// Classify maps a repo-relative path to its claimed tier. E2E globs win over
// unit globs since E2E directories usually also match unit test naming.
func (c *Checker) Classify(rel string) Role {
	switch {
	case matchAnyGlob(c.cfg.Placement.ProjectE2EGlobs, rel):
		return RoleE2EProject
	case matchAnyGlob(c.cfg.Placement.ModuleE2EGlobs, rel):
		return RoleE2EModule
	case matchAnyGlob(c.cfg.Placement.UnitGlobs, rel):
		return RoleUnit
	}
	return RoleNone
}

// Check validates one unit's placement. moduleDirs maps top-level production
// module names to their directories, built from the repo's production files.
func (c *Checker) Check(unit *types.TestUnit, sheet *types.FactSheet, moduleDirs map[string]string) []types.Finding {
	role := c.Classify(unit.File)

	emit := func(ruleID, msg string, evidence map[string]string) []types.Finding {
		if !c.cfg.RuleEnabled(ruleID) {
			return nil
		}
		return []types.Finding{{
			RuleID:    ruleID,
			Severity:  c.cfg.RuleSeverity(ruleID, types.SeverityWarning),
			File:      unit.File,
			StartLine: unit.StartLine,
			EndLine:   unit.EndLine,
			Message:   msg,
			Evidence:  evidence,
		}}
	}

	switch role {
	case RoleUnit:
		if !c.cfg.Placement.UnitColocated {
			return nil
		}
		target, dir := targetModule(unit, sheet, moduleDirs)
		if target == "" {
			return nil // cannot attribute the unit to a production module
		}
		actualDir := filepath.ToSlash(filepath.Dir(unit.File))
		if actualDir == dir {
			return nil
		}
		return emit(RuleUnitMisplaced,
			fmt.Sprintf("unit test for module %s is at %s; expected beside the module at %s", target, unit.File, dir),
			map[string]string{"module": target, "actual": unit.File, "expected": dir})

	case RoleE2EModule, RoleE2EProject:
		scope := knownModules(sheet, moduleDirs)
		if len(scope) == 0 {
			return nil
		}
		if role == RoleE2EModule && len(scope) > 1 {
			return emit(RuleE2EMisscoped,
				fmt.Sprintf("%s touches %d production modules but sits in a module-level e2e directory", unit.Name, len(scope)),
				map[string]string{"modules": strings.Join(scope, ","), "tier": "module"})
		}
		if role == RoleE2EProject && len(scope) == 1 {
			return emit(RuleE2EMisscoped,
				fmt.Sprintf("%s only touches module %s; it belongs in that module's e2e directory", unit.Name, scope[0]),
				map[string]string{"modules": scope[0], "tier": "project"})
		}
	}
	return nil
}

// targetModule infers which production module a unit test exercises: the
// file-name stem first, then modules touched by real call sites.
func targetModule(unit *types.TestUnit, sheet *types.FactSheet, moduleDirs map[string]string) (string, string) {
	if stem := fileStem(unit.File); stem != "" {
		if dir, ok := moduleDirs[stem]; ok {
			return stem, dir
		}
	}
	var candidates []string
	for _, m := range sheet.RealModules() {
		if _, ok := moduleDirs[m]; ok {
			candidates = append(candidates, m)
		}
	}
	sort.Strings(candidates)
	for _, m := range candidates {
		return m, moduleDirs[m]
	}
	return "", ""
}

// knownModules filters the sheet's real modules down to ones the repository
// actually defines, so external library qualifiers do not widen E2E scope.
func knownModules(sheet *types.FactSheet, moduleDirs map[string]string) []string {
	var out []string
	for _, m := range sheet.RealModules() {
		if _, ok := moduleDirs[m]; ok {
			out = append(out, m)
		}
	}
	return out
}

func fileStem(file string) string {
	base := path.Base(filepath.ToSlash(file))
	base = strings.TrimSuffix(base, path.Ext(base))
	base = strings.TrimSuffix(base, ".test")
	base = strings.TrimSuffix(base, ".spec")
	base = strings.TrimPrefix(base, "test_")
	base = strings.TrimSuffix(base, "_test")
	return strings.ToLower(base)
}
