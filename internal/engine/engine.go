// Package engine orchestrates the analysis pipeline: discover files, parse
// and extract facts in parallel, then evaluate rules, docstrings and
// placement per unit. One bad file never aborts the run; only a ConfigError
// is fatal.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"testlint/internal/adapter"
	"testlint/internal/config"
	"testlint/internal/docstring"
	"testlint/internal/facts"
	"testlint/internal/logging"
	"testlint/internal/placement"
	"testlint/internal/report"
	"testlint/internal/rules"
	"testlint/internal/types"
)

// Engine runs the full pipeline for one repository root.
type Engine struct {
	cfg       *config.Config
	registry  *rules.Registry
	onlyRules []string
	log       *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger attaches a zap logger for diagnostics.
func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.log = l } }

// WithRules narrows evaluation to an explicit rule ID list.
func WithRules(ids []string) Option { return func(e *Engine) { e.onlyRules = ids } }

// New creates an engine over an immutable, already-validated config.
func New(cfg *config.Config, opts ...Option) *Engine {
	e := &Engine{cfg: cfg, registry: rules.DefaultRegistry, log: zap.NewNop()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// unitResult pairs a unit with its derived fact sheet.
type unitResult struct {
	unit  types.TestUnit
	sheet *types.FactSheet
}

// fileResult is everything phase 1 learned about one file. Findings are
// buffered per file and merged at the end; the aggregator re-sorts, so worker
// completion order never matters.
type fileResult struct {
	path     string
	units    []unitResult
	symbols  map[string]int
	findings []types.Finding
}

// Run analyzes the repository rooted at root and returns the aggregated
// report. Only configuration problems return an error.
func (e *Engine) Run(ctx context.Context, root string) (*report.Report, error) {
	enabled, err := e.registry.Enabled(e.cfg, e.onlyRules)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	parseTimeout, err := e.cfg.ParseTimeout()
	if err != nil {
		return nil, &ConfigError{Err: err}
	}

	checker := placement.New(e.cfg)
	files, err := e.discover(root, checker)
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", root, err)
	}
	e.log.Info("discovered files", zap.Int("count", len(files)), zap.String("root", root))
	logging.Engine("run start: %d candidate files under %s", len(files), root)

	jobs := e.cfg.Engine.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	// Phase 1: parse, extract units, facts and symbols. Results are
	// index-addressed so workers share nothing mutable.
	results := make([]*fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, rel := range files {
		i, rel := i, rel
		g.Go(func() error {
			results[i] = e.analyzeFile(gctx, root, rel, parseTimeout)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge the repository-level context.
	symbols := docstring.SymbolIndex{}
	moduleDirs := map[string]string{}
	var allUnits []unitResult
	var findings []types.Finding
	unitCount := 0
	for _, fr := range results {
		if fr == nil {
			continue
		}
		findings = append(findings, fr.findings...)
		if len(fr.symbols) > 0 {
			symbols[fr.path] = fr.symbols
		}
		if len(fr.units) == 0 && len(fr.symbols) > 0 {
			registerModule(moduleDirs, fr.path)
		}
		allUnits = append(allUnits, fr.units...)
		unitCount += len(fr.units)
	}

	repo := &rules.RepoContext{
		Root:       root,
		Cfg:        e.cfg,
		Symbols:    symbols,
		ModuleDirs: moduleDirs,
	}

	// Phase 2: evaluation. Pure rules over immutable fact sheets; any order.
	evalFindings := make([][]types.Finding, len(allUnits))
	g2, _ := errgroup.WithContext(ctx)
	g2.SetLimit(jobs)
	for i := range allUnits {
		i := i
		g2.Go(func() error {
			ur := allUnits[i]
			evalFindings[i] = e.evaluateUnit(enabled, checker, repo, ur)
			return nil
		})
	}
	if err := g2.Wait(); err != nil {
		return nil, err
	}
	for _, unitFindings := range evalFindings {
		findings = append(findings, unitFindings...)
	}

	cfgYAML, err := e.cfg.Marshal()
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	rep := report.Aggregate(root, report.Fingerprint(root, cfgYAML), len(files), unitCount, findings)
	logging.Engine("run done: %d findings over %d units", len(rep.Findings), unitCount)
	return rep, nil
}

// discover walks the repository and returns repo-relative paths of analyzable
// files, sorted for determinism.
func (e *Engine) discover(root string, checker *placement.Checker) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, rerr := filepath.Rel(root, path)
		if rerr != nil {
			return rerr
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel != "." && (strings.HasPrefix(d.Name(), ".") || checker.Ignored(rel+"/")) {
				return filepath.SkipDir
			}
			return nil
		}
		if config.LanguageForPath(path) == "" || checker.Ignored(rel) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// analyzeFile is phase 1 for one file. Parse failures and timeouts convert to
// findings, never run aborts.
func (e *Engine) analyzeFile(ctx context.Context, root, rel string, timeout time.Duration) *fileResult {
	fr := &fileResult{path: rel}
	lang := config.LanguageForPath(rel)

	content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		fr.findings = append(fr.findings, types.Finding{
			RuleID: RuleParseFailure, Severity: types.SeverityError, File: rel,
			StartLine: 1, EndLine: 1,
			Message: fmt.Sprintf("cannot read file: %v", err),
		})
		return fr
	}

	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	a := adapter.New()
	defer a.Close()

	parsed, err := a.Parse(pctx, rel, content, lang)
	if err != nil {
		ruleID := RuleParseFailure
		if errors.Is(pctx.Err(), context.DeadlineExceeded) {
			ruleID = RuleParseTimeout
		}
		fr.findings = append(fr.findings, types.Finding{
			RuleID: ruleID, Severity: types.SeverityError, File: rel,
			StartLine: 1, EndLine: 1,
			Message: fmt.Sprintf("file excluded from analysis: %v", err),
		})
		e.log.Warn("parse failed", zap.String("file", rel), zap.Error(err))
		return fr
	}
	defer parsed.Close()

	fr.symbols = map[string]int{}
	for _, s := range a.ExtractSymbols(parsed) {
		fr.symbols[s.Name] = s.Line
	}

	lc, ok := e.cfg.Language(lang)
	if !ok {
		return fr
	}
	units, err := a.ExtractTestUnits(parsed, lc)
	if err != nil {
		// Bad recognition pattern: a config problem reported once per file.
		fr.findings = append(fr.findings, types.Finding{
			RuleID: RuleParseFailure, Severity: types.SeverityError, File: rel,
			StartLine: 1, EndLine: 1,
			Message: fmt.Sprintf("test unit recognition failed: %v", err),
		})
		return fr
	}
	if len(units) == 0 {
		return fr
	}

	extractor, err := facts.NewExtractor(e.cfg, lang)
	if err != nil {
		fr.findings = append(fr.findings, types.Finding{
			RuleID: RuleParseFailure, Severity: types.SeverityError, File: rel,
			StartLine: 1, EndLine: 1,
			Message: fmt.Sprintf("fact extraction unavailable: %v", err),
		})
		return fr
	}

	for _, u := range units {
		sheet := extractor.Extract(parsed, u)
		if sheet.Incomplete {
			fr.findings = append(fr.findings, types.Finding{
				RuleID: RuleExtractionIncomplete, Severity: types.SeverityInfo, File: rel,
				StartLine: u.StartLine, EndLine: u.EndLine,
				Message: fmt.Sprintf("could not derive facts for %s; rule coverage is reduced", u.Name),
			})
		}
		fr.units = append(fr.units, unitResult{unit: u.TestUnit, sheet: sheet})
	}
	return fr
}

// evaluateUnit is phase 2 for one unit: rules, docstring, placement. A rule
// that panics on valid input is an engine defect; it is contained to this
// unit, logged loudly, and never silences other rules.
func (e *Engine) evaluateUnit(enabled []rules.Rule, checker *placement.Checker, repo *rules.RepoContext, ur unitResult) []types.Finding {
	var out []types.Finding
	for _, rule := range enabled {
		out = append(out, e.safeEvaluate(rule, ur, repo)...)
	}
	out = append(out, docstring.Validate(e.cfg, &ur.unit, repo.Symbols)...)
	out = append(out, checker.Check(&ur.unit, ur.sheet, repo.ModuleDirs)...)
	return out
}

func (e *Engine) safeEvaluate(rule rules.Rule, ur unitResult, repo *rules.RepoContext) (out []types.Finding) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("rule evaluation panicked",
				zap.String("rule", rule.ID()),
				zap.String("unit", ur.unit.QualifiedName),
				zap.Any("panic", r))
			logging.EngineError("rule %s panicked on %s: %v", rule.ID(), ur.unit.QualifiedName, r)
			out = []types.Finding{{
				RuleID: RuleEvaluationError, Severity: types.SeverityError,
				File: ur.unit.File, StartLine: ur.unit.StartLine, EndLine: ur.unit.EndLine,
				Message:  fmt.Sprintf("rule %s failed on %s: %v", rule.ID(), ur.unit.QualifiedName, r),
				Evidence: map[string]string{"rule": rule.ID()},
			}}
		}
	}()
	return rule.Evaluate(ur.sheet, &ur.unit, repo)
}

// registerModule records the production module(s) a file contributes to: its
// top-level path segment and its immediate directory.
func registerModule(moduleDirs map[string]string, rel string) {
	dir := filepath.ToSlash(filepath.Dir(rel))
	if dir == "." {
		stem := strings.ToLower(strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel)))
		if _, ok := moduleDirs[stem]; !ok {
			moduleDirs[stem] = "."
		}
		return
	}
	head := strings.SplitN(dir, "/", 2)[0]
	if _, ok := moduleDirs[head]; !ok {
		moduleDirs[head] = head
	}
	base := filepath.Base(dir)
	if _, ok := moduleDirs[base]; !ok {
		moduleDirs[base] = dir
	}
	stem := strings.ToLower(strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel)))
	if _, ok := moduleDirs[stem]; !ok {
		moduleDirs[stem] = dir
	}
}
