// Package config loads and validates the testlint rule configuration.
// Configuration is loaded once per run, before any worker starts, and is
// read-only thereafter.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"testlint/internal/types"
)

// Config holds all testlint configuration.
type Config struct {
	// Per-rule enable/disable and severity overrides, keyed by rule ID.
	Rules map[string]RuleSetting `yaml:"rules"`

	// Heuristic thresholds. The golden-rule heuristics are approximate;
	// thresholds stay configurable per repository, never hard-coded.
	Thresholds Thresholds `yaml:"thresholds"`

	// Per-language recognition pattern sets. Recognition of "test unit",
	// "mock construction" and "naming convention" is data, not code.
	Languages map[string]LanguageConfig `yaml:"languages"`

	// Boundary collaborators: call targets expected to be mocked without
	// penalty (clock, randomness, filesystem, network). Regexes.
	BoundaryPatterns []string `yaml:"boundary_patterns"`

	// Tag that exempts a unit from shape-only-test.
	ShapeExemptTag string `yaml:"shape_exempt_tag"`

	// Tag that marks an exact-text assertion as contractual.
	ContractTag string `yaml:"contract_tag"`

	Placement PlacementConfig `yaml:"placement"`
	Engine    EngineConfig    `yaml:"engine"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// RuleSetting enables/disables one rule and optionally overrides its severity.
type RuleSetting struct {
	Enabled  *bool  `yaml:"enabled,omitempty"`
	Severity string `yaml:"severity,omitempty"`
}

// Thresholds collects the numeric knobs of the heuristics.
type Thresholds struct {
	// MockRatio at or above which over-mocking fires. Default 0.8.
	MockRatio float64 `yaml:"mock_ratio"`

	// AAAMinStatements is the statement count above which a body missing the
	// arrange/act/assert shape is flagged. Short tests are exempt.
	AAAMinStatements int `yaml:"aaa_min_statements"`

	// BrittleMinLength is the minimum length of a quoted free-text literal
	// for brittle-assertion to consider it a message comparison.
	BrittleMinLength int `yaml:"brittle_min_length"`
}

// LanguageConfig is the per-language recognition pattern set.
type LanguageConfig struct {
	// TestNamePattern recognizes test units by name.
	TestNamePattern string `yaml:"test_name_pattern"`

	// TestMarkers are annotations/decorators/harness calls that mark a test
	// unit regardless of its name (e.g. #[test], @pytest.mark, it/test).
	TestMarkers []string `yaml:"test_markers"`

	// NamingPattern is the <behavior>_<condition>_<expected> convention the
	// naming-intent rule enforces. Matched against the snake_cased unit name.
	NamingPattern string `yaml:"naming_pattern"`

	// MockPatterns recognize mock/stub/fake construction or targets.
	MockPatterns []string `yaml:"mock_patterns"`

	// AssertionCalls recognize a statement as an assertion.
	AssertionCalls []string `yaml:"assertion_calls"`

	// AssertionPatterns classify an assertion statement, keyed by kind
	// (error-check, type-check, attribute-existence, state-check). Statements
	// matching none default to value-equality when they compare values.
	AssertionPatterns map[string][]string `yaml:"assertion_patterns"`

	// BrittlePatterns recognize exact free-text comparisons for
	// brittle-assertion.
	BrittlePatterns []string `yaml:"brittle_patterns"`
}

// PlacementConfig is the discovery policy for test file placement.
type PlacementConfig struct {
	// UnitColocated requires unit tests beside the module they exercise.
	UnitColocated bool `yaml:"unit_colocated"`

	// UnitGlobs recognize unit test files.
	UnitGlobs []string `yaml:"unit_globs"`

	// ModuleE2EGlobs and ProjectE2EGlobs recognize the two E2E tiers.
	ModuleE2EGlobs  []string `yaml:"module_e2e_globs"`
	ProjectE2EGlobs []string `yaml:"project_e2e_globs"`

	// IgnoreGlobs are skipped entirely during discovery.
	IgnoreGlobs []string `yaml:"ignore_globs"`
}

// EngineConfig controls the worker pool and run limits.
type EngineConfig struct {
	Jobs          int    `yaml:"jobs"`           // 0 = GOMAXPROCS
	ParseTimeout  string `yaml:"parse_timeout"`  // per-file, e.g. "10s"
	FailOn        string `yaml:"fail_on"`        // severity gating the exit code
	WatchDebounce string `yaml:"watch_debounce"` // watch mode debounce
}

// LoggingConfig controls the category debug logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Rules: map[string]RuleSetting{},
		Thresholds: Thresholds{
			MockRatio:        0.8,
			AAAMinStatements: 5,
			BrittleMinLength: 12,
		},
		Languages: map[string]LanguageConfig{
			"go": {
				TestNamePattern: `^Test\p{Lu}`,
				NamingPattern:   defaultNamingPattern,
				MockPatterns:    []string{`(?i)\b(mock|stub|fake|spy)\w*\b`, `\bNew(Mock|Stub|Fake)\w*\(`},
				AssertionCalls:  []string{`\bt\.(Error|Errorf|Fatal|Fatalf|Fail)\b`, `\b(assert|require)\.\w+\(`, `\bcmp\.Diff\(`},
				AssertionPatterns: map[string][]string{
					"error-check":         {`\b(assert|require)\.(Error|NoError|ErrorIs|ErrorAs|ErrorContains|Panics|NotPanics)\b`, `err\s*[!=]=\s*nil`},
					"type-check":          {`\b(assert|require)\.(IsType|Implements)\b`, `\breflect\.TypeOf\(`},
					"attribute-existence": {`\b(assert|require)\.(NotNil|Nil|Contains|NotEmpty|Empty)\b\s*\(\s*t\s*,\s*[^,)]*\)\s*$`},
					"state-check":         {`\b(assert|require)\.(True|False|Equal|EqualValues|Len|ElementsMatch)\b.*\.\w+\b`},
				},
				BrittlePatterns: []string{`(?i)(err(or)?|message|output|string)\b.*"(.*\s+){2,}.*"`},
			},
			"python": {
				TestNamePattern: `^test_`,
				TestMarkers:     []string{`pytest.mark`, `unittest`},
				NamingPattern:   defaultNamingPattern,
				MockPatterns:    []string{`(?i)\b(mock|magicmock|stub|fake|patch|monkeypatch)\w*\b`},
				AssertionCalls:  []string{`^\s*assert\b`, `\bself\.assert\w+\(`, `\bpytest\.(raises|warns|approx)\b`},
				AssertionPatterns: map[string][]string{
					"error-check":         {`\bpytest\.raises\b`, `\bself\.assertRaises\w*\(`, `\bwith\s+raises\b`},
					"type-check":          {`\bisinstance\s*\(`, `\btype\s*\(\s*\w`, `\bself\.assertIsInstance\(`},
					"attribute-existence": {`\bhasattr\s*\(`, `\bgetattr\s*\([^,]+,[^,]+\)\s*$`, `\bin\s+dir\(`, `\bself\.assertTrue\(\s*hasattr`},
					"state-check":         {`assert\s+\w+(\.\w+)+\s*==`, `\bself\.assertEqual\(\s*\w+\.\w+`},
				},
				BrittlePatterns: []string{`(?i)str\(\s*\w*(err|exc)\w*\s*\)\s*==`, `(?i)(message|output|err\w*)\b.*==\s*["'](\S+\s+){2,}\S*["']`},
			},
			"javascript": {
				TestNamePattern: `^(test|it)`,
				TestMarkers:     []string{`test`, `it`},
				NamingPattern:   defaultNamingPattern,
				MockPatterns:    []string{`\bjest\.(fn|mock|spyOn)\b`, `\bsinon\.\w+\b`, `(?i)\b(mock|stub|fake)\w*\b`},
				AssertionCalls:  []string{`\bexpect\s*\(`, `\bassert\.\w+\(`},
				AssertionPatterns: map[string][]string{
					"error-check":         {`\.(toThrow|rejects)\b`},
					"type-check":          {`\btypeof\b`, `\.toBeInstanceOf\(`, `\binstanceof\b`},
					"attribute-existence": {`\.toHaveProperty\(`, `\.toBeDefined\(\)`, `\.toBeUndefined\(\)`},
					"state-check":         {`expect\s*\(\s*\w+(\.\w+)+\s*\)\.(toBe|toEqual)\b`},
				},
				BrittlePatterns: []string{`(?i)(err\w*|message|output)\b.*(toBe|toEqual)\(\s*["'](\S+\s+){2,}`},
			},
			"typescript": {
				TestNamePattern: `^(test|it)`,
				TestMarkers:     []string{`test`, `it`},
				NamingPattern:   defaultNamingPattern,
				MockPatterns:    []string{`\bjest\.(fn|mock|spyOn)\b`, `\bsinon\.\w+\b`, `(?i)\b(mock|stub|fake)\w*\b`},
				AssertionCalls:  []string{`\bexpect\s*\(`, `\bassert\.\w+\(`},
				AssertionPatterns: map[string][]string{
					"error-check":         {`\.(toThrow|rejects)\b`},
					"type-check":          {`\btypeof\b`, `\.toBeInstanceOf\(`, `\binstanceof\b`},
					"attribute-existence": {`\.toHaveProperty\(`, `\.toBeDefined\(\)`, `\.toBeUndefined\(\)`},
					"state-check":         {`expect\s*\(\s*\w+(\.\w+)+\s*\)\.(toBe|toEqual)\b`},
				},
				BrittlePatterns: []string{`(?i)(err\w*|message|output)\b.*(toBe|toEqual)\(\s*["'](\S+\s+){2,}`},
			},
			"rust": {
				TestNamePattern: `^test_`,
				TestMarkers:     []string{`test`, `tokio::test`},
				NamingPattern:   defaultNamingPattern,
				MockPatterns:    []string{`(?i)\b(mock|stub|fake)\w*\b`, `\bmockall\b`},
				AssertionCalls:  []string{`\bassert(_eq|_ne)?!`, `\bmatches!`},
				AssertionPatterns: map[string][]string{
					"error-check":         {`\.is_err\(\)`, `\.unwrap_err\(\)`, `#\[should_panic`},
					"type-check":          {`\bmatches!\s*\(`, `\.type_id\(\)`},
					"attribute-existence": {`\.is_some\(\)\s*\)`, `\.contains_key\(`},
					"state-check":         {`assert_eq!\s*\(\s*\w+(\.\w+)+`},
				},
				BrittlePatterns: []string{`(?i)(err\w*|message|output|to_string)\b.*"(\S+\s+){2,}`},
			},
		},
		BoundaryPatterns: []string{
			`(?i)^(time|clock|datetime|chrono)\b`,
			`(?i)^(rand|random|secrets|uuid)\b`,
			`(?i)^(os|io|fs|filepath|pathlib|shutil|tempfile)\b`,
			`(?i)^(net|http|https|requests|urllib|socket|fetch|axios)\b`,
			`(?i)\b(sleep|now)\(\)$`,
		},
		ShapeExemptTag: "shape-ok",
		ContractTag:    "contract",
		Placement: PlacementConfig{
			UnitColocated: true,
			UnitGlobs: []string{
				"**/*_test.go", "**/test_*.py", "**/*_test.py",
				"**/*.test.js", "**/*.spec.js", "**/*.test.ts", "**/*.spec.ts",
				"**/tests/test_*.py",
			},
			ModuleE2EGlobs:  []string{"*/e2e/**", "*/tests/e2e/**"},
			ProjectE2EGlobs: []string{"e2e/**", "tests/e2e/**", "test/e2e/**"},
			IgnoreGlobs: []string{
				"**/.git/**", "**/node_modules/**", "**/vendor/**",
				"**/target/**", "**/__pycache__/**", "**/.testlint/**",
			},
		},
		Engine: EngineConfig{
			Jobs:          0,
			ParseTimeout:  "10s",
			FailOn:        "error",
			WatchDebounce: "500ms",
		},
		Logging: LoggingConfig{DebugMode: false},
	}
}

// defaultNamingPattern demands behavior, a condition segment introduced by a
// linking word, and an expected-outcome segment.
const defaultNamingPattern = `^[a-z][a-z0-9_]*_(when|with|without|given|if|on|after)_[a-z0-9_]+_(returns|raises|errors|fails|succeeds|yields|produces|sets|emits|keeps|skips|creates|updates|removes|is|preserves)_[a-z0-9_]+$`

// Load loads configuration from a YAML file, merging over defaults.
// A missing path (empty string) returns pure defaults; a named file that does
// not exist is an error, since the user asked for it explicitly.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		if env := os.Getenv("TESTLINT_CONFIG"); env != "" {
			path = env
		}
	}
	if path == "" {
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", filepath.Base(path), err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TESTLINT_JOBS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Engine.Jobs = n
		}
	}
	if v := os.Getenv("TESTLINT_DEBUG"); v == "1" || strings.EqualFold(v, "true") {
		c.Logging.DebugMode = true
	}
}

// Validate checks thresholds, severities and durations. Pattern compilation is
// validated where the patterns are compiled (facts, rules), so a bad regex
// fails fast there with the offending pattern named.
func (c *Config) Validate() error {
	if c.Thresholds.MockRatio < 0 || c.Thresholds.MockRatio > 1 {
		return fmt.Errorf("thresholds.mock_ratio must be in [0,1], got %v", c.Thresholds.MockRatio)
	}
	if c.Thresholds.AAAMinStatements < 0 {
		return fmt.Errorf("thresholds.aaa_min_statements must be >= 0, got %d", c.Thresholds.AAAMinStatements)
	}
	if c.Engine.Jobs < 0 {
		return fmt.Errorf("engine.jobs must be >= 0, got %d", c.Engine.Jobs)
	}
	if _, err := types.ParseSeverity(c.Engine.FailOn); err != nil {
		return fmt.Errorf("engine.fail_on: %w", err)
	}
	if _, err := c.ParseTimeout(); err != nil {
		return fmt.Errorf("engine.parse_timeout: %w", err)
	}
	if _, err := c.WatchDebounce(); err != nil {
		return fmt.Errorf("engine.watch_debounce: %w", err)
	}
	for id, rs := range c.Rules {
		if rs.Severity == "" {
			continue
		}
		if _, err := types.ParseSeverity(rs.Severity); err != nil {
			return fmt.Errorf("rules.%s.severity: %w", id, err)
		}
	}
	return nil
}

// ParseTimeout returns the per-file parse timeout as a duration.
func (c *Config) ParseTimeout() (time.Duration, error) {
	if c.Engine.ParseTimeout == "" {
		return 10 * time.Second, nil
	}
	return time.ParseDuration(c.Engine.ParseTimeout)
}

// WatchDebounce returns the watch-mode debounce as a duration.
func (c *Config) WatchDebounce() (time.Duration, error) {
	if c.Engine.WatchDebounce == "" {
		return 500 * time.Millisecond, nil
	}
	return time.ParseDuration(c.Engine.WatchDebounce)
}

// RuleEnabled reports whether a rule is enabled. Rules default to enabled.
func (c *Config) RuleEnabled(id string) bool {
	rs, ok := c.Rules[id]
	if !ok || rs.Enabled == nil {
		return true
	}
	return *rs.Enabled
}

// RuleSeverity returns the effective severity for a rule, applying any
// configured override to the rule's default.
func (c *Config) RuleSeverity(id string, def types.Severity) types.Severity {
	rs, ok := c.Rules[id]
	if !ok || rs.Severity == "" {
		return def
	}
	sev, err := types.ParseSeverity(rs.Severity)
	if err != nil {
		return def
	}
	return sev
}

// Language returns the pattern set for a language tag.
func (c *Config) Language(tag string) (LanguageConfig, bool) {
	lc, ok := c.Languages[tag]
	return lc, ok
}

// Marshal renders the effective configuration back to YAML. Used for the
// deterministic run fingerprint.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// LanguageForPath maps a file extension to a language tag, or "" when the
// file is not analyzable.
func LanguageForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".js", ".jsx", ".mjs":
		return "javascript"
	case ".ts", ".tsx":
		return "typescript"
	case ".rs":
		return "rust"
	}
	return ""
}
