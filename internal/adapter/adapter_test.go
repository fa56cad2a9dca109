package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"testlint/internal/config"
)

func defaultLang(t *testing.T, tag string) config.LanguageConfig {
	t.Helper()
	lc, ok := config.DefaultConfig().Language(tag)
	require.True(t, ok, "no default language config for %s", tag)
	return lc
}

func parse(t *testing.T, path, src, lang string) *File {
	t.Helper()
	a := New()
	t.Cleanup(a.Close)
	f, err := a.Parse(context.Background(), path, []byte(src), lang)
	require.NoError(t, err)
	t.Cleanup(f.Close)
	return f
}

func TestParseRejectsUnsupportedLanguage(t *testing.T) {
	a := New()
	defer a.Close()
	_, err := a.Parse(context.Background(), "x.cob", []byte("IDENTIFICATION DIVISION."), "cobol")
	require.Error(t, err)
}

func TestParseRejectsBrokenSyntax(t *testing.T) {
	a := New()
	defer a.Close()
	_, err := a.Parse(context.Background(), "broken.py", []byte("def broken(:\n"), "python")
	require.Error(t, err, "a tree with syntax errors must not be analyzed")
}

func TestExtractPythonUnitsByName(t *testing.T) {
	src := `def compute_total(items, tax):
    return sum(items) + tax

def test_compute_total_when_tax_applied_returns_sum():
    """Checks totals include tax."""
    result = compute_total([1, 2], 3)
    assert result == 6
`
	f := parse(t, "billing/test_invoice.py", src, "python")
	a := New()
	defer a.Close()

	units, err := a.ExtractTestUnits(f, defaultLang(t, "python"))
	require.NoError(t, err)
	require.Len(t, units, 1, "only test_-prefixed functions are units")

	u := units[0]
	assert.Equal(t, "test_compute_total_when_tax_applied_returns_sum", u.Name)
	assert.Equal(t, "billing/test_invoice.py", u.File)
	assert.Equal(t, "Checks totals include tax.", u.Docstring)
	assert.Equal(t, 4, u.StartLine)
	assert.NotNil(t, u.Body)
}

func TestExtractPythonUnitByMarker(t *testing.T) {
	src := `import pytest

@pytest.mark.slow
def totals_are_checked():
    assert True
`
	f := parse(t, "test_markers.py", src, "python")
	a := New()
	defer a.Close()

	units, err := a.ExtractTestUnits(f, defaultLang(t, "python"))
	require.NoError(t, err)
	require.Len(t, units, 1, "a pytest marker makes a unit regardless of its name")
	assert.Contains(t, units[0].Tags, "slow")
}

func TestExtractPythonMethodQualifiedByClass(t *testing.T) {
	src := `class TestInvoice:
    def test_total_when_empty_returns_zero(self):
        assert compute_total([], 0) == 0
`
	f := parse(t, "test_invoice.py", src, "python")
	a := New()
	defer a.Close()

	units, err := a.ExtractTestUnits(f, defaultLang(t, "python"))
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "TestInvoice.test_total_when_empty_returns_zero", units[0].QualifiedName)
}

func TestExtractGoUnits(t *testing.T) {
	src := `package billing

import "testing"

// Validates: discount application on totals
func TestApplyDiscount(t *testing.T) {
	got := ApplyDiscount(100, 10)
	if got != 90 {
		t.Errorf("got %d", got)
	}
}

func helperNotATest(t *testing.T) {}
`
	f := parse(t, "billing/discount_test.go", src, "go")
	a := New()
	defer a.Close()

	units, err := a.ExtractTestUnits(f, defaultLang(t, "go"))
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "TestApplyDiscount", units[0].Name)
	assert.Contains(t, units[0].Docstring, "Validates: discount application")
}

func TestExtractJavascriptHarnessUnits(t *testing.T) {
	src := `const { total } = require("./invoice");

test("total adds tax", () => {
  expect(total([1, 2], 3)).toBe(6);
});

it("keeps empty invoices at zero", () => {
  expect(total([], 0)).toBe(0);
});
`
	f := parse(t, "invoice.test.js", src, "javascript")
	a := New()
	defer a.Close()

	units, err := a.ExtractTestUnits(f, defaultLang(t, "javascript"))
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "total adds tax", units[0].Name)
	assert.Equal(t, "keeps empty invoices at zero", units[1].Name)
	assert.NotNil(t, units[0].Body)
}

func TestExtractRustUnitsByAttribute(t *testing.T) {
	src := `#[test]
fn totals_include_tax() {
    assert_eq!(compute_total(&[1, 2], 3), 6);
}

#[test]
#[ignore]
fn slow_path() {
    assert!(true);
}

fn plain_function() {}
`
	f := parse(t, "src/invoice.rs", src, "rust")
	a := New()
	defer a.Close()

	units, err := a.ExtractTestUnits(f, defaultLang(t, "rust"))
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "totals_include_tax", units[0].Name)
	assert.Contains(t, units[1].Tags, "ignore")
}

func TestSuiteTagsApplyToEveryUnit(t *testing.T) {
	src := `# testlint:tags contract, slow

def test_exact_error_text():
    assert str(err) == "bad input"
`
	f := parse(t, "test_errors.py", src, "python")
	a := New()
	defer a.Close()

	units, err := a.ExtractTestUnits(f, defaultLang(t, "python"))
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Contains(t, units[0].Tags, "contract")
	assert.Contains(t, units[0].Tags, "slow")
}

func TestDocstringTagDirective(t *testing.T) {
	src := `def test_shape_of_config():
    """Checks exported config fields.

    testlint:tags shape-ok
    """
    assert hasattr(cfg, "jobs")
`
	f := parse(t, "test_config.py", src, "python")
	a := New()
	defer a.Close()

	units, err := a.ExtractTestUnits(f, defaultLang(t, "python"))
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Contains(t, units[0].Tags, "shape-ok")
}

func TestExtractSymbols(t *testing.T) {
	src := `class Invoice:
    def compute_total(self, items, tax):
        return sum(items) + tax

def render(invoice):
    return str(invoice)
`
	f := parse(t, "billing/invoice.py", src, "python")
	a := New()
	defer a.Close()

	syms := a.ExtractSymbols(f)
	byName := map[string]Symbol{}
	for _, s := range syms {
		byName[s.Name] = s
	}
	require.Contains(t, byName, "Invoice")
	require.Contains(t, byName, "compute_total")
	require.Contains(t, byName, "render")
	assert.Equal(t, "class", byName["Invoice"].Kind)
	assert.Equal(t, "function", byName["render"].Kind)
	assert.Equal(t, 1, byName["Invoice"].Line)
}

func TestExtractSymbolsGoTypes(t *testing.T) {
	src := `package billing

type Invoice struct{}

func (i *Invoice) Total() int { return 0 }

func New() *Invoice { return &Invoice{} }
`
	f := parse(t, "billing/invoice.go", src, "go")
	a := New()
	defer a.Close()

	syms := a.ExtractSymbols(f)
	kinds := map[string]string{}
	for _, s := range syms {
		kinds[s.Name] = s.Kind
	}
	assert.Equal(t, "type", kinds["Invoice"])
	assert.Equal(t, "method", kinds["Total"])
	assert.Equal(t, "function", kinds["New"])
}
