package facts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"testlint/internal/adapter"
	"testlint/internal/config"
	"testlint/internal/types"
)

// sheetFor parses one python test file and extracts the sheet of its first
// unit.
func sheetFor(t *testing.T, path, src string) *types.FactSheet {
	t.Helper()
	cfg := config.DefaultConfig()
	lang := config.LanguageForPath(path)

	a := adapter.New()
	t.Cleanup(a.Close)
	f, err := a.Parse(context.Background(), path, []byte(src), lang)
	require.NoError(t, err)
	t.Cleanup(f.Close)

	lc, ok := cfg.Language(lang)
	require.True(t, ok)
	units, err := a.ExtractTestUnits(f, lc)
	require.NoError(t, err)
	require.NotEmpty(t, units)

	ex, err := NewExtractor(cfg, lang)
	require.NoError(t, err)
	return ex.Extract(f, units[0])
}

func TestBehaviorAssertionIsValueEquality(t *testing.T) {
	sheet := sheetFor(t, "billing/test_invoice.py", `
def test_total_when_tax_applied_returns_sum():
    result = invoice.compute_total([10, 12], 5)
    assert result == 27
`)
	require.Len(t, sheet.Assertions, 1)
	assert.Equal(t, types.AssertValueEquality, sheet.Assertions[0].Kind)
	assert.Equal(t, float64(0), sheet.ShapeScore())
	assert.False(t, sheet.Incomplete)

	// The compute_total call is a real, non-boundary collaborator.
	require.NotEmpty(t, sheet.Calls)
	assert.Equal(t, "invoice", sheet.Calls[0].Module)
	assert.False(t, sheet.Calls[0].Mocked)
	assert.False(t, sheet.Calls[0].Boundary)
	assert.True(t, sheet.Calls[0].SystemUnderTest)
}

func TestShapeChecksClassifiedAsShape(t *testing.T) {
	sheet := sheetFor(t, "test_user.py", `
def test_user_shape():
    user = make_user()
    assert hasattr(user, "name")
    assert isinstance(user, dict)
`)
	require.Len(t, sheet.Assertions, 2)
	assert.Equal(t, types.AssertAttributeExistence, sheet.Assertions[0].Kind)
	assert.Equal(t, types.AssertTypeCheck, sheet.Assertions[1].Kind)
	assert.Equal(t, 1.0, sheet.ShapeScore())
}

func TestErrorCheckTakesPrecedence(t *testing.T) {
	sheet := sheetFor(t, "test_parse.py", `
def test_parse_when_input_bad_raises_value_error():
    with pytest.raises(ValueError):
        parse("not valid")
`)
	require.Len(t, sheet.Assertions, 1)
	assert.Equal(t, types.AssertErrorCheck, sheet.Assertions[0].Kind)
}

func TestMockedVariableTracking(t *testing.T) {
	sheet := sheetFor(t, "test_service.py", `
def test_service_run():
    repo = Mock()
    gateway = Mock()
    result = service.run(repo, gateway)
    assert result == "ok"
`)
	mocked, real := 0, 0
	for _, c := range sheet.Calls {
		if c.Boundary {
			continue
		}
		if c.Mocked {
			mocked++
		} else {
			real++
		}
	}
	assert.Equal(t, 2, mocked, "Mock() construction marks the call mocked")
	assert.Equal(t, 1, real, "service.run stays a real collaborator")
	assert.InDelta(t, 2.0/3.0, sheet.MockRatio(), 0.001)
}

func TestBoundaryCollaboratorsExcluded(t *testing.T) {
	sheet := sheetFor(t, "test_schedule.py", `
def test_schedule_when_run_at_midnight_returns_next_day():
    now = time.time()
    result = schedule.next_run(now)
    assert result == now + 86400
`)
	var boundary, nonBoundary int
	for _, c := range sheet.Calls {
		if c.Boundary {
			boundary++
		} else {
			nonBoundary++
		}
	}
	assert.Equal(t, 1, boundary, "time.time() is a boundary collaborator")
	assert.Equal(t, 1, nonBoundary)
	assert.Equal(t, float64(0), sheet.MockRatio())
}

func TestArrangeActAssertRecognized(t *testing.T) {
	sheet := sheetFor(t, "test_totals.py", `
def test_total_with_three_items_returns_sum():
    items = [1, 2, 3]
    tax = 2
    total = invoice.compute_total(items, tax)
    assert total == 8
`)
	assert.True(t, sheet.ArrangeActSeparated)
	assert.Equal(t, 4, sheet.Statements)
}

func TestArrangeActAssertAbsentWhenInterleaved(t *testing.T) {
	sheet := sheetFor(t, "test_totals.py", `
def test_interleaved():
    a = invoice.compute_total([1], 0)
    assert a == 1
    b = invoice.compute_total([2], 0)
    assert b == 2
    c = invoice.compute_total([3], 0)
    assert c == 3
`)
	assert.False(t, sheet.ArrangeActSeparated)
	assert.Equal(t, 6, sheet.Statements)
}

func TestPassBodyYieldsNoFacts(t *testing.T) {
	sheet := sheetFor(t, "test_empty.py", `
def test_nothing():
    pass
`)
	assert.Empty(t, sheet.Assertions)
	assert.Empty(t, sheet.Calls)
	assert.Equal(t, float64(0), sheet.ShapeScore())
}

func TestGoTestifyAssertions(t *testing.T) {
	sheet := sheetFor(t, "billing/discount_test.go", `package billing

import "testing"

func TestApplyDiscountReducesTotal(t *testing.T) {
	got := ApplyDiscount(100, 10)
	assert.Equal(t, 90, got.Amount)
}
`)
	require.Len(t, sheet.Assertions, 1)
	assert.Equal(t, types.AssertStateCheck, sheet.Assertions[0].Kind)
	require.NotEmpty(t, sheet.Calls)
	assert.Equal(t, "ApplyDiscount", sheet.Calls[0].Target)
}

func TestModuleAttribution(t *testing.T) {
	assert.Equal(t, "billing", moduleOf("billing.invoice.compute"))
	assert.Equal(t, "storage", moduleOf("storage::disk::write"))
	assert.Equal(t, "", moduleOf("helper"))
	assert.Equal(t, "", moduleOf(".leading.dot"))
}

func TestSutStem(t *testing.T) {
	assert.Equal(t, "invoice", sutStem("billing/test_invoice.py"))
	assert.Equal(t, "parser", sutStem("pkg/parser_test.go"))
	assert.Equal(t, "app", sutStem("web/app.test.ts"))
	assert.Equal(t, "cart", sutStem("web/cart.spec.js"))
}
