package types

import "testing"

func TestParseSeverity(t *testing.T) {
	cases := []struct {
		in      string
		want    Severity
		wantErr bool
	}{
		{"info", SeverityInfo, false},
		{"warning", SeverityWarning, false},
		{"warn", SeverityWarning, false},
		{"ERROR", SeverityError, false},
		{"  error ", SeverityError, false},
		{"fatal", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		got, err := ParseSeverity(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseSeverity(%q): expected error, got %q", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSeverity(%q): unexpected error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseSeverity(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSeverityRankOrdering(t *testing.T) {
	if SeverityError.Rank() <= SeverityWarning.Rank() {
		t.Error("error must rank above warning")
	}
	if SeverityWarning.Rank() <= SeverityInfo.Rank() {
		t.Error("warning must rank above info")
	}
	if Severity("bogus").Rank() != 0 {
		t.Error("unknown severity must rank at 0")
	}
}

func TestShapeScore(t *testing.T) {
	sheet := &FactSheet{Assertions: []Assertion{
		{Kind: AssertAttributeExistence},
		{Kind: AssertTypeCheck},
		{Kind: AssertValueEquality},
		{Kind: AssertStateCheck},
	}}
	if got := sheet.ShapeScore(); got != 0.5 {
		t.Errorf("ShapeScore = %v, want 0.5", got)
	}

	empty := &FactSheet{}
	if got := empty.ShapeScore(); got != 0 {
		t.Errorf("ShapeScore with no assertions = %v, want 0", got)
	}

	allShape := &FactSheet{Assertions: []Assertion{
		{Kind: AssertAttributeExistence},
		{Kind: AssertTypeCheck},
	}}
	if got := allShape.ShapeScore(); got != 1.0 {
		t.Errorf("ShapeScore = %v, want 1.0", got)
	}
}

func TestMockRatioExcludesBoundary(t *testing.T) {
	sheet := &FactSheet{Calls: []CallSite{
		{Target: "repo.save", Mocked: true},
		{Target: "svc.run", Mocked: false},
		{Target: "time.Now", Mocked: true, Boundary: true},
		{Target: "rand.Int", Mocked: true, Boundary: true},
	}}
	if got := sheet.MockRatio(); got != 0.5 {
		t.Errorf("MockRatio = %v, want 0.5 (boundary calls excluded)", got)
	}

	boundaryOnly := &FactSheet{Calls: []CallSite{
		{Target: "time.Now", Mocked: true, Boundary: true},
	}}
	if got := boundaryOnly.MockRatio(); got != 0 {
		t.Errorf("MockRatio with only boundary calls = %v, want 0", got)
	}
}

func TestRealModules(t *testing.T) {
	sheet := &FactSheet{Calls: []CallSite{
		{Target: "billing.compute", Module: "billing"},
		{Target: "billing.render", Module: "billing"},
		{Target: "storage.write", Module: "storage", Mocked: true},
		{Target: "auth.login", Module: "auth"},
		{Target: "time.Now", Module: "time", Boundary: true},
		{Target: "helper"},
	}}
	got := sheet.RealModules()
	want := []string{"auth", "billing"}
	if len(got) != len(want) {
		t.Fatalf("RealModules = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("RealModules = %v, want %v", got, want)
			break
		}
	}
}

func TestHasTagCaseInsensitive(t *testing.T) {
	u := &TestUnit{Tags: []string{"shape-ok", "slow"}}
	if !u.HasTag("Shape-OK") {
		t.Error("HasTag must be case-insensitive")
	}
	if u.HasTag("contract") {
		t.Error("HasTag must not match absent tags")
	}
}

func TestCodeRefString(t *testing.T) {
	ref := CodeRef{Path: "billing/invoice.py", Symbol: "compute_total"}
	if got := ref.String(); got != "billing/invoice.py::compute_total" {
		t.Errorf("String() = %q", got)
	}
	ranged := CodeRef{Path: "src/parser.rs", Symbol: "parse", StartLine: 10, EndLine: 24}
	if got := ranged.String(); got != "src/parser.rs::parse:10-24" {
		t.Errorf("String() = %q", got)
	}
}

func TestFindingKeyDistinguishesLocation(t *testing.T) {
	a := Finding{RuleID: "shape-only-test", File: "x_test.go", StartLine: 10, EndLine: 20, Message: "m"}
	b := a
	if a.Key() != b.Key() {
		t.Error("identical findings must share a key")
	}
	b.StartLine = 11
	if a.Key() == b.Key() {
		t.Error("findings at different lines must not collide")
	}
}
