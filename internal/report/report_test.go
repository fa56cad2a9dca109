package report

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"testlint/internal/types"
)

func sampleFindings() []types.Finding {
	return []types.Finding{
		{RuleID: "shape-only-test", Severity: types.SeverityError, File: "b/test_user.py", StartLine: 4, EndLine: 9, Message: "shape only"},
		{RuleID: "naming-intent", Severity: types.SeverityWarning, File: "b/test_user.py", StartLine: 4, EndLine: 9, Message: "vague name"},
		{RuleID: "over-mocking", Severity: types.SeverityWarning, File: "a/test_svc.py", StartLine: 12, EndLine: 30, Message: "mocked"},
		{RuleID: "missing-arrange-act-assert", Severity: types.SeverityInfo, File: "a/test_svc.py", StartLine: 40, EndLine: 66, Message: "sprawl"},
		{RuleID: "parse-failure", Severity: types.SeverityError, File: "c/broken.py", StartLine: 1, EndLine: 1, Message: "syntax errors"},
	}
}

func TestAggregateIsOrderIndependent(t *testing.T) {
	base := sampleFindings()
	ref := Aggregate(".", "fp", 10, 4, base)

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 20; trial++ {
		shuffled := append([]types.Finding(nil), base...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		got := Aggregate(".", "fp", 10, 4, shuffled)
		if diff := cmp.Diff(ref, got); diff != "" {
			t.Fatalf("trial %d: aggregation depends on input order:\n%s", trial, diff)
		}
	}
}

func TestRenderJSONByteIdenticalAcrossRuns(t *testing.T) {
	var a, b bytes.Buffer
	if err := Aggregate(".", "fp", 10, 4, sampleFindings()).RenderJSON(&a); err != nil {
		t.Fatal(err)
	}
	if err := Aggregate(".", "fp", 10, 4, sampleFindings()).RenderJSON(&b); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Error("identical runs must render byte-identical JSON")
	}
}

func TestAggregateSortsByFileThenLineThenRule(t *testing.T) {
	r := Aggregate(".", "fp", 10, 4, sampleFindings())
	var got []string
	for _, f := range r.Findings {
		got = append(got, f.File+"|"+f.RuleID)
	}
	want := []string{
		"a/test_svc.py|over-mocking",
		"a/test_svc.py|missing-arrange-act-assert",
		"b/test_user.py|naming-intent",
		"b/test_user.py|shape-only-test",
		"c/broken.py|parse-failure",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected finding order:\n%s", diff)
	}
}

func TestAggregateDeduplicates(t *testing.T) {
	f := sampleFindings()[0]
	r := Aggregate(".", "fp", 1, 1, []types.Finding{f, f, f})
	if len(r.Findings) != 1 {
		t.Errorf("expected exact duplicates collapsed, got %d findings", len(r.Findings))
	}
	if r.RuleCounts["shape-only-test"] != 1 {
		t.Errorf("rule counts must follow deduplicated findings")
	}
}

func TestAggregateCounts(t *testing.T) {
	r := Aggregate(".", "fp", 10, 4, sampleFindings())
	if r.SeverityCounts["error"] != 2 || r.SeverityCounts["warning"] != 2 || r.SeverityCounts["info"] != 1 {
		t.Errorf("severity counts = %v", r.SeverityCounts)
	}
	if r.Files != 10 || r.Units != 4 {
		t.Errorf("files/units = %d/%d", r.Files, r.Units)
	}
}

func TestHasAtOrAbove(t *testing.T) {
	r := Aggregate(".", "fp", 1, 1, []types.Finding{
		{RuleID: "naming-intent", Severity: types.SeverityWarning, File: "x", StartLine: 1, EndLine: 1, Message: "m"},
	})
	if !r.HasAtOrAbove(types.SeverityInfo) || !r.HasAtOrAbove(types.SeverityWarning) {
		t.Error("warning findings meet info and warning thresholds")
	}
	if r.HasAtOrAbove(types.SeverityError) {
		t.Error("warning findings must not trip an error threshold")
	}
}

func TestFingerprintStability(t *testing.T) {
	cfg := []byte("thresholds:\n  mock_ratio: 0.8\n")
	a := Fingerprint("repo", cfg)
	b := Fingerprint("repo", cfg)
	if a != b {
		t.Error("identical inputs must share a fingerprint")
	}
	if a == Fingerprint("repo", []byte("thresholds:\n  mock_ratio: 0.5\n")) {
		t.Error("config changes must change the fingerprint")
	}
	if a == Fingerprint("other", cfg) {
		t.Error("root changes must change the fingerprint")
	}
}

func TestRenderTextCleanRun(t *testing.T) {
	var buf bytes.Buffer
	r := Aggregate(".", "fp", 12, 7, nil)
	if err := r.RenderText(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "no findings") {
		t.Errorf("clean run output = %q", buf.String())
	}
}

func TestRenderTextSummary(t *testing.T) {
	var buf bytes.Buffer
	if err := Aggregate(".", "fp", 10, 4, sampleFindings()).RenderText(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Summary", "shape-only-test", "a/test_svc.py:12", "c/broken.py:1"} {
		if !strings.Contains(out, want) {
			t.Errorf("text report missing %q:\n%s", want, out)
		}
	}
}
