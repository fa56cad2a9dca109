// Package report aggregates findings into a deterministic report. Identical
// input finding sets always produce byte-identical output, regardless of the
// order workers delivered them.
package report

import (
	"encoding/json"
	"io"
	"sort"

	"github.com/google/uuid"

	"testlint/internal/types"
)

// Report is the run-level output: deduplicated, deterministically sorted
// findings plus per-rule and per-severity counts. It carries no wall-clock
// data so reruns over identical inputs stay byte-identical.
type Report struct {
	Fingerprint string `json:"fingerprint"`
	Root        string `json:"root"`
	Files       int    `json:"files"`
	Units       int    `json:"units"`

	Findings []types.Finding `json:"findings"`

	// RuleCounts and SeverityCounts marshal with sorted keys.
	RuleCounts     map[string]int `json:"rule_counts"`
	SeverityCounts map[string]int `json:"severity_counts"`
}

// fingerprintSpace namespaces run fingerprints. A fingerprint is a SHA1 UUID
// over the root path and normalized config, so identical inputs share one.
var fingerprintSpace = uuid.MustParse("1b4db7eb-4057-5ddf-91e0-36dec72071f5")

// Fingerprint derives the deterministic run identity.
func Fingerprint(root string, configYAML []byte) string {
	return uuid.NewSHA1(fingerprintSpace, append([]byte(root+"\x00"), configYAML...)).String()
}

// Aggregate merges findings from all workers: dedupe identical findings, sort
// by (file, line start, rule ID), count. Findings are never removed beyond
// exact duplicates; overlapping rules are independent signals, not
// alternatives.
func Aggregate(root, fingerprint string, files, units int, findings []types.Finding) *Report {
	seen := make(map[string]struct{}, len(findings))
	unique := make([]types.Finding, 0, len(findings))
	for _, f := range findings {
		if _, dup := seen[f.Key()]; dup {
			continue
		}
		seen[f.Key()] = struct{}{}
		unique = append(unique, f)
	}

	sort.Slice(unique, func(i, j int) bool {
		a, b := unique[i], unique[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.StartLine != b.StartLine {
			return a.StartLine < b.StartLine
		}
		if a.RuleID != b.RuleID {
			return a.RuleID < b.RuleID
		}
		if a.EndLine != b.EndLine {
			return a.EndLine < b.EndLine
		}
		return a.Message < b.Message
	})

	r := &Report{
		Fingerprint:    fingerprint,
		Root:           root,
		Files:          files,
		Units:          units,
		Findings:       unique,
		RuleCounts:     map[string]int{},
		SeverityCounts: map[string]int{},
	}
	for _, f := range unique {
		r.RuleCounts[f.RuleID]++
		r.SeverityCounts[string(f.Severity)]++
	}
	return r
}

// HasAtOrAbove reports whether any finding meets the severity threshold.
func (r *Report) HasAtOrAbove(threshold types.Severity) bool {
	for _, f := range r.Findings {
		if f.Severity.Rank() >= threshold.Rank() {
			return true
		}
	}
	return false
}

// RenderJSON writes the machine-readable report.
func (r *Report) RenderJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
