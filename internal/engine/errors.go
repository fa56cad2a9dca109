package engine

import "fmt"

// ConfigError marks a fatal configuration problem. It is the only error class
// that aborts a run before analysis; everything else is contained to its file
// or rule and surfaces as a Finding or a diagnostic log.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return fmt.Sprintf("config: %v", e.Err) }
func (e *ConfigError) Unwrap() error { return e.Err }

// Finding rule IDs the engine itself emits.
const (
	RuleParseFailure         = "parse-failure"
	RuleParseTimeout         = "parse-timeout"
	RuleExtractionIncomplete = "fact-extraction-incomplete"
	RuleEvaluationError      = "rule-evaluation-error"
)
