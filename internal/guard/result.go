package guard

import "maps"

// Result is the answer of a single guard call. It is produced fresh per call
// and never mutated afterwards.
type Result struct {
	Outcome Outcome `json:"outcome"`
	// ValidatedOutput is the (possibly corrected) text; meaningful only when Outcome is Passed.
	ValidatedOutput string `json:"validated_output,omitempty"`
	// RawLLMOutput echoes the text the guard was given.
	RawLLMOutput string   `json:"raw_llm_output"`
	Reasons      []string `json:"reasons,omitempty"`
}

// Pass builds a passing result whose validated output is validated.
func Pass(raw, validated string) *Result {
	return &Result{Outcome: Passed, RawLLMOutput: raw, ValidatedOutput: validated}
}

// Fail builds a failing result.
func Fail(raw string, reasons ...string) *Result {
	return &Result{Outcome: Failed, RawLLMOutput: raw, Reasons: reasons}
}

// Undecided builds a result whose outcome could not be determined.
func Undecided(raw string, reasons ...string) *Result {
	return &Result{Outcome: Indeterminate, RawLLMOutput: raw, Reasons: reasons}
}

// Corrected reports whether the guard passed the text but altered it.
func (r *Result) Corrected() bool {
	return r.Outcome == Passed && r.ValidatedOutput != r.RawLLMOutput
}

// Metadata carries caller-supplied context for a guard call.
type Metadata map[string]any

// Clone returns an independent shallow copy. A nil receiver yields a new
// empty map, so every call gets its own metadata and never a shared default.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	maps.Copy(out, m)
	return out
}
