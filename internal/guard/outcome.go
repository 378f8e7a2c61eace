package guard

import (
	"encoding/json"
	"fmt"
)

// Outcome is the tri-state verdict of a guard call.
// The zero value is Indeterminate so an unset outcome never reads as a pass.
type Outcome int

const (
	Indeterminate Outcome = iota
	Passed
	Failed
)

// OutcomeOf maps a plain boolean verdict onto an Outcome.
func OutcomeOf(passed bool) Outcome {
	if passed {
		return Passed
	}
	return Failed
}

// OutcomeOfPtr maps an optional boolean verdict onto an Outcome; nil is Indeterminate.
func OutcomeOfPtr(passed *bool) Outcome {
	if passed == nil {
		return Indeterminate
	}
	return OutcomeOf(*passed)
}

func (o Outcome) String() string {
	switch o {
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	default:
		return "indeterminate"
	}
}

// Bool returns the outcome as an optional boolean: nil for Indeterminate.
func (o Outcome) Bool() *bool {
	var b bool
	switch o {
	case Passed:
		b = true
	case Failed:
		b = false
	default:
		return nil
	}
	return &b
}

// ParseOutcome parses the textual form produced by String.
func ParseOutcome(s string) (Outcome, error) {
	switch s {
	case "passed":
		return Passed, nil
	case "failed":
		return Failed, nil
	case "indeterminate", "":
		return Indeterminate, nil
	default:
		return Indeterminate, fmt.Errorf("unknown outcome %q", s)
	}
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

func (o *Outcome) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseOutcome(s)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}
