package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rendis/opguard/internal/guard"
	"github.com/rendis/opguard/pkg/schema"
)

// Suffixes appended to a guard name to form its two action names.
const (
	FixSuffix      = "_fix"
	ValidateSuffix = "_validate"
)

// FixActionName returns the registry key of the fix action for guardName.
func FixActionName(guardName string) string { return guardName + FixSuffix }

// ValidateActionName returns the registry key of the validate action for guardName.
func ValidateActionName(guardName string) string { return guardName + ValidateSuffix }

var guardInputSchema = json.RawMessage(`{
  "type": "object",
  "required": ["text"],
  "properties": {
    "text": {"type": "string"},
    "metadata": {"type": "object"}
  },
  "additionalProperties": false
}`)

var fixOutputSchema = json.RawMessage(`{
  "type": "object",
  "required": ["fixed", "outcome"],
  "properties": {
    "fixed": {"type": "boolean"},
    "output": {"type": "string"},
    "outcome": {"enum": ["passed", "failed", "indeterminate"]}
  }
}`)

var validateOutputSchema = json.RawMessage(`{
  "type": "object",
  "required": ["valid", "outcome"],
  "properties": {
    "valid": {"type": ["boolean", "null"]},
    "corrected": {"type": "boolean"},
    "outcome": {"enum": ["passed", "failed", "indeterminate"]}
  }
}`)

// RegisterGuardActions binds "{guardName}_fix" and "{guardName}_validate" to
// actions backed by g. Collisions are not checked here; whatever the
// registry's Register returns is passed back unchanged.
func RegisterGuardActions(reg Registrar, g guard.Guard, guardName string) error {
	if guardName == "" {
		return schema.NewError(schema.ErrCodeValidation, "guard name is empty")
	}
	if g == nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "guard %q is nil", guardName)
	}
	if err := reg.Register(&fixAction{guardName: guardName, guard: g}); err != nil {
		return err
	}
	return reg.Register(&validateAction{guardName: guardName, guard: g})
}

// RegisterGuards loads every definition from the catalog and only then
// registers the resulting actions, so a missing provider leaves reg untouched.
func RegisterGuards(reg Registrar, catalog *guard.Catalog, defs []guard.Definition) error {
	loaded, err := catalog.LoadAll(defs)
	if err != nil {
		return err
	}
	for _, l := range loaded {
		if err := RegisterGuardActions(reg, l.Guard, l.Definition.Name); err != nil {
			return err
		}
	}
	return nil
}

// Fix runs the guard on text and returns the validated output when the guard
// passed it. ok is false when no correction was produced. Errors from the
// guard are returned as is.
func Fix(ctx context.Context, g guard.Guard, text string, metadata guard.Metadata) (output string, ok bool, err error) {
	res, err := run(ctx, g, text, metadata)
	if err != nil {
		return "", false, err
	}
	if res.Outcome != guard.Passed {
		return "", false, nil
	}
	return res.ValidatedOutput, true, nil
}

// Check runs the guard on text. A pass is reported as Passed only when the
// guard left the text untouched; a pass that altered the text is Failed.
// Failed and Indeterminate outcomes from the guard are returned unchanged.
func Check(ctx context.Context, g guard.Guard, text string, metadata guard.Metadata) (guard.Outcome, error) {
	res, err := run(ctx, g, text, metadata)
	if err != nil {
		return guard.Indeterminate, err
	}
	return checkOutcome(res), nil
}

func checkOutcome(res *guard.Result) guard.Outcome {
	if res.Outcome != guard.Passed {
		return res.Outcome
	}
	return guard.OutcomeOf(res.ValidatedOutput == res.RawLLMOutput)
}

func run(ctx context.Context, g guard.Guard, text string, metadata guard.Metadata) (*guard.Result, error) {
	return g.Validate(ctx, text, metadata.Clone()).Await(ctx)
}

// guardParams extracts text and a per-call metadata map from action params.
func guardParams(params map[string]any) (string, guard.Metadata, error) {
	text, ok := params["text"].(string)
	if !ok {
		return "", nil, schema.NewError(schema.ErrCodeValidation, "'text' string parameter is required")
	}
	md := guard.Metadata{}
	switch raw := params["metadata"].(type) {
	case nil:
	case map[string]any:
		md = guard.Metadata(raw).Clone()
	case guard.Metadata:
		md = raw.Clone()
	default:
		return "", nil, schema.NewErrorf(schema.ErrCodeValidation, "'metadata' must be an object, got %T", raw)
	}
	return text, md, nil
}

// --- {guard}_fix ---

type fixAction struct {
	guardName string
	guard     guard.Guard
}

// FixOutput is the payload of a fix action. Output is set whenever Fixed is,
// including an empty correction.
type FixOutput struct {
	Fixed   bool          `json:"fixed"`
	Output  *string       `json:"output,omitempty"`
	Outcome guard.Outcome `json:"outcome"`
}

func (a *fixAction) Name() string { return FixActionName(a.guardName) }

func (a *fixAction) Schema() ActionSchema {
	return ActionSchema{
		InputSchema:  guardInputSchema,
		OutputSchema: fixOutputSchema,
		Description:  fmt.Sprintf("Return the output corrected by guard %q, or fixed=false when it does not pass", a.guardName),
	}
}

func (a *fixAction) Validate(input map[string]any) error {
	_, _, err := guardParams(input)
	return err
}

func (a *fixAction) Execute(ctx context.Context, input ActionInput) (*ActionOutput, error) {
	text, md, err := guardParams(input.Params)
	if err != nil {
		return nil, err
	}
	res, err := run(ctx, a.guard, text, md)
	if err != nil {
		return nil, err
	}

	out := FixOutput{Outcome: res.Outcome}
	if res.Outcome == guard.Passed {
		validated := res.ValidatedOutput
		out.Fixed = true
		out.Output = &validated
	}
	return marshalOutput(a.Name(), out)
}

// --- {guard}_validate ---

type validateAction struct {
	guardName string
	guard     guard.Guard
}

// ValidateOutput is the payload of a validate action. Valid is nil when the
// guard could not decide.
type ValidateOutput struct {
	Valid     *bool         `json:"valid"`
	Corrected bool          `json:"corrected,omitempty"`
	Outcome   guard.Outcome `json:"outcome"`
}

func (a *validateAction) Name() string { return ValidateActionName(a.guardName) }

func (a *validateAction) Schema() ActionSchema {
	return ActionSchema{
		InputSchema:  guardInputSchema,
		OutputSchema: validateOutputSchema,
		Description:  fmt.Sprintf("Report whether the text already satisfies guard %q without correction", a.guardName),
	}
}

func (a *validateAction) Validate(input map[string]any) error {
	_, _, err := guardParams(input)
	return err
}

func (a *validateAction) Execute(ctx context.Context, input ActionInput) (*ActionOutput, error) {
	text, md, err := guardParams(input.Params)
	if err != nil {
		return nil, err
	}
	res, err := run(ctx, a.guard, text, md)
	if err != nil {
		return nil, err
	}

	outcome := checkOutcome(res)
	return marshalOutput(a.Name(), ValidateOutput{
		Valid:     outcome.Bool(),
		Corrected: res.Corrected(),
		Outcome:   outcome,
	})
}

func marshalOutput(action string, v any) (*ActionOutput, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "marshal output: %v", err).WithAction(action)
	}
	return &ActionOutput{Data: data}, nil
}

// GuardNameOf returns the guard name behind a fix or validate action name.
func GuardNameOf(actionName string) (string, bool) {
	for _, suffix := range []string{FixSuffix, ValidateSuffix} {
		if name, ok := strings.CutSuffix(actionName, suffix); ok && name != "" {
			return name, true
		}
	}
	return "", false
}
