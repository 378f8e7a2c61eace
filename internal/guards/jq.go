package guards

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rendis/opguard/internal/expressions"
	"github.com/rendis/opguard/internal/guard"
)

// JQProvider builds guards over JSON output with jq programs.
//
//	kind: jq
//	config: {filter: ".email |= ascii_downcase", condition: ".age >= 18"}
//
// The output must be a single JSON value. filter (optional) rewrites it and
// must produce exactly one value; condition (optional) must produce true on
// the rewritten value.
type JQProvider struct {
	engine *expressions.GoJQEngine
}

// NewJQProvider creates a JQProvider.
func NewJQProvider() *JQProvider {
	return &JQProvider{engine: expressions.NewGoJQEngine()}
}

func (p *JQProvider) Kind() string { return "jq" }

func (p *JQProvider) New(def guard.Definition) (guard.Guard, error) {
	g := &jqGuard{
		engine:    p.engine,
		filter:    def.String("filter"),
		condition: def.String("condition"),
	}
	for _, e := range []string{g.filter, g.condition} {
		if e == "" {
			continue
		}
		if err := p.engine.Compile(e); err != nil {
			return nil, err
		}
	}
	return g, nil
}

type jqGuard struct {
	engine    *expressions.GoJQEngine
	filter    string
	condition string
}

func (g *jqGuard) Validate(ctx context.Context, llmOutput string, metadata guard.Metadata) *guard.Task {
	return guard.Ready(g.evaluate(ctx, llmOutput, metadata))
}

func (g *jqGuard) evaluate(ctx context.Context, text string, metadata guard.Metadata) (*guard.Result, error) {
	if !expressions.IsJSON(text) {
		return guard.Fail(text, "output is not valid JSON"), nil
	}

	fixed := text
	scope := expressions.NewScope(text, metadata)
	if g.filter != "" {
		outs, err := g.engine.EvaluateAll(ctx, g.filter, scope)
		if err != nil {
			return nil, err
		}
		if len(outs) != 1 {
			return guard.Undecided(text, fmt.Sprintf("filter produced %d values, want 1", len(outs))), nil
		}
		b, err := json.Marshal(outs[0])
		if err != nil {
			return nil, fmt.Errorf("encode filtered output: %w", err)
		}
		fixed = string(b)
		scope = expressions.NewScope(fixed, metadata)
	}

	if g.condition != "" {
		v, err := g.engine.Evaluate(ctx, g.condition, scope)
		if err != nil {
			return nil, err
		}
		ok, isBool := v.(bool)
		if !isBool {
			return guard.Undecided(text, fmt.Sprintf("condition returned %T, want bool", v)), nil
		}
		if !ok {
			return guard.Fail(text, fmt.Sprintf("condition %q not satisfied", g.condition)), nil
		}
	}
	return guard.Pass(text, fixed), nil
}
