// Package guards holds the built-in guard providers: expression rules (expr,
// CEL), JSON checks (jq, JSON Schema), a remote guardrails server client and
// a chain combinator.
package guards

import (
	"context"
	"fmt"

	"github.com/rendis/opguard/internal/expressions"
	"github.com/rendis/opguard/internal/guard"
)

type compilingEngine interface {
	expressions.Engine
	Compile(expression string) error
}

// ruleGuard applies an optional rewrite expression and then an optional
// boolean rule to the rewritten text.
type ruleGuard struct {
	name    string
	engine  compilingEngine
	rule    string
	fix     string
	message string
}

func newRuleGuard(engine compilingEngine, def guard.Definition) (*ruleGuard, error) {
	g := &ruleGuard{
		name:    def.Name,
		engine:  engine,
		rule:    def.String("rule"),
		fix:     def.String("fix"),
		message: def.String("message"),
	}
	if g.rule == "" && g.fix == "" {
		return nil, fmt.Errorf("%s guard needs a 'rule' or a 'fix' expression", engine.Name())
	}
	for _, e := range []string{g.rule, g.fix} {
		if e == "" {
			continue
		}
		if err := g.engine.Compile(e); err != nil {
			return nil, err
		}
	}
	if g.message == "" && g.rule != "" {
		g.message = fmt.Sprintf("rule %q not satisfied", g.rule)
	}
	return g, nil
}

func (g *ruleGuard) Validate(ctx context.Context, llmOutput string, metadata guard.Metadata) *guard.Task {
	return guard.Ready(g.evaluate(ctx, llmOutput, metadata))
}

func (g *ruleGuard) evaluate(ctx context.Context, text string, metadata guard.Metadata) (*guard.Result, error) {
	fixed := text
	if g.fix != "" {
		v, err := g.engine.Evaluate(ctx, g.fix, expressions.NewScope(text, metadata))
		if err != nil {
			return nil, err
		}
		s, ok := v.(string)
		if !ok {
			return guard.Undecided(text, fmt.Sprintf("fix expression returned %T, want string", v)), nil
		}
		fixed = s
	}

	if g.rule != "" {
		v, err := g.engine.Evaluate(ctx, g.rule, expressions.NewScope(fixed, metadata))
		if err != nil {
			return nil, err
		}
		ok, isBool := v.(bool)
		if !isBool {
			return guard.Undecided(text, fmt.Sprintf("rule returned %T, want bool", v)), nil
		}
		if !ok {
			return guard.Fail(text, g.message), nil
		}
	}
	return guard.Pass(text, fixed), nil
}

// --- expr ---

// ExprProvider builds guards from expr-lang expressions.
//
//	kind: expr
//	config: {rule: "len(text) <= 280", fix: "trim(text)", message: "too long"}
type ExprProvider struct {
	engine *expressions.ExprEngine
}

// NewExprProvider creates an ExprProvider with its own compiled-program cache.
func NewExprProvider() *ExprProvider {
	return &ExprProvider{engine: expressions.NewExprEngine()}
}

func (p *ExprProvider) Kind() string { return "expr" }

func (p *ExprProvider) New(def guard.Definition) (guard.Guard, error) {
	return newRuleGuard(p.engine, def)
}

// --- cel ---

// CELProvider builds guards from CEL expressions.
//
//	kind: cel
//	config: {rule: "!text.contains('password')"}
type CELProvider struct {
	engine *expressions.CELEngine
}

// NewCELProvider creates a CELProvider.
func NewCELProvider() (*CELProvider, error) {
	e, err := expressions.NewCELEngine()
	if err != nil {
		return nil, err
	}
	return &CELProvider{engine: e}, nil
}

func (p *CELProvider) Kind() string { return "cel" }

func (p *CELProvider) New(def guard.Definition) (guard.Guard, error) {
	return newRuleGuard(p.engine, def)
}
