package expressions

import "context"

// Engine evaluates guard expressions against a scope built by NewScope.
// Three implementations: CEL (rules), Expr (rules and rewrites), GoJQ (JSON transforms).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
