package guards

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rendis/opguard/internal/guard"
)

// ChainProvider composes guards already known to a catalog:
//
//	kind: chain
//	config:
//	  guards:
//	    - {name: trim, kind: expr, config: {fix: "trim(text)"}}
//	    - {name: short, kind: cel, config: {rule: "size(text) < 280"}}
//
// Members run in order, each seeing the previous member's validated output.
// The first member that does not pass decides the outcome.
type ChainProvider struct {
	catalog *guard.Catalog
}

// NewChainProvider creates a ChainProvider that loads members from catalog.
func NewChainProvider(catalog *guard.Catalog) *ChainProvider {
	return &ChainProvider{catalog: catalog}
}

func (p *ChainProvider) Kind() string { return "chain" }

func (p *ChainProvider) New(def guard.Definition) (guard.Guard, error) {
	members, err := memberDefinitions(def)
	if err != nil {
		return nil, err
	}
	loaded, err := p.catalog.LoadAll(members)
	if err != nil {
		return nil, err
	}
	c := &Chain{}
	for _, l := range loaded {
		c.guards = append(c.guards, l.Guard)
	}
	return c, nil
}

func memberDefinitions(def guard.Definition) ([]guard.Definition, error) {
	raw, ok := def.Config["guards"]
	if !ok {
		return nil, fmt.Errorf("config %q is required", "guards")
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode chain members: %w", err)
	}
	var members []guard.Definition
	if err := json.Unmarshal(b, &members); err != nil {
		return nil, fmt.Errorf("chain members must be a list of guard definitions: %w", err)
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("chain %q has no members", def.Name)
	}
	for i := range members {
		if members[i].Name == "" {
			members[i].Name = fmt.Sprintf("%s[%d]", def.Name, i)
		}
	}
	return members, nil
}

// Chain runs guards in sequence.
type Chain struct {
	guards []guard.Guard
}

// NewChain builds a Chain directly from guards.
func NewChain(guards ...guard.Guard) *Chain {
	return &Chain{guards: guards}
}

// Validate resolves as soon as every member up to the deciding one has resolved.
func (c *Chain) Validate(ctx context.Context, llmOutput string, metadata guard.Metadata) *guard.Task {
	return guard.Go(func() (*guard.Result, error) {
		current := llmOutput
		for _, g := range c.guards {
			res, err := g.Validate(ctx, current, metadata.Clone()).Await(ctx)
			if err != nil {
				return nil, err
			}
			if res.Outcome != guard.Passed {
				return &guard.Result{Outcome: res.Outcome, RawLLMOutput: llmOutput, Reasons: res.Reasons}, nil
			}
			current = res.ValidatedOutput
		}
		return guard.Pass(llmOutput, current), nil
	})
}
