package safety

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/decls"
	"github.com/google/cel-go/common/types"

	"github.com/Mindburn-Labs/conclave/pkg/policy"
	"github.com/Mindburn-Labs/conclave/pkg/worker"
)

// RuleEngine evaluates CEL predicates against proposals. Each rule sees the
// variables content, rationale, confidence, kind and metadata, and must
// yield a boolean. Rules are compiled once at load and evaluated in load
// order.
type RuleEngine struct {
	mu       sync.RWMutex
	env      *cel.Env
	programs map[string]cel.Program
	order    []string
}

// NewRuleEngine compiles the given rules into a ready engine.
func NewRuleEngine(rules []policy.Rule) (*RuleEngine, error) {
	env, err := cel.NewEnv(
		cel.VariableDecls(
			decls.NewVariable("content", types.StringType),
			decls.NewVariable("rationale", types.StringType),
			decls.NewVariable("confidence", types.DoubleType),
			decls.NewVariable("kind", types.StringType),
			decls.NewVariable("metadata", types.NewMapType(types.StringType, types.DynType)),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	e := &RuleEngine{
		env:      env,
		programs: make(map[string]cel.Program),
	}
	for _, r := range rules {
		if err := e.Load(r.Name, r.Expr); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Load compiles and registers a rule. Reloading a name replaces its program
// but keeps its evaluation position.
func (e *RuleEngine) Load(name, source string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ast, issues := e.env.Compile(source)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("rule %s compilation failed: %w", name, issues.Err())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return fmt.Errorf("rule %s program construction failed: %w", name, err)
	}

	if _, exists := e.programs[name]; !exists {
		e.order = append(e.order, name)
	}
	e.programs[name] = prg
	return nil
}

// Evaluate runs every rule against the proposal in load order. It returns
// false with the rule name on the first rule that fails or errors; callers
// treat evaluation errors as rejection (fail closed).
func (e *RuleEngine) Evaluate(p *worker.Proposal) (bool, string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	metadata := p.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	input := map[string]any{
		"content":    p.Content,
		"rationale":  p.Rationale,
		"confidence": p.Confidence,
		"kind":       string(p.Kind),
		"metadata":   metadata,
	}

	for _, name := range e.order {
		out, _, err := e.programs[name].Eval(input)
		if err != nil {
			return false, name, fmt.Errorf("evaluation error: %w", err)
		}
		allowed, ok := out.Value().(bool)
		if !ok {
			return false, name, fmt.Errorf("rule yielded %T, want bool", out.Value())
		}
		if !allowed {
			return false, name, nil
		}
	}
	return true, "", nil
}
