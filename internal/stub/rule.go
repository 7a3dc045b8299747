// Package stub is a reference prediction service. It answers the simulate
// contract by evaluating a CEL quality rule over the process parameters, which
// makes the panel usable without the trained model.
package stub

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"goldenbatch/internal/types"
)

// DefaultRule approximates the labelling of the training data.
const DefaultRule = "temperature > 180.0 && pressure < 30.0"

// costLimit bounds evaluation of operator-supplied expressions.
const costLimit = 1000000

// Rule is a compiled CEL expression deciding whether a batch passes.
type Rule struct {
	expr string
	prog cel.Program
}

// NewEnv declares the parameter variables available to rules.
func NewEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable(string(types.ParamTemperature), cel.DoubleType),
		cel.Variable(string(types.ParamPressure), cel.DoubleType),
		cel.Variable(string(types.ParamSpeed), cel.DoubleType),
	)
}

// CompileRule type-checks expr and prepares it for evaluation. Expressions
// whose static type is neither bool nor dyn are rejected.
func CompileRule(expr string) (*Rule, error) {
	env, err := NewEnv()
	if err != nil {
		return nil, fmt.Errorf("creating CEL environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("rule must evaluate to bool, got %s", out)
	}

	prog, err := env.Program(ast, cel.CostLimit(costLimit))
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}
	return &Rule{expr: expr, prog: prog}, nil
}

// Expression returns the source of the rule.
func (r *Rule) Expression() string {
	return r.expr
}

// Evaluate reports whether p passes the rule.
func (r *Rule) Evaluate(p types.ParameterSet) (bool, error) {
	out, _, err := r.prog.Eval(map[string]any{
		string(types.ParamTemperature): p.Temperature,
		string(types.ParamPressure):    p.Pressure,
		string(types.ParamSpeed):       p.Speed,
	})
	if err != nil {
		return false, fmt.Errorf("evaluation error: %w", err)
	}
	pass, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("rule returned %s, want bool", out.Type().TypeName())
	}
	return pass, nil
}
