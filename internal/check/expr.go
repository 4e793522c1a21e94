package check

import (
	"fmt"
	"math/big"

	"github.com/google/cel-go/cel"

	"github.com/xiangxiecrypto/veritas-sub001/internal/extract"
)

// Expr passes when a CEL expression over the extracted value evaluates to
// true. The expression sees a single int variable named "value" holding the
// fixed-point integer, e.g. "value >= 600000 && value < 700000".
//
// Values outside the int64 range and expressions that error or yield a
// non-boolean all fail the check rather than aborting the scoring pass.
type Expr struct {
	Expression string
	program    cel.Program
}

// NewExpr compiles expression into an evaluable check. Compilation errors
// surface here so that administrative surfaces reject bad expressions at
// configuration time instead of at scoring time.
func NewExpr(expression string) (*Expr, error) {
	if expression == "" {
		return nil, fmt.Errorf("expr expression must not be empty")
	}
	env, err := cel.NewEnv(
		cel.Variable("value", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("creating CEL environment: %w", err)
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compiling expression: %w", issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("building program: %w", err)
	}
	return &Expr{Expression: expression, program: prg}, nil
}

func (*Expr) Kind() Kind { return KindExpr }

func (c *Expr) Evaluate(dataKey string, data []byte) (bool, *big.Int) {
	v, _ := extract.Value(data, dataKey)
	if !v.IsInt64() {
		return false, v
	}
	out, _, err := c.program.Eval(map[string]any{
		"value": v.Int64(),
	})
	if err != nil {
		return false, v
	}
	passed, ok := out.Value().(bool)
	return ok && passed, v
}
