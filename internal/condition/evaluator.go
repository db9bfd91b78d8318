// Package condition evaluates the boolean expressions used by workflow
// conditional and loop steps. Expressions are compiled and run inside the
// expr sandbox; no host code is ever executed.
package condition

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/expr-lang/expr"
)

var varRef = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)

type Evaluator struct{}

func New() *Evaluator {
	return &Evaluator{}
}

// Evaluate substitutes $name references with the JSON-serialized value from
// the context, then compiles and runs the expression. Context keys are also
// exposed directly as identifiers. Unknown $name references become nil.
func (e *Evaluator) Evaluate(expression string, context map[string]any) (bool, error) {
	substituted := Substitute(expression, context)

	program, err := expr.Compile(substituted, expr.Env(context), expr.AsBool(), expr.AllowUndefinedVariables())
	if err != nil {
		return false, fmt.Errorf("compile condition %q: %w", expression, err)
	}
	out, err := expr.Run(program, context)
	if err != nil {
		return false, fmt.Errorf("evaluate condition %q: %w", expression, err)
	}
	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q: non-boolean result %v", expression, out)
	}
	return result, nil
}

// Substitute replaces every $name reference with the JSON encoding of
// context[name], or nil when the name is absent.
func Substitute(expression string, context map[string]any) string {
	return varRef.ReplaceAllStringFunc(expression, func(ref string) string {
		name := ref[1:]
		v, ok := context[name]
		if !ok {
			return "nil"
		}
		data, err := json.Marshal(v)
		if err != nil {
			return "nil"
		}
		return string(data)
	})
}
