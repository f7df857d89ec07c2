package engine

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"flexbase-backend/internal/apperr"
)

// ExprEvaluator evaluates a view's optional advanced filter expression
// against an object's joined module data. Compiled programs are cached by
// expression string; the cache is shared across concurrent evaluations.
type ExprEvaluator struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

func NewExprEvaluator() *ExprEvaluator {
	return &ExprEvaluator{cache: make(map[string]*vm.Program)}
}

func (e *ExprEvaluator) program(expression string) (*vm.Program, error) {
	e.mu.RLock()
	prog, ok := e.cache[expression]
	e.mu.RUnlock()
	if ok {
		return prog, nil
	}

	prog, err := expr.Compile(expression, expr.AsBool())
	if err != nil {
		return nil, apperr.Validation(fmt.Sprintf("invalid view expression: %v", err))
	}

	e.mu.Lock()
	e.cache[expression] = prog
	e.mu.Unlock()
	return prog, nil
}

// Match runs the expression against one object. The environment exposes the
// joined blobs as `modules.<module>.<field>` plus the identity header under
// `object`. Evaluation errors exclude the row rather than failing the whole
// view.
func (e *ExprEvaluator) Match(expression string, obj *ObjectWithModules) (bool, error) {
	prog, err := e.program(expression)
	if err != nil {
		return false, err
	}

	env := map[string]any{
		"modules": obj.Modules,
		"object": map[string]any{
			"id":         obj.ID,
			"owner_id":   obj.OwnerID,
			"created_by": obj.CreatedBy,
			"created_at": obj.CreatedAt,
		},
	}

	result, runErr := expr.Run(prog, env)
	if runErr != nil {
		return false, nil
	}
	matched, ok := result.(bool)
	return ok && matched, nil
}

// applyExpression filters objects by the view expression. An empty
// expression is a no-op.
func applyExpression(objects []*ObjectWithModules, expression string, e *ExprEvaluator) ([]*ObjectWithModules, error) {
	if expression == "" {
		return objects, nil
	}
	matched := make([]*ObjectWithModules, 0, len(objects))
	for _, obj := range objects {
		ok, err := e.Match(expression, obj)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, obj)
		}
	}
	return matched, nil
}
