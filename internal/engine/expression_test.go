package engine

import (
	"context"
	"testing"

	"flexbase-backend/internal/apperr"
)

func TestApplyExpression_FiltersRows(t *testing.T) {
	objects := amounts(500.0, 1000.0, 1500.0)

	got, err := applyExpression(objects, `modules.monetary.amount > 700`, NewExprEvaluator())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("matched %d rows, want 2 (%v)", len(got), ids(got))
	}
}

func TestApplyExpression_EmptyIsNoOp(t *testing.T) {
	objects := amounts(1.0, 2.0)

	got, err := applyExpression(objects, "", NewExprEvaluator())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatal("empty expression must pass every row through")
	}
}

func TestApplyExpression_InvalidExpressionIsValidationError(t *testing.T) {
	_, err := applyExpression(amounts(1.0), `modules.monetary.amount >`, NewExprEvaluator())
	var appErr *apperr.AppError
	if !asAppError(err, &appErr) || appErr.Code != "VALIDATION" {
		t.Fatalf("expected VALIDATION, got %v", err)
	}
}

func TestApplyExpression_RuntimeErrorExcludesRow(t *testing.T) {
	objects := []*ObjectWithModules{
		makeObject(0, map[string]map[string]any{"monetary": {"amount": 900.0}}),
		// No monetary blob: the comparison fails at runtime for this row.
		makeObject(1, map[string]map[string]any{"core": {"title": "x"}}),
	}

	got, err := applyExpression(objects, `modules.monetary.amount > 700`, NewExprEvaluator())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "obj-00" {
		t.Fatalf("matched %v, want only obj-00", ids(got))
	}
}

func TestApplyExpression_ObjectHeaderAvailable(t *testing.T) {
	objects := amounts(1.0, 2.0)

	got, err := applyExpression(objects, `object.id == "obj-01"`, NewExprEvaluator())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "obj-01" {
		t.Fatalf("matched %v, want only obj-01", ids(got))
	}
}

func TestEvaluate_ExpressionAppliesWithFilters(t *testing.T) {
	s := seededStore(5) // amounts 100..500
	e := NewEvaluator(testRegistry(), s)

	view := tableView()
	view.Expression = `modules.monetary.amount >= 200 and modules.monetary.amount <= 400`

	result, err := e.Evaluate(context.Background(), view, 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Total != 3 {
		t.Fatalf("total = %d, want 3", result.Total)
	}
}
