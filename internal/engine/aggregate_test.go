package engine

import (
	"context"
	"testing"

	"flexbase-backend/internal/apperr"
)

func aggregateStore() *stubStore {
	s := &stubStore{}
	s.addObject(0, map[string]map[string]any{"monetary": {"amount": 500.0}})
	s.addObject(1, map[string]map[string]any{"monetary": {"amount": 1000.0}})
	s.addObject(2, map[string]map[string]any{"monetary": {"amount": 1500.0}})
	s.addObject(3, map[string]map[string]any{"monetary": {"amount": nil}})
	return s
}

func TestAggregate_SumExcludesNull(t *testing.T) {
	e := NewEvaluator(testRegistry(), aggregateStore())

	got, err := e.Aggregate(context.Background(), "type-deal", "monetary", "amount", AggSum)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 3000 {
		t.Fatalf("sum = %v, want 3000", got)
	}
}

func TestAggregate_CountSkipsNullButKeepsNonNumeric(t *testing.T) {
	s := aggregateStore()
	s.addObject(4, map[string]map[string]any{"monetary": {"amount": "pending"}})
	e := NewEvaluator(testRegistry(), s)

	got, err := e.Aggregate(context.Background(), "type-deal", "monetary", "amount", AggCount)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 3 numbers + 1 string count; the null does not.
	if got != 4 {
		t.Fatalf("count = %v, want 4", got)
	}
}

func TestAggregate_AvgDividesByContributingValues(t *testing.T) {
	s := aggregateStore()
	s.addObject(4, map[string]map[string]any{"monetary": {"amount": "pending"}})
	e := NewEvaluator(testRegistry(), s)

	got, err := e.Aggregate(context.Background(), "type-deal", "monetary", "amount", AggAvg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// (500+1000+1500) / 3 contributing values, not / 5 objects.
	if got != 1000 {
		t.Fatalf("avg = %v, want 1000", got)
	}
}

func TestAggregate_MinMax(t *testing.T) {
	e := NewEvaluator(testRegistry(), aggregateStore())

	minGot, err := e.Aggregate(context.Background(), "type-deal", "monetary", "amount", AggMin)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if minGot != 500 {
		t.Fatalf("min = %v, want 500", minGot)
	}

	maxGot, err := e.Aggregate(context.Background(), "type-deal", "monetary", "amount", AggMax)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if maxGot != 1500 {
		t.Fatalf("max = %v, want 1500", maxGot)
	}
}

func TestAggregate_EmptyPopulation(t *testing.T) {
	e := NewEvaluator(testRegistry(), &stubStore{})

	for _, fn := range []string{AggSum, AggAvg, AggCount, AggMin, AggMax} {
		got, err := e.Aggregate(context.Background(), "type-deal", "monetary", "amount", fn)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", fn, err)
		}
		if got != 0 {
			t.Fatalf("%s over empty population = %v, want 0", fn, got)
		}
	}
}

func TestAggregate_UnknownFieldAndFn(t *testing.T) {
	e := NewEvaluator(testRegistry(), aggregateStore())

	var appErr *apperr.AppError
	_, err := e.Aggregate(context.Background(), "type-deal", "monetary", "margin", AggSum)
	if !asAppError(err, &appErr) || appErr.Code != "VALIDATION" {
		t.Fatalf("unknown field: expected VALIDATION, got %v", err)
	}

	_, err = e.Aggregate(context.Background(), "type-deal", "monetary", "amount", "median")
	if !asAppError(err, &appErr) || appErr.Code != "VALIDATION" {
		t.Fatalf("unknown fn: expected VALIDATION, got %v", err)
	}

	_, err = e.Aggregate(context.Background(), "type-deal", "ledger", "amount", AggSum)
	if !asAppError(err, &appErr) || appErr.Code != "NOT_FOUND" {
		t.Fatalf("unknown module: expected NOT_FOUND, got %v", err)
	}
}

func TestCountBy_GroupsNullUnderSentinel(t *testing.T) {
	s := &stubStore{}
	s.addObject(0, map[string]map[string]any{"core": {"status": "won"}})
	s.addObject(1, map[string]map[string]any{"core": {"status": "won"}})
	s.addObject(2, map[string]map[string]any{"core": {"status": "new"}})
	s.addObject(3, map[string]map[string]any{"core": {"status": nil}})
	s.addObject(4, map[string]map[string]any{"core": {}})
	e := NewEvaluator(testRegistry(), s)

	counts, err := e.CountBy(context.Background(), "core", "status")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	byValue := make(map[string]int, len(counts))
	for _, c := range counts {
		byValue[c.Value] = c.Count
	}
	if byValue["won"] != 2 || byValue["new"] != 1 {
		t.Fatalf("distribution = %v", byValue)
	}
	if byValue[NullGroup] != 2 {
		t.Fatalf("null group = %d, want 2 (nil + missing)", byValue[NullGroup])
	}
	if _, ok := byValue[""]; ok {
		t.Fatal("null values must not collapse into the empty string group")
	}
}
