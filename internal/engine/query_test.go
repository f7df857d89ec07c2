package engine

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"flexbase-backend/internal/apperr"
	"flexbase-backend/internal/metadata"
)

func seededStore(n int) *stubStore {
	s := &stubStore{}
	for i := 0; i < n; i++ {
		s.addObject(i, map[string]map[string]any{
			"core":     {"title": fmt.Sprintf("deal %02d", i), "status": "new"},
			"monetary": {"amount": float64((i + 1) * 100)},
		})
	}
	return s
}

func tableView() *metadata.View {
	return &metadata.View{
		ID:           "view-1",
		ObjectTypeID: "type-deal",
		LayoutType:   metadata.LayoutTable,
	}
}

func TestEvaluate_PushesPaginationDownWhenNothingToEvaluate(t *testing.T) {
	s := seededStore(7)
	e := NewEvaluator(testRegistry(), s)

	result, err := e.Evaluate(context.Background(), tableView(), 2, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Total != 7 {
		t.Fatalf("total = %d, want 7", result.Total)
	}
	if got := ids(result.Objects); !reflect.DeepEqual(got, []string{"obj-03", "obj-04", "obj-05"}) {
		t.Fatalf("page 2 = %v", got)
	}
	if s.lastLimit != 3 || s.lastOffset != 3 {
		t.Fatalf("expected pushed-down limit 3 offset 3, got limit %d offset %d", s.lastLimit, s.lastOffset)
	}
}

func TestEvaluate_FilterForcesFullScanAndPrePaginationTotal(t *testing.T) {
	s := seededStore(7)
	e := NewEvaluator(testRegistry(), s)

	view := tableView()
	view.Filters = []metadata.Filter{
		{Module: "monetary", Field: "amount", Operator: metadata.OpGte, Value: 300.0},
	}

	result, err := e.Evaluate(context.Background(), view, 1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Amounts 300..700 match: 5 objects, total counted before paging.
	if result.Total != 5 {
		t.Fatalf("total = %d, want 5", result.Total)
	}
	if got := ids(result.Objects); !reflect.DeepEqual(got, []string{"obj-02", "obj-03"}) {
		t.Fatalf("page 1 = %v", got)
	}
	if s.lastLimit != 0 {
		t.Fatalf("expected full-scan fetch, got pushed limit %d", s.lastLimit)
	}
}

func TestEvaluate_SortAppliesBeforePagination(t *testing.T) {
	s := seededStore(4)
	e := NewEvaluator(testRegistry(), s)

	view := tableView()
	view.Sorts = []metadata.Sort{
		{Module: "monetary", Field: "amount", Direction: metadata.SortDesc},
	}

	result, err := e.Evaluate(context.Background(), view, 1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ids(result.Objects); !reflect.DeepEqual(got, []string{"obj-03", "obj-02"}) {
		t.Fatalf("sorted page = %v", got)
	}
	if result.Total != 4 {
		t.Fatalf("total = %d, want 4", result.Total)
	}
}

func TestEvaluate_UnknownObjectType(t *testing.T) {
	e := NewEvaluator(testRegistry(), &stubStore{})
	view := tableView()
	view.ObjectTypeID = "type-missing"

	_, err := e.Evaluate(context.Background(), view, 1, 10)
	var appErr *apperr.AppError
	if !asAppError(err, &appErr) || appErr.Code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestEvaluate_UnknownFilterFieldRejected(t *testing.T) {
	e := NewEvaluator(testRegistry(), seededStore(1))
	view := tableView()
	view.Filters = []metadata.Filter{
		{Module: "monetary", Field: "margin", Operator: metadata.OpGt, Value: 1.0},
	}

	_, err := e.Evaluate(context.Background(), view, 1, 10)
	var appErr *apperr.AppError
	if !asAppError(err, &appErr) || appErr.Code != "VALIDATION" {
		t.Fatalf("expected VALIDATION, got %v", err)
	}
}

func TestEvaluate_StoreFailureSurfacesAsDBError(t *testing.T) {
	s := seededStore(2)
	s.err = fmt.Errorf("connection reset")
	e := NewEvaluator(testRegistry(), s)

	_, err := e.Evaluate(context.Background(), tableView(), 1, 10)
	var appErr *apperr.AppError
	if !asAppError(err, &appErr) || appErr.Code != "DB_ERROR" {
		t.Fatalf("expected DB_ERROR, got %v", err)
	}
}

func TestEvaluate_ClampsPageSizeToMax(t *testing.T) {
	s := seededStore(3)
	e := NewEvaluator(testRegistry(), s)
	e.SetPageBounds(10, 50)

	if _, err := e.Evaluate(context.Background(), tableView(), 1, 9999); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.lastLimit != 50 {
		t.Fatalf("page size should clamp to 50, got %d", s.lastLimit)
	}

	if _, err := e.Evaluate(context.Background(), tableView(), 1, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.lastLimit != 10 {
		t.Fatalf("page size 0 should use default 10, got %d", s.lastLimit)
	}
}

func TestEvaluate_SkipsBlobsOutsideComposition(t *testing.T) {
	s := seededStore(1)
	// Leftover blob from a module detached from the type.
	s.records = append(s.records, metadata.ObjectModuleRecord{
		ID: "rec-stale", ObjectID: "obj-00", ModuleID: "mod-stale",
		Data: map[string]any{"x": 1.0},
	})
	e := NewEvaluator(testRegistry(), s)

	result, err := e.Evaluate(context.Background(), tableView(), 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := result.Objects[0].Modules["stale"]; ok {
		t.Fatal("blob of a module outside the composition must not be joined")
	}
	if len(result.Objects[0].Modules) != 2 {
		t.Fatalf("modules = %v", result.Objects[0].Modules)
	}
}

func TestEvaluateKanban_BucketsThePage(t *testing.T) {
	s := &stubStore{}
	s.addObject(0, map[string]map[string]any{"core": {"status": "new"}})
	s.addObject(1, map[string]map[string]any{"core": {"status": "won"}})
	s.addObject(2, map[string]map[string]any{"core": {}})
	e := NewEvaluator(testRegistry(), s)

	view := tableView()
	view.LayoutType = metadata.LayoutKanban

	result, err := e.EvaluateKanban(context.Background(), view, 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Module != "core" || result.Field != "status" {
		t.Fatalf("grouping field = %s.%s", result.Module, result.Field)
	}
	if result.Total != 3 {
		t.Fatalf("total = %d, want 3", result.Total)
	}
	if b := bucketByValue(result.Buckets, UncategorizedBucket); b == nil || len(b.Objects) != 1 {
		t.Fatalf("uncategorized bucket = %+v", b)
	}
}

func TestGet_JoinsModulesAndRelations(t *testing.T) {
	s := seededStore(1)
	e := NewEvaluator(testRegistry(), s)

	obj, from, to, err := e.Get(context.Background(), "obj-00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obj.FieldValue("monetary", "amount") != 100.0 {
		t.Fatalf("amount = %v", obj.FieldValue("monetary", "amount"))
	}
	if from != nil || to != nil {
		t.Fatalf("expected no relations, got from=%v to=%v", from, to)
	}
}

func TestGet_UnknownObject(t *testing.T) {
	e := NewEvaluator(testRegistry(), &stubStore{})

	_, _, _, err := e.Get(context.Background(), "obj-99")
	var appErr *apperr.AppError
	if !asAppError(err, &appErr) || appErr.Code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}
