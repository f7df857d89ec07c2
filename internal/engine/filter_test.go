package engine

import (
	"testing"

	"flexbase-backend/internal/metadata"
)

func amounts(values ...any) []*ObjectWithModules {
	objects := make([]*ObjectWithModules, len(values))
	for i, v := range values {
		data := map[string]map[string]any{"monetary": {}}
		if v != nil {
			data["monetary"]["amount"] = v
		}
		objects[i] = makeObject(i, data)
	}
	return objects
}

func TestApplyFilters_NilValueIsNoOp(t *testing.T) {
	fi := testFieldIndex(testRegistry())
	objects := amounts(500.0, 1000.0, 1500.0, nil)

	filters := []metadata.Filter{
		{Module: "monetary", Field: "amount", Operator: metadata.OpGte, Value: nil},
	}
	got := applyFilters(objects, filters, fi)
	if len(got) != 4 {
		t.Fatalf("expected all 4 objects (filter skipped), got %d", len(got))
	}
}

func TestApplyFilters_GteExcludesNullAndBelow(t *testing.T) {
	fi := testFieldIndex(testRegistry())
	objects := amounts(500.0, 1000.0, 1500.0, nil)

	filters := []metadata.Filter{
		{Module: "monetary", Field: "amount", Operator: metadata.OpGte, Value: 1000.0},
	}
	got := applyFilters(objects, filters, fi)
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d (%v)", len(got), ids(got))
	}
	for _, obj := range got {
		if f, _ := obj.FieldValue("monetary", "amount").(float64); f < 1000 {
			t.Fatalf("object %s with amount %v should not match", obj.ID, f)
		}
	}
}

func TestApplyFilters_AllMustMatch(t *testing.T) {
	fi := testFieldIndex(testRegistry())
	objects := []*ObjectWithModules{
		makeObject(0, map[string]map[string]any{
			"core":     {"status": "won"},
			"monetary": {"amount": 2000.0},
		}),
		makeObject(1, map[string]map[string]any{
			"core":     {"status": "won"},
			"monetary": {"amount": 100.0},
		}),
		makeObject(2, map[string]map[string]any{
			"core":     {"status": "lost"},
			"monetary": {"amount": 3000.0},
		}),
	}

	filters := []metadata.Filter{
		{Module: "core", Field: "status", Operator: metadata.OpEq, Value: "won"},
		{Module: "monetary", Field: "amount", Operator: metadata.OpGt, Value: 500.0},
	}
	got := applyFilters(objects, filters, fi)
	if len(got) != 1 || got[0].ID != "obj-00" {
		t.Fatalf("expected only obj-00, got %v", ids(got))
	}
}

func TestMatchFilter_ContainsIsCaseInsensitive(t *testing.T) {
	fi := testFieldIndex(testRegistry())
	obj := makeObject(0, map[string]map[string]any{
		"core": {"title": "Enterprise License Renewal"},
	})

	f := metadata.Filter{Module: "core", Field: "title", Operator: metadata.OpContains, Value: "license"}
	if !matchFilter(obj, f, fi) {
		t.Fatal("expected case-insensitive substring match")
	}

	f.Value = "pilot"
	if matchFilter(obj, f, fi) {
		t.Fatal("expected no match for absent substring")
	}
}

func TestMatchFilter_IsEmptyTreatsMissingModuleAsEmpty(t *testing.T) {
	fi := testFieldIndex(testRegistry())
	obj := makeObject(0, map[string]map[string]any{"core": {"title": "x"}})

	f := metadata.Filter{Module: "monetary", Field: "amount", Operator: metadata.OpIsEmpty}
	if !matchFilter(obj, f, fi) {
		t.Fatal("object without the monetary blob should match is_empty")
	}
	f.Operator = metadata.OpIsNotEmpty
	if matchFilter(obj, f, fi) {
		t.Fatal("object without the monetary blob should not match is_not_empty")
	}
}

func TestMatchFilter_In(t *testing.T) {
	fi := testFieldIndex(testRegistry())
	obj := makeObject(0, map[string]map[string]any{"core": {"status": "won"}})

	f := metadata.Filter{
		Module: "core", Field: "status", Operator: metadata.OpIn,
		Value: []any{"new", "won"},
	}
	if !matchFilter(obj, f, fi) {
		t.Fatal("expected membership match")
	}

	f.Value = []any{"lost"}
	if matchFilter(obj, f, fi) {
		t.Fatal("expected no membership match")
	}
}

func TestMatchFilter_DateComparison(t *testing.T) {
	fi := testFieldIndex(testRegistry())
	obj := makeObject(0, map[string]map[string]any{
		"monetary": {"closed_on": "2024-06-15"},
	})

	f := metadata.Filter{Module: "monetary", Field: "closed_on", Operator: metadata.OpGt, Value: "2024-06-01"}
	if !matchFilter(obj, f, fi) {
		t.Fatal("2024-06-15 should be greater than 2024-06-01")
	}
	f.Operator = metadata.OpLt
	if matchFilter(obj, f, fi) {
		t.Fatal("2024-06-15 should not be less than 2024-06-01")
	}
}

func TestMatchFilter_UncoercibleOrderedValueExcludesRow(t *testing.T) {
	fi := testFieldIndex(testRegistry())
	obj := makeObject(0, map[string]map[string]any{
		"monetary": {"amount": "n/a"},
	})

	f := metadata.Filter{Module: "monetary", Field: "amount", Operator: metadata.OpLte, Value: 100.0}
	if matchFilter(obj, f, fi) {
		t.Fatal("uncoercible value must not satisfy an ordered comparison")
	}
}
