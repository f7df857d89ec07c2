package store

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"flexbase-backend/internal/metadata"
)

// testStore opens an in-memory SQLite database with the system tables
// created, bypassing config so the suite needs no external database.
func testStore(t *testing.T) *Store {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)

	s := &Store{DB: db, Dialect: &SQLiteDialect{}, driver: "sqlite"}
	if _, err := db.Exec(s.Dialect.SystemTablesSQL()); err != nil {
		t.Fatalf("create system tables: %v", err)
	}
	return s
}

// seedDealSchema inserts the type and module rows the object rows reference.
func seedDealSchema(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()

	pb := s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("INSERT INTO _object_types (id, name, display_name) VALUES (%s, %s, %s)",
		pb.Add("type-deal"), pb.Add("deal"), pb.Add("Deals"))
	if _, err := s.DB.ExecContext(ctx, sqlStr, pb.Params()...); err != nil {
		t.Fatalf("seed object type: %v", err)
	}

	for _, name := range []string{"core", "monetary"} {
		pb = s.Dialect.NewParamBuilder()
		sqlStr = fmt.Sprintf("INSERT INTO _modules (id, name, display_name) VALUES (%s, %s, %s)",
			pb.Add("mod-"+name), pb.Add(name), pb.Add(name))
		if _, err := s.DB.ExecContext(ctx, sqlStr, pb.Params()...); err != nil {
			t.Fatalf("seed module %s: %v", name, err)
		}
	}
}

func insertDeal(t *testing.T, o *Objects, id string, blobs map[string]map[string]any) {
	t.Helper()
	obj := metadata.Object{
		ID:           id,
		ObjectTypeID: "type-deal",
		OwnerID:      "u1",
		CreatedBy:    "u1",
		CreatedAt:    time.Now(),
	}
	if err := o.InsertObject(context.Background(), obj, blobs); err != nil {
		t.Fatalf("insert object %s: %v", id, err)
	}
}

func TestUpsertModuleData_PreservesKeysAbsentFromWrite(t *testing.T) {
	s := testStore(t)
	seedDealSchema(t, s)
	objects := NewObjects(s)
	ctx := context.Background()

	insertDeal(t, objects, "obj-1", map[string]map[string]any{
		"mod-core": {"title": "Acme renewal", "legacy_key": "carried-over"},
	})

	err := objects.UpsertModuleData(ctx, "obj-1", "mod-core", map[string]any{
		"title": "Acme renewal Q3",
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	records, err := objects.FetchModuleData(ctx, []string{"obj-1"}, "mod-core")
	if err != nil {
		t.Fatalf("fetch module data: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	data := records[0].Data
	if data["title"] != "Acme renewal Q3" {
		t.Fatalf("title = %v, want overwritten value", data["title"])
	}
	if data["legacy_key"] != "carried-over" {
		t.Fatalf("legacy_key = %v, stored keys absent from the write must survive", data["legacy_key"])
	}
}

func TestUpsertModuleData_CreatesMissingBlob(t *testing.T) {
	s := testStore(t)
	seedDealSchema(t, s)
	objects := NewObjects(s)
	ctx := context.Background()

	insertDeal(t, objects, "obj-1", map[string]map[string]any{
		"mod-core": {"title": "Acme renewal"},
	})

	err := objects.UpsertModuleData(ctx, "obj-1", "mod-monetary", map[string]any{
		"amount": 1500.0,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	records, err := objects.FetchModuleData(ctx, []string{"obj-1"}, "mod-monetary")
	if err != nil {
		t.Fatalf("fetch module data: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if got, ok := records[0].Data["amount"].(float64); !ok || got != 1500.0 {
		t.Fatalf("amount = %v", records[0].Data["amount"])
	}
}

func TestUpsertModuleData_KeepsSingleRowPerObjectModule(t *testing.T) {
	s := testStore(t)
	seedDealSchema(t, s)
	objects := NewObjects(s)
	ctx := context.Background()

	insertDeal(t, objects, "obj-1", map[string]map[string]any{
		"mod-core": {"title": "first"},
	})
	for _, title := range []string{"second", "third"} {
		if err := objects.UpsertModuleData(ctx, "obj-1", "mod-core", map[string]any{"title": title}); err != nil {
			t.Fatalf("upsert %s: %v", title, err)
		}
	}

	records, err := objects.FetchModuleData(ctx, []string{"obj-1"}, "mod-core")
	if err != nil {
		t.Fatalf("fetch module data: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want one row per (object, module)", len(records))
	}
	if records[0].Data["title"] != "third" {
		t.Fatalf("title = %v, want last write", records[0].Data["title"])
	}
}
