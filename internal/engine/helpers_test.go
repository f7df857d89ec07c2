package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"flexbase-backend/internal/apperr"
	"flexbase-backend/internal/metadata"
	"flexbase-backend/internal/store"
)

func asAppError(err error, target **apperr.AppError) bool {
	return errors.As(err, target)
}

// Test schema: a "deal" object type composed of a core module (title,
// status) and a monetary module (amount, closed_on).
func testRegistry() *metadata.Registry {
	core := &metadata.Module{
		ID:   "mod-core",
		Name: "core",
		Schema: []metadata.FieldDef{
			{Key: "title", Label: "Title", Type: metadata.FieldText},
			{Key: "status", Label: "Status", Type: metadata.FieldSelect, Options: []metadata.SelectOption{
				{Value: "new", Label: "New"},
				{Value: "won", Label: "Won", Color: "green"},
				{Value: "lost", Label: "Lost", Color: "red"},
			}},
		},
		IsActive: true,
	}
	monetary := &metadata.Module{
		ID:   "mod-monetary",
		Name: "monetary",
		Schema: []metadata.FieldDef{
			{Key: "amount", Label: "Amount", Type: metadata.FieldNumber},
			{Key: "closed_on", Label: "Closed on", Type: metadata.FieldDate},
		},
		IsActive: true,
	}
	deal := &metadata.ObjectType{ID: "type-deal", Name: "deal", DisplayName: "Deals", IsActive: true}

	reg := metadata.NewRegistry()
	reg.Load(
		[]*metadata.Module{core, monetary},
		[]*metadata.ObjectType{deal},
		[]metadata.ObjectTypeModule{
			{ObjectTypeID: "type-deal", ModuleID: "mod-core", Required: true, Position: 0},
			{ObjectTypeID: "type-deal", ModuleID: "mod-monetary", Required: false, Position: 1},
		},
	)
	return reg
}

func testFieldIndex(reg *metadata.Registry) *fieldIndex {
	return newFieldIndex(reg.Composition("type-deal"))
}

var testEpoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// makeObject builds a row with deterministic identity: id "obj-<n>" created n
// minutes after the epoch.
func makeObject(n int, modules map[string]map[string]any) *ObjectWithModules {
	if modules == nil {
		modules = map[string]map[string]any{}
	}
	return &ObjectWithModules{
		Object: metadata.Object{
			ID:           fmt.Sprintf("obj-%02d", n),
			ObjectTypeID: "type-deal",
			CreatedAt:    testEpoch.Add(time.Duration(n) * time.Minute),
		},
		Modules: modules,
	}
}

func ids(objects []*ObjectWithModules) []string {
	out := make([]string, len(objects))
	for i, o := range objects {
		out[i] = o.ID
	}
	return out
}

// stubStore is an in-memory ObjectStore for evaluator tests.
type stubStore struct {
	headers []metadata.Object
	records []metadata.ObjectModuleRecord

	err error

	lastOffset int
	lastLimit  int
}

func (s *stubStore) FetchHeaders(_ context.Context, objectTypeID string, offset, limit int) ([]metadata.Object, int, error) {
	if s.err != nil {
		return nil, 0, s.err
	}
	s.lastOffset, s.lastLimit = offset, limit

	var all []metadata.Object
	for _, h := range s.headers {
		if h.ObjectTypeID == objectTypeID {
			all = append(all, h)
		}
	}
	total := len(all)
	if limit > 0 {
		if offset >= len(all) {
			return nil, total, nil
		}
		end := offset + limit
		if end > len(all) {
			end = len(all)
		}
		all = all[offset:end]
	}
	return all, total, nil
}

func (s *stubStore) GetHeader(_ context.Context, objectID string) (metadata.Object, error) {
	if s.err != nil {
		return metadata.Object{}, s.err
	}
	for _, h := range s.headers {
		if h.ID == objectID {
			return h, nil
		}
	}
	return metadata.Object{}, store.ErrNotFound
}

func (s *stubStore) FetchModuleData(_ context.Context, objectIDs []string, moduleID string) ([]metadata.ObjectModuleRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	var idSet map[string]bool
	if objectIDs != nil {
		if len(objectIDs) == 0 {
			return nil, nil
		}
		idSet = make(map[string]bool, len(objectIDs))
		for _, id := range objectIDs {
			idSet[id] = true
		}
	}
	var out []metadata.ObjectModuleRecord
	for _, rec := range s.records {
		if idSet != nil && !idSet[rec.ObjectID] {
			continue
		}
		if moduleID != "" && rec.ModuleID != moduleID {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *stubStore) UpsertModuleData(context.Context, string, string, map[string]any) error {
	return s.err
}
func (s *stubStore) DeleteModuleData(context.Context, string, string) error { return s.err }
func (s *stubStore) InsertObject(context.Context, metadata.Object, map[string]map[string]any) error {
	return s.err
}
func (s *stubStore) DeleteObject(context.Context, string) error { return s.err }
func (s *stubStore) FetchRelations(context.Context, string, string) ([]metadata.ObjectRelation, error) {
	return nil, s.err
}
func (s *stubStore) CreateRelation(context.Context, metadata.ObjectRelation) error { return s.err }
func (s *stubStore) DeleteRelation(context.Context, string) error                  { return s.err }

// addObject registers a header plus its module blobs with the stub.
func (s *stubStore) addObject(n int, modules map[string]map[string]any) {
	obj := makeObject(n, modules)
	s.headers = append(s.headers, obj.Object)
	moduleIDs := map[string]string{"core": "mod-core", "monetary": "mod-monetary"}
	for name, data := range modules {
		s.records = append(s.records, metadata.ObjectModuleRecord{
			ID:       fmt.Sprintf("rec-%02d-%s", n, name),
			ObjectID: obj.ID,
			ModuleID: moduleIDs[name],
			Data:     data,
		})
	}
}
