package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"flexbase-backend/internal/apperr"
	"flexbase-backend/internal/metadata"
)

// ViewStore persists saved views.
type ViewStore interface {
	ListByType(ctx context.Context, objectTypeID string) ([]metadata.View, error)
	Get(ctx context.Context, viewID string) (metadata.View, error)
	Insert(ctx context.Context, view metadata.View) error
	Update(ctx context.Context, view metadata.View) error
	Delete(ctx context.Context, viewID string) error
}

// ViewService manages saved views. Every object type carries exactly one
// default view, created lazily on first listing; the default view cannot be
// deleted, so an object type is never left without a way to browse its data.
type ViewService struct {
	registry *metadata.Registry
	views    ViewStore
}

func NewViewService(reg *metadata.Registry, views ViewStore) *ViewService {
	return &ViewService{registry: reg, views: views}
}

// List returns the views of one object type visible to the user: all
// workspace views plus the user's own unlisted ones. The default view is
// created here if the type has none yet.
func (s *ViewService) List(ctx context.Context, user *metadata.UserContext, objectTypeID string) ([]metadata.View, error) {
	objectType := s.registry.GetObjectType(objectTypeID)
	if objectType == nil {
		return nil, apperr.NotFound("object type", objectTypeID)
	}

	views, err := s.views.ListByType(ctx, objectTypeID)
	if err != nil {
		return nil, apperr.DBError("list views", err)
	}

	hasDefault := false
	for _, v := range views {
		if v.IsDefault {
			hasDefault = true
			break
		}
	}
	if !hasDefault {
		def, err := s.createDefault(ctx, objectType)
		if err != nil {
			return nil, err
		}
		views = append([]metadata.View{def}, views...)
	}

	visible := make([]metadata.View, 0, len(views))
	for _, v := range views {
		if v.Visibility == metadata.VisibilityUnlisted && v.CreatedBy != user.ID && !user.IsAdmin() {
			continue
		}
		visible = append(visible, v)
	}
	return visible, nil
}

// Get returns one view. Unlisted views resolve for anyone holding the id;
// unlisted hides a view from listings, it does not gate access.
func (s *ViewService) Get(ctx context.Context, viewID string) (*metadata.View, error) {
	view, err := s.views.Get(ctx, viewID)
	if err != nil {
		return nil, mapStoreError("view", viewID, err)
	}
	return &view, nil
}

// Create validates and persists a new view. Created views are never the
// default; the default exists from first listing and stays unique.
func (s *ViewService) Create(ctx context.Context, user *metadata.UserContext, view metadata.View) (*metadata.View, error) {
	if s.registry.GetObjectType(view.ObjectTypeID) == nil {
		return nil, apperr.NotFound("object type", view.ObjectTypeID)
	}
	if err := s.validate(&view); err != nil {
		return nil, err
	}

	view.ID = uuid.New().String()
	view.IsDefault = false
	view.CreatedBy = user.ID
	if err := s.views.Insert(ctx, view); err != nil {
		return nil, apperr.DBError("create view", err)
	}
	return &view, nil
}

// Update overwrites a view's configuration. The owning object type and the
// default flag are immutable.
func (s *ViewService) Update(ctx context.Context, viewID string, view metadata.View) (*metadata.View, error) {
	existing, err := s.views.Get(ctx, viewID)
	if err != nil {
		return nil, mapStoreError("view", viewID, err)
	}

	view.ID = existing.ID
	view.ObjectTypeID = existing.ObjectTypeID
	view.IsDefault = existing.IsDefault
	view.CreatedBy = existing.CreatedBy
	if err := s.validate(&view); err != nil {
		return nil, err
	}

	if err := s.views.Update(ctx, view); err != nil {
		return nil, mapStoreError("view", viewID, err)
	}
	return &view, nil
}

// Delete removes a view. The default view is refused so the object type
// always keeps at least one view.
func (s *ViewService) Delete(ctx context.Context, viewID string) error {
	view, err := s.views.Get(ctx, viewID)
	if err != nil {
		return mapStoreError("view", viewID, err)
	}
	if view.IsDefault {
		return apperr.Validation("the default view cannot be deleted")
	}
	if err := s.views.Delete(ctx, viewID); err != nil {
		return mapStoreError("view", viewID, err)
	}
	return nil
}

func (s *ViewService) createDefault(ctx context.Context, objectType *metadata.ObjectType) (metadata.View, error) {
	view := metadata.View{
		ID:           uuid.New().String(),
		ObjectTypeID: objectType.ID,
		Name:         fmt.Sprintf("All %s", objectType.DisplayName),
		LayoutType:   metadata.LayoutTable,
		IsDefault:    true,
		Visibility:   metadata.VisibilityWorkspace,
	}
	if err := s.views.Insert(ctx, view); err != nil {
		return metadata.View{}, apperr.DBError("create default view", err)
	}
	return view, nil
}

// validate checks layout, visibility, and field references against the
// object type's current composition.
func (s *ViewService) validate(view *metadata.View) error {
	if view.Name == "" {
		return apperr.Validation("view name is required")
	}
	if view.LayoutType == "" {
		view.LayoutType = metadata.LayoutTable
	}
	if view.LayoutType != metadata.LayoutTable && view.LayoutType != metadata.LayoutKanban {
		return apperr.Validation(fmt.Sprintf("unknown layout type: %s", view.LayoutType))
	}
	if view.Visibility == "" {
		view.Visibility = metadata.VisibilityWorkspace
	}
	if view.Visibility != metadata.VisibilityWorkspace && view.Visibility != metadata.VisibilityUnlisted {
		return apperr.Validation(fmt.Sprintf("unknown visibility: %s", view.Visibility))
	}
	for _, sort := range view.Sorts {
		if sort.Direction != metadata.SortAsc && sort.Direction != metadata.SortDesc {
			return apperr.Validation(fmt.Sprintf("unknown sort direction: %s", sort.Direction))
		}
	}

	fi := newFieldIndex(s.registry.Composition(view.ObjectTypeID))
	if err := validateFilters(view.Filters, fi); err != nil {
		return err
	}
	if err := validateSorts(view.Sorts, fi); err != nil {
		return err
	}
	if view.LayoutType == metadata.LayoutKanban {
		if _, _, err := resolveKanbanField(view, fi); err != nil {
			return err
		}
	}
	return nil
}
