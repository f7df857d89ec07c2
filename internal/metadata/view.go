package metadata

// View layouts.
const (
	LayoutTable  = "table"
	LayoutKanban = "kanban"
)

// View visibility.
const (
	VisibilityWorkspace = "workspace"
	VisibilityUnlisted  = "unlisted"
)

// Filter operators.
const (
	OpEq         = "eq"
	OpNeq        = "neq"
	OpContains   = "contains"
	OpGt         = "gt"
	OpLt         = "lt"
	OpGte        = "gte"
	OpLte        = "lte"
	OpIsEmpty    = "is_empty"
	OpIsNotEmpty = "is_not_empty"
	OpIn         = "in"
)

var operators = map[string]bool{
	OpEq: true, OpNeq: true, OpContains: true,
	OpGt: true, OpLt: true, OpGte: true, OpLte: true,
	OpIsEmpty: true, OpIsNotEmpty: true, OpIn: true,
}

// IsValidOperator reports whether op is a known filter operator.
func IsValidOperator(op string) bool {
	return operators[op]
}

// Filter is one predicate of a view: module-qualified field, operator, value.
type Filter struct {
	Module   string `json:"module"`
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// NeedsValue reports whether the operator requires a comparison value.
// Filters with a value-requiring operator and a nil value are skipped during
// evaluation rather than matching nothing, so a half-built filter in a UI
// does not blank the result set.
func (f Filter) NeedsValue() bool {
	return f.Operator != OpIsEmpty && f.Operator != OpIsNotEmpty
}

// Sort directions.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// Sort is a module-qualified field plus direction. Only the first configured
// sort is applied as the primary order; creation time ascending is the fixed
// tie-break.
type Sort struct {
	Module    string `json:"module"`
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

// FieldRef identifies a visible column of a view.
type FieldRef struct {
	Module string `json:"module"`
	Field  string `json:"field"`
}

// View is a saved, shareable configuration of filters, sort, visible fields
// and layout over one object type. Exactly one view per object type has
// IsDefault set; it is created on first access and cannot be deleted.
type View struct {
	ID               string     `json:"id"`
	ObjectTypeID     string     `json:"object_type_id"`
	Name             string     `json:"name"`
	LayoutType       string     `json:"layout_type"`
	Filters          []Filter   `json:"filters"`
	Sorts            []Sort     `json:"sorts"`
	VisibleFields    []FieldRef `json:"visible_fields"`
	Expression       string     `json:"expression,omitempty"`
	KanbanModuleName string     `json:"kanban_module_name,omitempty"`
	KanbanFieldKey   string     `json:"kanban_field_key,omitempty"`
	IsDefault        bool       `json:"is_default"`
	Visibility       string     `json:"visibility"`
	CreatedBy        string     `json:"created_by"`
}
