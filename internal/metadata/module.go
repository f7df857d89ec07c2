package metadata

import "fmt"

// Field types supported by module schemas.
const (
	FieldText        = "text"
	FieldNumber      = "number"
	FieldBoolean     = "boolean"
	FieldDate        = "date"
	FieldDatetime    = "datetime"
	FieldSelect      = "select"
	FieldMultiselect = "multiselect"
	FieldURL         = "url"
)

var fieldTypes = map[string]bool{
	FieldText:        true,
	FieldNumber:      true,
	FieldBoolean:     true,
	FieldDate:        true,
	FieldDatetime:    true,
	FieldSelect:      true,
	FieldMultiselect: true,
	FieldURL:         true,
}

// IsValidFieldType reports whether t is one of the supported field types.
func IsValidFieldType(t string) bool {
	return fieldTypes[t]
}

type SelectOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Color string `json:"color,omitempty"`
}

type FieldDef struct {
	Key     string         `json:"key"`
	Label   string         `json:"label"`
	Type    string         `json:"type"`
	Options []SelectOption `json:"options,omitempty"`
}

// HasOption reports whether value is one of the declared select options.
func (f *FieldDef) HasOption(value string) bool {
	for _, o := range f.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}

// Module is a reusable group of typed fields that can be attached to one or
// more object types. Schema is never inferred from object data; it is mutated
// only through the admin registry operations.
type Module struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	DisplayName string     `json:"display_name"`
	Schema      []FieldDef `json:"schema"`
	IsActive    bool       `json:"is_active"`
}

// GetField returns a pointer to the field with the given key, or nil.
func (m *Module) GetField(key string) *FieldDef {
	for i := range m.Schema {
		if m.Schema[i].Key == key {
			return &m.Schema[i]
		}
	}
	return nil
}

// HasField returns true if the module schema has a field with the given key.
func (m *Module) HasField(key string) bool {
	return m.GetField(key) != nil
}

// FieldKeys returns all field keys in declaration order.
func (m *Module) FieldKeys() []string {
	keys := make([]string, len(m.Schema))
	for i, f := range m.Schema {
		keys[i] = f.Key
	}
	return keys
}

// Validate checks the module definition: non-empty name, unique field keys,
// known field types, options present on select/multiselect fields.
func (m *Module) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("module name is required")
	}
	seen := make(map[string]bool, len(m.Schema))
	for _, f := range m.Schema {
		if f.Key == "" {
			return fmt.Errorf("field key is required")
		}
		if seen[f.Key] {
			return fmt.Errorf("duplicate field key: %s", f.Key)
		}
		seen[f.Key] = true
		if !IsValidFieldType(f.Type) {
			return fmt.Errorf("field %s: unknown type %q", f.Key, f.Type)
		}
		if (f.Type == FieldSelect || f.Type == FieldMultiselect) && len(f.Options) == 0 {
			return fmt.Errorf("field %s: %s fields need at least one option", f.Key, f.Type)
		}
	}
	return nil
}
