// Package value implements type-aware coercion, comparison and formatting for
// module field values. Data blobs arrive as decoded JSON (map[string]any), so
// numbers are float64, multiselects are []any, and everything is validated
// against the resolved FieldDef at the read/write boundary instead of
// threading raw any values through the engine.
package value

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"flexbase-backend/internal/metadata"
)

const (
	dateLayout = "2006-01-02"
)

// IsEmpty reports whether v counts as empty: nil, empty string, or an empty
// multiselect slice.
func IsEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	case []string:
		return len(val) == 0
	default:
		return false
	}
}

// ToFloat coerces v to a float64. Strings are parsed; anything else
// non-numeric reports false.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// ToTime parses v as a date or datetime per the field type. time.Time values
// pass through.
func ToTime(v any, fieldType string) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, true
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return time.Time{}, false
		}
		if fieldType == metadata.FieldDate {
			if t, err := time.Parse(dateLayout, s); err == nil {
				return t, true
			}
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t, true
		}
		if t, err := time.Parse(dateLayout, s); err == nil {
			return t, true
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

// Display returns the stringified form of a value, used for `contains`
// matching and countBy grouping. Numbers are formatted without a trailing
// zero fraction; multiselects join their entries with ", ".
func Display(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = Display(item)
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(val, ", ")
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// Equal compares two values on their display strings, matching how the
// dynamic engine treats eq/neq across loosely typed payloads.
func Equal(a, b any) bool {
	return Display(a) == Display(b)
}

// Compare orders two non-empty values according to the field type. Returns
// <0, 0, >0. ok is false when either side cannot be interpreted as the field
// type (callers exclude such rows from ordered positions).
func Compare(a, b any, fieldType string) (int, bool) {
	switch fieldType {
	case metadata.FieldNumber:
		fa, okA := ToFloat(a)
		fb, okB := ToFloat(b)
		if !okA || !okB {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		default:
			return 0, true
		}
	case metadata.FieldDate, metadata.FieldDatetime:
		ta, okA := ToTime(a, fieldType)
		tb, okB := ToTime(b, fieldType)
		if !okA || !okB {
			return 0, false
		}
		switch {
		case ta.Before(tb):
			return -1, true
		case ta.After(tb):
			return 1, true
		default:
			return 0, true
		}
	case metadata.FieldBoolean:
		ba, okA := toBool(a)
		bb, okB := toBool(b)
		if !okA || !okB {
			return 0, false
		}
		switch {
		case !ba && bb:
			return -1, true
		case ba && !bb:
			return 1, true
		default:
			return 0, true
		}
	default:
		// text, select, multiselect, url: case-folded string order
		sa := strings.ToLower(Display(a))
		sb := strings.ToLower(Display(b))
		return strings.Compare(sa, sb), true
	}
}

func toBool(v any) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case string:
		b, err := strconv.ParseBool(val)
		return b, err == nil
	case float64:
		return val != 0, true
	default:
		return false, false
	}
}

// Validate checks a single value against its field definition. Nil is always
// accepted; required-ness is a composition concern, not a field one.
func Validate(v any, f *metadata.FieldDef) error {
	if v == nil {
		return nil
	}
	switch f.Type {
	case metadata.FieldText, metadata.FieldURL:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("field %s: expected string, got %T", f.Key, v)
		}
	case metadata.FieldNumber:
		if _, ok := ToFloat(v); !ok {
			return fmt.Errorf("field %s: expected number, got %v", f.Key, v)
		}
	case metadata.FieldBoolean:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("field %s: expected boolean, got %T", f.Key, v)
		}
	case metadata.FieldDate, metadata.FieldDatetime:
		if _, ok := ToTime(v, f.Type); !ok {
			return fmt.Errorf("field %s: expected %s, got %v", f.Key, f.Type, v)
		}
	case metadata.FieldSelect:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("field %s: expected string, got %T", f.Key, v)
		}
		if s != "" && !f.HasOption(s) {
			return fmt.Errorf("field %s: %q is not a declared option", f.Key, s)
		}
	case metadata.FieldMultiselect:
		items, ok := v.([]any)
		if !ok {
			return fmt.Errorf("field %s: expected array, got %T", f.Key, v)
		}
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("field %s: expected array of strings", f.Key)
			}
			if !f.HasOption(s) {
				return fmt.Errorf("field %s: %q is not a declared option", f.Key, s)
			}
		}
	default:
		return fmt.Errorf("field %s: unknown field type %q", f.Key, f.Type)
	}
	return nil
}
