package schema

// FieldKind is the closed set of input behaviors a field can render as.
// Dispatch from a FieldDefinition is pure and total: every definition maps
// to exactly one kind, with KindUnsupported as the non-fatal fallback.
type FieldKind int

const (
	KindUnsupported FieldKind = iota
	KindBoolean
	KindMultiSelect
	KindEmail
	KindDate
	KindTextArea
	KindSelect
	KindText
	KindNumber
)

// String returns the kind's name for display and logging.
func (k FieldKind) String() string {
	switch k {
	case KindBoolean:
		return "boolean"
	case KindMultiSelect:
		return "multiselect"
	case KindEmail:
		return "email"
	case KindDate:
		return "date"
	case KindTextArea:
		return "textarea"
	case KindSelect:
		return "select"
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	default:
		return "unsupported"
	}
}

// KindOf selects the single rendering behavior for a field definition.
//
// Dispatch order: boolean and array types are checked first, then string
// formats (email, date, textarea), then enum-constrained strings, then plain
// text; number and integer share the numeric behavior. Unknown types fall
// through to KindUnsupported rather than erroring.
func KindOf(f FieldDefinition) FieldKind {
	switch f.Type {
	case TypeBoolean:
		return KindBoolean

	case TypeArray:
		return KindMultiSelect

	case TypeString:
		switch f.Format {
		case FormatEmail:
			return KindEmail
		case FormatDate, FormatDateTime:
			return KindDate
		case FormatTextArea:
			return KindTextArea
		}
		if f.Multiline {
			return KindTextArea
		}
		if len(f.Enum) > 0 {
			return KindSelect
		}
		return KindText

	case TypeNumber, TypeInteger:
		return KindNumber

	default:
		return KindUnsupported
	}
}

// Options pairs enum values with their display labels for select and
// multi-select fields. When enumNames is absent or shorter than enum, the
// raw value doubles as its label.
func (f FieldDefinition) Options() []Option {
	opts := make([]Option, len(f.Enum))
	for i, v := range f.Enum {
		label := v
		if i < len(f.EnumNames) {
			label = f.EnumNames[i]
		}
		opts[i] = Option{Value: v, Label: label}
	}
	return opts
}

// Option is one selectable enum choice.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}
