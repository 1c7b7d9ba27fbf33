// Package schema provides the JSON Schema model that drives form rendering,
// validation, and admin table CRUD. A FormSchema describes a named set of
// typed fields; the same schema document backs the public form endpoints and
// the admin dashboard for the corresponding database table.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// FieldType is the JSON Schema type of a single field.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeInteger FieldType = "integer"
	TypeBoolean FieldType = "boolean"
	TypeArray   FieldType = "array"
	TypeObject  FieldType = "object"
)

// String formats recognized by the validator and dispatcher.
const (
	FormatEmail    = "email"
	FormatDate     = "date"
	FormatDateTime = "date-time"
	FormatTextArea = "textarea"
	FormatURI      = "uri"
)

// FieldDefinition describes one schema-driven field: its type, display
// metadata, and validation constraints.
type FieldDefinition struct {
	Type        FieldType `json:"type"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Default     any       `json:"default,omitempty"`
	Format      string    `json:"format,omitempty"`

	// Enum constrains string fields to a closed value set; for array fields it
	// lists the valid member choices. EnumNames are positional display labels.
	Enum      []string `json:"enum,omitempty"`
	EnumNames []string `json:"enumNames,omitempty"`

	Minimum   *float64 `json:"minimum,omitempty"`
	Maximum   *float64 `json:"maximum,omitempty"`
	MinLength *int     `json:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`

	// ReadOnly fields are excluded from editing and from submitted payloads.
	ReadOnly bool `json:"readOnly,omitempty"`

	// Multiline requests a textarea even without format "textarea".
	Multiline bool `json:"multiline,omitempty"`
}

// Label returns the display name for a field: its title when set, otherwise
// the raw field name.
func (f FieldDefinition) Label(name string) string {
	if f.Title != "" {
		return f.Title
	}
	return name
}

// FormSchema is a named, ordered mapping of field name to FieldDefinition
// plus the set of required field names.
type FormSchema struct {
	Name        string                     `json:"$id,omitempty"`
	Title       string                     `json:"title,omitempty"`
	Description string                     `json:"description,omitempty"`
	Properties  map[string]FieldDefinition `json:"properties"`
	Required    []string                   `json:"required,omitempty"`

	// order preserves the property declaration order from the source document.
	order []string
}

// Parse decodes a JSON Schema document, preserving property order, and
// validates its structural invariants.
func Parse(data []byte) (*FormSchema, error) {
	var s FormSchema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}

	order, err := propertyOrder(data)
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	s.order = order

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// FieldNames returns the field names in declaration order.
func (s *FormSchema) FieldNames() []string {
	if len(s.order) == len(s.Properties) {
		return s.order
	}
	// Schemas constructed in code have no recorded order; fall back to a
	// stable sorted listing.
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EditableFieldNames returns the field names that are not read-only, in
// declaration order.
func (s *FormSchema) EditableFieldNames() []string {
	var names []string
	for _, name := range s.FieldNames() {
		if !s.Properties[name].ReadOnly {
			names = append(names, name)
		}
	}
	return names
}

// IsRequired reports whether the named field is in the schema's required set.
func (s *FormSchema) IsRequired(name string) bool {
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}

// Validate checks the schema's structural invariants: every required name
// must exist as a property, enum is only meaningful for string and array
// fields, and numeric bounds are only meaningful for number/integer fields.
func (s *FormSchema) Validate() error {
	if len(s.Properties) == 0 {
		return fmt.Errorf("schema %q has no properties", s.Name)
	}

	for _, name := range s.Required {
		if _, ok := s.Properties[name]; !ok {
			return fmt.Errorf("schema %q: required field %q is not declared", s.Name, name)
		}
	}

	for name, field := range s.Properties {
		if len(field.Enum) > 0 && field.Type != TypeString && field.Type != TypeArray {
			return fmt.Errorf("schema %q: field %q declares enum but has type %q", s.Name, name, field.Type)
		}
		if (field.Minimum != nil || field.Maximum != nil) &&
			field.Type != TypeNumber && field.Type != TypeInteger {
			return fmt.Errorf("schema %q: field %q declares numeric bounds but has type %q", s.Name, name, field.Type)
		}
		if len(field.EnumNames) > 0 && len(field.EnumNames) != len(field.Enum) {
			return fmt.Errorf("schema %q: field %q has %d enumNames for %d enum values",
				s.Name, name, len(field.EnumNames), len(field.Enum))
		}
	}

	return nil
}

// propertyOrder walks the raw JSON tokens to recover the key order of the
// top-level "properties" object, which encoding/json maps discard.
func propertyOrder(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	// Scan the top-level object for the "properties" key.
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("schema document is not a JSON object")
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := keyTok.(string)

		if key != "properties" {
			// Skip this key's value entirely.
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, err
			}
			continue
		}

		open, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if d, ok := open.(json.Delim); !ok || d != '{' {
			return nil, fmt.Errorf("properties is not a JSON object")
		}

		var order []string
		for dec.More() {
			nameTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			name, _ := nameTok.(string)
			order = append(order, name)

			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, err
			}
		}
		return order, nil
	}

	return nil, nil
}
