package schema

// validate.go decides whether values satisfy a schema. Validation never
// mutates form state; it returns at most one human-readable message per
// field, short-circuiting in a fixed rule order:
//
//  1. Required check (boolean false counts as present)
//  2. Empty + not required => valid, skip everything else
//  3. Type-specific checks (boolean, numeric bounds, string formats, array
//     membership)
//  4. Pattern match for strings
//  5. Enum membership for strings

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// emailPattern is the standard email-shape check used across the site.
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// IsEmptyValue reports whether a value counts as absent: nil, the empty or
// whitespace-only string, or an empty array. Boolean false is NOT empty;
// required boolean fields accept false as a valid answer.
func IsEmptyValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case []string:
		return len(v) == 0
	default:
		return false
	}
}

// ValidateField checks a single value against its field definition.
// It returns "" when the value is valid, otherwise exactly one message.
func ValidateField(value any, field FieldDefinition, name string, s *FormSchema) string {
	label := field.Label(name)

	if s.IsRequired(name) {
		if field.Type == TypeBoolean && value == false {
			// false is a present answer for a required boolean
		} else if IsEmptyValue(value) {
			return fmt.Sprintf("%s is required", label)
		}
	}

	if IsEmptyValue(value) {
		return ""
	}

	switch field.Type {
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Sprintf("%s must be a boolean", label)
		}

	case TypeNumber, TypeInteger:
		n, ok := toNumber(value)
		if !ok {
			return fmt.Sprintf("%s must be a number", label)
		}
		if field.Type == TypeInteger && n != float64(int64(n)) {
			return fmt.Sprintf("%s must be an integer", label)
		}
		if field.Minimum != nil && n < *field.Minimum {
			return fmt.Sprintf("%s cannot be less than %s", label, formatBound(*field.Minimum))
		}
		if field.Maximum != nil && n > *field.Maximum {
			return fmt.Sprintf("%s cannot be greater than %s", label, formatBound(*field.Maximum))
		}

	case TypeString:
		str, ok := value.(string)
		if !ok {
			return fmt.Sprintf("%s must be a string", label)
		}

		switch field.Format {
		case FormatEmail:
			if !emailPattern.MatchString(str) {
				return fmt.Sprintf("%s is not a valid email", label)
			}
		case FormatDate, FormatDateTime:
			if !parseableDate(str) {
				return fmt.Sprintf("%s must be a valid date", label)
			}
		default:
			if field.MinLength != nil && len([]rune(str)) < *field.MinLength {
				return fmt.Sprintf("%s must be at least %d characters", label, *field.MinLength)
			}
			if field.MaxLength != nil && len([]rune(str)) > *field.MaxLength {
				return fmt.Sprintf("%s cannot exceed %d characters", label, *field.MaxLength)
			}
		}

	case TypeArray:
		items, ok := toStringSlice(value)
		if !ok {
			return fmt.Sprintf("%s must be an array", label)
		}
		if len(field.Enum) > 0 {
			for _, item := range items {
				if !containsString(field.Enum, item) {
					return fmt.Sprintf("%s contains invalid options", label)
				}
			}
		}
	}

	if field.Pattern != "" {
		if str, ok := value.(string); ok {
			re, err := regexp.Compile(field.Pattern)
			if err != nil || !re.MatchString(str) {
				return fmt.Sprintf("%s is not valid", label)
			}
		}
	}

	if len(field.Enum) > 0 && field.Type == TypeString {
		str, _ := value.(string)
		if !containsString(field.Enum, str) {
			return fmt.Sprintf("%s must be one of the valid options", label)
		}
	}

	return ""
}

// ValidateForm applies ValidateField to every declared property, returning
// messages keyed by field name for only the fields that failed. Calling it
// twice on unchanged data yields identical maps.
func ValidateForm(s *FormSchema, data map[string]any) map[string]string {
	errors := make(map[string]string)
	for name, field := range s.Properties {
		if msg := ValidateField(data[name], field, name, s); msg != "" {
			errors[name] = msg
		}
	}
	return errors
}

// IsValid reports whether a validation result carries no errors.
func IsValid(errors map[string]string) bool {
	return len(errors) == 0
}

// toNumber coerces the numeric representations JSON decoding and form input
// can produce into a float64.
func toNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// toStringSlice accepts the array shapes a JSON body or caller can provide.
func toStringSlice(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				out[i] = fmt.Sprintf("%v", item)
				continue
			}
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// parseableDate accepts calendar dates and RFC 3339 timestamps.
func parseableDate(s string) bool {
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04:05"} {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// formatBound prints a numeric bound without a trailing ".000000".
func formatBound(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func containsString(list []string, target string) bool {
	for _, s := range list {
		if s == target {
			return true
		}
	}
	return false
}
