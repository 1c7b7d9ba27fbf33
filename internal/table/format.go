package table

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/throwingafit/storefront/internal/schema"
)

// cellTruncateLen is where long text cells are cut for table display.
const cellTruncateLen = 100

// urlTruncateLen is where displayed link text is cut.
const urlTruncateLen = 50

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// FormatCell renders one cell value for table display. Timestamps are shown
// in a readable local format, URL fields as shortened link text, rich text
// with markup stripped, booleans as Yes/No, and long strings truncated.
func FormatCell(value any, fieldName string, field schema.FieldDefinition) string {
	if value == nil {
		return ""
	}

	if field.Format == schema.FormatDateTime {
		if str, ok := value.(string); ok {
			if t, err := time.Parse(time.RFC3339, str); err == nil {
				return t.Local().Format("1/2/2006, 3:04:05 PM")
			}
		}
		if t, ok := value.(time.Time); ok {
			return t.Local().Format("1/2/2006, 3:04:05 PM")
		}
	}

	if str, ok := value.(string); ok {
		if strings.Contains(fieldName, "url") && str != "" {
			return truncate(str, urlTruncateLen)
		}
		if strings.Contains(fieldName, "rich_text") && str != "" {
			return truncate(htmlTagPattern.ReplaceAllString(str, ""), cellTruncateLen)
		}
		return truncate(str, cellTruncateLen)
	}

	if b, ok := value.(bool); ok {
		if b {
			return "Yes"
		}
		return "No"
	}

	return fmt.Sprintf("%v", value)
}

// ExportCell renders one cell value for CSV export. Exports keep full
// values so the data round-trips: no truncation and no display formatting.
// Rich text is the one exception, where markup is stripped.
func ExportCell(value any, fieldName string) string {
	if value == nil {
		return ""
	}
	if t, ok := value.(time.Time); ok {
		return t.UTC().Format(time.RFC3339)
	}
	if str, ok := value.(string); ok {
		if strings.Contains(fieldName, "rich_text") {
			return htmlTagPattern.ReplaceAllString(str, "")
		}
		return str
	}
	return fmt.Sprintf("%v", value)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
