package store

import (
	"reflect"
	"strings"
	"testing"

	"github.com/throwingafit/storefront/internal/schema"
	"github.com/throwingafit/storefront/internal/table"
)

func fitsSchema(t *testing.T) *schema.FormSchema {
	t.Helper()
	s, err := schema.Parse([]byte(`{
		"$id": "community_fits",
		"properties": {
			"id": {"type": "string", "readOnly": true},
			"user_handle": {"type": "string"},
			"caption": {"type": "string", "format": "textarea"},
			"approved": {"type": "boolean"},
			"like_count": {"type": "integer"},
			"created_at": {"type": "string", "format": "date-time", "readOnly": true}
		},
		"required": ["user_handle"]
	}`))
	if err != nil {
		t.Fatalf("parse schema: %v", err)
	}
	return s
}

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct{ in, want string }{
		{"user_handle", `"user_handle"`},
		{`bad"name`, `"bad""name"`},
		{"products; DROP TABLE users", `"products; DROP TABLE users"`},
	}
	for _, tt := range tests {
		if got := quoteIdentifier(tt.in); got != tt.want {
			t.Errorf("quoteIdentifier(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestSearchableColumnsStringOnly(t *testing.T) {
	got := searchableColumns(fitsSchema(t))
	want := []string{"id", "user_handle", "caption", "created_at"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("searchableColumns() = %v, want %v", got, want)
	}
}

func TestListQuerySearchAndPagination(t *testing.T) {
	s := fitsSchema(t)
	selectSQL, countSQL, args := listQuery(s, table.Query{
		Table:  "community_fits",
		Search: "denim",
		Page:   2,
		Limit:  50,
	})

	if !strings.Contains(selectSQL, `"user_handle" ILIKE $1`) {
		t.Errorf("search should ILIKE string columns: %s", selectSQL)
	}
	if !strings.Contains(selectSQL, "LIMIT $2 OFFSET $3") {
		t.Errorf("pagination args misplaced: %s", selectSQL)
	}
	if strings.Contains(countSQL, "LIMIT") {
		t.Errorf("count query must not paginate: %s", countSQL)
	}
	want := []any{"%denim%", 50, 50}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("args = %v, want %v", args, want)
	}
}

func TestListQueryZeroLimitSkipsPagination(t *testing.T) {
	selectSQL, _, args := listQuery(fitsSchema(t), table.Query{Table: "community_fits"})
	if strings.Contains(selectSQL, "LIMIT") {
		t.Errorf("zero limit should not paginate: %s", selectSQL)
	}
	if len(args) != 0 {
		t.Errorf("unexpected args: %v", args)
	}
}

func TestListQueryFilters(t *testing.T) {
	s := fitsSchema(t)
	selectSQL, _, args := listQuery(s, table.Query{
		Table:   "community_fits",
		Filters: map[string]string{"approved": "true", "nope": "x"},
	})

	if !strings.Contains(selectSQL, `"approved" = $1`) {
		t.Errorf("filter condition missing: %s", selectSQL)
	}
	if strings.Contains(selectSQL, "nope") {
		t.Errorf("undeclared filter column must be dropped: %s", selectSQL)
	}
	if !reflect.DeepEqual(args, []any{"true"}) {
		t.Errorf("args = %v, want [true]", args)
	}
}

func TestOrderClause(t *testing.T) {
	s := fitsSchema(t)
	tests := []struct {
		name string
		sort string
		want string
	}{
		{"explicit asc", "user_handle:asc", ` ORDER BY "user_handle" asc`},
		{"explicit desc", "like_count:desc", ` ORDER BY "like_count" desc`},
		{"missing direction defaults asc", "caption", ` ORDER BY "caption" asc`},
		{"unknown column falls back", "evil:asc", ` ORDER BY "created_at" desc`},
		{"empty falls back to created_at desc", "", ` ORDER BY "created_at" desc`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := orderClause(tt.sort, s); got != tt.want {
				t.Errorf("orderClause(%q) = %q, want %q", tt.sort, got, tt.want)
			}
		})
	}
}

func TestInsertQueryColumnOrder(t *testing.T) {
	s := fitsSchema(t)
	sql, args := insertQuery(s, map[string]any{
		"caption":     "fit check",
		"user_handle": "@ada",
	})

	// Columns follow schema declaration order regardless of map iteration.
	if !strings.Contains(sql, `("user_handle", "caption")`) {
		t.Errorf("columns out of order: %s", sql)
	}
	if !strings.Contains(sql, "VALUES ($1, $2)") {
		t.Errorf("placeholders wrong: %s", sql)
	}
	if !strings.Contains(sql, "RETURNING") {
		t.Errorf("insert must return the stored row: %s", sql)
	}
	if !reflect.DeepEqual(args, []any{"@ada", "fit check"}) {
		t.Errorf("args = %v", args)
	}
}

func TestUpdateQuery(t *testing.T) {
	s := fitsSchema(t)
	sql, args := updateQuery(s, "r42", map[string]any{"approved": true})

	if !strings.Contains(sql, `SET "approved" = $1`) {
		t.Errorf("set clause wrong: %s", sql)
	}
	if !strings.Contains(sql, `WHERE "id" = $2`) {
		t.Errorf("where clause wrong: %s", sql)
	}
	if !reflect.DeepEqual(args, []any{true, "r42"}) {
		t.Errorf("args = %v", args)
	}
}
