package store

import (
	"fmt"
	"strings"

	"github.com/throwingafit/storefront/internal/schema"
	"github.com/throwingafit/storefront/internal/table"
)

// quoteIdentifier quotes a SQL identifier to prevent injection.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteColumns(cols []string) []string {
	quoted := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = quoteIdentifier(col)
	}
	return quoted
}

// searchableColumns returns the plain-string columns a free-text search
// scans. Formatted strings (emails, dates, URLs) are included; only
// non-string types are excluded.
func searchableColumns(s *schema.FormSchema) []string {
	var cols []string
	for _, name := range s.FieldNames() {
		if s.Properties[name].Type == schema.TypeString {
			cols = append(cols, name)
		}
	}
	return cols
}

// whereBuilder accumulates WHERE conditions with positional args.
type whereBuilder struct {
	conditions []string
	args       []any
}

// addSearch adds a case-insensitive substring match across the schema's
// string columns, all sharing one argument.
func (wb *whereBuilder) addSearch(term string, s *schema.FormSchema) {
	term = strings.TrimSpace(term)
	if term == "" {
		return
	}
	cols := searchableColumns(s)
	if len(cols) == 0 {
		return
	}

	wb.args = append(wb.args, "%"+term+"%")
	idx := len(wb.args)
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = fmt.Sprintf("%s ILIKE $%d", quoteIdentifier(col), idx)
	}
	wb.conditions = append(wb.conditions, "("+strings.Join(parts, " OR ")+")")
}

// addFilters adds one equality condition per filter, in column name order
// for deterministic SQL. Filters on undeclared columns are dropped.
func (wb *whereBuilder) addFilters(filters map[string]string, s *schema.FormSchema) {
	for _, name := range s.FieldNames() {
		value, ok := filters[name]
		if !ok {
			continue
		}
		wb.args = append(wb.args, value)
		wb.conditions = append(wb.conditions, fmt.Sprintf("%s = $%d", quoteIdentifier(name), len(wb.args)))
	}
}

// build returns the WHERE clause (with leading space) and its args. An
// empty builder yields an empty clause.
func (wb *whereBuilder) build() (string, []any) {
	if len(wb.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(wb.conditions, " AND "), wb.args
}

func (wb *whereBuilder) nextArgIndex() int {
	return len(wb.args) + 1
}

// orderClause resolves a "field:direction" sort against the schema's
// declared columns. Undeclared fields fall back to the default: created_at
// descending when the schema has it, otherwise the first column ascending.
func orderClause(sort string, s *schema.FormSchema) string {
	field, dir := splitSort(sort)

	if field != "" {
		if _, ok := s.Properties[field]; ok {
			return fmt.Sprintf(" ORDER BY %s %s", quoteIdentifier(field), dir)
		}
	}

	if _, ok := s.Properties["created_at"]; ok {
		return fmt.Sprintf(" ORDER BY %s desc", quoteIdentifier("created_at"))
	}
	names := s.FieldNames()
	return fmt.Sprintf(" ORDER BY %s asc", quoteIdentifier(names[0]))
}

func splitSort(sort string) (field, direction string) {
	if sort == "" {
		return "", ""
	}
	parts := strings.SplitN(sort, ":", 2)
	field = parts[0]
	direction = "asc"
	if len(parts) == 2 && strings.EqualFold(parts[1], "desc") {
		direction = "desc"
	}
	return field, direction
}

// listQuery builds the SELECT for one page plus the matching COUNT query.
// A zero Limit disables pagination entirely (export path).
func listQuery(s *schema.FormSchema, q table.Query) (selectSQL, countSQL string, args []any) {
	cols := quoteColumns(s.FieldNames())

	wb := &whereBuilder{}
	wb.addSearch(q.Search, s)
	wb.addFilters(q.Filters, s)
	where, args := wb.build()

	countSQL = fmt.Sprintf("SELECT COUNT(*) FROM %s%s", quoteIdentifier(s.Name), where)

	selectSQL = fmt.Sprintf("SELECT %s FROM %s%s%s",
		strings.Join(cols, ", "),
		quoteIdentifier(s.Name),
		where,
		orderClause(q.Sort, s),
	)

	if q.Limit > 0 {
		page := q.Page
		if page < 1 {
			page = 1
		}
		idx := wb.nextArgIndex()
		selectSQL += fmt.Sprintf(" LIMIT $%d OFFSET $%d", idx, idx+1)
		args = append(args, q.Limit, (page-1)*q.Limit)
	}

	return selectSQL, countSQL, args
}

// insertQuery builds an INSERT ... RETURNING over the record's columns in
// schema declaration order.
func insertQuery(s *schema.FormSchema, record map[string]any) (string, []any) {
	var cols []string
	var args []any
	for _, name := range s.FieldNames() {
		value, ok := record[name]
		if !ok {
			continue
		}
		cols = append(cols, name)
		args = append(args, value)
	}

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		quoteIdentifier(s.Name),
		strings.Join(quoteColumns(cols), ", "),
		strings.Join(placeholders, ", "),
		strings.Join(quoteColumns(s.FieldNames()), ", "),
	)
	return sql, args
}

// updateQuery builds an UPDATE ... WHERE id = $n RETURNING over the
// record's columns in schema declaration order.
func updateQuery(s *schema.FormSchema, id string, record map[string]any) (string, []any) {
	var sets []string
	var args []any
	for _, name := range s.FieldNames() {
		value, ok := record[name]
		if !ok {
			continue
		}
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", quoteIdentifier(name), len(args)))
	}

	args = append(args, id)
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d RETURNING %s",
		quoteIdentifier(s.Name),
		strings.Join(sets, ", "),
		quoteIdentifier("id"),
		len(args),
		strings.Join(quoteColumns(s.FieldNames()), ", "),
	)
	return sql, args
}
