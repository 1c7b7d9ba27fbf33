// Package table implements the admin table controller: paginated, sortable,
// searchable views over a schema-backed data source, with create, update,
// and delete operations that re-load the current page on success.
package table

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/throwingafit/storefront/internal/schema"
)

// DefaultPageLimit is the rows-per-page used when the caller does not set one.
const DefaultPageLimit = 50

// State is the controller's load state. Mutations and loads move the
// controller from idle or loaded into loading, then into loaded or errored.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateLoaded
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateErrored:
		return "errored"
	}
	return "unknown"
}

// Query describes one page request against a table.
type Query struct {
	Table   string
	Search  string
	Filters map[string]string
	Sort    string // "field:asc" or "field:desc"; empty for source default
	Page    int    // 1-based; 0 means unpaginated (export)
	Limit   int
}

// Page is one page of results plus pagination metadata.
type Page struct {
	Rows    []map[string]any
	Total   int
	HasMore bool
}

// Source provides the rows behind a table. The persistence layer implements
// this against the database; tests implement it in memory.
type Source interface {
	List(ctx context.Context, q Query) (Page, error)
	Create(ctx context.Context, table string, record map[string]any) (map[string]any, error)
	Update(ctx context.Context, table, id string, record map[string]any) (map[string]any, error)
	Delete(ctx context.Context, table, id string) error
}

// ErrNotConfirmed is returned by Delete when the caller has not confirmed
// the deletion. Destructive operations require an explicit confirmation.
var ErrNotConfirmed = fmt.Errorf("delete not confirmed")

// Controller drives one table's admin view. It caches the last loaded page
// and re-loads after every successful mutation so the view always reflects
// persisted state.
type Controller struct {
	mu     sync.Mutex
	schema *schema.FormSchema
	source Source
	log    *slog.Logger

	state   State
	query   Query
	page    Page
	lastErr error
}

// NewController builds a controller for one schema-backed table. The initial
// state is idle with no cached rows; call Load to populate.
func NewController(s *schema.FormSchema, source Source, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		schema: s,
		source: source,
		log:    log,
		query: Query{
			Table: s.Name,
			Page:  1,
			Limit: DefaultPageLimit,
		},
	}
}

// Load fetches the current page from the source. On failure the previous
// rows are kept but the state moves to errored.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	c.state = StateLoading
	q := c.query
	c.mu.Unlock()

	page, err := c.source.List(ctx, q)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateErrored
		c.lastErr = err
		c.log.Error("table load failed", "table", c.schema.Name, "error", err)
		return fmt.Errorf("load table %s: %w", c.schema.Name, err)
	}
	c.state = StateLoaded
	c.lastErr = nil
	c.page = page
	return nil
}

// SetSearch sets the free-text search term and resets to the first page.
// The caller must Load afterwards.
func (c *Controller) SetSearch(term string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.query.Search = strings.TrimSpace(term)
	c.query.Page = 1
}

// SetFilter sets one equality filter and resets to the first page. An empty
// value removes the filter.
func (c *Controller) SetFilter(field, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if value == "" {
		delete(c.query.Filters, field)
	} else {
		if c.query.Filters == nil {
			c.query.Filters = make(map[string]string)
		}
		c.query.Filters[field] = value
	}
	c.query.Page = 1
}

// SetPage moves to the given 1-based page.
func (c *Controller) SetPage(page int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if page < 1 {
		page = 1
	}
	c.query.Page = page
}

// SetSort sets an explicit "field:direction" sort.
func (c *Controller) SetSort(sort string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.query.Sort = sort
}

// SetLimit changes the rows-per-page. Non-positive values restore the
// default.
func (c *Controller) SetLimit(limit int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	c.query.Limit = limit
}

// ToggleSort sorts by the given field. Selecting the current sort field
// flips its direction; selecting a new field sorts ascending.
func (c *Controller) ToggleSort(field string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, dir := splitSort(c.query.Sort)
	if current == field && dir == "asc" {
		c.query.Sort = field + ":desc"
	} else {
		c.query.Sort = field + ":asc"
	}
	c.query.Page = 1
}

// Create validates required fields, strips read-only fields from the
// payload, inserts through the source, and re-loads the current page.
func (c *Controller) Create(ctx context.Context, record map[string]any) (map[string]any, error) {
	payload, err := c.preparePayload(record, true)
	if err != nil {
		return nil, err
	}

	created, err := c.source.Create(ctx, c.schema.Name, payload)
	if err != nil {
		return nil, fmt.Errorf("create %s record: %w", c.schema.Name, err)
	}
	if err := c.Load(ctx); err != nil {
		return created, err
	}
	return created, nil
}

// Update validates required fields among those present, strips read-only
// fields, persists through the source, and re-loads the current page.
func (c *Controller) Update(ctx context.Context, id string, record map[string]any) (map[string]any, error) {
	payload, err := c.preparePayload(record, false)
	if err != nil {
		return nil, err
	}

	updated, err := c.source.Update(ctx, c.schema.Name, id, payload)
	if err != nil {
		return nil, fmt.Errorf("update %s record %s: %w", c.schema.Name, id, err)
	}
	if err := c.Load(ctx); err != nil {
		return updated, err
	}
	return updated, nil
}

// Delete removes a record. The confirmed flag must be true; the admin UI
// asks before calling with confirmation. On success the page is re-loaded.
func (c *Controller) Delete(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}
	if err := c.source.Delete(ctx, c.schema.Name, id); err != nil {
		return fmt.Errorf("delete %s record %s: %w", c.schema.Name, id, err)
	}
	return c.Load(ctx)
}

// Export fetches the full result set for the current search and sort,
// ignoring pagination.
func (c *Controller) Export(ctx context.Context) ([]map[string]any, error) {
	c.mu.Lock()
	q := c.query
	c.mu.Unlock()

	q.Page = 0
	q.Limit = 0
	page, err := c.source.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("export table %s: %w", c.schema.Name, err)
	}
	return page.Rows, nil
}

// preparePayload strips read-only fields and, when requireAll is set,
// enforces every editable required field is present and non-empty. For
// partial updates only the required fields present in the record are
// checked against emptiness.
func (c *Controller) preparePayload(record map[string]any, requireAll bool) (map[string]any, error) {
	payload := make(map[string]any, len(record))
	for name, value := range record {
		field, ok := c.schema.Properties[name]
		if !ok || field.ReadOnly {
			continue
		}
		payload[name] = value
	}

	for _, name := range c.schema.Required {
		if c.schema.Properties[name].ReadOnly {
			continue
		}
		value, present := payload[name]
		if !present {
			if requireAll {
				return nil, fmt.Errorf("missing required field %q", name)
			}
			continue
		}
		if schema.IsEmptyValue(value) {
			return nil, fmt.Errorf("missing required field %q", name)
		}
	}

	return payload, nil
}

// State returns the controller's current load state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Rows returns the cached page rows.
func (c *Controller) Rows() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, len(c.page.Rows))
	copy(out, c.page.Rows)
	return out
}

// Total returns the total row count reported by the last load.
func (c *Controller) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page.Total
}

// HasMore reports whether more pages follow the cached one.
func (c *Controller) HasMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page.HasMore
}

// Err returns the error from the last failed load, or nil.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Query returns a copy of the current query settings.
func (c *Controller) Query() Query {
	c.mu.Lock()
	defer c.mu.Unlock()
	q := c.query
	if q.Filters != nil {
		filters := make(map[string]string, len(q.Filters))
		for k, v := range q.Filters {
			filters[k] = v
		}
		q.Filters = filters
	}
	return q
}

// splitSort parses "field:direction" into its parts. A missing direction
// defaults to ascending.
func splitSort(sort string) (field, direction string) {
	if sort == "" {
		return "", ""
	}
	parts := strings.SplitN(sort, ":", 2)
	field = parts[0]
	direction = "asc"
	if len(parts) == 2 && parts[1] == "desc" {
		direction = "desc"
	}
	return field, direction
}
