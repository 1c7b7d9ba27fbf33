package table

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/throwingafit/storefront/internal/schema"
)

func productsSchema() *schema.FormSchema {
	min := 0.0
	return &schema.FormSchema{
		Name: "products",
		Properties: map[string]schema.FieldDefinition{
			"id":         {Type: schema.TypeString, ReadOnly: true},
			"name":       {Type: schema.TypeString, Title: "Name"},
			"price":      {Type: schema.TypeNumber, Title: "Price", Minimum: &min},
			"created_at": {Type: schema.TypeString, Format: schema.FormatDateTime, ReadOnly: true},
		},
		Required: []string{"name", "price"},
	}
}

// fakeSource is an in-memory Source that records the queries it receives.
type fakeSource struct {
	rows    []map[string]any
	queries []Query
	nextID  int
	listErr error
}

func (f *fakeSource) List(_ context.Context, q Query) (Page, error) {
	f.queries = append(f.queries, q)
	if f.listErr != nil {
		return Page{}, f.listErr
	}
	return Page{Rows: f.rows, Total: len(f.rows), HasMore: false}, nil
}

func (f *fakeSource) Create(_ context.Context, _ string, record map[string]any) (map[string]any, error) {
	f.nextID++
	created := map[string]any{"id": fmt.Sprintf("r%d", f.nextID)}
	for k, v := range record {
		created[k] = v
	}
	f.rows = append(f.rows, created)
	return created, nil
}

func (f *fakeSource) Update(_ context.Context, _ string, id string, record map[string]any) (map[string]any, error) {
	for _, row := range f.rows {
		if row["id"] == id {
			for k, v := range record {
				row[k] = v
			}
			return row, nil
		}
	}
	return nil, fmt.Errorf("row %s not found", id)
}

func (f *fakeSource) Delete(_ context.Context, _ string, id string) error {
	for i, row := range f.rows {
		if row["id"] == id {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("row %s not found", id)
}

func seededSource() *fakeSource {
	return &fakeSource{
		rows: []map[string]any{
			{"id": "r1", "name": "Hoodie", "price": 55.0},
			{"id": "r2", "name": "Tee", "price": 25.0},
		},
		nextID: 2,
	}
}

func TestLoadTransitionsState(t *testing.T) {
	c := NewController(productsSchema(), seededSource(), nil)
	if c.State() != StateIdle {
		t.Fatalf("initial state = %v, want idle", c.State())
	}

	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if c.State() != StateLoaded {
		t.Errorf("state after load = %v, want loaded", c.State())
	}
	if got := len(c.Rows()); got != 2 {
		t.Errorf("cached %d rows, want 2", got)
	}
	if c.Total() != 2 {
		t.Errorf("Total() = %d, want 2", c.Total())
	}
}

func TestLoadFailureMovesToErrored(t *testing.T) {
	src := seededSource()
	src.listErr = errors.New("connection refused")
	c := NewController(productsSchema(), src, nil)

	if err := c.Load(context.Background()); err == nil {
		t.Fatal("expected load error")
	}
	if c.State() != StateErrored {
		t.Errorf("state = %v, want errored", c.State())
	}
	if c.Err() == nil {
		t.Error("Err() should report the load failure")
	}
}

func TestDeleteReloadsAndShrinksTotal(t *testing.T) {
	src := seededSource()
	c := NewController(productsSchema(), src, nil)
	if err := c.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := c.Delete(context.Background(), "r1", true); err != nil {
		t.Fatalf("Delete() = %v", err)
	}

	for _, row := range c.Rows() {
		if row["id"] == "r1" {
			t.Error("deleted row still present after reload")
		}
	}
	if c.Total() != 1 {
		t.Errorf("Total() = %d after delete, want 1", c.Total())
	}
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	src := seededSource()
	c := NewController(productsSchema(), src, nil)

	err := c.Delete(context.Background(), "r1", false)
	if !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("Delete without confirmation = %v, want ErrNotConfirmed", err)
	}
	if len(src.rows) != 2 {
		t.Error("unconfirmed delete must not touch the source")
	}
}

func TestCreateStripsReadOnlyAndReloads(t *testing.T) {
	src := seededSource()
	c := NewController(productsSchema(), src, nil)

	created, err := c.Create(context.Background(), map[string]any{
		"name":       "Cap",
		"price":      15.0,
		"id":         "spoofed",
		"created_at": "2020-01-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}
	if created["id"] == "spoofed" {
		t.Error("read-only id must be stripped from the create payload")
	}
	if c.State() != StateLoaded {
		t.Errorf("state after create = %v, want loaded", c.State())
	}
	if c.Total() != 3 {
		t.Errorf("Total() = %d after create, want 3", c.Total())
	}
}

func TestCreateRejectsMissingRequired(t *testing.T) {
	c := NewController(productsSchema(), seededSource(), nil)

	_, err := c.Create(context.Background(), map[string]any{"name": "Cap"})
	if err == nil || !strings.Contains(err.Error(), "price") {
		t.Fatalf("expected missing-price error, got %v", err)
	}

	_, err = c.Create(context.Background(), map[string]any{"name": "", "price": 1.0})
	if err == nil || !strings.Contains(err.Error(), "name") {
		t.Fatalf("expected empty-name error, got %v", err)
	}
}

func TestUpdateAllowsPartialPayload(t *testing.T) {
	src := seededSource()
	c := NewController(productsSchema(), src, nil)

	if _, err := c.Update(context.Background(), "r1", map[string]any{"price": 60.0}); err != nil {
		t.Fatalf("partial update = %v", err)
	}

	// A required field that IS present must still be non-empty.
	if _, err := c.Update(context.Background(), "r1", map[string]any{"name": ""}); err == nil {
		t.Fatal("empty required field in update payload should be rejected")
	}
}

func TestToggleSort(t *testing.T) {
	c := NewController(productsSchema(), seededSource(), nil)

	c.ToggleSort("name")
	if got := c.Query().Sort; got != "name:asc" {
		t.Errorf("first toggle = %q, want name:asc", got)
	}

	c.ToggleSort("name")
	if got := c.Query().Sort; got != "name:desc" {
		t.Errorf("second toggle = %q, want name:desc", got)
	}

	c.ToggleSort("price")
	if got := c.Query().Sort; got != "price:asc" {
		t.Errorf("new column = %q, want price:asc", got)
	}
}

func TestSearchResetsPage(t *testing.T) {
	c := NewController(productsSchema(), seededSource(), nil)
	c.SetPage(4)

	c.SetSearch("  hoodie ")

	q := c.Query()
	if q.Search != "hoodie" {
		t.Errorf("Search = %q, want trimmed %q", q.Search, "hoodie")
	}
	if q.Page != 1 {
		t.Errorf("Page = %d after search, want 1", q.Page)
	}
}

func TestExportIgnoresPagination(t *testing.T) {
	src := seededSource()
	c := NewController(productsSchema(), src, nil)
	c.SetSearch("tee")
	c.ToggleSort("name")
	c.SetPage(3)

	if _, err := c.Export(context.Background()); err != nil {
		t.Fatalf("Export() = %v", err)
	}

	q := src.queries[len(src.queries)-1]
	if q.Page != 0 || q.Limit != 0 {
		t.Errorf("export query paginated: page=%d limit=%d", q.Page, q.Limit)
	}
	if q.Search != "tee" || q.Sort != "name:asc" {
		t.Errorf("export should keep search and sort, got %+v", q)
	}
}
