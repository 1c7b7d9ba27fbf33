package web

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/throwingafit/storefront/internal/schema"
	"github.com/throwingafit/storefront/internal/table"
)

// exportFlushEvery bounds how many CSV rows are buffered before flushing to
// the client.
const exportFlushEvery = 100

type tableListResponse struct {
	Data    []map[string]any `json:"data"`
	Total   int              `json:"total"`
	HasMore bool             `json:"hasMore"`
}

// handleTableList serves one page of a table: search, filters, sort, and
// pagination all come from query parameters.
func (s *Server) handleTableList(w http.ResponseWriter, r *http.Request) {
	tableName := chi.URLParam(r, "tableName")
	ctl := s.controller(tableName)
	if ctl == nil {
		s.respondError(w, r, fmt.Errorf("unknown table: %s", tableName))
		return
	}

	q := r.URL.Query()
	ctl.SetSearch(q.Get("search"))
	if approved := q.Get("approved"); approved != "" {
		ctl.SetFilter("approved", approved)
	} else {
		ctl.SetFilter("approved", "")
	}
	if sort := q.Get("sort"); sort != "" {
		ctl.SetSort(sort)
	}
	ctl.SetLimit(queryInt(r, "limit", table.DefaultPageLimit))
	ctl.SetPage(queryInt(r, "page", 1))

	if err := ctl.Load(r.Context()); err != nil {
		s.respondError(w, r, err)
		return
	}

	rows := ctl.Rows()
	if rows == nil {
		rows = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, tableListResponse{
		Data:    rows,
		Total:   ctl.Total(),
		HasMore: ctl.HasMore(),
	})
}

// handleTableCreate inserts a new row through the table controller, which
// enforces required fields and strips read-only columns.
func (s *Server) handleTableCreate(w http.ResponseWriter, r *http.Request) {
	tableName := chi.URLParam(r, "tableName")
	ctl := s.controller(tableName)
	if ctl == nil {
		s.respondError(w, r, fmt.Errorf("unknown table: %s", tableName))
		return
	}

	var record map[string]any
	if err := decodeBody(r, &record); err != nil {
		s.respondError(w, r, err)
		return
	}

	created, err := ctl.Create(r.Context(), record)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleTableUpdate applies a partial update to one row.
func (s *Server) handleTableUpdate(w http.ResponseWriter, r *http.Request) {
	tableName := chi.URLParam(r, "tableName")
	ctl := s.controller(tableName)
	if ctl == nil {
		s.respondError(w, r, fmt.Errorf("unknown table: %s", tableName))
		return
	}

	var record map[string]any
	if err := decodeBody(r, &record); err != nil {
		s.respondError(w, r, err)
		return
	}

	updated, err := ctl.Update(r.Context(), chi.URLParam(r, "id"), record)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleTableDelete removes one row. The admin UI confirms before calling,
// so the request itself is the confirmation.
func (s *Server) handleTableDelete(w http.ResponseWriter, r *http.Request) {
	tableName := chi.URLParam(r, "tableName")
	ctl := s.controller(tableName)
	if ctl == nil {
		s.respondError(w, r, fmt.Errorf("unknown table: %s", tableName))
		return
	}

	if err := ctl.Delete(r.Context(), chi.URLParam(r, "id"), true); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleTableExport streams the full filtered result set as a CSV
// attachment, flushing periodically so large tables download steadily.
func (s *Server) handleTableExport(w http.ResponseWriter, r *http.Request) {
	tableName := chi.URLParam(r, "tableName")
	def, ok := schema.Get(tableName)
	if !ok {
		s.respondError(w, r, fmt.Errorf("unknown table: %s", tableName))
		return
	}

	q := table.Query{
		Table:  tableName,
		Search: r.URL.Query().Get("search"),
		Sort:   r.URL.Query().Get("sort"),
	}

	filename := fmt.Sprintf("%s_%s.csv", tableName, time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	cw := csv.NewWriter(w)
	columns := def.FieldNames()
	if err := cw.Write(columns); err != nil {
		s.log.Error("csv header write failed", "table", tableName, "error", err)
		return
	}

	flusher, _ := w.(http.Flusher)
	count := 0
	err := s.deps.Exporter.Stream(r.Context(), q, func(row map[string]any) error {
		record := make([]string, len(columns))
		for i, col := range columns {
			record[i] = table.ExportCell(row[col], col)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
		count++
		if count%exportFlushEvery == 0 {
			cw.Flush()
			if flusher != nil {
				flusher.Flush()
			}
		}
		return nil
	})
	if err != nil {
		// Headers are gone; log and truncate rather than writing JSON into
		// the CSV stream.
		s.log.Error("csv export failed", "table", tableName, "rows", count, "error", err)
		return
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		s.log.Error("csv flush failed", "table", tableName, "error", err)
	}
}
