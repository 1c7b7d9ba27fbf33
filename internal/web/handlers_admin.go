package web

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/throwingafit/storefront/internal/auth"
	"github.com/throwingafit/storefront/internal/schema"
)

// handleAdminStatus reports whether the signed-in visitor is the site
// owner. The admin UI uses this to decide whether to render at all.
func (s *Server) handleAdminStatus(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]bool{"isAdmin": s.deps.Sessions.IsAdmin(user)})
}

// handleListSchemas returns the names of every registered table schema.
func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, schema.Names())
}

// handleGetSchema returns the full schema document for one table.
func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	tableName := chi.URLParam(r, "tableName")
	def, ok := schema.Get(tableName)
	if !ok {
		s.respondError(w, r, fmt.Errorf("unknown table: %s", tableName))
		return
	}
	writeJSON(w, http.StatusOK, def)
}
