package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/throwingafit/storefront/internal/forms"
	"github.com/throwingafit/storefront/internal/schema"
)

// handleFormSubmit validates a public form submission against its schema,
// then hands it to the forms service for storage and emails. The body is
// flat: {"formId": "...", "<field>": ...}. A nested {"formData": {...}}
// wrapper is also accepted for older clients.
func (s *Server) handleFormSubmit(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := decodeBody(r, &body); err != nil {
		s.respondError(w, r, err)
		return
	}

	formID, _ := body["formId"].(string)
	if formID == "" {
		writeJSON(w, http.StatusBadRequest, forms.Result{Success: false, Message: "Form ID is required"})
		return
	}
	delete(body, "formId")
	formData := body
	if nested, ok := body["formData"].(map[string]any); ok && len(body) == 1 {
		formData = nested
	}

	// Server-side validation mirrors what the form already enforced client
	// side; submissions never reach storage with invalid data.
	if def, ok := schema.Get(formSchemaName(formID)); ok {
		if fieldErrors := schema.ValidateForm(def, formData); !schema.IsValid(fieldErrors) {
			s.respondErrorWith(w, r, http.StatusBadRequest, map[string]any{
				"success":     false,
				"message":     "Some fields need attention",
				"fieldErrors": fieldErrors,
			}, fmt.Errorf("form %s validation failed", formID))
			return
		}
	}

	result, err := s.deps.Forms.Submit(r.Context(), formID, formData)
	if err != nil {
		if errors.Is(err, forms.ErrDuplicate) {
			writeJSON(w, http.StatusBadRequest, result)
			return
		}
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// formSchemaName maps a form id to the schema validating it. Form ids are
// verbs ("newsletter_signup"); schemas are named after their tables.
func formSchemaName(formID string) string {
	switch formID {
	case "newsletter_signup":
		return "newsletter_signups"
	case "community_fit_upload":
		return "community_fits"
	default:
		return formID
	}
}
