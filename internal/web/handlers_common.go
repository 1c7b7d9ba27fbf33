package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 1 << 20

// decodeBody reads a JSON request body into v. Failures are reported as
// "invalid json" so the error mapper returns VAL004.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid json body: %w", err)
	}
	return nil
}

// queryInt parses an integer query parameter, falling back on absence or
// garbage.
func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
