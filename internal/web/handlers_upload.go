package web

import (
	"fmt"
	"net/http"
)

// handleUploadMedia stores an image under the media/ prefix.
func (s *Server) handleUploadMedia(w http.ResponseWriter, r *http.Request) {
	s.handleUpload(w, r, "media")
}

// handleUploadFile stores an arbitrary attachment under the files/ prefix.
func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	s.handleUpload(w, r, "files")
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, prefix string) {
	r.Body = http.MaxBytesReader(w, r.Body, s.deps.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.deps.MaxUploadBytes); err != nil {
		s.respondError(w, r, fmt.Errorf("file too large or malformed form: %w", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, fmt.Errorf("no file provided: %w", err))
		return
	}
	defer file.Close()

	upload, err := s.deps.Media.Store(r.Context(), prefix, header.Filename, file, header.Size)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, upload)
}
