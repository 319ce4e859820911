// Package handler implements HTTP request handlers
package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"whatsapp-gateway/internal/core/ports"
)

// FilesHandler serves stored media blobs. The URLs the media pipeline
// patches onto message records resolve here.
type FilesHandler struct {
	blobs ports.BlobStore
}

// NewFilesHandler creates a new file-serving handler
func NewFilesHandler(blobs ports.BlobStore) *FilesHandler {
	return &FilesHandler{
		blobs: blobs,
	}
}

// HandleGetFile streams one stored blob.
// GET /files/{name}
func (h *FilesHandler) HandleGetFile(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	reader, mimeType, size, err := h.blobs.Open(r.Context(), name)
	if err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", size))

	if _, err := io.Copy(w, reader); err != nil {
		slog.Error("Failed to stream file", "error", err, "file_name", name)
	}
}
