// Package httpapi exposes a library storage read-only over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/gobeaver/libkit"
	"github.com/gobeaver/libkit/filestore"
)

// Handler serves libraries of a storage, usually an aggregate.
type Handler struct {
	storage libkit.LibraryStorage
	log     logrus.FieldLogger
}

// NewHandler creates a handler reading from storage.
func NewHandler(storage libkit.LibraryStorage, log logrus.FieldLogger) *Handler {
	return &Handler{
		storage: storage,
		log:     log,
	}
}

// RegisterRoutes configures the router with the library endpoints:
//   - GET /libraries                          - installed libraries, ?machineName= filters
//   - GET /libraries/{uberName}               - library.json of a library
//   - GET /libraries/{uberName}/files         - file list
//   - GET /libraries/{uberName}/language      - translation files
//   - GET /libraries/{uberName}/files/*       - file content
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/libraries", h.HandleInstalled)
	r.Route("/libraries/{uberName}", func(r chi.Router) {
		r.Get("/", h.HandleMetadata)
		r.Get("/files", h.HandleListFiles)
		r.Get("/language", h.HandleLanguageFiles)
		r.Get("/files/*", h.HandleFile)
	})
}

// HandleInstalled lists installed libraries.
//
// Response: JSON array of libkit.LibraryName
func (h *Handler) HandleInstalled(w http.ResponseWriter, r *http.Request) {
	names, err := h.storage.GetInstalled(r.Context(), r.URL.Query()["machineName"]...)
	if err != nil {
		h.fail(w, err, "Failed to list libraries")
		return
	}
	if names == nil {
		names = []libkit.LibraryName{}
	}
	h.writeJSON(w, names)
}

// HandleMetadata returns the library.json of a library. Storages that
// cannot read metadata answer 501.
func (h *Handler) HandleMetadata(w http.ResponseWriter, r *http.Request) {
	name, ok := h.libraryName(w, r)
	if !ok {
		return
	}

	reader, ok := h.storage.(libkit.MetadataReader)
	if !ok {
		http.Error(w, "Metadata not available", http.StatusNotImplemented)
		return
	}

	metadata, err := reader.GetMetadata(r.Context(), name)
	if err != nil {
		h.fail(w, err, "Failed to read metadata")
		return
	}
	h.writeJSON(w, metadata)
}

// HandleListFiles returns the files of a library.
//
// Response: JSON array of paths relative to the library directory
func (h *Handler) HandleListFiles(w http.ResponseWriter, r *http.Request) {
	name, ok := h.libraryName(w, r)
	if !ok {
		return
	}

	files, err := h.storage.ListFiles(r.Context(), name)
	if err != nil {
		h.fail(w, err, "Failed to list files")
		return
	}
	h.writeJSON(w, files)
}

// HandleLanguageFiles returns the translation file names of a library.
func (h *Handler) HandleLanguageFiles(w http.ResponseWriter, r *http.Request) {
	name, ok := h.libraryName(w, r)
	if !ok {
		return
	}

	files, err := h.storage.GetLanguageFiles(r.Context(), name)
	if err != nil {
		h.fail(w, err, "Failed to list language files")
		return
	}
	h.writeJSON(w, files)
}

// HandleFile streams one library file.
//
// Status codes:
//   - 200 OK: file content
//   - 400 Bad Request: malformed uber-name
//   - 404 Not Found: library not installed, file missing or ignored
func (h *Handler) HandleFile(w http.ResponseWriter, r *http.Request) {
	name, ok := h.libraryName(w, r)
	if !ok {
		return
	}
	file := chi.URLParam(r, "*")
	if file == "" {
		http.Error(w, "File path required", http.StatusBadRequest)
		return
	}

	rc, err := h.storage.GetFileStream(r.Context(), name, file)
	if err != nil {
		h.fail(w, err, "Failed to open file")
		return
	}
	defer rc.Close()

	if contentType := mime.TypeByExtension(path.Ext(file)); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	if _, err := io.Copy(w, rc); err != nil {
		h.log.WithError(err).WithField("file", file).Warn("failed to stream library file")
	}
}

func (h *Handler) libraryName(w http.ResponseWriter, r *http.Request) (libkit.LibraryName, bool) {
	name, err := libkit.ParseUberName(chi.URLParam(r, "uberName"))
	if err != nil {
		http.Error(w, "Invalid library name", http.StatusBadRequest)
		return libkit.LibraryName{}, false
	}
	return name, true
}

// fail maps storage errors to status codes.
func (h *Handler) fail(w http.ResponseWriter, err error, message string) {
	switch {
	case libkit.IsNotInstalled(err), filestore.IsNotExist(err), errors.Is(err, libkit.ErrIgnoredFile):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, libkit.ErrMalformedMetadata):
		h.log.WithError(err).Warn(message)
		http.Error(w, "Malformed library metadata", http.StatusUnprocessableEntity)
	default:
		h.log.WithError(err).Error(message)
		http.Error(w, message, http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.WithError(err).Error("Failed to encode response")
	}
}
