package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/gorilla/mux"
	"gopkg.in/yaml.v3"
)

// OpenAPIHandler serves the API description in YAML and JSON
type OpenAPIHandler struct {
	path      string
	serverURL string

	once sync.Once
	raw  []byte
	doc  map[string]any
	err  error
}

// NewOpenAPIHandler serves the document at path. A non-empty serverURL
// replaces the document's servers list so clients call this deployment.
func NewOpenAPIHandler(path, serverURL string) *OpenAPIHandler {
	return &OpenAPIHandler{path: filepath.Clean(path), serverURL: serverURL}
}

// RegisterRoutes registers OpenAPI routes
func (h *OpenAPIHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/openapi.yaml", h.ServeYAML).Methods("GET")
	r.HandleFunc("/api/v1/openapi.json", h.ServeJSON).Methods("GET")
}

// load reads and parses the document once; the file ships with the binary
func (h *OpenAPIHandler) load() error {
	h.once.Do(func() {
		data, err := os.ReadFile(h.path)
		if err != nil {
			h.err = fmt.Errorf("failed to read openapi document: %w", err)
			return
		}
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			h.err = fmt.Errorf("failed to parse openapi document: %w", err)
			return
		}
		if h.serverURL != "" {
			doc["servers"] = []any{map[string]any{"url": h.serverURL}}
			if data, err = yaml.Marshal(doc); err != nil {
				h.err = fmt.Errorf("failed to render openapi document: %w", err)
				return
			}
		}
		h.raw, h.doc = data, doc
	})
	return h.err
}

func (h *OpenAPIHandler) respondLoadError(w http.ResponseWriter, err error) {
	if errors.Is(err, fs.ErrNotExist) {
		respondJSONError(w, http.StatusNotFound, "Not Found", "OpenAPI specification not found")
		return
	}
	respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "OpenAPI specification is unavailable")
}

// ServeYAML serves the OpenAPI spec in YAML format
func (h *OpenAPIHandler) ServeYAML(w http.ResponseWriter, r *http.Request) {
	if err := h.load(); err != nil {
		h.respondLoadError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/x-yaml")
	_, _ = w.Write(h.raw)
}

// ServeJSON serves the OpenAPI spec in JSON format
func (h *OpenAPIHandler) ServeJSON(w http.ResponseWriter, r *http.Request) {
	if err := h.load(); err != nil {
		h.respondLoadError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.doc); err != nil {
		http.Error(w, "Failed to encode JSON response", http.StatusInternalServerError)
	}
}
