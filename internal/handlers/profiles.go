package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/benvon/taskboard/internal/board"
)

// ProfileHandler handles profiles and the categories of the current profile
type ProfileHandler struct {
	sessionResolver
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(sessions SessionSource, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{sessionResolver: newSessionResolver(sessions, logger)}
}

// RegisterRoutes registers profile and category routes on the given router.
// The router should already have the /api/v1 prefix.
func (h *ProfileHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/profiles", h.ListProfiles).Methods("GET")
	r.HandleFunc("/profiles", h.CreateProfile).Methods("POST")
	r.HandleFunc("/profiles/{id}", h.UpdateProfile).Methods("PATCH")
	r.HandleFunc("/profiles/{id}", h.DeleteProfile).Methods("DELETE")
	r.HandleFunc("/profiles/{id}/switch", h.SwitchProfile).Methods("POST")

	r.HandleFunc("/categories", h.ListCategories).Methods("GET")
	r.HandleFunc("/categories", h.CreateCategory).Methods("POST")
	r.HandleFunc("/categories/{id}", h.UpdateCategory).Methods("PATCH")
	r.HandleFunc("/categories/{id}", h.DeleteCategory).Methods("DELETE")
}

// ListProfiles returns the user's profiles in order
func (h *ProfileHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, sess.Store().Profiles())
}

// CreateProfile adds a profile
func (h *ProfileHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var in board.ProfileInput
	if err := decodeJSON(r, &in); err != nil {
		h.fail(w, sess, err)
		return
	}
	p, err := sess.CreateProfile(r.Context(), in)
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

// UpdateProfile renames or recolors a profile
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	var in board.ProfileInput
	if err := decodeJSON(r, &in); err != nil {
		h.fail(w, sess, err)
		return
	}
	p, err := sess.UpdateProfile(r.Context(), id, in)
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// DeleteProfile removes a profile; the last one cannot be deleted
func (h *ProfileHandler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	if err := sess.DeleteProfile(r.Context(), id); err != nil {
		h.fail(w, sess, err)
		return
	}
	respondJSON(w, http.StatusOK, sess.Board())
}

// SwitchProfile makes a profile current and returns its board
func (h *ProfileHandler) SwitchProfile(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	if err := sess.SwitchProfile(r.Context(), id); err != nil {
		h.fail(w, sess, err)
		return
	}
	respondJSON(w, http.StatusOK, sess.Board())
}

// ListCategories returns the current profile's categories
func (h *ProfileHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, sess.Store().Categories())
}

// CreateCategory adds a category to the current profile
func (h *ProfileHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var in board.CategoryInput
	if err := decodeJSON(r, &in); err != nil {
		h.fail(w, sess, err)
		return
	}
	c, err := sess.CreateCategory(r.Context(), in)
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

// UpdateCategory renames or recolors a category
func (h *ProfileHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	var in board.CategoryInput
	if err := decodeJSON(r, &in); err != nil {
		h.fail(w, sess, err)
		return
	}
	p, err := sess.UpdateCategory(r.Context(), id, in)
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	respondPending(w, r, p, func() any {
		c, _ := sess.Store().Category(id)
		return c
	})
}

// DeleteCategory removes a category and untags its tasks
func (h *ProfileHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	p, err := sess.DeleteCategory(r.Context(), id)
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	respondPending(w, r, p, func() any { return sess.Store().Categories() })
}
