// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/notely/notely/internal/handler/dto"
)

// Handler serves responses for requests no route matched.
type Handler struct {
	errors *ErrorRenderer
}

// New creates a new Handler instance.
func New(errors *ErrorRenderer) *Handler {
	return &Handler{errors: errors}
}

// NotFound handles 404 responses: JSON under /api, the error page elsewhere.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	if isAPI(r) {
		writeAPIError(w, http.StatusNotFound, "resource not found")
		return
	}
	h.errors.NotFound(w, r)
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	if isAPI(r) {
		writeAPIError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h.errors.Page(w, r, http.StatusMethodNotAllowed, "That action is not supported here.")
}

func isAPI(r *http.Request) bool {
	return r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeAPIError writes {"error": message}.
func writeAPIError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, dto.ErrorResponse{Error: message})
}
