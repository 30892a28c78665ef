package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/notely/notely/internal/auth"
	"github.com/notely/notely/internal/handler/dto"
	"github.com/notely/notely/internal/middleware"
	"github.com/notely/notely/internal/model"
	"github.com/notely/notely/internal/service"
)

// TokenIssuer signs API tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

// APIHandler serves the JSON API.
type APIHandler struct {
	users  *service.UserService
	notes  *service.NoteService
	tokens TokenIssuer
	logger *slog.Logger
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(users *service.UserService, notes *service.NoteService, tokens TokenIssuer, logger *slog.Logger) *APIHandler {
	return &APIHandler{
		users:  users,
		notes:  notes,
		tokens: tokens,
		logger: logger,
	}
}

// Auth handles POST /api/auth.
func (h *APIHandler) Auth(w http.ResponseWriter, r *http.Request) {
	creds, err := dto.BindCredentials(r)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.users.Authenticate(r.Context(), creds.Email, creds.Password)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if user == nil {
		writeAPIError(w, http.StatusUnauthorized, MsgInvalidCredentials)
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TokenResponse{Token: token})
}

// ListNotes handles GET /api/notes.
func (h *APIHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())

	notes, err := h.notes.ListForUser(r.Context(), user.ID)
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToNoteListResponse(notes))
}

// CreateNote handles POST /api/notes.
func (h *APIHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())

	req, err := dto.BindCreateNote(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeAPIError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		writeAPIError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	note, err := h.notes.Create(r.Context(), service.NoteInput{
		OwnerID: user.ID,
		Title:   req.Title,
		Body:    req.Body,
	})
	if err != nil {
		if ve, ok := model.AsValidationError(err); ok {
			writeJSON(w, http.StatusUnprocessableEntity, dto.ValidationErrorResponse{Errors: ve.Fields})
			return
		}
		h.internalError(w, r, err)
		return
	}

	h.logger.Info("note_created",
		slog.String("note_id", note.ID),
		slog.String("via", "api"),
		slog.String("request_id", middleware.GetRequestID(r.Context())),
	)

	writeJSON(w, http.StatusCreated, dto.ToNoteResponse(note))
}

func (h *APIHandler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("api request failed",
		slog.String("error", err.Error()),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.GetRequestID(r.Context())),
	)
	writeAPIError(w, http.StatusInternalServerError, "Internal server error")
}
