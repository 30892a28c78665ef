package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/notely/notely/internal/auth"
	"github.com/notely/notely/internal/handler/dto"
	"github.com/notely/notely/internal/middleware"
	"github.com/notely/notely/internal/service"
	"github.com/notely/notely/internal/view"
)

// Error page messages.
const (
	msgNotFound     = "We couldn't find what you were looking for."
	msgInternal     = "Something went wrong on our end. Please try again."
	msgBadRequest   = "The request could not be understood."
	msgTooLarge     = "The upload is too large."
	msgInvalidState = "The sign-in request expired or was tampered with. Please try again."
)

// ErrorRenderer is the single place HTML handlers send errors they cannot
// recover from.
type ErrorRenderer struct {
	view   *view.Renderer
	logger *slog.Logger
}

// NewErrorRenderer creates a new ErrorRenderer.
func NewErrorRenderer(v *view.Renderer, logger *slog.Logger) *ErrorRenderer {
	return &ErrorRenderer{view: v, logger: logger}
}

// Render logs err and renders the generic error page with its status.
func (e *ErrorRenderer) Render(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError

	switch {
	case errors.Is(err, service.ErrNoteNotFound):
		e.NotFound(w, r)
	case errors.As(err, &tooLarge):
		e.Page(w, r, http.StatusRequestEntityTooLarge, msgTooLarge)
	case errors.Is(err, dto.ErrInvalidForm):
		e.logger.Info("bad request",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		e.Page(w, r, http.StatusBadRequest, msgBadRequest)
	default:
		e.logger.Error("request failed",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		e.Page(w, r, http.StatusInternalServerError, msgInternal)
	}
}

// NotFound renders the 404 page.
func (e *ErrorRenderer) NotFound(w http.ResponseWriter, r *http.Request) {
	e.Page(w, r, http.StatusNotFound, msgNotFound)
}

// Internal renders the 500 page without an underlying error, for panics.
func (e *ErrorRenderer) Internal(w http.ResponseWriter, r *http.Request) {
	e.Page(w, r, http.StatusInternalServerError, msgInternal)
}

// Page renders the error page with status and message.
func (e *ErrorRenderer) Page(w http.ResponseWriter, r *http.Request, status int, message string) {
	data := view.Data{
		Title:   http.StatusText(status),
		User:    auth.UserFromContext(r.Context()),
		Status:  status,
		Message: message,
	}
	if err := e.view.Render(w, status, view.PageError, data); err != nil {
		e.logger.Error("render error page failed",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		http.Error(w, http.StatusText(status), status)
	}
}

// SessionLookupFailed adapts Render to middleware.SessionConfig.OnError.
func (e *ErrorRenderer) SessionLookupFailed(w http.ResponseWriter, r *http.Request, err error) {
	e.Render(w, r, err)
}

// FormParseFailed adapts Render to middleware.MethodOverride.
func (e *ErrorRenderer) FormParseFailed(w http.ResponseWriter, r *http.Request, err error) {
	e.Render(w, r, dto.BindError(err))
}

// render writes page or falls back to the error page when the template fails.
func (e *ErrorRenderer) render(w http.ResponseWriter, r *http.Request, status int, page string, data view.Data) {
	if data.User == nil {
		data.User = auth.UserFromContext(r.Context())
	}
	if err := e.view.Render(w, status, page, data); err != nil {
		e.Render(w, r, err)
	}
}
