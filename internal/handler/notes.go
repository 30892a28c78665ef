package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/notely/notely/internal/auth"
	"github.com/notely/notely/internal/handler/dto"
	"github.com/notely/notely/internal/middleware"
	"github.com/notely/notely/internal/model"
	"github.com/notely/notely/internal/service"
	"github.com/notely/notely/internal/view"
)

// NoteHandler serves the HTML note pages. Every route requires a user.
type NoteHandler struct {
	notes  *service.NoteService
	errors *ErrorRenderer
	logger *slog.Logger
}

// NewNoteHandler creates a new NoteHandler.
func NewNoteHandler(notes *service.NoteService, errors *ErrorRenderer, logger *slog.Logger) *NoteHandler {
	return &NoteHandler{
		notes:  notes,
		errors: errors,
		logger: logger,
	}
}

// Index handles GET /.
func (h *NoteHandler) Index(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())

	notes, err := h.notes.ListForUser(r.Context(), user.ID)
	if err != nil {
		h.errors.Render(w, r, err)
		return
	}

	h.errors.render(w, r, http.StatusOK, view.PageIndex, view.Data{Title: "Notes", Notes: notes})
}

// New handles GET /notes/new.
func (h *NoteHandler) New(w http.ResponseWriter, r *http.Request) {
	h.renderNew(w, r, http.StatusOK, nil, nil)
}

// Create handles POST /notes.
func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())

	form, err := dto.BindNoteForm(r)
	if err != nil {
		h.errors.Render(w, r, err)
		return
	}
	defer form.Close()

	note, err := h.notes.Create(r.Context(), service.NoteInput{
		OwnerID: user.ID,
		Title:   form.Title,
		Body:    form.Body,
		Image:   form.Image,
	})
	if err != nil {
		if ve, ok := model.AsValidationError(err); ok {
			h.renderNew(w, r, http.StatusUnprocessableEntity, form.Values(), ve.Fields)
			return
		}
		h.errors.Render(w, r, err)
		return
	}

	h.logger.Info("note_created",
		slog.String("note_id", note.ID),
		slog.Bool("has_image", note.HasImage()),
		slog.String("request_id", middleware.GetRequestID(r.Context())),
	)

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Show handles GET /notes/{id}.
func (h *NoteHandler) Show(w http.ResponseWriter, r *http.Request) {
	note, ok := h.load(w, r)
	if !ok {
		return
	}
	h.errors.render(w, r, http.StatusOK, view.PageShow, view.Data{Title: note.Title, Note: note})
}

// Edit handles GET /notes/{id}/edit.
func (h *NoteHandler) Edit(w http.ResponseWriter, r *http.Request) {
	note, ok := h.load(w, r)
	if !ok {
		return
	}
	h.renderEdit(w, r, http.StatusOK, note, map[string]string{
		dto.FieldTitle: note.Title,
		dto.FieldBody:  note.Body,
	}, nil)
}

// Update handles PATCH /notes/{id}. Browser forms that arrive through the
// _method override are redirected to the note; other clients get 204.
func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())
	id := chi.URLParam(r, "id")

	form, err := dto.BindNoteForm(r)
	if err != nil {
		h.errors.Render(w, r, err)
		return
	}
	defer form.Close()

	note, err := h.notes.Update(r.Context(), user.ID, id, form.Title, form.Body)
	if err != nil {
		if ve, ok := model.AsValidationError(err); ok {
			h.renderEdit(w, r, http.StatusUnprocessableEntity, &model.Note{ID: id}, form.Values(), ve.Fields)
			return
		}
		h.errors.Render(w, r, err)
		return
	}

	h.logger.Info("note_updated",
		slog.String("note_id", note.ID),
		slog.String("request_id", middleware.GetRequestID(r.Context())),
	)

	if middleware.IsMethodOverridden(r) {
		http.Redirect(w, r, "/notes/"+note.ID, http.StatusSeeOther)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /notes/{id}. Deleting a missing note succeeds.
func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.notes.Delete(r.Context(), user.ID, id); err != nil {
		h.errors.Render(w, r, err)
		return
	}

	h.logger.Info("note_deleted",
		slog.String("note_id", id),
		slog.String("request_id", middleware.GetRequestID(r.Context())),
	)

	if middleware.IsMethodOverridden(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// load fetches the current user's note named by the route, rendering 404
// when it does not exist or belongs to someone else.
func (h *NoteHandler) load(w http.ResponseWriter, r *http.Request) (*model.Note, bool) {
	user := auth.MustUserFromContext(r.Context())

	note, err := h.notes.FindByID(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		h.errors.Render(w, r, err)
		return nil, false
	}
	if note == nil {
		h.errors.NotFound(w, r)
		return nil, false
	}
	return note, true
}

func (h *NoteHandler) renderNew(w http.ResponseWriter, r *http.Request, status int, form, fieldErrors map[string]string) {
	h.errors.render(w, r, status, view.PageNew, view.Data{
		Title:          "New note",
		Form:           form,
		Errors:         fieldErrors,
		UploadsEnabled: h.notes.UploadsEnabled(),
	})
}

func (h *NoteHandler) renderEdit(w http.ResponseWriter, r *http.Request, status int, note *model.Note, form, fieldErrors map[string]string) {
	h.errors.render(w, r, status, view.PageEdit, view.Data{
		Title:  "Edit note",
		Note:   note,
		Form:   form,
		Errors: fieldErrors,
	})
}
