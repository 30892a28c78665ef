package dto

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/notely/notely/internal/storage"
)

// ErrInvalidForm indicates a request body that could not be parsed.
var ErrInvalidForm = errors.New("invalid form")

// Form field names.
const (
	FieldTitle    = "title"
	FieldBody     = "body"
	FieldImage    = "image"
	FieldEmail    = "email"
	FieldPassword = "password"
)

// multipartMemory is how much of a multipart body is held in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

// sniffLen is the prefix http.DetectContentType inspects.
const sniffLen = 512

// Credentials is the email and password of a login, registration or API auth request.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Values echoes the credentials back to a form. The password is never echoed.
func (c Credentials) Values() map[string]string {
	return map[string]string{FieldEmail: c.Email}
}

// NoteForm is a note submitted from the HTML create or edit form.
type NoteForm struct {
	Title string
	Body  string
	// Image is set when a non-empty file was attached.
	Image *storage.Image

	file multipart.File
}

// Values echoes the text fields back to a form.
func (f *NoteForm) Values() map[string]string {
	return map[string]string{FieldTitle: f.Title, FieldBody: f.Body}
}

// Close releases the uploaded file, if any.
func (f *NoteForm) Close() error {
	if f.file == nil {
		return nil
	}
	return f.file.Close()
}

// BindCredentials reads credentials from a JSON or form body.
func BindCredentials(r *http.Request) (Credentials, error) {
	var c Credentials
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			return Credentials{}, BindError(err)
		}
		return c, nil
	}

	if err := r.ParseForm(); err != nil {
		return Credentials{}, BindError(err)
	}
	c.Email = r.PostFormValue(FieldEmail)
	c.Password = r.PostFormValue(FieldPassword)
	return c, nil
}

// BindCreateNote decodes an API note creation body.
func BindCreateNote(r *http.Request) (CreateNoteRequest, error) {
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return CreateNoteRequest{}, BindError(err)
	}
	return req, nil
}

// BindNoteForm reads a note from a JSON, urlencoded or multipart body. The
// image content type is sniffed from the file rather than trusted from the
// client. JSON bodies carry no image. Callers must Close the returned form.
func BindNoteForm(r *http.Request) (*NoteForm, error) {
	form := &NoteForm{}

	if isJSON(r) {
		var body struct {
			Title string `json:"title"`
			Body  string `json:"body"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return nil, BindError(err)
		}
		form.Title = body.Title
		form.Body = body.Body
		return form, nil
	}

	if isMultipart(r) {
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return nil, BindError(err)
		}
	} else if err := r.ParseForm(); err != nil {
		return nil, BindError(err)
	}

	form.Title = r.PostFormValue(FieldTitle)
	form.Body = r.PostFormValue(FieldBody)

	if r.MultipartForm == nil {
		return form, nil
	}

	file, header, err := r.FormFile(FieldImage)
	if errors.Is(err, http.ErrMissingFile) {
		return form, nil
	}
	if err != nil {
		return nil, BindError(err)
	}
	if header.Size == 0 && header.Filename == "" {
		_ = file.Close()
		return form, nil
	}

	contentType, err := sniff(file)
	if err != nil {
		_ = file.Close()
		return nil, BindError(err)
	}

	form.file = file
	form.Image = &storage.Image{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        file,
	}
	return form, nil
}

func sniff(file multipart.File) (string, error) {
	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(file, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	return http.DetectContentType(buf[:n]), nil
}

// bindError keeps *http.MaxBytesError reachable for 413 handling.
func BindError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrInvalidForm, err)
}

func isJSON(r *http.Request) bool {
	return mediaType(r) == "application/json"
}

func isMultipart(r *http.Request) bool {
	return mediaType(r) == "multipart/form-data"
}

func mediaType(r *http.Request) string {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return mt
}
