package middleware

import (
	"context"
	"mime"
	"net/http"
	"strings"
)

// MethodOverrideField is the form field HTML forms use to send PATCH and DELETE.
const MethodOverrideField = "_method"

type overrideKey struct{}

// MethodOverride rewrites urlencoded POSTs carrying _method=PATCH or
// _method=DELETE so they route like the real verb. Must run before routing.
// A body that cannot be parsed, including one over the size limit, is handed
// to onError instead of reaching handlers as an empty form.
func MethodOverride(onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost && isURLEncodedForm(r) {
				if err := r.ParseForm(); err != nil {
					onError(w, r, err)
					return
				}
				switch m := strings.ToUpper(r.PostForm.Get(MethodOverrideField)); m {
				case http.MethodPatch, http.MethodDelete:
					r.Method = m
					r = r.WithContext(context.WithValue(r.Context(), overrideKey{}, true))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IsMethodOverridden reports whether the request arrived as a form POST
// rewritten by MethodOverride.
func IsMethodOverridden(r *http.Request) bool {
	overridden, _ := r.Context().Value(overrideKey{}).(bool)
	return overridden
}

func isURLEncodedForm(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/x-www-form-urlencoded"
}
