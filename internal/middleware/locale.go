package middleware

import (
	"net/http"

	"github.com/templui/thrive/internal/ctxkeys"
	"github.com/templui/thrive/internal/i18n"
)

// Locale negotiates the response language. The signed-in user's profile
// locale wins over Accept-Language. Must run after AuthMiddleware.
func Locale(translator *i18n.Translator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			preferred := ""
			if profile := ctxkeys.Profile(r.Context()); profile != nil {
				preferred = profile.Locale
			}
			locale := translator.Negotiate(preferred, r.Header.Get("Accept-Language"))

			w.Header().Set("Content-Language", locale)
			next.ServeHTTP(w, r.WithContext(ctxkeys.WithLocale(r.Context(), locale)))
		})
	}
}
