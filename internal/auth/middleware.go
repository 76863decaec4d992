package auth

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/ledgerlane/invoicer/internal/platform/httpx"
	"github.com/ledgerlane/invoicer/internal/shared"
)

// RequireUser rejects anonymous requests: API calls get 401, pages are
// redirected to the login form.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shared.CurrentUser(r.Context()) != "" {
			next.ServeHTTP(w, r)
			return
		}
		if strings.HasPrefix(r.URL.Path, "/api/") {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "sign in required")
			return
		}
		target := "/auth/login"
		if r.Method == http.MethodGet {
			target += "?next=" + url.QueryEscape(r.URL.RequestURI())
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
	})
}
