package incomehttp

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/ledgerlane/invoicer/internal/shared"
)

// MountRoutes registers the report page and its exports under /reports/income.
// Exports are rate limited per user.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(10, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)

	r.Get("/", h.handlePage)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Get("/pdf", h.handlePDF)
		gr.Get("/export.csv", h.handleCSV)
	})
}

// MountAPI registers GET /api/reports/income.
func (h *Handler) MountAPI(r chi.Router) {
	if h == nil {
		return
	}
	r.Get("/", h.handleAPI)
}

func rateLimitKey(r *http.Request) (string, error) {
	if user := strings.TrimSpace(shared.CurrentUser(r.Context())); user != "" {
		return "user:" + user, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
