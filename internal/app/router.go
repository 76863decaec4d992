package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerlane/invoicer/internal/auth"
	"github.com/ledgerlane/invoicer/internal/board"
	incomehttp "github.com/ledgerlane/invoicer/internal/income/http"
	"github.com/ledgerlane/invoicer/internal/invoice"
	"github.com/ledgerlane/invoicer/internal/observability"
	"github.com/ledgerlane/invoicer/internal/platform/httpx"
	"github.com/ledgerlane/invoicer/internal/shared"
	"github.com/ledgerlane/invoicer/internal/view"
	"github.com/ledgerlane/invoicer/jobs"
	"github.com/ledgerlane/invoicer/report"
	"github.com/ledgerlane/invoicer/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Templates      *view.Engine
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	AuthHandler    *auth.Handler
	InvoiceHandler *invoice.Handler
	InvoiceAPI     *invoice.API
	BoardHandler   *board.Handler
	IncomeHandler  *incomehttp.Handler
	ReportHandler  *report.Handler
	JobHandler     *jobs.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with invoicer defaults.
func NewRouter(params RouterParams) http.Handler {
	if params.Logger == nil {
		params.Logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if isAPI(r) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "no such resource")
			return
		}
		data := view.Page(r, params.CSRFManager, "Page not found", map[string]string{"Message": "The page you asked for does not exist."})
		if err := params.Templates.RenderStatus(w, http.StatusNotFound, "pages/error.html", data); err != nil {
			params.Logger.Error("render not found", slog.Any("error", err))
		}
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/welcome", func(w http.ResponseWriter, r *http.Request) {
		data := view.Page(r, params.CSRFManager, "Invoicer", nil)
		if err := params.Templates.Render(w, "pages/landing.html", data); err != nil {
			params.Logger.Error("render landing", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		if shared.CurrentUser(r.Context()) == "" {
			http.Redirect(w, r, "/welcome", http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, "/invoices", http.StatusSeeOther)
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Route("/api/session", params.AuthHandler.MountAPI)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser)
		r.Route("/invoices", params.InvoiceHandler.MountRoutes)
		r.Route("/board", params.BoardHandler.MountRoutes)
		if params.IncomeHandler != nil {
			r.Route("/reports/income", params.IncomeHandler.MountRoutes)
		}

		r.Route("/api/invoices", params.InvoiceAPI.MountRoutes)
		r.Route("/api/board", params.BoardHandler.MountAPI)
		if params.IncomeHandler != nil {
			r.Route("/api/reports/income", params.IncomeHandler.MountAPI)
		}
	})

	if params.ReportHandler != nil {
		r.Route("/report", params.ReportHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler lets browsers keep embedded assets for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
