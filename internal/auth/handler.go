package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ledgerlane/invoicer/internal/platform/httpx"
	"github.com/ledgerlane/invoicer/internal/shared"
	"github.com/ledgerlane/invoicer/internal/view"
)

// Handler wires HTTP endpoints for sign in and sign out.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers the HTML auth routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

// MountAPI registers the JSON session endpoints used by script clients.
func (h *Handler) MountAPI(r chi.Router) {
	r.Get("/", h.getSession)
	r.Post("/", h.createSession)
	r.Delete("/", h.deleteSession)
}

type loginForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginPageData struct {
	Form   loginForm
	Next   string
	Errors map[string]string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	if shared.CurrentUser(r.Context()) != "" {
		http.Redirect(w, r, "/invoices", http.StatusSeeOther)
		return
	}
	h.renderLogin(w, r, loginPageData{Next: safeNext(r.URL.Query().Get("next"))}, http.StatusOK)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := loginForm{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	next := safeNext(r.PostFormValue("next"))

	errs := h.validateForm(form)
	if len(errs) == 0 {
		if err := h.signIn(r, form); err != nil {
			errs["general"] = shared.UserSafeMessage(err)
		} else {
			if sess := shared.SessionFromContext(r.Context()); sess != nil {
				sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Welcome back"})
			}
			http.Redirect(w, r, next, http.StatusSeeOther)
			return
		}
	}

	form.Password = ""
	h.renderLogin(w, r, loginPageData{Form: form, Next: next, Errors: errs}, http.StatusBadRequest)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, "/welcome", http.StatusSeeOther)
}

type sessionView struct {
	Authenticated bool   `json:"authenticated"`
	User          string `json:"user,omitempty"`
	CSRFToken     string `json:"csrfToken"`
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	h.writeSession(w, r, http.StatusOK)
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var form loginForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if errs := h.validateForm(form); len(errs) > 0 {
		httpx.RespondError(w, fieldErrors(errs))
		return
	}
	if err := h.signIn(r, form); err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", shared.UserSafeMessage(err))
		return
	}
	h.writeSession(w, r, http.StatusOK)
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		h.sessionManager.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeSession(w http.ResponseWriter, r *http.Request, status int) {
	sess := shared.SessionFromContext(r.Context())
	token, err := h.csrfManager.EnsureToken(r.Context(), sess)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	user := sess.User()
	httpx.JSON(w, status, sessionView{Authenticated: user != "", User: user, CSRFToken: token})
}

// signIn authenticates and binds the user to a fresh session id.
func (h *Handler) signIn(r *http.Request, form loginForm) error {
	user, err := h.service.Authenticate(r.Context(), form.Email, form.Password)
	if err != nil {
		h.logger.Info("sign in rejected", slog.String("email", form.Email))
		return err
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return errors.New("auth: session missing")
	}
	if err := h.sessionManager.Renew(r.Context(), sess); err != nil {
		return err
	}
	sess.SetUser(user.Email)
	// The token was bound to the old id.
	sess.Delete(shared.CSRFSessionKey)
	return nil
}

func (h *Handler) validateForm(form loginForm) map[string]string {
	errs := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				errs[strings.ToLower(fe.Field())] = loginMessage(fe)
			}
		}
	}
	return errs
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, data loginPageData, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "Sign in",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if err := h.templates.RenderStatus(w, status, "pages/login.html", viewData); err != nil {
		h.logger.Error("render login", slog.Any("error", err))
	}
}

func loginMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}

// safeNext only allows local redirect targets.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return "/invoices"
	}
	return next
}

type fieldErrors map[string]string

func (f fieldErrors) Error() string { return "invalid credentials payload" }

func (f fieldErrors) Unwrap() error { return httpx.ErrValidation }

func (f fieldErrors) FieldDetails() []httpx.FieldDetail {
	out := make([]httpx.FieldDetail, 0, len(f))
	for field, msg := range f {
		out = append(out, httpx.FieldDetail{Field: field, Message: msg})
	}
	return out
}

// ShowLoginForTest exposes the GET handler for tests.
func (h *Handler) ShowLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.showLogin(w, r)
}

// HandleLoginForTest exposes the POST handler for tests.
func (h *Handler) HandleLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogin(w, r)
}
