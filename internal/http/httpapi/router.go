package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"designbridge/internal/http/handlers"
	"designbridge/internal/infra"
	"designbridge/internal/middleware"
	"designbridge/internal/observability"
)

// Options configures the middleware stack around the handlers.
type Options struct {
	Logger          infra.Logger
	CORSOrigins     []string
	DefaultLocale   string
	CountryLookup   middleware.CountryLookup
	RateLimitPerMin int
	// StaticDir is served under /static when the filesystem sink is active.
	StaticDir string
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	if opts.DefaultLocale == "" {
		opts.DefaultLocale = "en"
	}
	if opts.RateLimitPerMin <= 0 {
		opts.RateLimitPerMin = 60
	}

	r := chi.NewRouter()
	r.Use(
		chimw.RealIP,
		middleware.RequestID,
		middleware.Logger(opts.Logger),
		chimw.Recoverer,
		middleware.CORS(opts.CORSOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
		observability.ServerTimingMiddleware,
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/presets", app.Presets)
	if opts.StaticDir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir))))
	}

	r.Route("/v1/auth", func(r chi.Router) {
		r.With(middleware.RateLimit(opts.RateLimitPerMin, time.Minute)).Get("/login", app.AuthLogin)
		r.Get("/callback", app.AuthCallback)
		r.With(middleware.AuthJWT(app.JWTSecret)).Post("/logout", app.AuthLogout)
	})

	r.Group(func(r chi.Router) {
		r.Use(
			middleware.AuthJWT(app.JWTSecret),
			middleware.RateLimit(opts.RateLimitPerMin, time.Minute),
		)
		r.Post("/v1/exports", app.CreateExport)
		r.Post("/v1/exports/async", app.CreateExportAsync)
		r.Get("/v1/exports/{id}", app.GetExport)
	})

	return r
}
