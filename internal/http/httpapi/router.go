package httpapi

import (
	"net/http"
	"time"

	"talkingphoto/internal/http/handlers"
	"talkingphoto/internal/infra"
	appmw "talkingphoto/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Options carries the router configuration that does not belong to the
// handlers themselves.
type Options struct {
	Logger          infra.Logger
	AllowedOrigins  []string
	DefaultLocale   string
	CountryLookup   appmw.CountryLookup
	RateLimitPerMin int
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		appmw.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		appmw.Logger(opts.Logger),
		appmw.CORS(opts.AllowedOrigins),
		appmw.I18N(opts.DefaultLocale, opts.CountryLookup),
	)
	if opts.RateLimitPerMin > 0 {
		r.Use(appmw.RateLimit(opts.RateLimitPerMin, time.Minute))
	}

	r.Get("/healthz", app.Health)
	r.Get("/api/voices", app.ListVoices)
	r.Post("/api/generate-script", app.GenerateScript)
	r.Post("/api/generate-voice", app.GenerateVoice)
	r.Post("/api/generate-video", app.GenerateVideo)
	r.Post("/api/video-status", app.VideoStatus)

	// Persistence-backed routes only exist when the server has a database.
	if app.Gallery != nil {
		r.Get("/api/gallery", app.ListGallery)
	}
	if app.Usage != nil {
		r.Get("/api/stats/24h", app.UsageStats)
	}

	return r
}
