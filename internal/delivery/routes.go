package delivery

import (
	"net/http"
	"time"

	"github.com/Vovarama1992/go-utils/httputil"
	"github.com/Vovarama1992/voice_assistant/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

type RouteOptions struct {
	RequestTimeout time.Duration
	// запросов в минуту с одного IP на /api; 0 — без лимита
	RateLimitPerMinute int
	// отдаёт /metrics; nil — маршрут не регистрируется
	MetricsHandler http.Handler
}

func RegisterRoutes(r chi.Router, h *Handler, m *metrics.Metrics, opts RouteOptions) {
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		httputil.RecoverMiddleware,
	)

	// --- служебное ---
	r.Get("/health", h.Health)
	if opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	// --- голосовой API ---
	r.Route("/api", func(api chi.Router) {
		api.Use(Instrument(m))
		if opts.RateLimitPerMinute > 0 {
			api.Use(httprate.LimitByIP(opts.RateLimitPerMinute, time.Minute))
		}
		api.Use(RequestTimeout(opts.RequestTimeout))

		api.Post("/transcribe", h.Transcribe)
		api.Post("/chat", h.Chat)
		api.Post("/speech", h.Speech)
		api.Post("/turn", h.Turn)
	})
}
