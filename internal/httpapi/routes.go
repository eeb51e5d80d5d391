package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/DoyleJ11/cinemagames-backend/internal/hub"
	"github.com/DoyleJ11/cinemagames-backend/internal/ws"
)

type Deps struct {
	Hub   *hub.Hub
	Conns *ws.Table
	// WS, when set, is also served under /ws/ so one listener can carry
	// both surfaces.
	WS             http.Handler
	AllowedOrigins []string
	Logger         *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(accessLog(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	// Public routes
	r.Post("/connect", Connect(d.Hub, d.Conns, logger))
	r.Post("/trigger", Trigger(d.Hub, d.Conns, logger))
	r.Post("/disconnect", Disconnect(d.Hub, logger))
	r.Get("/game-status", GameStatus(d.Hub))
	r.Get("/healthz", Healthz(d.Hub))

	if d.WS != nil {
		wsh := http.StripPrefix("/ws", d.WS)
		r.Handle("/ws", wsh)
		r.Handle("/ws/*", wsh)
	}
	return r
}

func accessLog(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)))
		})
	}
}
