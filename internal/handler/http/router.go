package http

import (
	"log/slog"
	"os"

	"github.com/clubtrack/attendance-backend-go/internal/handler/http/middleware"
	"github.com/clubtrack/attendance-backend-go/internal/pkg/jwt"
	"github.com/clubtrack/attendance-backend-go/internal/pkg/metrics"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
)

type RouterOptions struct {
	AllowedOrigins []string
	Env            string
	Version        string
	LogLevel       slog.Level
}

func NewRouter(opts RouterOptions, JWTService jwt.Service, trackingHandler TrackingHandler, sessionHandler SessionHandler) *chi.Mux {
	r := chi.NewRouter()
	logFormat := httplog.SchemaECS.Concise(false)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       opts.LogLevel,
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "clubtrack-attendance"),
		slog.String("version", opts.Version),
		slog.String("env", opts.Env),
	)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelInfo,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {

		// EventSource connections authenticate with an SSE token in the query
		r.Get("/tracking/stream", trackingHandler.Stream)

		// Requires a member access token
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
			r.Use(middleware.AuthRequired(JWTService.JWTAuth()))
			r.Use(middleware.MemberRequired)

			r.Route("/tracking", func(r chi.Router) {
				r.Use(chiMiddleware.AllowContentType("application/json"))
				r.Post("/start", trackingHandler.Start)
				r.Post("/stop", trackingHandler.Stop)
				r.Post("/positions", trackingHandler.Position)
				r.Post("/errors", trackingHandler.Error)
				r.Get("/state", trackingHandler.State)
				r.Post("/stream/token", trackingHandler.StreamToken)
			})

			r.Route("/sessions", func(r chi.Router) {
				r.Get("/history", sessionHandler.History)
				r.Get("/summary", sessionHandler.Summary)
			})
		})
	})
	return r
}
