package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions configures NewRouter. A nil Verifier disables authentication.
type RouterOptions struct {
	Verifier    *TokenVerifier
	CORSOrigins []string
	Logger      *slog.Logger
}

// NewRouter mounts the websocket endpoint, the admin API and the health check.
func NewRouter(ws *WSHandler, admin *AdminHandler, opts RouterOptions) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(opts.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.With(opts.Verifier.Middleware).Get("/ws", ws.ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Use(opts.Verifier.Middleware)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", admin.CreateSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", admin.GetSession)
				r.Get("/rankings", admin.GetRankings)
				r.Get("/leaderboard", admin.GetLeaderboard)
				r.Get("/summary", admin.GetSummary)
				r.Get("/participants/{participantId}/stats", admin.GetParticipantStats)
				r.Post("/questions/next", admin.NextQuestion)
				r.Post("/questions/close", admin.CloseQuestion)
				r.Post("/end", admin.EndSession)
				r.Post("/youtube-quizzes/{quizId}", admin.AddQuizToSession)
			})
		})

		r.Route("/quizzes", func(r chi.Router) {
			r.Post("/", admin.SaveQuiz)
			r.Get("/{id}", admin.GetQuiz)
			r.Put("/{id}", admin.SaveQuiz)
		})

		r.Route("/youtube-quizzes", func(r chi.Router) {
			r.Get("/", admin.ListVideoQuizzes)
			r.Post("/", admin.CreateVideoQuiz)
			r.Get("/{id}", admin.GetVideoQuiz)
			r.Put("/{id}", admin.UpdateVideoQuiz)
			r.Delete("/{id}", admin.DeleteVideoQuiz)
		})
	})

	return r
}

// requestLogger logs one line per request with the chi request id.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
