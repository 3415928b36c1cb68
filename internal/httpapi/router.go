// Package httpapi exposes the engine over JSON HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/EoCiMrEo/TikTacToeArena/internal/engine"
	"github.com/EoCiMrEo/TikTacToeArena/internal/obslog"
	"github.com/EoCiMrEo/TikTacToeArena/internal/session"
	"github.com/EoCiMrEo/TikTacToeArena/pkg/gamedto"
)

// Service is the subset of the engine the transport needs.
type Service interface {
	Create(ctx context.Context, req engine.CreateRequest) (*session.Record, error)
	Join(ctx context.Context, gameID, playerID string) (*session.Record, error)
	SubmitMove(ctx context.Context, gameID, playerID string, cell int) (*session.Record, error)
	Get(ctx context.Context, gameID string) (*session.Record, error)
	ActiveByUser(ctx context.Context, userID string) ([]*session.Record, error)
	Recent(ctx context.Context, userID string, limit int) ([]gamedto.FinishedGame, error)
	Ping(ctx context.Context) error
}

func NewRouter(svc Service) *chi.Mux {
	h := &handlers{svc: svc}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(accessLog)

	r.Get("/healthz", h.health())
	r.Route("/games", func(r chi.Router) {
		r.Post("/", h.create())
		r.Get("/active/{user_id}", h.active())
		r.Get("/recent/{user_id}", h.recent())
		r.Get("/{game_id}", h.get())
		r.Post("/{game_id}/move", h.move())
		r.Post("/{game_id}/join", h.join())
	})
	return r
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		obslog.L().Info("http_request",
			zap.String("request_id", chimw.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
