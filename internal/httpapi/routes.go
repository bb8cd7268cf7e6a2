package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jikoent/cipher-squad-backend/internal/ws"
)

func SetupRoutes(d Deps, authMW func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(corsMiddleware)
	r.Use(authMW)

	r.Route("/api/game/vault", func(r chi.Router) {
		// Public reads
		r.Get("/", GetVault(d))
		r.Get("/leaderboard", GetLeaderboard(d))

		// Authenticated mutations
		r.Post("/claim", ClaimTile(d))
		r.Post("/release", ReleaseTile(d))
		r.Post("/solve", SolveTile(d))

		// Ops
		r.Post("/admin/seed", AdminSeed(d))
	})

	if d.Hub != nil {
		r.Get("/ws", ws.Handler(d.Hub, d.Log))
	}
	r.Get("/healthz", Healthz)
	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Admin-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
