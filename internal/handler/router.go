package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/clipdesk/backend/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/clipdesk/backend/internal/middleware"
	"github.com/zhouzirui/clipdesk/backend/internal/service/channel"
	"github.com/zhouzirui/clipdesk/backend/internal/service/membership"
	"github.com/zhouzirui/clipdesk/backend/internal/service/relay"
	"github.com/zhouzirui/clipdesk/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services: the websocket relay surface
// plus read-only snapshot endpoints for ops and debugging.
func NewRouter(manager *membership.Manager, relayRouter *relay.Router, store *channel.Store, msgLog *relay.MessageLog) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	wsHandler := ws.New(manager, relayRouter)
	wsHandler.RegisterRoutes(r)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		api.Get("/channels", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]any{
				"channels": store.SnapshotAll(),
			})
		})

		api.Get("/messages/log", func(w http.ResponseWriter, r *http.Request) {
			limit := 100
			if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
				parsed, err := strconv.Atoi(rawLimit)
				if err != nil || parsed < 1 {
					utils.RespondError(w, http.StatusBadRequest, "limit must be a positive integer")
					return
				}
				limit = parsed
			}
			utils.RespondJSON(w, http.StatusOK, map[string]any{
				"entries": msgLog.Recent(limit),
			})
		})
	})

	return r
}
