// Package server is the transport surface: REST read paths and the two
// WebSocket endpoints (per-pair chat, per-user feed/notifications).
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/oggyb/matchpoint/internal/app"
	"github.com/oggyb/matchpoint/internal/auth"
	"github.com/oggyb/matchpoint/internal/discovery"
	"github.com/oggyb/matchpoint/internal/repository"
	"github.com/oggyb/matchpoint/internal/service/chat"
	"github.com/oggyb/matchpoint/internal/service/match"
)

type Server struct {
	appCtx   *app.AppContext
	verifier auth.Verifier

	selector *discovery.Selector
	profiles *repository.ProfileRepository
	matches  *match.Service
	chats    *chat.Service

	router *mux.Router
}

// New wires services and routes. The verifier is injected: the server never
// parses credentials itself.
func New(appCtx *app.AppContext, verifier auth.Verifier) *Server {
	profiles := repository.NewProfileRepository(appCtx.DB)
	s := &Server{
		appCtx:   appCtx,
		verifier: verifier,
		selector: discovery.NewSelector(profiles, appCtx.Logger),
		profiles: profiles,
		matches:  match.NewService(appCtx),
		chats:    chat.NewService(appCtx),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	// WebSocket endpoints authenticate via the Bearer subprotocol during the
	// handshake, so they sit outside the header middleware.
	r.HandleFunc("/ws/dm/{peer_id:[0-9]+}", s.handleChatSocket).Methods(http.MethodGet)
	r.HandleFunc("/ws/feed", s.handleFeedSocket).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.authenticate)
	api.HandleFunc("/swipe", s.handleCandidates).Methods(http.MethodGet)
	api.HandleFunc("/matches", s.handleMatches).Methods(http.MethodGet)
	api.HandleFunc("/match/{other_id:[0-9]+}", s.handleUnmatch).Methods(http.MethodDelete)
	api.HandleFunc("/match/{other_id:[0-9]+}/unread", s.handleUnread).Methods(http.MethodGet)
	api.HandleFunc("/report/{other_id:[0-9]+}", s.handleReport).Methods(http.MethodPost)
	api.HandleFunc("/message/{recipient_id:[0-9]+}", s.handleHistory).Methods(http.MethodGet)

	s.router = r
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	return c.Handler(requestLogger(s.appCtx.Logger)(s.router))
}

// Start blocks serving HTTP until the listener fails.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%s", s.appCtx.Cfg.HTTP.Host, s.appCtx.Cfg.HTTP.Port)
	s.appCtx.Logger.Info("starting http server", "addr", addr)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}
