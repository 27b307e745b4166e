package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/interlinked/interlinked/internal/config"
	"github.com/interlinked/interlinked/internal/database"
	"github.com/interlinked/interlinked/internal/server"
)

type InterlinkedApp struct {
	log            *log.Logger
	db             database.Repository
	srv            *http.Server
	hub            *server.Hub
	signingKey     []byte
	allowedOrigins []string
}

func NewInterlinkedApp(mux *http.ServeMux, logger *log.Logger, hub *server.Hub, db database.Repository, cfg *config.Config) *InterlinkedApp {
	s := &InterlinkedApp{
		log:            logger,
		db:             db,
		hub:            hub,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.HandleFunc("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.HandleFunc("POST /api/account/avatar", s.authMiddleware(s.updateAvatar))
	mux.HandleFunc("GET /api/friends", s.authMiddleware(s.getFriends))
	mux.HandleFunc("POST /api/friends/check-request", s.authMiddleware(s.checkFriendRequest))
	mux.HandleFunc("POST /api/friends/request", s.authMiddleware(s.sendFriendRequest))
	mux.HandleFunc("GET /api/friends/requests", s.authMiddleware(s.listFriendRequests))
	mux.HandleFunc("POST /api/friends/requests/accept", s.authMiddleware(s.acceptFriendRequest))
	mux.HandleFunc("POST /api/friends/requests/decline", s.authMiddleware(s.declineFriendRequest))
	mux.HandleFunc("GET /api/conversations", s.authMiddleware(s.getConversations))
	mux.HandleFunc("POST /api/conversations", s.authMiddleware(s.createConversation))
	mux.HandleFunc("GET /api/conversations/{id}/messages", s.authMiddleware(s.getMessages))
	mux.HandleFunc("POST /api/conversations/{id}/messages", s.authMiddleware(s.sendMessage))
	mux.HandleFunc("POST /api/conversations/{id}/read-status", s.authMiddleware(s.updateReadStatus))
	mux.HandleFunc("GET /api/messages/{id}", s.authMiddleware(s.getMessage))
	mux.HandleFunc("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.srv = srv
	return s
}

func (s *InterlinkedApp) Start() error {
	s.log.Printf("starting server on %s\n", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *InterlinkedApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
