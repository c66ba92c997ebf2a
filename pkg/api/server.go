package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tmercer/greatwyrm/pkg/api/handlers"
	"github.com/tmercer/greatwyrm/pkg/api/middleware"
	authproviders "github.com/tmercer/greatwyrm/pkg/auth/providers"
	"github.com/tmercer/greatwyrm/pkg/combat"
	"github.com/tmercer/greatwyrm/pkg/log"
	"github.com/tmercer/greatwyrm/pkg/queue"
	"github.com/tmercer/greatwyrm/pkg/repositories"
	"github.com/tmercer/greatwyrm/pkg/rooms"
	"github.com/tmercer/greatwyrm/pkg/workers"
)

type APIServer struct {
	server *http.Server
	tls    *TLSConfig
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewAPIServerOptions struct {
	Port                 int
	AllowOrigin          string
	TLS                  *TLSConfig
	AuthProvider         authproviders.AuthProvider
	Repository           repositories.Repository
	RoomManager          *rooms.RoomManager
	RollEventQueue       queue.Queue
	Resolver             *combat.Resolver
	BroadcastMessageChan chan<- workers.BroadcastMessage
}

// NewAPIServer creates a new http.Server for handling API requests
func NewAPIServer(opts NewAPIServerOptions) *APIServer {
	authMiddleware := middleware.NewAuthMiddleware(opts.AuthProvider, opts.Repository)
	cors := corsHeaders(opts.AllowOrigin)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/characters", authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cors(w, "GET, POST")
		switch r.Method {
		case http.MethodOptions:
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			handlers.HandleListCharacters(opts.Repository)(w, r)
		case http.MethodPost:
			handlers.HandleCreateCharacter(opts.Repository)(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))
	mux.Handle("/characters/{characterID}", authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cors(w, "DELETE")
		switch r.Method {
		case http.MethodOptions:
			w.WriteHeader(http.StatusNoContent)
		case http.MethodDelete:
			handlers.HandleDeleteCharacter(opts.Repository)(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))
	mux.Handle("/monsters", authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cors(w, "GET")
		switch r.Method {
		case http.MethodOptions:
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			handlers.HandleListMonsterTypes(opts.Repository)(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))
	mux.Handle("/campaigns/{campaignID}/combat", authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cors(w, "GET, POST")
		switch r.Method {
		case http.MethodOptions:
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			handlers.HandleGetCombat(opts.Repository)(w, r)
		case http.MethodPost:
			handlers.HandleStartCombat(opts.Repository, opts.Resolver, opts.BroadcastMessageChan)(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))
	mux.Handle("/campaigns/{campaignID}/combat/{sessionID}", authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cors(w, "DELETE")
		switch r.Method {
		case http.MethodOptions:
			w.WriteHeader(http.StatusNoContent)
		case http.MethodDelete:
			handlers.HandleEndCombat(opts.Repository)(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))
	mux.HandleFunc("/campaigns/{campaignID}/ws", handleWS(wsHandlerOptions{
		AuthProvider:   opts.AuthProvider,
		Repository:     opts.Repository,
		RoomManager:    opts.RoomManager,
		RollEventQueue: opts.RollEventQueue,
		OriginPatterns: strings.Split(opts.AllowOrigin, ","),
	}))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: mux,
	}

	return &APIServer{
		server: server,
		tls:    opts.TLS,
	}
}

func corsHeaders(allowOrigin string) func(w http.ResponseWriter, methods string) {
	return func(w http.ResponseWriter, methods string) {
		w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", methods+", OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
	}
}

// Start starts the APIServer
func (s *APIServer) Start() {
	var listenAndServe func() error
	if s.tls != nil {
		log.Info("API server listening on %s with TLS", s.server.Addr)
		listenAndServe = func() error {
			return s.server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		log.Info("API server listening on %s", s.server.Addr)
		listenAndServe = s.server.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("API server closed")
			return
		}
		log.Error("API server error: %v", err)
	}
}

// Stop stops the APIServer
func (s *APIServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
