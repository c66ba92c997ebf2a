package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tmercer/greatwyrm/pkg/api"
	authproviders "github.com/tmercer/greatwyrm/pkg/auth/providers"
	"github.com/tmercer/greatwyrm/pkg/combat"
	"github.com/tmercer/greatwyrm/pkg/log"
	"github.com/tmercer/greatwyrm/pkg/queue"
	"github.com/tmercer/greatwyrm/pkg/repositories"
	"github.com/tmercer/greatwyrm/pkg/rooms"
	"github.com/tmercer/greatwyrm/pkg/version"
	"github.com/tmercer/greatwyrm/pkg/workers"
)

func main() {
	port := flag.Int("port", 9090, "port to listen on")
	allowOrigin := flag.String("allow-origin", "localhost", "comma-separated list of allowed origins")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)
	log.Info("Log level set to %s", parsedLogLevel)

	log.Info("Starting server version %s", version.Get())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	firebaseProjectID := os.Getenv("GREATWYRM_FIREBASE_PROJECT_ID")
	if firebaseProjectID == "" {
		panic("GREATWYRM_FIREBASE_PROJECT_ID environment variable must be set")
	}
	firebaseAPIKey := os.Getenv("GREATWYRM_FIREBASE_API_KEY")
	if firebaseAPIKey == "" {
		panic("GREATWYRM_FIREBASE_API_KEY environment variable must be set")
	}
	authProvider, err := authproviders.NewFirebaseAuthProvider(ctx, firebaseProjectID, firebaseAPIKey)
	if err != nil {
		panic(fmt.Sprintf("Failed to create Firebase auth provider: %v", err))
	}

	connStr := os.Getenv("GREATWYRM_DATABASE_URL")
	if connStr == "" {
		connStr = "sqlite://greatwyrm.db"
	}
	u, err := url.Parse(connStr)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse connection string: %v", err))
	}

	var repository repositories.Repository
	switch u.Scheme {
	case "sqlite":
		repository, err = repositories.NewSQLiteRepository(ctx, u.Host, "./migrations/sqlite")
		if err != nil {
			panic(fmt.Sprintf("Failed to create SQLite repository: %v", err))
		}
	case "postgresql":
		repository, err = repositories.NewPostgresRepository(ctx, u.String())
		if err != nil {
			panic(fmt.Sprintf("Failed to create Postgres repository: %v", err))
		}
	default:
		panic(fmt.Sprintf("Unknown database type %s", u.Scheme))
	}
	defer repository.Close(ctx)

	registry := combat.NewSessionRegistry(repository)
	resolver := combat.NewResolver(combat.NewResolverOptions{
		Repository: repository,
		Registry:   registry,
	})

	roomManager := rooms.NewRoomManager()
	rollEventQueue := queue.NewInMemoryQueue(10000)
	broadcastMessageChan := make(chan workers.BroadcastMessage, 100)

	rollEventWorker := workers.NewRollEventWorker(workers.NewRollEventWorkerOptions{
		RollEventQueue:       rollEventQueue,
		Resolver:             resolver,
		BroadcastMessageChan: broadcastMessageChan,
		Interval:             50 * time.Millisecond,
	})
	go rollEventWorker.Start(ctx)

	broadcastEventWorker := workers.NewBroadcastEventWorker(workers.NewBroadcastEventWorkerOptions{
		RoomManager:          roomManager,
		BroadcastMessageChan: broadcastMessageChan,
	})
	go broadcastEventWorker.Start(ctx)

	sessionSweepWorker := workers.NewSessionSweepWorker(workers.NewSessionSweepWorkerOptions{
		Registry:             registry,
		Repository:           repository,
		Resolver:             resolver,
		BroadcastMessageChan: broadcastMessageChan,
		Interval:             time.Minute,
	})
	go sessionSweepWorker.Start(ctx)

	apiServerOpts := api.NewAPIServerOptions{
		Port:                 *port,
		AllowOrigin:          *allowOrigin,
		AuthProvider:         authProvider,
		Repository:           repository,
		RoomManager:          roomManager,
		RollEventQueue:       rollEventQueue,
		Resolver:             resolver,
		BroadcastMessageChan: broadcastMessageChan,
	}
	tlsCertFile := os.Getenv("GREATWYRM_API_TLS_CERT_FILE")
	tlsKeyFile := os.Getenv("GREATWYRM_API_TLS_KEY_FILE")
	if tlsCertFile != "" && tlsKeyFile != "" {
		apiServerOpts.TLS = &api.TLSConfig{
			CertFile: tlsCertFile,
			KeyFile:  tlsKeyFile,
		}
	}
	server := api.NewAPIServer(apiServerOpts)
	go server.Start()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt
	if err := server.Stop(ctx); err != nil {
		log.Error("Failed to stop server: %v", err)
	}
}
