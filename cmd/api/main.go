package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/clipdesk/backend/internal/config"
	"github.com/zhouzirui/clipdesk/backend/internal/handler"
	"github.com/zhouzirui/clipdesk/backend/internal/service/ai"
	channelStore "github.com/zhouzirui/clipdesk/backend/internal/service/channel"
	"github.com/zhouzirui/clipdesk/backend/internal/service/membership"
	"github.com/zhouzirui/clipdesk/backend/internal/service/relay"
	"github.com/zhouzirui/clipdesk/backend/internal/service/session"
	"github.com/zhouzirui/clipdesk/backend/internal/service/synthesis"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	store := channelStore.NewStore()
	registry := session.NewRegistry()
	manager := membership.NewManager(store, registry)
	msgLog := relay.NewMessageLog(relay.LogCapacity)

	// Initialize the completion service; without credentials synthesis
	// requests fail over to direct error delivery.
	var completer synthesis.Completer
	if cfg.AI.Enabled() {
		aiService, err := ai.NewService(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize AI service: %v", err)
			log.Println("continuing without synthesis support")
		} else {
			completer = aiService
			log.Println("AI service initialized successfully")
		}
	} else {
		log.Println("ark credentials not configured, synthesis requests will be rejected")
	}

	engine := synthesis.NewEngine(completer, store, registry)
	relayRouter := relay.NewRouter(store, msgLog, engine)

	router := handler.NewRouter(manager, relayRouter, store, msgLog)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Clipdesk relay backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
