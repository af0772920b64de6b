package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baz1ga/scenarwall/internal/config"
	"github.com/baz1ga/scenarwall/internal/gateway"
	"github.com/baz1ga/scenarwall/internal/handlers"
	"github.com/baz1ga/scenarwall/internal/middleware"
	"github.com/baz1ga/scenarwall/internal/presence"
	"github.com/baz1ga/scenarwall/internal/router"
	"github.com/baz1ga/scenarwall/internal/runstore"
)

func main() {
	log.Println("🚀 Starting ScenarWall Live...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Open Run Store ────
	store := runstore.New(cfg.DataPath, cfg.MinRunDuration)
	log.Printf("✓ Run store loaded from %s", cfg.DataPath)

	// ──── Step 3: Hydrate Presence Registry ────
	registry := presence.NewRegistry(store, cfg.PresenceTTL)
	log.Println("✓ Presence registry hydrated")

	// ──── Step 4: Start Connection Gateway ────
	gw := gateway.New(registry, cfg.JWTSecret)
	log.Println("✓ Connection gateway started")

	// ──── Step 5: Start Liveness Reaper ────
	reaper := presence.NewReaper(registry, gw.HasConnection, cfg.ReapInterval)
	reaper.Start()

	// ──── Step 6: Start HTTP Server ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	r := router.New(
		jwtAuth,
		handlers.NewRunHandler(store, registry),
		handlers.NewPresenceHandler(registry),
		gw,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		reaper.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ ScenarWall Live ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
