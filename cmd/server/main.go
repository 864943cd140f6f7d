/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the claims-askes pricing and claims-validation
  server. Handles configuration, dependency injection, and graceful
  shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags (env vars as defaults, flags as override)
  2. Initialize SQLite store and load the reference-data catalog
  3. Build the pricing and claims engines
  4. Create API handler with dependencies
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port       HTTP server port (default: 8080, env LISTEN_ADDR overrides as ":PORT")
  -db         SQLite database path (default: claims-askes.db, env DATABASE_URL)
              Use ":memory:" for in-memory database
  -log-level  Log verbosity label, informational only (default: info, env LOG_LEVEL)
  -catalog    Path to a catalog seed JSON file, loaded at startup if present

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/salamenterprise/claims-askes/api"
	"github.com/salamenterprise/claims-askes/factory"
	"github.com/salamenterprise/claims-askes/internal/catalog"
	"github.com/salamenterprise/claims-askes/internal/claims"
	"github.com/salamenterprise/claims-askes/internal/pricing"
	"github.com/salamenterprise/claims-askes/store/sqlite"
)

func main() {
	port := flag.Int("port", envIntDefault("LISTEN_ADDR", 8080), "HTTP server port")
	dbPath := flag.String("db", envDefault("DATABASE_URL", "claims-askes.db"), "SQLite database path")
	logLevel := flag.String("log-level", envDefault("LOG_LEVEL", "info"), "log verbosity label")
	catalogPath := flag.String("catalog", "", "path to a catalog seed JSON file")
	flag.Parse()

	log.Printf("[Main] starting claims-askes, log-level=%s db=%s", *logLevel, *dbPath)

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("[Main] failed to initialize database: %v", err)
	}
	defer store.Close()

	catalogStore := catalog.NewStore()
	if *catalogPath != "" {
		data, err := os.ReadFile(*catalogPath)
		if err != nil {
			log.Fatalf("[Main] failed to read catalog file: %v", err)
		}
		if err := factory.NewCatalogFactory().LoadInto(catalogStore, data); err != nil {
			log.Fatalf("[Main] failed to load catalog: %v", err)
		}
		log.Printf("[Main] loaded catalog from %s", *catalogPath)
	} else {
		log.Printf("[Main] no -catalog supplied; starting with an empty reference-data catalog")
	}

	pricingEngine := pricing.NewEngine(store, catalogStore)

	registry := claims.NewRegistry()
	claims.RegisterAll(registry)
	claimsEngine := claims.NewEngine(registry)

	accumulatorStore := sqlite.NewAccumulatorStore(store)

	handler := api.NewHandler(pricingEngine, claimsEngine, catalogStore, accumulatorStore, store.DB())
	router := api.NewRouter(handler)

	slaMonitor := api.NewApprovalSLAMonitor(store)
	slaMonitor.Start()
	defer slaMonitor.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("[Main] server starting on http://localhost:%d", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[Main] server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[Main] shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("[Main] server forced to shutdown: %v", err)
	}

	log.Println("[Main] server stopped")
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envIntDefault reads a port number from an environment variable, accepting
// either a bare number ("8080") or a listen address (":8080").
func envIntDefault(key string, def int) int {
	v := strings.TrimPrefix(os.Getenv(key), ":")
	if v == "" {
		return def
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return def
	}
	return n
}
