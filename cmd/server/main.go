/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the benefit period engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load the rule set (JSON file or statutory defaults)
  3. Initialize SQLite store
  4. Build the engine service and dispatcher
  5. Configure HTTP router and reminder scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port     HTTP server port (default: 8080)
  -db       SQLite database path (default: benefit.db)
            Use ":memory:" for in-memory database
  -rules    Path to a JSON rule set (default: statutory rules)
  -workers  Dispatcher worker count (default: 4)
  -sweep    Reminder sweep interval (default: 1h, 0 disables)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Stop the scheduler and drain the dispatcher
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/benefit.db"

  # Run with in-memory database and custom rules
  ./server -db=":memory:" -rules=./rules.json

SEE ALSO:
  - api/server.go: Router configuration
  - factory/rules.go: Rule set parsing
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
	"syscall"
	"time"

	"github.com/warp/benefit-engine/api"
	"github.com/warp/benefit-engine/benefit"
	"github.com/warp/benefit-engine/engine"
	"github.com/warp/benefit-engine/factory"
	"github.com/warp/benefit-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "benefit.db", "SQLite database path")
	rulesPath := flag.String("rules", "", "JSON rule set path (empty for statutory defaults)")
	workers := flag.Int("workers", 4, "dispatcher worker count")
	sweep := flag.Duration("sweep", time.Hour, "reminder sweep interval (0 disables)")
	flag.Parse()

	// Load rules
	cfg, err := loadConfig(*rulesPath)
	if err != nil {
		log.Fatalf("Failed to load rules: %v", err)
	}

	// Initialize store
	store, err := sqlite.New(*dbPath, cfg, nil, nil)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Build the engine
	service := engine.NewService(store, cfg, nil, nil)
	dispatcher := engine.NewDispatcher(service, *workers)
	dispatcher.Start(context.Background())
	defer dispatcher.Stop()

	// Initialize handler and router
	handler := api.NewHandler(service, dispatcher, store)
	router := api.NewRouter(handler)

	// Reminder scheduler
	scheduler := api.NewReminderScheduler(service)
	if *sweep <= 0 {
		scheduler.Enabled = false
	} else {
		scheduler.CheckInterval = *sweep
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", *port)
		log.Printf("📊 API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func loadConfig(rulesPath string) (benefit.Config, error) {
	f := factory.NewRuleFactory()
	if rulesPath == "" {
		return f.ParseRules(factory.StatutoryRulesJSON("rules-default", "Statutory rules"))
	}
	data, err := os.ReadFile(rulesPath)
	if err != nil {
		return benefit.Config{}, fmt.Errorf("read rules file: %w", err)
	}
	return f.ParseRules(string(data))
}
