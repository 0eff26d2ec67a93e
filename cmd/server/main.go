/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the ShiftWatch rating engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (optional) and parse command-line flags
  2. Initialize SQLite store
  3. Pick stats cache: Redis when -redis is set, in-memory otherwise
  4. Wire engine, handler, router, detection scheduler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port            HTTP server port (default: 8080)
  -db              SQLite database path (default: shiftwatch.db)
                   Use ":memory:" for in-memory database
  -redis           Redis address for the stats cache (default: off)
  -detect-interval Detection sweep interval (default: 5m)
  -seed            Load demo data on startup

ENVIRONMENT:
  Flags fall back to environment variables (PORT, DB_PATH, REDIS_ADDR,
  REDIS_PASSWORD, DETECT_INTERVAL), loaded from .env when present.
  Flags win over environment.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the detection scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/shiftwatch.db"

  # Run with demo data and a fast detection loop
  ./server -db=":memory:" -seed -detect-interval=30s

  # Run with Redis-backed stats cache
  ./server -redis="localhost:6379"

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Detection scheduler
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

	"github.com/joho/godotenv"

	"github.com/shiftwatch/rating-engine/api"
	"github.com/shiftwatch/rating-engine/cache"
	"github.com/shiftwatch/rating-engine/notify"
	"github.com/shiftwatch/rating-engine/rating"
	"github.com/shiftwatch/rating-engine/store/sqlite"
)

func main() {
	// .env is optional; missing file is not an error
	if err := godotenv.Load(); err == nil {
		log.Println("[Config] Loaded .env")
	}

	// Flags, with environment fallbacks
	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DB_PATH", "shiftwatch.db"), "SQLite database path")
	redisAddr := flag.String("redis", envStr("REDIS_ADDR", ""), "Redis address for stats cache (empty = in-memory)")
	detectInterval := flag.Duration("detect-interval", envDuration("DETECT_INTERVAL", 5*time.Minute), "Detection sweep interval")
	seed := flag.Bool("seed", false, "Load demo data on startup")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Stats cache: Redis when configured, in-memory otherwise
	var stats cache.StatsCache
	if *redisAddr != "" {
		redisCache, err := cache.NewRedis(*redisAddr, os.Getenv("REDIS_PASSWORD"), 0, cache.DefaultTTL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis at %s: %v", *redisAddr, err)
		}
		defer redisCache.Close()
		stats = redisCache
		log.Printf("[Cache] Using Redis at %s", *redisAddr)
	} else {
		stats = cache.NewMemory(cache.DefaultTTL)
		log.Println("[Cache] Using in-memory stats cache")
	}

	// Wire the engine
	engine := rating.NewEngine(store, store, store, store, store, stats, notify.LogNotifier{})

	if *seed {
		if err := seedDemoData(context.Background(), store, engine); err != nil {
			log.Fatalf("Failed to seed demo data: %v", err)
		}
		log.Println("[Seed] Demo data loaded")
	}

	// Handler and router
	handler := api.NewHandler(engine, stats)
	router := api.NewRouter(handler)

	// Background detection sweeps
	scheduler := api.NewDetectionScheduler(engine)
	scheduler.ScanInterval = *detectInterval
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

// =============================================================================
// CONFIG HELPERS
// =============================================================================

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
