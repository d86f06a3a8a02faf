// Command modelrouterd exposes a Router over HTTP: neutral chat, embedding,
// image, speech, and transcription endpoints plus catalog, stats, and
// Prometheus metrics.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	modelrouter "github.com/ferro-labs/model-router"
	"github.com/ferro-labs/model-router/internal/logging"
	"github.com/ferro-labs/model-router/internal/version"
	"github.com/ferro-labs/model-router/providers"
)

func main() {
	logging.Setup(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	cfg := modelrouter.Config{}
	if path := os.Getenv("ROUTER_CONFIG"); path != "" {
		fc, err := modelrouter.LoadConfig(path)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		built, err := fc.Build()
		if err != nil {
			log.Fatalf("Invalid config: %v", err)
		}
		cfg = built
		log.Printf("Config loaded: %d provider(s), %d static model(s)", len(cfg.Providers), len(cfg.Models))
	}

	// Auto-register providers from environment variables when the config
	// did not declare any.
	if len(cfg.Providers) == 0 {
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			p, err := providers.NewOpenAI(key, os.Getenv("OPENAI_BASE_URL"))
			if err != nil {
				log.Fatalf("openai provider: %v", err)
			}
			cfg.Providers = append(cfg.Providers, p)
			log.Println("Provider registered: openai")
		}
		if region := os.Getenv("BEDROCK_REGION"); region != "" {
			p, err := providers.NewBedrock(region)
			if err != nil {
				log.Fatalf("bedrock provider: %v", err)
			}
			cfg.Providers = append(cfg.Providers, p)
			log.Println("Provider registered: bedrock")
		}
	}
	if len(cfg.Providers) == 0 {
		log.Fatal("No providers configured. Set OPENAI_API_KEY or BEDROCK_REGION, or point ROUTER_CONFIG at a config file")
	}

	router, err := modelrouter.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create router: %v", err)
	}
	defer func() { _ = router.Close() }()

	refreshCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := router.Refresh(refreshCtx); err != nil {
		log.Printf("Warning: catalog refresh failed: %v", err)
	}
	cancel()
	log.Printf("Catalog ready: %d model(s)", len(router.Models()))

	var corsOrigins []string
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		corsOrigins = strings.Split(origins, ",")
	}

	rateLimit := 0.0
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			rateLimit = parsed
		}
	}

	r := newRouter(router, corsOrigins, rateLimit)

	addr := ":8080"
	if p := os.Getenv("PORT"); p != "" {
		addr = ":" + p
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.Println("Shutting down gracefully…")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	log.Printf("modelrouterd %s listening on %s (%d provider(s))", version.Short(), addr, len(cfg.Providers))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stop()
		log.Fatalf("Server error: %v", err) //nolint:gocritic
	}
	log.Println("Server stopped.")
}

// newRouter builds the HTTP router.
func newRouter(router *modelrouter.Router, corsOrigins []string, rateLimit float64) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware)
	r.Use(corsMiddleware(corsOrigins...))
	r.Use(rateLimitMiddleware(rateLimit, 2*rateLimit))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Get("/v1/models", modelsHandler(router))
	r.Get("/stats", statsHandler(router))
	r.Handle("/metrics", metricsHandler())

	r.Post("/v1/chat/completions", chatHandler(router))
	r.Post("/v1/embeddings", embeddingsHandler(router))
	r.Post("/v1/images/generations", imagesHandler(router))
	r.Post("/v1/images/edits", imageEditsHandler(router))
	r.Post("/v1/images/analyses", imageAnalysesHandler(router))
	r.Post("/v1/audio/speech", speechHandler(router))
	r.Post("/v1/audio/transcriptions", transcriptionsHandler(router))

	r.Post("/v1/refresh", refreshHandler(router))

	return r
}
