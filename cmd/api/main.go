// cmd/api/main.go
// Main entry point for the match proposal service
// This file bootstraps all components and starts the server

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

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harmonyloop/sparkd-backend/internal/common/database"
	"github.com/harmonyloop/sparkd-backend/internal/common/utils"
	"github.com/harmonyloop/sparkd-backend/internal/config"
	"github.com/harmonyloop/sparkd-backend/internal/matching"
	"github.com/harmonyloop/sparkd-backend/internal/profile"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	log.Println("Starting Sparkd match proposal service")

	// 1. Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found (%v), using environment variables", err)
	}

	// 2. Load and validate configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("Configuration validation failed: ", err)
	}

	// 3. Wire the storage layer per config, never by capability probing
	var (
		profileStore profile.Store
		matchRepo    matching.Repository
	)

	switch cfg.StoreDriver {
	case "postgres":
		db, err := database.NewPostgresDB(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("Failed to connect to PostgreSQL: ", err)
		}
		defer db.Close()

		if err := runMigrations(db); err != nil {
			log.Fatal("Failed to run migrations: ", err)
		}

		profileStore = profile.NewPostgresStore(db)
		matchRepo = matching.NewPostgresRepository(db)
		log.Println("Connected to PostgreSQL")

	case "memory":
		memProfiles := profile.NewMemoryStore()
		profileStore = memProfiles
		matchRepo = matching.NewMemoryRepository(memProfiles)
		log.Println("Using in-memory stores")
	}

	// 4. Connect to Redis for the profile cache (optional)
	var cache matching.Cache
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Printf("Redis unavailable (%v), continuing without profile cache", err)
		} else {
			defer redisClient.Close()
			cache = matching.NewRedisCache(redisClient, cfg.CacheTTL)
			log.Println("Connected to Redis")
		}
	}

	// 5. Build the matching core
	retriever := matching.NewRetriever(profileStore, matching.RetrieverConfig{
		CodePrecision:   cfg.LocationCodePrecision,
		SparseThreshold: cfg.SparseThreshold,
		MaxCandidates:   cfg.MaxCandidates,
		PageSize:        cfg.PageSize,
		ActiveWithin:    cfg.ActiveWithin,
	})

	sink := matching.NewSink(matching.SinkConfig{
		LatencyP95Threshold: cfg.AlertLatencyP95,
		ScannedP95Threshold: cfg.AlertScannedP95,
		Cooldown:            cfg.AlertCooldown,
		WindowSize:          cfg.MetricsWindowSize,
	})

	service := matching.NewService(matchRepo, profileStore, cache, retriever, sink, cfg.PresentationTTL)
	handler := matching.NewHandler(service)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 6. Start the presentation sweeper
	sweeper := matching.NewSweeper(service, time.Hour)
	go sweeper.Start(ctx)

	// 7. Start the queue consumer when a queue is configured
	if cfg.QueueURL != "" {
		awsSession, err := session.NewSession(&aws.Config{Region: aws.String(cfg.AWSRegion)})
		if err != nil {
			log.Fatal("Failed to create AWS session: ", err)
		}

		consumer := matching.NewConsumer(sqs.New(awsSession), service, matching.ConsumerConfig{
			QueueURL:           cfg.QueueURL,
			DeadLetterQueueURL: cfg.DeadLetterQueueURL,
			Workers:            cfg.QueueWorkers,
			BatchSize:          cfg.QueueBatchSize,
			WaitTime:           cfg.QueueWaitTime,
			VisibilityTimeout:  cfg.VisibilityTimeout,
			MaxReceiveCount:    cfg.MaxReceiveCount,
		})
		go consumer.Run(ctx)
		log.Printf("Queue consumer started with %d workers", cfg.QueueWorkers)
	} else {
		log.Println("Queue URL not configured, running synchronous-only")
	}

	// 8. Routes
	router := mux.NewRouter()
	router.HandleFunc("/healthz", healthCheck).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	matching.RegisterRoutes(router, handler)

	// 9. Serve
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server listening on :%s (%s)", cfg.Port, cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server: ", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	log.Println("Server exited gracefully")
}

// healthCheck returns server health status
func healthCheck(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
