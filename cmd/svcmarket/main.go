package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stanhq/svcmarket/internal/api"
	"github.com/stanhq/svcmarket/internal/calendar"
	"github.com/stanhq/svcmarket/internal/config"
	"github.com/stanhq/svcmarket/internal/database"
	"github.com/stanhq/svcmarket/internal/jobs"
	"github.com/stanhq/svcmarket/internal/kafka"
	"github.com/stanhq/svcmarket/internal/quotes"
	"github.com/stanhq/svcmarket/internal/scheduler"
)

func main() {
	cfg := config.Load()

	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	migrationsPath := os.Getenv("MIGRATIONS_PATH")
	if migrationsPath == "" {
		migrationsPath = "db/migrations"
	}
	if err := db.RunMigrations(migrationsPath); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	cal, err := calendar.NewForZone(cfg.Market.Timezone)
	if err != nil {
		log.Fatalf("Failed to load market calendar: %v", err)
	}

	sources := []quotes.Source{
		quotes.NewYahooSource(cfg.Sources.RequestTimeout),
	}
	if cfg.Sources.AlphaVantageKey != "" {
		sources = append(sources, quotes.NewAlphaVantageSource(cfg.Sources.AlphaVantageKey, cfg.Sources.RequestTimeout))
	}

	var cache *quotes.PriceCache
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cache = quotes.NewPriceCache(client, cfg.Redis.QuoteTTL)
		log.Printf("Quote cache enabled at %s", cfg.Redis.Addr)
	}

	fetcher := quotes.NewFetcher(sources, cache, cfg.Market.ClosingFallbackDaily)

	var events jobs.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		events = producer
		log.Printf("Event publishing enabled on topic %s", cfg.Kafka.Topic)
	}

	runner := jobs.NewRunner(db, fetcher, cal, events, cfg.Market)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A single numeric argument runs that job once, forced, and exits.
	if len(os.Args) > 1 {
		number, err := strconv.Atoi(os.Args[1])
		if err != nil {
			log.Fatalf("Invalid job number %q: expected 1-4", os.Args[1])
		}
		if _, err := runner.RunJob(ctx, number, true); err != nil {
			log.Fatalf("Job %d failed: %v", number, err)
		}
		return
	}

	if cfg.Server.Enabled {
		handler := api.NewHandler(db, runner)
		router := api.SetupRoutes(handler)
		server := &http.Server{
			Addr:    cfg.Server.Host + ":" + cfg.Server.Port,
			Handler: router,
		}

		go func() {
			log.Printf("Admin API listening on %s", server.Addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("Admin API stopped: %v", err)
			}
		}()

		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Printf("Admin API shutdown failed: %v", err)
			}
		}()
	}

	sched := scheduler.New(runner, cal, cfg.Market)
	if err := sched.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("Scheduler failed: %v", err)
	}
}
