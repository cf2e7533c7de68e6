package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"court-advisor-be/internal/config"
	"court-advisor-be/internal/pkg/logger"
	"court-advisor-be/internal/service"
	"court-advisor-be/pkg/events"
	pktNats "court-advisor-be/pkg/nats"
)

// The analytics worker follows the JetStream event stream so several API
// instances can share one analytics log.
func main() {
	cfg := config.Load()
	if cfg.App.NatsURL == "" {
		log.Fatal("Error: NATS_URL is not set")
	}

	analytics := logger.NewIsolatedLogger(cfg.App.AnalyticsLogPath)
	defer analytics.Sync()

	sub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Fatalf("Error: Failed to connect to NATS: %v", err)
	}
	defer sub.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = sub.Subscribe(ctx, pktNats.SubjectPrefix+">", "analytics-worker", func(_ context.Context, evt events.Event) error {
		service.RecordAnalytics(analytics, evt)
		return nil
	})
	if err != nil {
		log.Fatalf("Error: Failed to subscribe: %v", err)
	}

	log.Println("Analytics worker running")
	<-ctx.Done()
	log.Println("Analytics worker stopped")
}
