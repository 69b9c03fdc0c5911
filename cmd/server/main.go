package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/PI-PropertEase/CalendarService/internal/config"
	"github.com/PI-PropertEase/CalendarService/internal/database"
	"github.com/PI-PropertEase/CalendarService/internal/handler"
	"github.com/PI-PropertEase/CalendarService/internal/messaging"
	"github.com/PI-PropertEase/CalendarService/internal/metrics"
	"github.com/PI-PropertEase/CalendarService/internal/queue"
	"github.com/PI-PropertEase/CalendarService/internal/repository"
	"github.com/PI-PropertEase/CalendarService/internal/router"
	"github.com/PI-PropertEase/CalendarService/internal/service"
)

func main() {
	// A local .env is a convenience for development; in containers the
	// variables come from the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	mx := metrics.New()

	pub, err := queue.NewPublisher(cfg.AMQPURL, mx)
	if err != nil {
		log.Fatalf("publisher: %v", err)
	}
	defer pub.Close()

	store := repository.NewEventRepo(db)
	dir := repository.NewOwnerDirectoryRepo(db)
	mgmt := service.NewManagementService(store, dir, pub, mx)
	rec := service.NewReconciler(store, dir, pub, mx)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer := messaging.NewConsumer(cfg.AMQPURL, rec)
	go consumer.Run(ctx)

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable, cache and rate limiting disabled")
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	router.RegisterRoutes(e, handler.NewEventHandler(mgmt), mx, cfg.JWTSecret, rdb)

	go func() {
		<-ctx.Done()
		_ = e.Shutdown(context.Background())
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Printf("server stopped: %v", err)
	}
}
