package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"Gin_postgres_redis_equipment_tool/app"
	"Gin_postgres_redis_equipment_tool/clock"
	"Gin_postgres_redis_equipment_tool/controllers"
	"Gin_postgres_redis_equipment_tool/notify"
	"Gin_postgres_redis_equipment_tool/routes"
	"Gin_postgres_redis_equipment_tool/services"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const serviceName = "equipment-service"

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	shutdownTracing := app.SetupTelemetry(serviceName)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	application := app.MustNew(cfg)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app.BootstrapAdmins(ctx, cfg, application.Repo)

	clk := clock.NewSystem()
	notifier := notify.New(cfg.Notify)
	monitor := services.NewStockMonitor(application.Repo, application.Cache, cfg.CacheTTL)
	registry := services.NewRegistry(application.Repo, application.Cache, clk, services.WithListTTL(cfg.CacheTTL))
	workflow := services.NewWorkflow(application.Repo, monitor, application.Cache, notifier, clk)
	reports := services.NewReports(application.Repo, application.Cache, clk, cfg.CacheTTL)
	scanner := services.NewScanner(application.Repo, monitor, notifier, clk)

	srv := &controllers.Srv{
		Equipment:     registry,
		Stock:         monitor,
		Requests:      workflow,
		Reports:       reports,
		Sessions:      application.AppSessions(),
		SecureCookies: cfg.SecureCookies(),
	}
	routes.RegisterRoutes(application.Router, srv, routes.Middleware{
		Auth: app.AuthRequired(application.AppSessions(), application.Repo, cfg.JWTSecret),
		Seen: app.TouchLastSeen(application.Repo, application.RDB, 5*time.Minute),
	})

	go services.StartScanner(ctx, cfg.ScanInterval, scanner)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(application.Router, serviceName),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("listening on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
