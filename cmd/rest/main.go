package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"compliance-navigator-be/internal/bootstrap"
	"compliance-navigator-be/internal/config"
	"compliance-navigator-be/internal/pkg/logger"
	"compliance-navigator-be/internal/server"
	"compliance-navigator-be/internal/tracer"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	defer sysLogger.Sync()

	// 2. Initialize Tracer
	shutdownTracer := tracer.InitTracer(cfg.Tracing, sysLogger)
	defer shutdownTracer(context.Background())

	// 3. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(cfg, sysLogger)
	if err != nil {
		log.Fatalf("Bootstrap failed: %v", err)
	}
	defer container.Close()

	// 4. Start Background Services
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if container.AuditService != nil {
		go container.AuditService.Start(ctx)
	}

	// 5. Initialize Server
	srv := server.New(cfg, container)

	go func() {
		<-ctx.Done()
		sysLogger.Info("Main", "Shutting down", nil)
		done := make(chan struct{})
		go func() {
			srv.Shutdown()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			sysLogger.Warn("Main", "Shutdown timed out", nil)
		}
	}()

	// 6. Run Server
	if err := srv.Run(); err != nil {
		sysLogger.Error("Main", "Server stopped", map[string]interface{}{"error": err})
	}
}
