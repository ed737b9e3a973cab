package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"web2json/internal/config"
	"web2json/internal/handlers"
	"web2json/internal/logger"
	"web2json/internal/router"
	"web2json/internal/service"
	"web2json/internal/utils"
)

func main() {
	cfg := config.MustLoad()

	log := logger.NewLogger(cfg.Client.LogFormat, cfg.Client.LogLevel)

	if logger.ParseLevel(cfg.Client.LogLevel) > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	fetcher := utils.NewFetcher(cfg.Client.UserAgent, cfg.Conditions.MaxFetchSize, cfg.Server.Timeout)

	s := service.NewService(cfg, fetcher, log)

	h := handlers.NewHandler(s, log)

	r := router.NewRouter(h)

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	log.Info("start server",
		slog.String("host", cfg.Server.Host),
		slog.String("port", cfg.Server.Port),
		slog.Duration("phaseDelay", cfg.Conditions.PhaseDelay),
	)

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", slog.String("error", err.Error()))

			os.Exit(1)
		}
	}()

	sig := <-sigint
	log.Info("received signal", slog.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Info("failed to stop server", slog.String("error", err.Error()))
	}

	if err := s.Shutdown(ctx); err != nil {
		log.Info("failed to stop running tasks", slog.String("error", err.Error()))
	}
}
