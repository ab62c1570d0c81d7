package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	logs "github.com/danmuck/smplog"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/pdf-gateway/backend/internal/api"
	"github.com/pdf-gateway/backend/internal/backend"
	"github.com/pdf-gateway/backend/internal/config"
	"github.com/pdf-gateway/backend/internal/gateway"
	"github.com/pdf-gateway/backend/internal/logcfg"
	"github.com/pdf-gateway/backend/internal/upload"
	"github.com/pdf-gateway/backend/internal/web"
)

const shutdownTimeout = 15 * time.Second

// defaultConfigPath places the config next to the executable.
func defaultConfigPath() string {
	exePath, err := os.Executable()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(filepath.Dir(exePath), "config.yaml")
}

func runServer(configPath string) error {
	// A missing .env is fine.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logs.Configure(logcfg.Load(cfg.Advanced.LogConfigPath))

	maxBody, err := cfg.MaxBodyBytes()
	if err != nil {
		return err
	}
	wsLimit, err := cfg.WebSocketMaxMessageBytes()
	if err != nil {
		return err
	}

	client, err := backend.NewClient(backend.Options{
		BaseURL:     cfg.Backend.BaseURL,
		ConvertPath: cfg.Backend.ConvertPath,
		IndexPath:   cfg.Backend.IndexPath,
		MaxBodySize: maxBody,
		Timeout:     cfg.BackendTimeout(),
	})
	if err != nil {
		return fmt.Errorf("failed to create backend client: %w", err)
	}

	service := gateway.NewService(client, gateway.Options{
		FieldName: cfg.Upload.FieldName,
		MaxFiles:  cfg.Upload.MaxFiles,
	})

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	api.SetupMiddleware(e, api.MiddlewareOptions{
		RequestLogging:   cfg.Advanced.EnableRequestLogging,
		EnableCORS:       cfg.Server.EnableCORS,
		AllowOrigins:     cfg.AllowedOrigins(),
		Compression:      cfg.Server.EnableCompression,
		CompressionLevel: cfg.Server.CompressionLevel,
	})

	api.RegisterRoutes(e, api.NewHandlers(&api.Dependencies{
		Gateway:            service,
		Collector:          upload.NewCollector(cfg.Upload.FieldName, cfg.Upload.MaxFiles, maxBody),
		BackendURL:         client.BaseURL(),
		Version:            Version,
		ForwardIndexStatus: cfg.Backend.ForwardIndexStatus,
		WebSocketReadLimit: wsLimit,
		EnableWebSocket:    cfg.Advanced.EnableWebSocket,
		ConvertBodyLimit:   cfg.Server.BodyLimit,
		IndexBodyLimit:     cfg.Server.IndexBodyLimit,
	}))

	if cfg.Server.ServeUploadPage && web.HasEmbeddedFiles() {
		if err := web.RegisterStaticRoutes(e); err != nil {
			logs.Warnf("failed to register upload page: %v", err)
		}
	}

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      e,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	logs.Infof("pdf-gateway %s (built %s)", Version, BuildTime)
	logs.Infof("config:  %s", configPath)
	logs.Infof("listen:  http://%s", cfg.GetServerAddr())
	logs.Infof("backend: %s (ceiling %s, max %d files)", client.BaseURL(), humanize.IBytes(uint64(maxBody)), cfg.Upload.MaxFiles)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.StartServer(s)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logs.Errorf(err, "server exited")
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logs.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
