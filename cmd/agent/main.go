package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/scenelocate/scenelocate-agent/internal/api"
	"github.com/scenelocate/scenelocate-agent/internal/config"
	"github.com/scenelocate/scenelocate-agent/internal/db"
	"github.com/scenelocate/scenelocate-agent/internal/finder"
	"github.com/scenelocate/scenelocate-agent/internal/library"
	"github.com/scenelocate/scenelocate-agent/internal/logging"
	"github.com/scenelocate/scenelocate-agent/internal/media"
	"github.com/scenelocate/scenelocate-agent/internal/playback"
	"github.com/scenelocate/scenelocate-agent/internal/player"
	"github.com/scenelocate/scenelocate-agent/internal/search"
	"github.com/scenelocate/scenelocate-agent/internal/seek"
	"github.com/scenelocate/scenelocate-agent/internal/ui"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting scenelocate agent",
		"version", config.Version,
		"commit", config.GitCommit,
		"data_dir", cfg.DataDir(),
		"config_file", cfg.SourceFile(),
		"backend_url", cfg.BackendURL(),
	)

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := library.NewRepository(database)

	deviceID, err := ensureDeviceID(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║                 SCENELOCATE AGENT v%-22s ║\n", config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Device ID:  %-45s ║\n", deviceID[:16]+"...")
	fmt.Printf("║  Backend:    %-45s ║\n", cfg.BackendURL())
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	prober := media.NewFFprobe(logging.WithComponent(logger, "media"))
	librarySvc := library.NewService(repo, prober, cfg.LibraryMaxEntries(), logging.WithComponent(logger, "library"))
	librarySvc.SyncMetrics(context.Background())
	history := library.NewHistory(repo)

	controller := player.NewController(cfg.MPVSocket(), cfg.MPVPath(), logging.WithComponent(logger, "player"))
	defer controller.Close()

	reconciler := seek.NewReconciler(seek.Config{
		MaxAttempts: cfg.SeekMaxAttempts(),
		RetryDelay:  cfg.SeekRetryDelay(),
		Logger:      logging.WithComponent(logger, "seek"),
		OnResolve:   finder.ObserveSeek,
	})

	searchClient := search.NewHTTPClient(cfg.BackendURL(), cfg.SearchTimeout(), logging.WithComponent(logger, "search"))
	health := search.NewHealthCache(searchClient, cfg.HealthTTL(), logger)

	initCtx, initCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if h := health.Refresh(initCtx); !h.Reachable {
		logger.Warn("scene search backend unreachable", "backend_url", cfg.BackendURL(), "error", h.Error)
	}
	initCancel()

	notices := finder.NewRecent(finder.DefaultRecentSize)
	notifiers := finder.Multi{finder.LogNotifier{Logger: logger}, notices}

	var tray *ui.Tray
	if !cfg.Headless() {
		// created before the finder so search notices reach the menu
		tray = ui.NewTray(ui.TrayConfig{
			Health:  health,
			Player:  controller,
			Library: librarySvc,
			Logger:  logger,
		})
		notifiers = append(notifiers, tray)
	}

	finderSvc := finder.NewService(finder.Options{
		Library:    librarySvc,
		History:    history,
		Search:     searchClient,
		Player:     controller,
		Reconciler: reconciler,
		Notifier:   notifiers,
		Logger:     logging.WithComponent(logger, "finder"),
	})

	apiServer := api.NewServer(api.ServerConfig{
		Port:           cfg.Port(),
		Version:        config.Version,
		Library:        librarySvc,
		History:        history,
		Finder:         finderSvc,
		PlaybackServer: playback.NewServer(logger),
		Repository:     repo,
		Health:         health,
		Player:         controller,
		Seeks:          reconciler,
		Notices:        notices,
		Logger:         logger,
		StartTime:      startTime,
		DeviceID:       deviceID,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh, quit := newQuit()

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			quit()
		case <-quitCh:
		}
	}()

	if tray == nil {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray.SetFinder(finderSvc)
		tray.SetOnQuit(quit)
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	reconciler.Cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// newQuit returns a channel closed by the first call to quit. Signals and
// the tray can both ask to quit.
func newQuit() (<-chan struct{}, func()) {
	ch := make(chan struct{})
	var once sync.Once
	return ch, func() { once.Do(func() { close(ch) }) }
}

func ensureDeviceID(repo library.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "device_id")
	if err == nil && existing != "" {
		return existing, nil
	}

	idBytes := make([]byte, 16)
	if _, err := rand.Read(idBytes); err != nil {
		return "", err
	}
	deviceID := hex.EncodeToString(idBytes)

	if err := repo.SetConfig(ctx, "device_id", deviceID); err != nil {
		return "", err
	}

	return deviceID, nil
}

func ensureAuthToken(repo library.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, api.AuthTokenKey)
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, api.AuthTokenKey, token); err != nil {
		return "", err
	}

	return token, nil
}
