package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"clicktracker/internal/bot"
	"clicktracker/internal/config"
	"clicktracker/internal/registry"
	"clicktracker/internal/shortcode"
	"clicktracker/internal/storage"
	"clicktracker/internal/web"
)

func main() {
	// --- Configuration Loading ---
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger Setup ---
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	level, _ := logrus.ParseLevel(cfg.LogLevel) // validated by LoadConfig
	log.SetLevel(level)

	log.WithFields(logrus.Fields{
		"badgerdb_path":  cfg.BadgerDBPath,
		"in_memory":      cfg.BadgerInMemory,
		"server_address": cfg.ServerAddress,
		"base_url":       cfg.BaseURL,
		"telegram":       cfg.TelegramBotToken != "",
	}).Info("Configuration loaded successfully")

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("ClickTracker stopped with error")
	}
	log.Info("ClickTracker shut down gracefully.")
}

func run(cfg config.Config, log *logrus.Logger) error {
	// Create context that listens for interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Storage ---
	var repo *storage.BadgerRepository
	var err error
	if cfg.BadgerInMemory {
		repo, err = storage.NewInMemoryRepository(log)
	} else {
		repo, err = storage.NewBadgerRepository(cfg.BadgerDBPath, log)
	}
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		log.Info("Closing database...")
		if err := repo.Close(); err != nil {
			log.WithError(err).Error("Error closing database")
		}
	}()
	go repo.RunGC(ctx, cfg.BadgerGCInterval)

	// --- Registry ---
	reg := registry.New(repo, registry.Config{
		BaseURL:            cfg.BaseURL,
		MaxValidityMinutes: cfg.MaxValidityMinutes,
		MaxAttempts:        cfg.ShortCodeMaxAttempts,
	}, log, registry.WithGenerator(shortcode.NewRandomGenerator(cfg.ShortCodeLength)))
	if err := reg.Load(ctx); err != nil {
		return err
	}

	// --- Telegram front-end (optional) ---
	var botWG sync.WaitGroup
	defer func() {
		stop()
		botWG.Wait()
	}()
	if cfg.TelegramBotToken != "" {
		botHandler, err := bot.NewHandler(cfg.TelegramBotToken, reg, cfg.DefaultValidityMinutes, log)
		if err != nil {
			return fmt.Errorf("initialize telegram bot: %w", err)
		}
		botWG.Add(1)
		go func() {
			defer botWG.Done()
			botHandler.Start(ctx)
		}()
	}

	// --- HTTP server ---
	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           web.NewRouter(web.NewHandler(reg, cfg.DefaultValidityMinutes, log), log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.ServerAddress).Info("ClickTracker is running. Press Ctrl+C to exit.")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// --- Wait for Shutdown Signal ---
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	// --- Graceful Shutdown ---
	log.Info("Shutting down ClickTracker...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed")
	}
	// The deferred bot wait runs before the deferred repo.Close().
	return nil
}
