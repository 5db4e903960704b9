// Package main initializes and starts the CredKeeper HTTP server, setting up
// configuration, logging, storage, the credentials model and handlers.
package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/atinyakov/CredKeeper/internal/config"
	"github.com/atinyakov/CredKeeper/internal/credtype"
	"github.com/atinyakov/CredKeeper/internal/logger"
	"github.com/atinyakov/CredKeeper/internal/prompt"
	"github.com/atinyakov/CredKeeper/internal/server/handler/http"
	"github.com/atinyakov/CredKeeper/internal/service"
	"github.com/atinyakov/CredKeeper/internal/storage"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line and environment configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := storage.Open(ctx, options, zapLogger)
	if err != nil {
		zapLogger.Fatal("cannot open storage", zap.Error(err))
	}
	defer stores.Close()
	if stores.Locked() {
		zapLogger.Warn("no master password configured, secrets can neither be read nor saved")
	}

	types := credtype.NewRegistry(zapLogger)
	types.Register(credtype.UserPassword{}, true)
	types.Register(credtype.Token{}, false)

	// The server cannot ask anyone; prompted credentials are unavailable.
	model := service.NewCredentialsModel(types, stores.Prefs, stores.Secure, prompt.Disabled().Factory(), zapLogger)

	if err := model.Load(ctx); err != nil {
		zapLogger.Error("failed to load saved credentials", zap.Error(err))
	}
	if options.AutoSave.Duration > 0 {
		model.StartAutoSave(ctx, options.AutoSave.Duration)
	}

	handler := &http.CredentialsHandler{Model: model, Log: zapLogger}
	router := http.NewRouter(handler, zapLogger)

	server := &nethttp.Server{
		Addr:              options.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if options.TLSCert != "" && options.TLSKey != "" {
		zapLogger.Info("starting HTTPS server", zap.String("addr", options.Port))
		err = server.ListenAndServeTLS(options.TLSCert, options.TLSKey)
	} else {
		zapLogger.Info("starting HTTP server", zap.String("addr", options.Port))
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		zapLogger.Fatal("server failed", zap.Error(err))
	}

	if !model.Save(context.Background()) {
		zapLogger.Warn("credentials not saved on shutdown, secure storage is locked")
	}
}
