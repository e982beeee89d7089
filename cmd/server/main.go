package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	callmemory "github.com/Wyydra/yacall/internal/adapter/driven/call/memory"
	"github.com/Wyydra/yacall/internal/adapter/driven/gateway/ws"
	repo "github.com/Wyydra/yacall/internal/adapter/driven/persistence/memory"
	"github.com/Wyydra/yacall/internal/adapter/driven/persistence/sqlite"
	handler "github.com/Wyydra/yacall/internal/adapter/driving/http"
	"github.com/Wyydra/yacall/internal/config"
	"github.com/Wyydra/yacall/internal/core/port"
	"github.com/Wyydra/yacall/internal/core/service"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configFile string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "yacall",
		Short:         "Presence and call signaling relay",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, configFile)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return err
			}
			setupLogger(cfg.Log, os.Stdout)
			if err := run(cmd.Context(), cfg); err != nil {
				log.Error().Err(err).Msg("Server failed")
				return err
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configFile, "config", "c", "", "Path to a YAML config file")
	flags.StringP("addr", "a", ":3000", "HTTP listen address")
	flags.String("static", "./public", "Directory of static client assets")
	flags.String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	flags.String("directory", config.DriverMemory, "User directory driver (memory, sqlite)")
	flags.String("dsn", "yacall.db", "SQLite database path")
	flags.Bool("strict-calls", false, "Drop out of order call events")
	flags.Duration("ring-timeout", 0, "Fail unanswered calls after this long (0 disables)")
	flags.String("seed", "", "YAML file of users to pre-register")

	for key, flag := range map[string]string{
		"server.addr":        "addr",
		"server.static_dir":  "static",
		"log.level":          "log-level",
		"directory.driver":   "directory",
		"directory.dsn":      "dsn",
		"calls.strict":       "strict-calls",
		"calls.ring_timeout": "ring-timeout",
		"seed_file":          "seed",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}

	return cmd
}

func setupLogger(cfg config.LogConfig, out io.Writer) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "json" {
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
		return
	}
	w := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	log.Logger = zerolog.New(w).With().Timestamp().Caller().Logger()
}

func openDirectory(ctx context.Context, cfg config.DirectoryConfig) (port.UserDirectory, func() error, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	default:
		return repo.NewUserRepository(), func() error { return nil }, nil
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	directory, closeDirectory, err := openDirectory(ctx, cfg.Directory)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeDirectory(); err != nil {
			log.Error().Err(err).Msg("Error closing user directory")
		}
	}()

	// handles from a previous run are dead
	if err := directory.ResetPresence(ctx); err != nil {
		return err
	}

	iceServers, err := cfg.WebRTCICEServers()
	if err != nil {
		return err
	}

	hub := ws.NewHub()
	ledger := callmemory.NewCallEngine(cfg.Calls.RingTimeout)

	presence := service.NewPresenceBroadcaster(directory, hub)
	registry := service.NewSessionRegistry(directory, presence)
	userService := service.NewUserService(directory)
	callService := service.NewCallService(registry, hub, ledger, service.WithStrictTransitions(cfg.Calls.Strict))

	if cfg.SeedFile != "" {
		users, err := config.LoadSeedUsers(cfg.SeedFile)
		if err != nil {
			return err
		}
		n, err := userService.Import(ctx, users)
		if err != nil {
			return err
		}
		log.Info().Int("created", n).Int("listed", len(users)).Msg("Seed users imported")
	}

	h := handler.NewHandler(userService, callService, registry, hub, handler.Options{
		StaticDir:      cfg.Server.StaticDir,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		ICEServers:     iceServers,
		ReadLimit:      cfg.Transport.ReadLimit,
		WriteTimeout:   cfg.Transport.WriteTimeout,
		PongWait:       cfg.Transport.PongWait,
		Rate:           cfg.Transport.Rate,
		Burst:          cfg.Transport.Burst,
	})

	go hub.Run()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Str("directory", cfg.Directory.Driver).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	}
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	hub.Stop()
	if err := h.WaitConnections(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Timed out waiting for websocket handlers")
	}
	ledger.Stop()
	if err := registry.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error releasing sessions")
	}
	log.Info().Msg("Server exited")
	return nil
}
