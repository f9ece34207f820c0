package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/comunizika/internal/handler"
	appI18n "github.com/pavelanni/comunizika/internal/i18n"
	"github.com/pavelanni/comunizika/internal/lock"
	"github.com/pavelanni/comunizika/internal/model"
	"github.com/pavelanni/comunizika/internal/progress"
	"github.com/pavelanni/comunizika/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "comunizika",
		Short: "Progression server for the Comunizika learning game",
	}

	serve := serveCmd()
	root.AddCommand(serve, importCmd(), validateCmd(), historyCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `comunizika --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addGameFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntP("sample-size", "n", 4, "Activities per box")
	f.Float64("pass-threshold", 0.5, "Minimum grade to approve a box (0, 1]")
}

func addLogFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP game server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "comunizika.db", "SQLite database path")
	f.StringSliceP("curriculum", "c", nil, "Curriculum YAML files to import on start (repeatable)")
	f.StringP("lang", "l", "pt-BR", "Default message language (en, pt-BR)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.String("redis-addr", "", "Redis address for the shared learner lock (empty = in-process lock)")
	f.String("redis-password", "", "Redis password")
	f.Int("redis-db", 0, "Redis database number")
	addGameFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("COMUNIZIKA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("comunizika")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/comunizika")
	v.AddConfigPath("/etc/comunizika")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func gameConfig(v *viper.Viper) model.GameConfig {
	return model.GameConfig{
		SampleSize:    v.GetInt("sample-size"),
		PassThreshold: v.GetFloat64("pass-threshold"),
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	gameCfg := gameConfig(v)
	if err := importCurricula(ctx, db, v.GetStringSlice("curriculum"), gameCfg.SampleSize); err != nil {
		return fmt.Errorf("import curriculum: %w", err)
	}
	modules, err := db.ModuleCount(ctx)
	if err != nil {
		return fmt.Errorf("count modules: %w", err)
	}
	if modules == 0 {
		slog.Warn("database has no curriculum; learners cannot enroll until one is imported")
	}
	if err := db.CleanupExpiredSessions(ctx); err != nil {
		slog.Warn("failed to clean up expired sessions", "error", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	var opts []progress.Option
	if addr := v.GetString("redis-addr"); addr != "" {
		lockCfg := lock.DefaultConfig()
		lockCfg.Addr = addr
		lockCfg.Password = v.GetString("redis-password")
		lockCfg.DB = v.GetInt("redis-db")
		locker, err := lock.NewRedis(ctx, lockCfg)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer locker.Close()
		opts = append(opts, progress.WithLocker(locker))
		slog.Info("using redis learner lock", "addr", addr)
	}

	game, err := progress.New(db, db, gameCfg, opts...)
	if err != nil {
		return fmt.Errorf("configure game: %w", err)
	}

	serverCfg := model.ServerConfig{
		Lang:          lang,
		SecureCookies: v.GetBool("secure-cookies"),
	}
	h := handler.New(db, game, serverCfg)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	srv := &http.Server{
		Addr:              v.GetString("addr"),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	slog.Info("starting server",
		"addr", srv.Addr,
		"lang", lang,
		"sample_size", gameCfg.SampleSize,
		"pass_threshold", gameCfg.PassThreshold,
		"modules", modules,
	)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down", "timeout", shutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
