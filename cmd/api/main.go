package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/adventure-chat/backend/internal/config"
	"github.com/zhouzirui/adventure-chat/backend/internal/handler"
	"github.com/zhouzirui/adventure-chat/backend/internal/logging"
	"github.com/zhouzirui/adventure-chat/backend/internal/service/session"
	"github.com/zhouzirui/adventure-chat/backend/internal/storage"
	"github.com/zhouzirui/adventure-chat/backend/web"
)

var rootCmd = &cobra.Command{
	Use:   "adventure-chat",
	Short: "Chat front end for the Power Rangers text adventure",
	RunE:  runAPI,
}

var (
	flagConfig  string
	flagEnvFile string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagConfig, "config", "", "optional YAML config file; environment variables override it")
	flags.StringVar(&flagEnvFile, "env-file", ".env", "dotenv file loaded before reading the environment")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("execute adventure-chat command")
	}
}

func runAPI(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(flagEnvFile); err != nil {
		log.Warn().Err(err).Str("file", flagEnvFile).Msg("failed to load .env file, continuing with system environment variables only")
	}

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	logCloser, err := logging.Setup(cfg.Log)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	snapshots, err := storage.Open(ctx, cfg.Storage.Options())
	if err != nil {
		return err
	}
	defer snapshots.Close()
	log.Info().Str("driver", cfg.Storage.Driver).Msg("snapshot storage ready")

	catalog, err := cfg.Background.Catalog()
	if err != nil {
		return err
	}
	prober := buildProber(cfg.Background)

	sessions := session.NewManager(session.Dependencies{
		Snapshots:    snapshots,
		Document:     buildDocumentSource(cfg.Chat),
		Responder:    buildResponder(ctx, cfg),
		Catalog:      catalog,
		Prober:       prober,
		Connectivity: buildConnectivity(cfg.Game),
		Chat:         chatConfig(cfg.Chat),
	})
	defer sessions.Close()

	router := handler.NewRouter(sessions, handler.Options{
		Catalog:        catalog,
		Prober:         prober,
		Static:         web.FS(),
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	return startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) error {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("adventure chat backend listening")
	return runServer(ctx, srv, serverCfg.ShutdownTimeout)
}

func runServer(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
