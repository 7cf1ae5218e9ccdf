package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/config"
	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/database"
	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/identity"
	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/logging"
	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/mirror"
	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/notifications"
	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/persist"
	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/registry"
	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/server"
	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/storeid"
	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/syncwire"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sync-server",
		Short: "Shopping list synchronization server",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("storage-dir", defaults.GetString("storage.dir"), "Directory for per-store snapshot files")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite mirror database path (empty disables the mirror)")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-file", defaults.GetString("log.file"), "Rotating log file path (empty logs to stderr only)")
	cmd.PersistentFlags().String("signing-secret", "", "Identity token signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "storage.dir", "storage-dir")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.file", "log-file")
	bindFlag(cmd, "identity.signing_secret", "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := buildLogger(appConfig)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	var bridge *mirror.Bridge
	if appConfig.MirrorEnabled() {
		db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		bridge, err = mirror.NewBridge(mirror.BridgeConfig{Database: db, Logger: logger})
		if err != nil {
			return err
		}
	} else {
		logger.Info("document mirror disabled, file persistence only")
	}

	persister, err := persist.NewFilePersister(persist.FilePersisterConfig{
		Dir:    appConfig.StorageDir,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	storeRegistry, err := registry.NewRegistry(registry.Config{
		Persister: persister,
		Bridge:    bridge,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	endpoint, err := syncwire.NewEndpoint(syncwire.EndpointConfig{
		Registry: storeRegistry,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	var identityProvider identity.Provider
	if appConfig.IdentitySigningSecret != "" {
		identityProvider, err = identity.NewTokenProvider(identity.TokenProviderConfig{
			SigningSecret: []byte(appConfig.IdentitySigningSecret),
		})
		if err != nil {
			return err
		}
	}

	// the global notifications store is opened eagerly so server-side
	// publishes work before any client has synced it
	globalEntry, err := storeRegistry.GetOrCreate(ctx, storeid.ForGlobalNotifications())
	if err != nil {
		return err
	}
	notificationWriter, err := notifications.NewWriter(notifications.WriterConfig{
		Store:  globalEntry.Store,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		SyncEndpoint:  endpoint,
		Mirror:        bridge,
		Identity:      identityProvider,
		Notifications: notificationWriter,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		shutdownErr := httpServer.Shutdown(shutdownCtx)
		// flush every open store to disk and to the mirror before exit
		storeRegistry.Shutdown()
		return shutdownErr
	case err := <-errCh:
		storeRegistry.Shutdown()
		return err
	}
}

func buildLogger(appConfig config.AppConfig) (*zap.Logger, error) {
	if appConfig.LogFile != "" {
		return logging.NewFileLogger(appConfig.LogLevel, appConfig.LogFile)
	}
	return logging.NewLogger(appConfig.LogLevel)
}
