package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"colorgrid/config"
	"colorgrid/handlers"
	"colorgrid/middleware"
	"colorgrid/routes"
	"colorgrid/services"
	"colorgrid/store"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const releaseVersion = "0.1.0"

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	} else {
		log.Println("Loaded environment variables from .env file")
	}

	cobra.CheckErr(newCmd().Execute())
}

func newCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "colorgrid",
		Short:        "Real-time multiplayer claim-the-cell game server.",
		Args:         cobra.NoArgs,
		Version:      releaseVersion,
		SilenceUsage: true,
	}
	config.Flags(cmd.Flags())
	v := config.NewViper(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg := config.Load(v)
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, cfg)
	}

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	cache := openSnapshotCache(ctx, cfg)

	// Initialize services
	authService := services.NewAuthService(st, cfg.JWTSecret, cfg.TokenTTL)
	userService := services.NewUserService(st)
	lobby := services.NewLobbyManager(st, cfg.RequiredPlayers)
	sessions := services.NewSessionRegistry(st, cache)
	server := services.NewGameServer(lobby, sessions, services.NewHub())

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, userService)
	gameHandler := handlers.NewGameHandler(lobby, sessions, cfg.PublicURL)
	wsHandler := handlers.NewWSHandler(authService, server)

	router := gin.Default()
	router.Use(middleware.CORS())
	routes.SetupRoutes(router, authService, authHandler, gameHandler, wsHandler)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       10 * time.Minute,
	}

	errs := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s (storage: %s, %d players per game)", srv.Addr, cfg.Storage, lobby.RequiredPlayers())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.Storage == config.StorageMemory {
		log.Println("Using in-memory storage; data is lost on restart")
		return store.NewMemoryStore(), nil
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		return nil, err
	}

	gormStore := store.NewGormStore(db)
	if err := gormStore.AutoMigrate(); err != nil {
		return nil, err
	}
	return gormStore, nil
}

// openSnapshotCache falls back to no caching when redis is disabled or down.
func openSnapshotCache(ctx context.Context, cfg *config.Config) services.SnapshotCache {
	client := config.InitRedis(cfg)
	if client == nil {
		return services.NopSnapshotCache{}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Printf("Redis unavailable, snapshot cache disabled: %v", err)
		client.Close()
		return services.NopSnapshotCache{}
	}
	return services.NewRedisSnapshotCache(client, cfg.SnapshotTTL, cfg.CacheNamespace())
}
