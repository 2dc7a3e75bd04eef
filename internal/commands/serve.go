package commands

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opendrive/server/internal/config"
	"github.com/opendrive/server/internal/database"
	"github.com/opendrive/server/internal/handlers"
	"github.com/opendrive/server/internal/middleware"
	"github.com/opendrive/server/internal/services"
	"github.com/opendrive/server/internal/storage"
	"github.com/opendrive/server/pkg/logger"
	"github.com/opendrive/server/pkg/utils"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(cfg *config.Config) error {
	utils.ConfigureSession(cfg.Session.Secret, cfg.Session.ExpirationHours)
	if cfg.Session.Secret == config.DefaultSessionSecret {
		logger.Warn("session_secret_default", map[string]interface{}{
			"hint": "set SESSION_SECRET before exposing the server",
		})
	}

	db, err := database.Connect(cfg.DB)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}

	drive, err := storage.NewLocalDrive(cfg.Drive.Path)
	if err != nil {
		return fmt.Errorf("drive initialization failed: %w", err)
	}

	var replica storage.Replica
	if cfg.MinIO.Enabled() {
		client, err := storage.NewMinIOClient(cfg.MinIO)
		if err != nil {
			return fmt.Errorf("minio initialization failed: %w", err)
		}
		if err := client.EnsureBucket(context.Background()); err != nil {
			return fmt.Errorf("failed ensuring minio bucket: %w", err)
		}
		replica = client
	}

	userService := services.NewUserService(db)
	folderService := services.NewFolderService(db, drive)
	accessService := services.NewAccessService(folderService, drive.Root())

	sessions := middleware.NewSessionMiddleware(cfg.Session)
	authHandler := handlers.NewAuthHandler(userService, accessService, sessions)
	driveHandler := handlers.NewDriveHandler(folderService, accessService, drive, replica, sessions)

	app := handlers.NewApp(cfg.Server.UploadLimitMB, sessions, authHandler, driveHandler)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.Info("server_starting", map[string]interface{}{
		"address":       listenAddr,
		"drive_root":    drive.Root(),
		"db_driver":     cfg.DB.Driver,
		"replica":       cfg.MinIO.Enabled(),
		"body_limit_mb": cfg.Server.UploadLimitMB,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}
