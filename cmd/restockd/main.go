package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fernwood/restock/internal/backup"
	"github.com/fernwood/restock/internal/database"
	"github.com/fernwood/restock/internal/logging"
	"github.com/fernwood/restock/internal/push"
	"github.com/fernwood/restock/internal/server"
)

func main() {
	port := os.Getenv("RESTOCK_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("RESTOCK_DB_PATH")
	if dbPath == "" {
		dbPath = "restock.db"
	}

	logger := logging.Setup(os.Getenv("RESTOCK_LOG_LEVEL"), os.Getenv("RESTOCK_LOG_FORMAT"))

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	signingKey := os.Getenv("RESTOCK_SIGNING_KEY")
	if signingKey == "" {
		logger.Warn("RESTOCK_SIGNING_KEY not set, session tokens cannot be validated")
	}

	backupInterval := 24 * time.Hour
	if v := os.Getenv("RESTOCK_BACKUP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			backupInterval = d
		}
	}

	cfg := server.Config{
		APIToken:       os.Getenv("RESTOCK_API_TOKEN"),
		SigningKey:     []byte(signingKey),
		ListServiceURL: os.Getenv("RESTOCK_LIST_SERVICE_URL"),
		TeamDataURL:    os.Getenv("RESTOCK_TEAM_DATA_URL"),
		Backup: backup.Config{
			S3: backup.S3Config{
				Endpoint:  os.Getenv("RESTOCK_S3_ENDPOINT"),
				Bucket:    os.Getenv("RESTOCK_S3_BUCKET"),
				Region:    os.Getenv("RESTOCK_S3_REGION"),
				AccessKey: os.Getenv("RESTOCK_S3_ACCESS_KEY"),
				SecretKey: os.Getenv("RESTOCK_S3_SECRET_KEY"),
			},
			DBPath:     dbPath,
			Passphrase: os.Getenv("RESTOCK_BACKUP_PASSPHRASE"),
			Interval:   backupInterval,
		},
		Push: push.Config{
			VAPIDPublicKey:  os.Getenv("RESTOCK_VAPID_PUBLIC_KEY"),
			VAPIDPrivateKey: os.Getenv("RESTOCK_VAPID_PRIVATE_KEY"),
			Subscriber:      os.Getenv("RESTOCK_VAPID_SUBSCRIBER"),
		},
	}

	srv := server.New(db, cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.BackupManager().Start(ctx)

	// Expired rate-limit buckets accumulate; sweep hourly.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("restockd running at http://localhost:%s\n", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
	srv.BackupManager().Stop()
	srv.Engine().Close()
}
