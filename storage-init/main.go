package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"taskboard/storage"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warnf("load .env: %v", err)
	}
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("storage init starting")

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	if connStr == "" {
		log.Fatal("missing STORAGE_CONNECTION_STRING")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	tables, err := storage.EnsureTables(ctx, connStr, []string{
		os.Getenv("TASKS_TABLE"),
		os.Getenv("USERS_TABLE"),
		os.Getenv("SETTINGS_TABLE"),
	})
	if err != nil {
		log.Fatalf("create tables: %v", err)
	}
	queues, err := storage.EnsureQueues(ctx, connStr, []string{os.Getenv("CHANGE_QUEUE")})
	if err != nil {
		log.Fatalf("create queues: %v", err)
	}

	log.WithFields(log.Fields{"tables": tables, "queues": queues}).Info("storage init complete")
}
