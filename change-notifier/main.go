package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
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
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		log.SetFormatter(&log.JSONFormatter{})
	}
	log.Info("Change Notifier Service starting")

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	queueName := os.Getenv("CHANGE_QUEUE")
	tasksTable := os.Getenv("TASKS_TABLE")
	if connStr == "" || queueName == "" || tasksTable == "" {
		log.Fatal("missing storage config")
	}
	queue, err := storage.NewChangeQueue(connStr, queueName)
	if err != nil {
		log.Fatalf("queue client: %v", err)
	}
	store, err := storage.New(storage.Config{ConnectionString: connStr, TasksTable: tasksTable})
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	redisConn := os.Getenv("REDIS_CONNECTION_STRING")
	channel := os.Getenv("TASK_UPDATES_CHANNEL")
	if redisConn == "" || channel == "" {
		log.Fatal("missing redis config")
	}
	rc := redis.NewClient(storage.RedisOptions(redisConn))

	cacheTTL := 10 * time.Minute
	if v := os.Getenv("SNAPSHOT_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Fatalf("invalid SNAPSHOT_CACHE_TTL: %q", v)
		}
		cacheTTL = d
	}

	p := &processor{
		source:     queue,
		cache:      storage.NewCache(store, rc, cacheTTL),
		rc:         rc,
		channel:    channel,
		log:        log.StandardLogger(),
		batchSize:  16,
		visibility: 30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := echo.New()
	e.HideBanner = true
	e.GET("/healthz", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/metrics", echoprometheus.NewHandler())
	port := "8090"
	if v, ok := os.LookupEnv("NOTIFIER_PORT"); ok {
		port = v
	}
	go func() {
		if err := e.Start(":" + port); err != nil {
			log.WithError(err).Info("health server stopped")
		}
	}()

	p.run(ctx, 100*time.Millisecond, 2*time.Second)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = e.Shutdown(shutdownCtx)
}
