package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/joho/godotenv"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"taskboard/auth"
	"taskboard/storage"
	"taskboard/task-api/api"
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
	logger := log.StandardLogger()

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	tasksTableName := os.Getenv("TASKS_TABLE")
	usersTableName := os.Getenv("USERS_TABLE")
	settingsTableName := os.Getenv("SETTINGS_TABLE")
	if connStr == "" || tasksTableName == "" || usersTableName == "" || settingsTableName == "" {
		log.Fatal("missing storage config")
	}
	store, err := storage.New(storage.Config{
		ConnectionString: connStr,
		TasksTable:       tasksTableName,
		UsersTable:       usersTableName,
		SettingsTable:    settingsTableName,
	})
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	redisConn := os.Getenv("REDIS_CONNECTION_STRING")
	if redisConn == "" {
		log.Fatal("missing redis config")
	}
	rc := redis.NewClient(storage.RedisOptions(redisConn))

	dedupeTTL := envDuration("DEDUPER_TTL", 24*time.Hour)
	snapshotTTL := envDuration("SNAPSHOT_CACHE_TTL", 10*time.Minute)
	tasks := storage.NewCache(store, rc, snapshotTTL)

	var notifier api.Notifier
	flushNotifier := func() {}
	if queueName := os.Getenv("CHANGE_QUEUE"); queueName != "" {
		queue, err := storage.NewChangeQueue(connStr, queueName)
		if err != nil {
			log.Fatalf("change queue: %v", err)
		}
		qn := api.NewQueueNotifier(queue, logger)
		flushNotifier = qn.Close
		notifier = qn
	} else {
		channel := os.Getenv("TASK_UPDATES_CHANNEL")
		if channel == "" {
			log.Fatal("missing TASK_UPDATES_CHANNEL")
		}
		notifier = api.NewRedisNotifier(rc, channel)
	}

	var authenticator *auth.Auth
	if os.Getenv("AUTH0_TEST_MODE") == "1" || os.Getenv("LOCAL_AUTH_MODE") != "" {
		authenticator = auth.New(nil, os.Getenv("AUTH0_AUDIENCE"), "")
	} else {
		jwtAudience := os.Getenv("AUTH0_AUDIENCE")
		domain := os.Getenv("AUTH0_DOMAIN")
		if jwtAudience == "" || domain == "" {
			log.Fatal("missing Auth0 config")
		}
		jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", domain)
		jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{RefreshInterval: time.Hour})
		if err != nil {
			log.Fatalf("jwks: %v", err)
		}
		authenticator = auth.New(jwks, jwtAudience, "https://"+domain+"/")
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderContentEncoding, "Idempotency-Key"},
	}))
	e.Use(echoprometheus.NewMiddleware("taskboard_api"))
	e.GET("/metrics", echoprometheus.NewHandler())

	api.Register(e, api.Deps{
		Tasks:    tasks,
		Profiles: store,
		Auth:     authenticator,
		Deduper:  api.NewRedisDeduper(rc, dedupeTTL),
		Notifier: notifier,
	}, logger)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok {
		listenAddr = ":" + val
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := serve(ctx, e, listenAddr, envDuration("SHUTDOWN_TIMEOUT", 10*time.Second), flushNotifier); err != nil {
		log.WithError(err).Error("server stopped")
	}
}

// serve runs e until ctx is done, then stops accepting requests, waits for
// in-flight ones and calls flush so pending change events are delivered.
func serve(ctx context.Context, e *echo.Echo, addr string, timeout time.Duration, flush func()) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(addr)
	}()

	var startErr error
	select {
	case startErr = <-errCh:
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("graceful shutdown failed")
		}
		startErr = <-errCh
	}
	flush()
	if errors.Is(startErr, http.ErrServerClosed) {
		return nil
	}
	return startErr
}

func envDuration(name string, def time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Fatalf("invalid %s: %q", name, v)
	}
	return d
}
