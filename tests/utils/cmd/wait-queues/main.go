package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"taskboard/storage"
)

type queueList []string

func (q *queueList) String() string {
	if q == nil {
		return ""
	}
	return strings.Join(*q, ",")
}

func (q *queueList) Set(value string) error {
	if value == "" {
		return errors.New("queue name cannot be empty")
	}
	*q = append(*q, value)
	return nil
}

type pendingCounter interface {
	PendingCount(ctx context.Context) (int32, error)
}

// waitDrained polls every queue until each reports zero pending messages on
// stableRequired consecutive polls.
func waitDrained(ctx context.Context, interval time.Duration, stableRequired int, queues map[string]pendingCounter) error {
	if stableRequired < 1 {
		stableRequired = 1
	}
	stable := make(map[string]int, len(queues))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		allStable := true
		for name, q := range queues {
			count, err := q.PendingCount(ctx)
			if err != nil {
				return fmt.Errorf("get properties for %s: %w", name, err)
			}
			if count > 0 {
				log.WithFields(log.Fields{"queue": name, "pending": count}).Info("queue not drained")
				stable[name] = 0
				allStable = false
				continue
			}
			stable[name]++
			if stable[name] < stableRequired {
				allStable = false
			}
		}
		if allStable {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func main() {
	log.SetOutput(os.Stderr)
	var (
		connStr        string
		timeout        time.Duration
		interval       time.Duration
		stableRequired int
		queues         queueList
	)
	flag.StringVar(&connStr, "connection-string", os.Getenv("STORAGE_CONNECTION_STRING"), "Azure Storage connection string")
	flag.DurationVar(&timeout, "timeout", 2*time.Minute, "maximum time to wait for queues to drain")
	flag.DurationVar(&interval, "interval", 2*time.Second, "polling interval")
	flag.IntVar(&stableRequired, "stable", 3, "number of consecutive empty polls required per queue")
	flag.Var(&queues, "queue", "queue name to monitor (repeatable, defaults to CHANGE_QUEUE)")
	flag.Parse()

	if connStr == "" {
		log.Fatal("connection-string is required")
	}
	if len(queues) == 0 {
		if q := os.Getenv("CHANGE_QUEUE"); q != "" {
			queues = append(queues, q)
		}
	}
	if len(queues) == 0 {
		log.Fatal("at least one queue must be specified")
	}

	clients := make(map[string]pendingCounter, len(queues))
	for _, name := range queues {
		q, err := storage.NewChangeQueue(connStr, name)
		if err != nil {
			log.Fatalf("create client for %s: %v", name, err)
		}
		clients[name] = q
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log.Infof("waiting for %d queue(s) to drain", len(clients))
	if err := waitDrained(ctx, interval, stableRequired, clients); err != nil {
		log.Fatalf("queue wait failed: %v", err)
	}
	log.Info("all queues drained")
}
