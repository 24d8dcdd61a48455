package main

import (
	"bufio"
	"context"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	i, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return i
}

// loadTokens reads the JSON array written by gen-token -output, falling back
// to the single TEST_BEARER token.
func loadTokens(path, bearer string) ([]string, error) {
	if path == "" {
		if bearer == "" {
			return nil, nil
		}
		return []string{bearer}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tokens []string
	if err := sonic.Unmarshal(data, &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

// streamRequest builds the stream request for one connection. EventSource
// clients cannot set headers, so queryToken sends the token as ?token=.
func streamRequest(ctx context.Context, streamURL, token string, queryToken bool) (*http.Request, error) {
	if token != "" && queryToken {
		u, err := url.Parse(streamURL)
		if err != nil {
			return nil, err
		}
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
		streamURL = u.String()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	if token != "" && !queryToken {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

type counters struct {
	events     atomic.Uint64
	keepalives atomic.Uint64
	attempts   atomic.Uint64
	failures   atomic.Uint64
}

func (c *counters) observe(line string) {
	switch {
	case strings.HasPrefix(line, "data:"):
		c.events.Add(1)
	case strings.HasPrefix(line, ":keepalive"):
		c.keepalives.Add(1)
	}
}

func main() {
	streamURL := getenv("STREAM_URL", "http://localhost:9000/stream")
	conns := getenvInt("SSE_CONNECTIONS", 200)
	duration := time.Duration(getenvInt("DURATION_SEC", 120)) * time.Second
	queryToken := getenv("SSE_QUERY_TOKEN", "") == "1"

	tokens, err := loadTokens(os.Getenv("TOKENS_FILE"), os.Getenv("TEST_BEARER"))
	if err != nil {
		log.Fatalf("load tokens: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	var stats counters
	client := &http.Client{}
	var wg sync.WaitGroup
	wg.Add(conns)
	for i := 0; i < conns; i++ {
		token := ""
		if len(tokens) > 0 {
			token = tokens[i%len(tokens)]
		}
		go func() {
			defer wg.Done()
			backoff := time.Second
			fail := func() {
				stats.failures.Add(1)
				time.Sleep(backoff)
				backoff = min(backoff*2, 5*time.Second)
			}
			for ctx.Err() == nil {
				stats.attempts.Add(1)
				req, err := streamRequest(ctx, streamURL, token, queryToken)
				if err != nil {
					fail()
					continue
				}
				resp, err := client.Do(req)
				if err != nil || resp.StatusCode != http.StatusOK {
					if resp != nil {
						resp.Body.Close()
					}
					fail()
					continue
				}
				backoff = time.Second
				scanner := bufio.NewScanner(resp.Body)
				scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
				for scanner.Scan() {
					stats.observe(scanner.Text())
					if ctx.Err() != nil {
						break
					}
				}
				resp.Body.Close()
				if ctx.Err() != nil {
					return
				}
				fail()
			}
		}()
	}

	go func() {
		select {
		case <-time.After(60 * time.Second):
			if stats.events.Load() == 0 {
				log.Fatal("no events received in 60s")
			}
		case <-ctx.Done():
		}
	}()

	wg.Wait()
	attempts := stats.attempts.Load()
	failures := stats.failures.Load()
	events := stats.events.Load()
	failureRate := 0.0
	if attempts > 0 {
		failureRate = float64(failures) / float64(attempts)
	}
	log.WithFields(log.Fields{
		"connections":         conns,
		"duration_sec":        int(duration.Seconds()),
		"events_received":     events,
		"keepalives_received": stats.keepalives.Load(),
		"connection_failures": failures,
	}).Info("sse load finished")
	if events == 0 || failureRate > 0.01 {
		os.Exit(1)
	}
}
