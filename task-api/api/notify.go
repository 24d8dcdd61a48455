package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"taskboard/domain"
)

// RedisNotifier publishes change events straight to the channel the stream
// service listens on.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier creates a notifier publishing on channel.
func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

func (n *RedisNotifier) Notify(ctx context.Context, ev domain.ChangeEvent) error {
	payload, err := sonic.MarshalString(ev)
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, n.channel, payload).Err()
}

// ChangeSink is the durable queue behind QueueNotifier.
type ChangeSink interface {
	EnqueueChanges(ctx context.Context, events []domain.ChangeEvent) error
}

type notifyJob struct {
	userID string
	events []domain.ChangeEvent
}

// QueueNotifier hands change events to a bounded pool of workers that write
// them to the change queue. When the pool is saturated the caller enqueues
// inline.
type QueueNotifier struct {
	sink           ChangeSink
	log            *log.Logger
	jobs           chan notifyJob
	workerCount    int
	jobBuf         int
	enqueueTimeout time.Duration
	handoffTimeout time.Duration

	mu       sync.Mutex
	closed   bool
	workerWG sync.WaitGroup
}

// NewQueueNotifier starts the worker pool. NOTIFY_WORKERS, NOTIFY_BUFFER,
// NOTIFY_TIMEOUT and NOTIFY_HANDOFF_TIMEOUT tune it.
func NewQueueNotifier(sink ChangeSink, logger *log.Logger) *QueueNotifier {
	if logger == nil {
		panic("Logger is not initialized")
	}
	n := &QueueNotifier{
		sink:           sink,
		log:            logger,
		workerCount:    envInt("NOTIFY_WORKERS", 16),
		jobBuf:         envInt("NOTIFY_BUFFER", 1024),
		enqueueTimeout: envDur("NOTIFY_TIMEOUT", 30*time.Second),
		handoffTimeout: envDur("NOTIFY_HANDOFF_TIMEOUT", 15*time.Millisecond),
	}
	n.jobs = make(chan notifyJob, n.jobBuf)
	for i := 0; i < n.workerCount; i++ {
		n.workerWG.Add(1)
		go n.worker(i)
	}
	n.log.Infof("change notifier started, workers: %d, buffer: %d, timeout: %v, handoff: %v", n.workerCount, n.jobBuf, n.enqueueTimeout, n.handoffTimeout)
	return n
}

// Close stops accepting jobs and waits for queued ones to drain.
func (n *QueueNotifier) Close() {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.jobs)
	}
	n.mu.Unlock()
	n.workerWG.Wait()
}

func (n *QueueNotifier) Notify(ctx context.Context, ev domain.ChangeEvent) error {
	job := notifyJob{userID: ev.UserID, events: []domain.ChangeEvent{ev}}
	if n.tryEnqueueJob(job) {
		return nil
	}
	n.log.Warn("notify buffer saturated; enqueueing inline")

	enqueueCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.enqueueTimeout)
	defer cancel()
	if err := n.sink.EnqueueChanges(enqueueCtx, job.events); err != nil {
		return fmt.Errorf("enqueue change inline: %w", err)
	}
	return nil
}

func (n *QueueNotifier) worker(id int) {
	defer n.workerWG.Done()
	for j := range n.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), n.enqueueTimeout)
		err := n.sink.EnqueueChanges(ctx, j.events)
		cancel()
		if err != nil {
			n.log.WithError(err).WithFields(log.Fields{
				"user":   j.userID,
				"count":  len(j.events),
				"worker": id,
			}).Error("enqueue change failed")
		}
	}
}

func (n *QueueNotifier) tryEnqueueJob(job notifyJob) bool {
	n.mu.Lock()
	closed := n.closed
	n.mu.Unlock()
	if closed || n.jobs == nil {
		return false
	}

	if ok, closed := trySendNonBlocking(n.jobs, job); closed {
		return false
	} else if ok {
		return true
	}

	if n.handoffTimeout <= 0 {
		return false
	}

	timer := time.NewTimer(n.handoffTimeout)
	defer timer.Stop()

	ok, closed := sendWithTimer(n.jobs, job, timer.C)
	if closed {
		return false
	}
	return ok
}

func trySendNonBlocking(ch chan notifyJob, job notifyJob) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- job:
		return true, false
	default:
		return false, false
	}
}

func sendWithTimer(ch chan notifyJob, job notifyJob, timer <-chan time.Time) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- job:
		return true, false
	case <-timer:
		return false, false
	}
}
