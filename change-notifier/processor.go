package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"taskboard/domain"
	"taskboard/storage"
)

type changeSource interface {
	Dequeue(ctx context.Context, max int32, visibility time.Duration) ([]storage.QueuedChange, error)
	Delete(ctx context.Context, messageID, popReceipt string) error
}

type snapshotRefresher interface {
	Refresh(ctx context.Context, userID string) ([]domain.Task, error)
}

type processor struct {
	source     changeSource
	cache      snapshotRefresher
	rc         *redis.Client
	channel    string
	log        *log.Logger
	batchSize  int32
	visibility time.Duration
}

// processChange refreshes the cached snapshot of the affected user and
// announces the change. A failed refresh leaves the message on the queue so
// it is retried once its visibility timeout expires.
func (p *processor) processChange(ctx context.Context, ev domain.ChangeEvent, payload string) error {
	if !ev.AffectsTasks() {
		p.log.WithFields(log.Fields{"user": ev.UserID, "type": ev.Type}).Info("user event")
		return nil
	}
	if p.cache != nil {
		if _, err := p.cache.Refresh(ctx, ev.UserID); err != nil {
			return fmt.Errorf("refresh snapshot for %s: %w", ev.UserID, err)
		}
	}
	if err := p.rc.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.log.WithError(err).Errorf("Unable to publish update for %s to %s", ev.UserID, p.channel)
	}
	return nil
}

// drain handles one batch and reports how many messages it received.
func (p *processor) drain(ctx context.Context) (int, error) {
	msgs, err := p.source.Dequeue(ctx, p.batchSize, p.visibility)
	if err != nil {
		return 0, err
	}
	for _, m := range msgs {
		if m.DecodeErr != nil {
			p.log.WithError(m.DecodeErr).WithField("message", m.MessageID).Warn("dropping malformed change")
		} else if err := p.processChange(ctx, m.Event, m.Raw); err != nil {
			p.log.WithError(err).WithField("message", m.MessageID).Error("process change failed")
			continue
		}
		if err := p.source.Delete(ctx, m.MessageID, m.PopReceipt); err != nil {
			p.log.WithError(err).WithField("message", m.MessageID).Error("delete message failed")
		}
	}
	return len(msgs), nil
}

// run polls the queue until ctx is done, backing off while it is empty.
func (p *processor) run(ctx context.Context, minIdle, maxIdle time.Duration) {
	idle := minIdle
	for {
		n, err := p.drain(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			p.log.WithError(err).Error("receive failed")
		}
		if n > 0 && err == nil {
			idle = minIdle
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(idle):
		}
		if idle *= 2; idle > maxIdle {
			idle = maxIdle
		}
	}
}
