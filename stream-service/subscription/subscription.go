package subscription

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"taskboard/domain"
)

// Snapshots runs the live query for a user.
type Snapshots interface {
	ListRecent(ctx context.Context, userID string, limit int) ([]domain.Task, error)
}

// Broadcaster receives the encoded snapshot of a user.
type Broadcaster interface {
	HasClients(userID string) bool
	Broadcast(userID string, data []byte)
}

// SubscribeUpdates listens for change notifications and re-delivers the full
// live query result of the affected user to its stream clients. It
// resubscribes when the pubsub channel closes and returns when ctx is done.
func SubscribeUpdates(
	ctx context.Context,
	logger *log.Logger,
	rc *redis.Client,
	snapshots Snapshots,
	channel string,
	hub Broadcaster,
	encode func([]domain.Task) ([]byte, error),
) {
	for {
		sub := rc.Subscribe(ctx, channel)
		ch := sub.Channel()
		closed := false
		for !closed {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					closed = true
					break
				}
				handleMessage(ctx, logger, snapshots, hub, encode, msg.Payload)
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		logger.Error("pubsub channel closed, reconnecting")
		time.Sleep(time.Second)
	}
}

func handleMessage(ctx context.Context, logger *log.Logger, snapshots Snapshots, hub Broadcaster, encode func([]domain.Task) ([]byte, error), payload string) {
	var ev domain.ChangeEvent
	if err := sonic.UnmarshalString(payload, &ev); err != nil {
		logger.WithError(err).Error("unable to parse update")
		return
	}
	if ev.UserID == "" || !ev.AffectsTasks() || !hub.HasClients(ev.UserID) {
		return
	}
	tasks, err := snapshots.ListRecent(ctx, ev.UserID, domain.LiveQueryLimit)
	if err != nil {
		logger.WithError(err).WithField("user", ev.UserID).Error("refresh snapshot failed")
		return
	}
	data, err := encode(tasks)
	if err != nil {
		logger.WithError(err).Error("encode snapshot failed")
		return
	}
	logger.WithFields(log.Fields{"user": ev.UserID, "type": ev.Type, "tasks": len(tasks)}).Debug("snapshot broadcast")
	hub.Broadcast(ev.UserID, data)
}
