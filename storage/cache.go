package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"taskboard/domain"
)

type backend interface {
	ListRecent(ctx context.Context, userID string, limit int) ([]domain.Task, error)
	GetTask(ctx context.Context, userID, taskID string) (domain.Task, string, error)
	InsertTask(ctx context.Context, t domain.Task) error
	ReplaceTask(ctx context.Context, t domain.Task, etag string) error
	DeleteTask(ctx context.Context, userID, taskID string) error
}

// Cache wraps a task backend with a Redis copy of each user's live query
// result. Writes go straight to the backend and evict the cached snapshot.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
	now   func() time.Time
}

type cachedSnapshot struct {
	Version  int           `json:"version"`
	CachedAt time.Time     `json:"cachedAt"`
	Limit    int           `json:"limit"`
	Tasks    []domain.Task `json:"tasks"`
}

const snapshotVersion = 1

// generationTTL outlives any in-flight read; an expired counter reads as 0,
// which never matches a generation captured before it expired.
const generationTTL = 24 * time.Hour

var errStaleSnapshot = errors.New("snapshot generation changed")

// NewCache creates a caching wrapper using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl, now: time.Now}
}

// TasksCacheKey is the Redis key holding a user's live query snapshot.
func TasksCacheKey(userID string) string {
	return "tasks:" + userID
}

// generationKey counts the writes of a user. A snapshot read from the
// backend is only cached if no write bumped the counter meanwhile.
func generationKey(userID string) string {
	return "tasks:gen:" + userID
}

func (c *Cache) ListRecent(ctx context.Context, userID string, limit int) ([]domain.Task, error) {
	if limit <= 0 {
		limit = domain.LiveQueryLimit
	}
	if tasks, ok := c.load(ctx, userID, limit); ok {
		return tasks, nil
	}
	gen, genOK := c.generation(ctx, userID)
	tasks, err := c.base.ListRecent(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if genOK {
		c.store(ctx, userID, limit, tasks, gen)
	}
	return tasks, nil
}

// Refresh re-runs the live query against the backend and replaces the cached
// snapshot, returning the fresh result.
func (c *Cache) Refresh(ctx context.Context, userID string) ([]domain.Task, error) {
	gen, genOK := c.bump(ctx, userID)
	tasks, err := c.base.ListRecent(ctx, userID, domain.LiveQueryLimit)
	if err != nil {
		return nil, err
	}
	if genOK {
		c.store(ctx, userID, domain.LiveQueryLimit, tasks, gen)
	}
	return tasks, nil
}

func (c *Cache) GetTask(ctx context.Context, userID, taskID string) (domain.Task, string, error) {
	return c.base.GetTask(ctx, userID, taskID)
}

func (c *Cache) InsertTask(ctx context.Context, t domain.Task) error {
	if err := c.base.InsertTask(ctx, t); err != nil {
		return err
	}
	c.Evict(ctx, t.UserID)
	return nil
}

func (c *Cache) ReplaceTask(ctx context.Context, t domain.Task, etag string) error {
	if err := c.base.ReplaceTask(ctx, t, etag); err != nil {
		return err
	}
	c.Evict(ctx, t.UserID)
	return nil
}

func (c *Cache) DeleteTask(ctx context.Context, userID, taskID string) error {
	if err := c.base.DeleteTask(ctx, userID, taskID); err != nil {
		return err
	}
	c.Evict(ctx, userID)
	return nil
}

// Evict drops the cached snapshot of a user and invalidates reads that
// started before it.
func (c *Cache) Evict(ctx context.Context, userID string) {
	c.bump(ctx, userID)
}

// bump advances the user's generation and drops the snapshot atomically,
// returning the new generation.
func (c *Cache) bump(ctx context.Context, userID string) (int64, bool) {
	if c.redis == nil {
		return 0, false
	}
	var incr *redis.IntCmd
	_, err := c.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, generationKey(userID))
		p.Expire(ctx, generationKey(userID), generationTTL)
		p.Del(ctx, TasksCacheKey(userID))
		return nil
	})
	if err != nil {
		return 0, false
	}
	return incr.Val(), true
}

func (c *Cache) generation(ctx context.Context, userID string) (int64, bool) {
	if c.redis == nil {
		return 0, false
	}
	return readGeneration(ctx, c.redis, userID)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readGeneration(ctx context.Context, r getter, userID string) (int64, bool) {
	gen, err := r.Get(ctx, generationKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, true
	}
	return gen, err == nil
}

func (c *Cache) load(ctx context.Context, userID string, limit int) ([]domain.Task, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, TasksCacheKey(userID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, TasksCacheKey(userID)).Err()
		}
		return nil, false
	}
	var snap cachedSnapshot
	if err := json.Unmarshal(data, &snap); err != nil || snap.Version != snapshotVersion {
		_ = c.redis.Del(ctx, TasksCacheKey(userID)).Err()
		return nil, false
	}
	if limit > snap.Limit {
		return nil, false
	}
	tasks := snap.Tasks
	if len(tasks) > limit {
		tasks = tasks[:limit]
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return tasks, true
}

// store caches tasks only while the user's generation still equals gen, the
// value observed before the backend was queried.
func (c *Cache) store(ctx context.Context, userID string, limit int, tasks []domain.Task, gen int64) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(cachedSnapshot{
		Version:  snapshotVersion,
		CachedAt: c.now().UTC(),
		Limit:    limit,
		Tasks:    tasks,
	})
	if err != nil {
		return
	}
	_ = c.redis.Watch(ctx, func(tx *redis.Tx) error {
		cur, ok := readGeneration(ctx, tx, userID)
		if !ok || cur != gen {
			return errStaleSnapshot
		}
		_, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, TasksCacheKey(userID), data, c.ttl)
			return nil
		})
		return err
	}, generationKey(userID))
}
