package cache

import (
	"context"
	"log"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"clickerexam/internal/domain"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Redis shares decoded snapshots between server instances. Each exam is one
// hash: HSET exam:{id}:snapshot version <token> payload <json>.
type Redis struct {
	client *redis.Client
	loader Loader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRedis(client *redis.Client, loader Loader, ttl time.Duration) *Redis {
	return &Redis{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func snapshotKey(examID int64) string {
	return "exam:" + strconv.FormatInt(examID, 10) + ":snapshot"
}

func (r *Redis) Get(ctx context.Context, examID int64) (*domain.FrozenSnapshot, error) {
	if snap, ok := r.fromCache(ctx, examID); ok {
		return snap, nil
	}

	result, err, _ := r.sf.Do(strconv.FormatInt(examID, 10), func() (interface{}, error) {
		if snap, ok := r.fromCache(ctx, examID); ok {
			return snap, nil
		}
		snap, err := r.loader.Load(ctx, examID)
		if err != nil {
			return nil, err
		}

		key := snapshotKey(examID)
		pipe := r.client.Pipeline()
		pipe.HSet(ctx, key, "version", snap.Version, "payload", string(snap.Raw))
		if ttl := r.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			log.Printf("snapshot cache write exam=%d: %v", examID, err)
		}
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.FrozenSnapshot), nil
}

func (r *Redis) fromCache(ctx context.Context, examID int64) (*domain.FrozenSnapshot, bool) {
	fields, err := r.client.HGetAll(ctx, snapshotKey(examID)).Result()
	if err != nil || fields["payload"] == "" {
		return nil, false
	}
	snap, err := domain.DecodeFrozenSnapshot(examID, fields["version"], []byte(fields["payload"]))
	if err != nil {
		log.Printf("snapshot cache decode exam=%d: %v", examID, err)
		return nil, false
	}
	return snap, true
}

func (r *Redis) Invalidate(ctx context.Context, examID int64) error {
	return r.client.Del(ctx, snapshotKey(examID)).Err()
}

func (r *Redis) ttlWithJitter() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return jitter(r.ttl, r.rnd.Int63n)
}
