package cache

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"clickerexam/internal/domain"

	"golang.org/x/sync/singleflight"
)

// Memory caches snapshots in process with a jittered TTL.
type Memory struct {
	loader Loader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[int64]cachedSnapshot
}

type cachedSnapshot struct {
	snap      *domain.FrozenSnapshot
	expiresAt time.Time
}

func NewMemory(loader Loader, ttl time.Duration) *Memory {
	return &Memory{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[int64]cachedSnapshot),
	}
}

func (m *Memory) Get(ctx context.Context, examID int64) (*domain.FrozenSnapshot, error) {
	if snap, ok := m.lookup(examID); ok {
		return snap, nil
	}

	result, err, _ := m.sf.Do(strconv.FormatInt(examID, 10), func() (interface{}, error) {
		if snap, ok := m.lookup(examID); ok {
			return snap, nil
		}
		snap, err := m.loader.Load(ctx, examID)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.cache[examID] = cachedSnapshot{
			snap:      snap,
			expiresAt: m.clock().Add(jitter(m.ttl, m.rnd.Int63n)),
		}
		m.mu.Unlock()
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.FrozenSnapshot), nil
}

func (m *Memory) lookup(examID int64) (*domain.FrozenSnapshot, bool) {
	now := m.clock()
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.cache[examID]
	if !ok || !entry.expiresAt.After(now) {
		return nil, false
	}
	return entry.snap, true
}

func (m *Memory) Invalidate(examID int64) {
	m.mu.Lock()
	delete(m.cache, examID)
	m.mu.Unlock()
}
