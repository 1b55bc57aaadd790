// Package cache keeps decoded frozen snapshots close to the ingestion path.
// Snapshots never change once an exam is frozen, so entries only expire to
// bound memory.
package cache

import (
	"context"
	"time"

	"clickerexam/internal/domain"
	"clickerexam/internal/store"
)

// Loader fetches a frozen snapshot from the backing store.
type Loader interface {
	Load(ctx context.Context, examID int64) (*domain.FrozenSnapshot, error)
}

// StoreLoader reads snapshots straight from the exam row.
type StoreLoader struct {
	repo store.Repository
}

func NewStoreLoader(repo store.Repository) *StoreLoader {
	return &StoreLoader{repo: repo}
}

// Load fails with a PreconditionError when the exam has not been frozen.
func (l *StoreLoader) Load(ctx context.Context, examID int64) (*domain.FrozenSnapshot, error) {
	e, err := l.repo.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if !e.IsFrozen() || len(e.SnapshotData) == 0 {
		return nil, &domain.PreconditionError{ExamID: examID, Err: domain.ErrExamNotFrozen}
	}
	return domain.DecodeFrozenSnapshot(examID, e.SnapshotVersion, e.SnapshotData)
}

func jitter(ttl time.Duration, n func(int64) int64) time.Duration {
	if ttl <= 0 {
		return 0
	}
	jitterMax := int64(ttl) / 10
	return ttl + time.Duration(n(jitterMax+1))
}
