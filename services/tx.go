package services

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Dosada05/league-engine/metrics"
	"github.com/Dosada05/league-engine/repositories"
	"github.com/lib/pq"
)

// advisoryLockNamespace is the first key of pg_advisory_xact_lock(int, int).
const advisoryLockNamespace = 4711

// TxManager runs fn in one serializable transaction that holds the category
// lock. Operations on different categories never wait for each other.
type TxManager interface {
	WithCategoryLock(ctx context.Context, categoryID int, fn func(exec repositories.SQLExecutor) error) error
}

type sqlTxManager struct {
	db          *sql.DB
	locks       *keyedLock
	lockTimeout time.Duration
	logger      *slog.Logger
}

func NewTxManager(db *sql.DB, lockTimeout time.Duration, logger *slog.Logger) TxManager {
	return &sqlTxManager{db: db, locks: newKeyedLock(), lockTimeout: lockTimeout, logger: logger}
}

func (m *sqlTxManager) WithCategoryLock(ctx context.Context, categoryID int, fn func(exec repositories.SQLExecutor) error) (txErr error) {
	waitCtx, cancel := context.WithTimeout(ctx, m.lockTimeout)
	defer cancel()
	started := time.Now()
	release, err := m.locks.acquire(waitCtx, categoryID)
	if err != nil {
		return fmt.Errorf("%w: category %d", ErrLockTimeout, categoryID)
	}
	defer release()
	metrics.RecordLockWait(time.Since(started))

	tx, err := m.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				m.logger.Error("rollback failed", slog.Int("category_id", categoryID), slog.Any("error", rbErr))
				txErr = fmt.Errorf("transaction processing error: %w (rollback also failed: %v)", txErr, rbErr)
			}
		} else if cErr := tx.Commit(); cErr != nil {
			txErr = fmt.Errorf("failed to commit transaction: %w", cErr)
		}
	}()

	// SET does not take bind parameters.
	if _, txErr = tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", m.lockTimeout.Milliseconds())); txErr != nil {
		return txErr
	}
	if _, txErr = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1, $2)`, advisoryLockNamespace, categoryID); txErr != nil {
		if pqErr, ok := txErr.(*pq.Error); ok && pqErr.Code == "55P03" { // lock_not_available
			txErr = fmt.Errorf("%w: category %d", ErrLockTimeout, categoryID)
		}
		return txErr
	}
	txErr = fn(tx)
	return txErr
}

// keyedLock is a set of per-key binary semaphores that can be waited on
// with a context.
type keyedLock struct {
	mu    sync.Mutex
	slots map[int]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

func newKeyedLock() *keyedLock {
	return &keyedLock{slots: make(map[int]*lockSlot)}
}

func (k *keyedLock) acquire(ctx context.Context, key int) (func(), error) {
	k.mu.Lock()
	slot, ok := k.slots[key]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		k.slots[key] = slot
	}
	slot.refs++
	k.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
		return func() {
			<-slot.ch
			k.drop(key, slot)
		}, nil
	case <-ctx.Done():
		k.drop(key, slot)
		return nil, ctx.Err()
	}
}

func (k *keyedLock) drop(key int, slot *lockSlot) {
	k.mu.Lock()
	defer k.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(k.slots, key)
	}
}
