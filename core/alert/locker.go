package alert

import (
	"context"
	"strconv"
	"sync"
)

type (
	// Lock is a held per-alert lock.
	Lock interface {
		Unlock(ctx context.Context) error
	}

	// Locker grants mutual exclusion per alert across concurrent runs.
	// Acquire returns ErrLocked when another holder owns the key.
	Locker interface {
		Acquire(ctx context.Context, alertID int) (Lock, error)
	}
)

// LockKey names the lock of an alert.
func LockKey(alertID int) string {
	return "alertify:alert:" + strconv.Itoa(alertID)
}

// LocalLocker serializes runs within a single process.
type LocalLocker struct {
	mu   sync.Mutex
	held map[int]bool
}

var _ Locker = (*LocalLocker)(nil)

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[int]bool)}
}

func (l *LocalLocker) Acquire(_ context.Context, alertID int) (Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[alertID] {
		return nil, ErrLocked
	}
	l.held[alertID] = true
	return &localLock{locker: l, alertID: alertID}, nil
}

type localLock struct {
	locker  *LocalLocker
	alertID int
	once    sync.Once
}

func (lk *localLock) Unlock(context.Context) error {
	lk.once.Do(func() {
		lk.locker.mu.Lock()
		delete(lk.locker.held, lk.alertID)
		lk.locker.mu.Unlock()
	})
	return nil
}
