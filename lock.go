package neobench

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"k8s.io/klog/v2"
)

const defaultLockPoll = 50 * time.Millisecond

// LockSet hands out named advisory locks.
//
// Within a process, a name is held by at most one requester at a time. When
// the set has a directory, each held name is also backed by an flock(2) on
// <dir>/<name>.lock, so separate neobench processes sharing a work root
// exclude each other too. The kernel drops the flock when a holder process
// dies.
//
// A holder of this set that keeps a name longer than the stale age is
// presumed dead and its lock is reclaimed by the next requester of the same
// set. flocks held by other processes are never reclaimed by age. Releasing a reclaimed lock is
// a no-op, so a slow holder never releases its successor's lock.
//
// Safe for concurrent use.
type LockSet struct {
	dir        string
	staleAfter time.Duration
	poll       time.Duration

	mu   sync.Mutex
	held map[string]*lockHolder
	seq  uint64
}

type lockHolder struct {
	id    uint64
	since time.Time
	file  *os.File
}

// NewLockSet creates a lock set. An empty dir keeps locks in-process only.
// staleAfter <= 0 uses the default of 30m.
func NewLockSet(dir string, staleAfter time.Duration) (*LockSet, error) {
	if staleAfter <= 0 {
		staleAfter = defaultLockStale
	}

	if dir != "" {
		mkdirErr := os.MkdirAll(dir, 0o755)
		if mkdirErr != nil {
			return nil, fmt.Errorf("create lock directory: %w", mkdirErr)
		}
	}

	return &LockSet{
		dir:        dir,
		staleAfter: staleAfter,
		poll:       defaultLockPoll,
		held:       make(map[string]*lockHolder),
	}, nil
}

// Acquire blocks until name is held, wait elapses, or ctx is canceled.
//
// On success the returned release func must be called exactly once; extra
// calls are no-ops. On failure the error is a [*LockError].
func (s *LockSet) Acquire(ctx context.Context, name string, wait time.Duration) (func(), error) {
	start := time.Now()

	waitCtx := ctx
	if wait > 0 {
		var cancel context.CancelFunc

		waitCtx, cancel = context.WithTimeout(ctx, wait)
		defer cancel()
	}

	for {
		holder, err := s.tryAcquire(name)
		if err != nil {
			return nil, &LockError{Name: name, Waited: time.Since(start), Err: err}
		}

		if holder != nil {
			var once sync.Once

			return func() {
				once.Do(func() { s.release(name, holder.id) })
			}, nil
		}

		timer := time.NewTimer(s.poll)
		select {
		case <-waitCtx.Done():
			timer.Stop()

			return nil, &LockError{Name: name, Waited: time.Since(start), Err: waitCtx.Err()}
		case <-timer.C:
		}
	}
}

// isHeld reports whether name is currently held by this process.
func (s *LockSet) isHeld(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.held[name]

	return ok
}

// tryAcquire returns the new holder, or nil if name is busy.
func (s *LockSet) tryAcquire(name string) (*lockHolder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.held[name]; ok {
		age := time.Since(cur.since)
		if age < s.staleAfter {
			return nil, nil
		}

		klog.Warningf("lock %s: reclaiming after %s (holder presumed dead)", name, age.Round(time.Second))
		cur.unlock()
		delete(s.held, name)
	}

	var file *os.File

	if s.dir != "" {
		f, ok, err := lockFile(s.path(name))
		if err != nil {
			return nil, err
		}

		if !ok {
			return nil, nil
		}

		file = f
	}

	s.seq++
	holder := &lockHolder{id: s.seq, since: time.Now(), file: file}
	s.held[name] = holder

	return holder, nil
}

func (s *LockSet) release(name string, id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.held[name]
	if !ok || cur.id != id {
		return
	}

	cur.unlock()
	delete(s.held, name)
}

func (s *LockSet) path(name string) string {
	safe := strings.Map(func(r rune) rune {
		if r == '/' || r == os.PathSeparator {
			return '-'
		}

		return r
	}, name)

	return filepath.Join(s.dir, safe+".lock")
}

func (h *lockHolder) unlock() {
	if h.file == nil {
		return
	}

	unlockFile(h.file)
	h.file = nil
}
