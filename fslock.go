package mmkv

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// recursiveFileLock implements the single process-wide, reentrant
// advisory lock described in spec.md §4.4, using whole-file flock(2)
// rather than a byte-range lock: a counter-based
// state machine that takes a real OS-level `flock` only on a transition
// out of the unlocked state, and funnels shared→exclusive upgrades through
// an explicit "drop then escalate" sequence rather than racing a direct
// upgrade (POSIX fcntl/Windows LockFileEx both forbid atomic upgrade).
//
// Grounded on the teacher's internal/fs.Locker (flock-based, retry-on-
// EINTR, inode-verified) for the underlying OS primitive; the reentrant
// counter state machine itself has no teacher analog (slotcache's lock is
// not reentrant) and is built directly from spec.md §4.4's transition
// table.
//
// One recursiveFileLock exists per open namespace handle; callers never
// share one across namespaces. Reentrant acquisition is expected only from
// the same engine instance's own call stack (e.g. set() acquiring
// exclusive, then internally calling a helper that also acquires
// exclusive) — it is not a substitute for per-thread ownership tracking,
// since spec.md scopes this as a single process-wide handle, not a
// per-goroutine one.
type recursiveFileLock struct {
	mu sync.Mutex

	fd int // fd of the locked file (the meta file)

	sharedCount    int
	exclusiveCount int
	// savedSharedN records the sharedCount in effect at the moment a
	// Shared(n) state upgraded to Exclusive(1); when the exclusive count
	// later drops to zero, this many shared holders are still owed a lock,
	// so the OS shared lock is re-taken instead of fully unlocking.
	savedSharedN int
}

func newRecursiveFileLock(fd int) *recursiveFileLock {
	return &recursiveFileLock{fd: fd}
}

// lockShared acquires a shared hold, per the "Acquire Shared" column of
// spec.md §4.4's state table.
func (l *recursiveFileLock) lockShared() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case l.exclusiveCount > 0:
		// Exclusive(n) --AcquireShared--> Exclusive, bumps sharedCount only.
		l.sharedCount++
		return nil
	case l.sharedCount > 0:
		// Shared(n) --AcquireShared--> Shared(n+1), no new OS call.
		l.sharedCount++
		return nil
	default:
		// Unlocked --AcquireShared--> Shared(1) [OS shared].
		if err := l.flock(unix.LOCK_SH); err != nil {
			return err
		}
		l.sharedCount = 1
		return nil
	}
}

// unlockShared releases a shared hold, per the "Release Shared" column.
func (l *recursiveFileLock) unlockShared() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.sharedCount == 0 {
		return fmt.Errorf("mmkv: unlockShared called with no shared holder")
	}

	l.sharedCount--

	if l.exclusiveCount > 0 {
		// Exclusive(n) --ReleaseShared--> drops sharedCount only.
		return nil
	}

	if l.sharedCount == 0 {
		// Shared(1) --ReleaseShared--> Unlocked.
		return l.flock(unix.LOCK_UN)
	}

	return nil
}

// lockExclusive acquires an exclusive hold, per the "Acquire Exclusive"
// column.
func (l *recursiveFileLock) lockExclusive() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case l.exclusiveCount > 0:
		// Exclusive(n) --AcquireExclusive--> Exclusive(n+1).
		l.exclusiveCount++
		return nil
	case l.sharedCount > 0:
		// Shared(n) --AcquireExclusive--> drop OS shared, take OS exclusive,
		// remembering n so it can be restored on full release.
		if err := l.flock(unix.LOCK_EX); err != nil {
			return err
		}
		l.savedSharedN = l.sharedCount
		l.sharedCount = 0
		l.exclusiveCount = 1
		return nil
	default:
		// Unlocked --AcquireExclusive--> Exclusive(1) [OS exclusive].
		if err := l.flock(unix.LOCK_EX); err != nil {
			return err
		}
		l.exclusiveCount = 1
		return nil
	}
}

// unlockExclusive releases an exclusive hold, per the "Release Exclusive"
// column.
func (l *recursiveFileLock) unlockExclusive() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.exclusiveCount == 0 {
		return fmt.Errorf("mmkv: unlockExclusive called with no exclusive holder")
	}

	l.exclusiveCount--

	if l.exclusiveCount > 0 {
		return nil
	}

	if l.savedSharedN > 0 {
		// Exclusive(1) --ReleaseExclusive--> Shared(prevN) [re-take OS shared].
		n := l.savedSharedN
		l.savedSharedN = 0
		if err := l.flock(unix.LOCK_SH); err != nil {
			return err
		}
		l.sharedCount = n
		return nil
	}

	// Exclusive(1) --ReleaseExclusive--> Unlocked.
	return l.flock(unix.LOCK_UN)
}

// flock issues the underlying OS-level advisory lock/unlock call,
// retrying on EINTR the way the teacher's flockRetryEINTR does.
func (l *recursiveFileLock) flock(how int) error {
	for {
		err := unix.Flock(l.fd, how)
		if err == nil {
			return nil
		}
		if err == unix.EINTR {
			continue
		}
		return fmt.Errorf("%w: flock: %v", ErrIoError, err)
	}
}
