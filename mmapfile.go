package mmkv

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// mappedFile owns one open file descriptor and its current MAP_SHARED
// mapping, with page-aligned growth: the teacher's mmapAndCreateCache
// (open.go) drives the same fd-then-mmap sequence via the raw `syscall`
// package; this is adapted onto `golang.org/x/sys/unix` (DOMAIN STACK:
// more portable, already a transitive pack dependency) and made resizable
// in place, since mmkv namespaces grow over the life of the handle while
// slotcache's are fixed at creation.
type mappedFile struct {
	mu   sync.Mutex
	file *os.File
	data []byte // current mapping; len(data) == size
	size int64
}

// pageSizeCached is computed once at package init, mirroring the
// teacher's is64Bit/isLittleEndian package-var init pattern in open.go.
var pageSizeCached = int64(unix.Getpagesize())

// pageSize returns the OS page size.
func pageSize() int64 { return pageSizeCached }

// pageAlign rounds n up to the next multiple of the page size.
func pageAlign(n int64) int64 {
	ps := pageSize()
	if n%ps == 0 {
		return n
	}
	return (n/ps + 1) * ps
}

// openMappedFile opens (creating if needed) path, ensures its size is at
// least minSize (page-aligned, zero-filled), and mmaps it MAP_SHARED.
func openMappedFile(path string, minSize int64) (*mappedFile, error) {
	if err := ensureParentDir(path); err != nil {
		return nil, fmt.Errorf("create parent dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrIoError, path, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: stat %s: %v", ErrIoError, path, err)
	}

	size := info.Size()
	target := pageAlign(minSize)
	if size < target {
		if err := f.Truncate(target); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("%w: truncate %s: %v", ErrIoError, path, err)
		}
		size = target
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: mmap %s: %v", ErrIoError, path, err)
	}

	return &mappedFile{file: f, data: data, size: size}, nil
}

// grow extends the file to at least newSize (page-aligned), zero-fills the
// new region, and remaps. Per spec.md §4.4 ("unmap and remap") and §9
// ("mmap lifetime": pointers into the old mapping must not survive a
// grow) — callers must not retain slices derived from mf.data across a
// call to grow.
//
// On ftruncate/mmap failure, the file's on-disk size is left as the OS
// left it but mf.size (and thus the handle's notion of capacity) is
// rolled back to its pre-grow value, per spec.md §5 "Failure modes".
func (mf *mappedFile) grow(newSize int64) error {
	mf.mu.Lock()
	defer mf.mu.Unlock()

	target := pageAlign(newSize)
	if target <= mf.size {
		return nil
	}

	prevSize := mf.size

	if err := mf.file.Truncate(target); err != nil {
		return fmt.Errorf("%w: truncate: %v", ErrIoError, err)
	}

	if err := unix.Munmap(mf.data); err != nil {
		// Best-effort rollback of the truncate so mf.size still matches the
		// file's real extent; a failure to shrink here is not itself fatal
		// since the next grow attempt will simply re-truncate upward.
		_ = mf.file.Truncate(prevSize)
		return fmt.Errorf("%w: munmap: %v", ErrIoError, err)
	}

	data, err := unix.Mmap(int(mf.file.Fd()), 0, int(target), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		mf.data = nil
		mf.size = prevSize
		return fmt.Errorf("%w: mmap: %v", ErrIoError, err)
	}

	mf.data = data
	mf.size = target

	return nil
}

// shrinkTo truncates and remaps down to newSize (page-aligned), used by
// trim (spec.md §4.5.7). newSize must already be page-aligned.
func (mf *mappedFile) shrinkTo(newSize int64) error {
	mf.mu.Lock()
	defer mf.mu.Unlock()

	if newSize >= mf.size {
		return nil
	}

	if err := unix.Munmap(mf.data); err != nil {
		return fmt.Errorf("%w: munmap: %v", ErrIoError, err)
	}

	if err := mf.file.Truncate(newSize); err != nil {
		// The old mapping is already torn down; remap at the old size so the
		// handle stays usable even though the shrink failed.
		data, mmapErr := unix.Mmap(int(mf.file.Fd()), 0, int(mf.size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if mmapErr == nil {
			mf.data = data
		}
		return fmt.Errorf("%w: truncate: %v", ErrIoError, err)
	}

	data, err := unix.Mmap(int(mf.file.Fd()), 0, int(newSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		mf.data = nil
		mf.size = newSize
		return fmt.Errorf("%w: mmap: %v", ErrIoError, err)
	}

	mf.data = data
	mf.size = newSize

	return nil
}

// bytes returns the current mapping. Valid only until the next grow/
// shrinkTo/close call.
func (mf *mappedFile) bytes() []byte {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	return mf.data
}

// fd returns the underlying file descriptor, used by recursiveFileLock.
func (mf *mappedFile) fd() int {
	return int(mf.file.Fd())
}

// diskSize stats the underlying file for its current on-disk size, which
// may exceed mf.size if another process has grown the file since this
// mapping was last established.
func (mf *mappedFile) diskSize() (int64, error) {
	info, err := mf.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("%w: stat: %v", ErrIoError, err)
	}
	return info.Size(), nil
}

// sync flushes the mapping to disk. async selects MS_ASYNC (schedule
// writeback, return immediately) over MS_SYNC (block until durable),
// matching the `sync(async?)` operation in spec.md §6.
func (mf *mappedFile) sync(async bool) error {
	mf.mu.Lock()
	defer mf.mu.Unlock()

	if mf.data == nil {
		return nil
	}

	flags := unix.MS_SYNC
	if async {
		flags = unix.MS_ASYNC
	}

	if err := unix.Msync(mf.data, flags); err != nil {
		return fmt.Errorf("%w: msync: %v", ErrIoError, err)
	}

	return nil
}

// close unmaps and closes the underlying file.
func (mf *mappedFile) close() error {
	mf.mu.Lock()
	defer mf.mu.Unlock()

	var firstErr error

	if mf.data != nil {
		if err := unix.Munmap(mf.data); err != nil {
			firstErr = fmt.Errorf("%w: munmap: %v", ErrIoError, err)
		}
		mf.data = nil
	}

	if err := mf.file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("%w: close: %v", ErrIoError, err)
	}

	return firstErr
}
