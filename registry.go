package mmkv

import "sync"

// registry is the top-level (rootDir, mmapID) → engine handle singleton
// described in spec.md §2 ("Top-level registry (part of the engine) maps
// an (rootDir, mmapID) pair to a single engine handle within the
// process") and §9's "process-wide registry as ambient state": a lazily
// initialized map guarded by a single mutex, get-or-insert on open,
// removed on Close.
//
// Grounded on the teacher's fileRegistry (pkg/slotcache/lock.go): same
// shape (identity → shared handle, refcounted, removed when the last
// reference goes away) adapted from sync.Map/atomic refcounting to a plain
// mutex-guarded map, since this registry's key is a (string, string) pair
// rather than a (dev, ino) file identity and the update pattern here is
// "one Engine directly," not "a shared lock-state struct fronting many
// otherwise-independent handles."
type registryKey struct {
	rootDir string
	id      string
}

type engineRegistry struct {
	mu      sync.Mutex
	engines map[registryKey]*Engine
}

var globalRegistry = &engineRegistry{
	engines: make(map[registryKey]*Engine),
}

// getOrOpen returns the existing engine for (rootDir, id) if one is
// already open in this process, otherwise calls openFn to create one and
// registers it. openFn is invoked with the registry lock held, matching
// spec.md's "handle creation is get-or-insert" under the same global
// mutex that guards lookups.
func (r *engineRegistry) getOrOpen(rootDir, id string, openFn func() (*Engine, error)) (*Engine, error) {
	key := registryKey{rootDir: rootDir, id: id}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.engines[key]; ok {
		return e, nil
	}

	e, err := openFn()
	if err != nil {
		return nil, err
	}

	e.registryKey = key
	r.engines[key] = e

	return e, nil
}

// isOpen reports whether (rootDir, id) already has a live handle in this
// process, consulted by RestoreFromDirectory to refuse overwriting files
// a running handle holds an mmap against.
func (r *engineRegistry) isOpen(rootDir, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.engines[registryKey{rootDir: rootDir, id: id}]
	return ok
}

// remove drops an engine from the registry, called from Engine.Close.
func (r *engineRegistry) remove(key registryKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.engines, key)
}
