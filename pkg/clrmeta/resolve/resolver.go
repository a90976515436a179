package resolve

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/opcode9/clrmeta/pkg/clrmeta/metadata"
)

// Resolver is the pluggable, cached assembly resolver of §4.H:
// Resolve(descriptor) is deterministic and idempotent, backed by a
// descriptor→definition cache that a single-flight guard keeps from
// ever producing two distinct definitions for the same descriptor under
// concurrent calls.
type Resolver struct {
	// SearchDirectories is probed in order by probeSearchDirectories.
	SearchDirectories []string

	mu       sync.Mutex
	cache    map[descriptorKey]*metadata.AssemblyDefinition
	inFlight map[descriptorKey]*sync.Mutex
}

// NewResolver creates a Resolver that probes dirs in the given order.
func NewResolver(searchDirectories ...string) *Resolver {
	return &Resolver{
		SearchDirectories: searchDirectories,
		cache:             make(map[descriptorKey]*metadata.AssemblyDefinition),
		inFlight:          make(map[descriptorKey]*sync.Mutex),
	}
}

// Resolve maps a descriptor to a loaded AssemblyDefinition, consulting
// the cache first and probing SearchDirectories on a miss (§4.H). Two
// successive calls for an equal descriptor return the identical pointer
// (§8's resolver-cache-identity invariant), even if the underlying file
// is deleted between calls — once cached, a hit never touches disk
// again.
func (r *Resolver) Resolve(desc metadata.AssemblyDescriptor) (*metadata.AssemblyDefinition, error) {
	key := keyOf(desc)

	r.mu.Lock()
	if def, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return def, nil
	}
	lock, ok := r.inFlight[key]
	if !ok {
		lock = &sync.Mutex{}
		r.inFlight[key] = lock
	}
	r.mu.Unlock()

	// Single-flight: only one caller resolving a given descriptor does
	// the actual directory probing; the rest wait on lock and then
	// re-check the cache.
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	if def, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return def, nil
	}
	r.mu.Unlock()

	def, err := r.resolveImpl(desc)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, nil
	}

	r.mu.Lock()
	r.cache[key] = def
	delete(r.inFlight, key)
	r.mu.Unlock()
	return def, nil
}

// resolveImpl probes the configured search directories. Subtypes in
// other languages override this; Go idiom is to make probing a field
// the caller sets (SearchDirectories) rather than a subclass hook.
func (r *Resolver) resolveImpl(desc metadata.AssemblyDescriptor) (*metadata.AssemblyDefinition, error) {
	return r.probeSearchDirectories(desc)
}

// probeSearchDirectories iterates SearchDirectories in order, returning
// the first directory's hit (§4.H): for each directory D, try
// D/culture/name.dll, D/culture/name.exe, D/culture/name/name.dll,
// D/culture/name/name.exe in that order (culture omitted from the path
// when empty).
func (r *Resolver) probeSearchDirectories(desc metadata.AssemblyDescriptor) (*metadata.AssemblyDefinition, error) {
	for _, dir := range r.SearchDirectories {
		base := filepath.Join(dir, desc.Name)
		if desc.Culture != "" {
			base = filepath.Join(dir, desc.Culture, desc.Name)
		}

		for _, ext := range []string{".dll", ".exe"} {
			path := base + ext
			if fileExists(path) {
				return metadata.AssemblyFromFile(path)
			}
		}

		folder := base
		for _, ext := range []string{".dll", ".exe"} {
			path := filepath.Join(folder, desc.Name+ext)
			if fileExists(path) {
				return metadata.AssemblyFromFile(path)
			}
		}
	}
	return nil, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
