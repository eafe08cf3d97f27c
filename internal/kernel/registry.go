package kernel

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Loader constructs a library. It runs at most once per successful import.
type Loader func() (Library, error)

var (
	mu      sync.RWMutex
	loaders = map[string]Loader{}
	loaded  = map[string]Library{}
	group   singleflight.Group
)

// Register makes a library available by name. It panics on an empty name, a
// nil loader, or a duplicate registration.
func Register(name string, load Loader) {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		panic("kernel: Register with empty name")
	}
	if load == nil {
		panic("kernel: Register loader is nil")
	}
	mu.Lock()
	defer mu.Unlock()
	if _, dup := loaders[name]; dup {
		panic("kernel: Register called twice for " + name)
	}
	loaders[name] = load
}

// Libraries returns the registered library names, sorted.
func Libraries() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(loaders))
	for name := range loaders {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Import returns the named library, loading it on first use. Concurrent first
// imports share one load; failed loads are not cached. Every failure wraps
// ErrUnavailable.
func Import(name string) (Library, error) {
	name = strings.TrimSpace(strings.ToLower(name))

	mu.RLock()
	lib, ok := loaded[name]
	load := loaders[name]
	mu.RUnlock()
	if ok {
		return lib, nil
	}
	if load == nil {
		return nil, fmt.Errorf("%w: no kernel registered as %q (available: %s)",
			ErrUnavailable, name, strings.Join(Libraries(), ", "))
	}

	v, err, _ := group.Do(name, func() (any, error) {
		mu.RLock()
		lib, ok := loaded[name]
		mu.RUnlock()
		if ok {
			return lib, nil
		}
		lib, err := safeLoad(load)
		if err != nil {
			return nil, err
		}
		if mod := lib.Module(); mod != nil {
			mod.Freeze()
		}
		mu.Lock()
		loaded[name] = lib
		mu.Unlock()
		return lib, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: import %q: %v", ErrUnavailable, name, err)
	}
	return v.(Library), nil
}

func safeLoad(load Loader) (lib Library, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("loader panicked: %v", rec)
		}
	}()
	lib, err = load()
	if err == nil && lib == nil {
		err = fmt.Errorf("loader returned no library")
	}
	return lib, err
}
