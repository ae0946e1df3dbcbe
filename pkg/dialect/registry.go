package dialect

import (
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"
)

// ErrDialectRequired is returned when a dialect is required but not provided.
var ErrDialectRequired = errors.New("dialect is required")

var (
	mu     sync.RWMutex
	byName = make(map[string]*Dialect)
)

// Register adds d under its lowercased name. Warehouse dialect packages call
// it from init() so statements can be planned without loading a driver.
func Register(d *Dialect) {
	mu.Lock()
	defer mu.Unlock()
	byName[strings.ToLower(d.Name)] = d
}

// Get returns the dialect registered for the warehouse type name.
func Get(name string) (*Dialect, bool) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := byName[strings.ToLower(name)]
	return d, ok
}

// List returns the registered dialect names, sorted.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()
	return slices.Sorted(maps.Keys(byName))
}
