package platform

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Provider bundles the backends a driver exposes for one open document.
type Provider struct {
	Driver        string
	Target        string
	Document      Document
	Screenshotter Screenshotter // nil when the driver cannot capture the page

	// CloseFunc releases the browser or file behind the document.
	CloseFunc func() error
}

// Close releases the provider's resources. It is safe to call on a nil Provider.
func (p *Provider) Close() error {
	if p == nil || p.CloseFunc == nil {
		return nil
	}
	return p.CloseFunc()
}

// OpenFunc opens a document for a driver.
type OpenFunc func(ctx context.Context, opts OpenOptions) (*Provider, error)

var (
	driversMu sync.RWMutex
	drivers   = map[string]OpenFunc{}
)

// Register makes a driver available by name. Driver packages call it from init().
// See internal/platform/htmldoc/driver.go for the static HTML registration.
func Register(name string, open OpenFunc) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if open == nil {
		panic("platform: Register open func is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("platform: Register called twice for driver " + name)
	}
	drivers[name] = open
}

// Drivers returns the sorted names of the registered drivers.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open opens a document with the named driver.
func Open(ctx context.Context, driver string, opts OpenOptions) (*Provider, error) {
	driversMu.RLock()
	open, ok := drivers[driver]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown driver %q (available: %v)", driver, Drivers())
	}
	p, err := open(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if p.Driver == "" {
		p.Driver = driver
	}
	if p.Target == "" {
		p.Target = opts.Target()
	}
	return p, nil
}
