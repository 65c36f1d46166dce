package grouper

import (
	"sync/atomic"

	"github.com/lotas/tabgrouper/internal/settings"
)

// Cache holds the current settings snapshot. Readers get an immutable
// pointer; every update swaps in a new value, last write wins.
type Cache struct {
	p    atomic.Pointer[settings.Settings]
	load func() (settings.Settings, error)
}

// NewCache returns an empty cache that fills itself with load on first use.
func NewCache(load func() (settings.Settings, error)) *Cache {
	return &Cache{load: load}
}

// Get returns the cached settings, loading them if the cache is empty.
func (c *Cache) Get() (*settings.Settings, error) {
	if s := c.p.Load(); s != nil {
		return s, nil
	}
	if err := c.Refresh(); err != nil {
		return nil, err
	}
	return c.p.Load(), nil
}

// Set replaces the cached settings.
func (c *Cache) Set(s settings.Settings) {
	s = s.Clone()
	c.p.Store(&s)
}

// Refresh reloads the settings through the load function.
func (c *Cache) Refresh() error {
	s, err := c.load()
	if err != nil {
		return err
	}
	c.Set(s)
	return nil
}
