// Package identity maintains the local cache of known card identifiers.
//
// The cache maps an identifier to a display name plus registration flag and
// tap statistics. It is created at boot from its persisted file, mutated by
// registration events pushed from the remote store and by tap recording, and
// only ever emptied by explicit administrative clear.
//
// Remote updates arrive on an unrelated call stack, so they are not applied
// directly: they land in a bounded Inbox that the control loop drains once
// per iteration.
package identity

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/taptrack/taptrack/internal/storage"
)

// Entry is the cached information for one identifier.
type Entry struct {
	Name       string `json:"name"`
	Registered bool   `json:"isRegistered"`
	LastSeen   int64  `json:"lastSeen"` // monotonic millis of last accepted tap
	TapCount   int    `json:"tapCount"`
}

// Cache is the identifier lookup table. Read-mostly; touched only by the
// control loop, so it needs no locking. Mutations set a dirty flag and are
// flushed by SaveIfDirty so one loop iteration persists at most once.
type Cache struct {
	path    string
	entries map[string]Entry
	dirty   bool
	logger  *slog.Logger
}

// Open loads the cache from its backing file, starting empty when no file
// exists.
func Open(path string, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		path:    path,
		entries: make(map[string]Entry),
		logger:  logger,
	}

	loaded := make(map[string]Entry)
	ok, err := storage.LoadJSON(path, &loaded)
	if err != nil {
		return nil, fmt.Errorf("open identity cache: %w", err)
	}
	if ok {
		for uid, e := range loaded {
			c.entries[normalize(uid)] = e
		}
		c.logger.Info("loaded identity cache", "users", len(c.entries))
	}
	return c, nil
}

// Register adds or updates an identifier. Existing tap statistics are
// preserved on update.
func (c *Cache) Register(uid, name string) {
	uid = normalize(uid)

	e, exists := c.entries[uid]
	e.Name = name
	e.Registered = true
	if !exists {
		e.LastSeen = 0
		e.TapCount = 0
	}
	c.entries[uid] = e
	c.dirty = true

	c.logger.Info("registered identity", "uid", uid, "name", name)
}

// Unregister removes an identifier.
func (c *Cache) Unregister(uid string) {
	uid = normalize(uid)
	if _, ok := c.entries[uid]; ok {
		delete(c.entries, uid)
		c.dirty = true
		c.logger.Info("unregistered identity", "uid", uid)
	}
}

// IsRegistered reports whether uid is a known, registered identifier.
func (c *Cache) IsRegistered(uid string) bool {
	e, ok := c.entries[normalize(uid)]
	return ok && e.Registered
}

// Name returns the display name for uid, empty when unknown.
func (c *Cache) Name(uid string) string {
	e, ok := c.entries[normalize(uid)]
	if !ok || !e.Registered {
		return ""
	}
	return e.Name
}

// Lookup returns the full entry for uid.
func (c *Cache) Lookup(uid string) (Entry, bool) {
	e, ok := c.entries[normalize(uid)]
	return e, ok
}

// RecordTap updates the tap statistics for a known identifier.
func (c *Cache) RecordTap(uid string, nowMillis int64) {
	uid = normalize(uid)
	if e, ok := c.entries[uid]; ok {
		e.LastSeen = nowMillis
		e.TapCount++
		c.entries[uid] = e
		c.dirty = true
	}
}

// Len returns the number of cached identifiers.
func (c *Cache) Len() int { return len(c.entries) }

// Identifiers returns all cached identifiers in sorted order.
func (c *Cache) Identifiers() []string {
	out := make([]string, 0, len(c.entries))
	for uid := range c.entries {
		out = append(out, uid)
	}
	sort.Strings(out)
	return out
}

// Dirty reports whether the cache has unpersisted changes.
func (c *Cache) Dirty() bool { return c.dirty }

// SaveIfDirty persists the cache when it has unpersisted changes.
func (c *Cache) SaveIfDirty() error {
	if !c.dirty {
		return nil
	}
	if err := storage.SaveJSON(c.path, c.entries); err != nil {
		return fmt.Errorf("persist identity cache: %w", err)
	}
	c.dirty = false
	return nil
}

// Clear empties the cache and removes the backing file. Administrative
// action only.
func (c *Cache) Clear() error {
	c.entries = make(map[string]Entry)
	c.dirty = false
	if err := storage.Remove(c.path); err != nil {
		return fmt.Errorf("clear identity cache: %w", err)
	}
	c.logger.Info("identity cache cleared")
	return nil
}

// normalize upper-cases identifiers at every cache boundary; the reader
// reports uppercase hex but persisted files and remote updates may not.
func normalize(uid string) string {
	return strings.ToUpper(uid)
}
