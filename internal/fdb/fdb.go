// Package fdb implements the MAC address forwarding table (CAM).
package fdb

import (
	"bytes"
	"sort"
	"time"

	cache "github.com/patrickmn/go-cache"

	"firestige.xyz/vswitch/internal/core"
)

// Entry is one learned association.
type Entry struct {
	MAC  core.MAC
	Port core.PortID
	// Expires is zero when aging is disabled.
	Expires time.Time
}

// Table maps MAC addresses to the port they were last seen on. It is owned
// by the forwarding loop; methods must not be called from other goroutines.
type Table struct {
	// Do not embed or use type directly to reduce the table's API surface
	c     *cache.Cache
	aging time.Duration
}

// New creates a table. An aging time of 0 keeps entries forever. Expired
// entries stop matching immediately but are only released by Sweep; there is
// no janitor goroutine.
func New(aging time.Duration) *Table {
	if aging < 0 {
		aging = 0
	}
	return &Table{
		c:     cache.New(cache.NoExpiration, 0),
		aging: aging,
	}
}

func key(mac core.MAC) string { return string(mac[:]) }

func (t *Table) ttl() time.Duration {
	if t.aging == 0 {
		return cache.NoExpiration
	}
	return t.aging
}

// Learn records that mac was seen on port, overwriting any previous port.
// It reports whether an existing entry moved to a different port.
func (t *Table) Learn(mac core.MAC, port core.PortID) (moved bool) {
	k := key(mac)
	if obj, ok := t.c.Get(k); ok {
		prev := obj.(core.PortID)
		if prev == port {
			if t.aging > 0 {
				t.c.Set(k, port, t.ttl())
			}
			return false
		}
		moved = true
	}
	t.c.Set(k, port, t.ttl())
	return moved
}

// Lookup returns the port mac was last seen on.
func (t *Table) Lookup(mac core.MAC) (core.PortID, bool) {
	obj, ok := t.c.Get(key(mac))
	if !ok {
		return core.NoPort, false
	}
	return obj.(core.PortID), true
}

// Len returns the number of stored entries, including expired entries that
// have not been swept yet.
func (t *Table) Len() int { return t.c.ItemCount() }

// Entries returns the live entries sorted by MAC.
func (t *Table) Entries() []Entry {
	items := t.c.Items()
	out := make([]Entry, 0, len(items))
	for k, it := range items {
		var e Entry
		copy(e.MAC[:], k)
		e.Port = it.Object.(core.PortID)
		if it.Expiration > 0 {
			e.Expires = time.Unix(0, it.Expiration)
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].MAC[:], out[j].MAC[:]) < 0
	})
	return out
}

// Flush removes every entry and returns how many were removed.
func (t *Table) Flush() int {
	n := t.c.ItemCount()
	t.c.Flush()
	return n
}

// Sweep releases expired entries and returns how many remain.
func (t *Table) Sweep() int {
	if t.aging > 0 {
		t.c.DeleteExpired()
	}
	return t.c.ItemCount()
}

// AgingTime returns the configured aging time, 0 when aging is disabled.
func (t *Table) AgingTime() time.Duration { return t.aging }
