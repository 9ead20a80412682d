package cache

import (
	gocache "github.com/patrickmn/go-cache"
)

// Namespace is one cache partition held in memory for the lifetime of a run.
// Entries never expire; persistence happens wholesale through Load and Save.
type Namespace struct {
	entries *gocache.Cache
}

// NewNamespace creates an empty namespace
func NewNamespace() *Namespace {
	return &Namespace{
		entries: gocache.New(gocache.NoExpiration, 0),
	}
}

// Get retrieves the entry for a key. The second return distinguishes a miss
// (never looked up) from a present entry whose lookup failed.
func (n *Namespace) Get(key string) (Entry, bool) {
	v, found := n.entries.Get(key)
	if !found {
		return Entry{}, false
	}
	return v.(Entry), true
}

// Put stores an entry, overwriting any previous value for the key
func (n *Namespace) Put(key string, e Entry) {
	n.entries.Set(key, e, gocache.NoExpiration)
}

// Len returns the number of entries
func (n *Namespace) Len() int {
	return n.entries.ItemCount()
}

// Snapshot copies the current entry set for serialization
func (n *Namespace) Snapshot() map[string]Entry {
	items := n.entries.Items()
	out := make(map[string]Entry, len(items))
	for key, item := range items {
		out[key] = item.Object.(Entry)
	}
	return out
}

// fill loads a decoded entry set into the namespace
func (n *Namespace) fill(entries map[string]Entry) {
	for key, e := range entries {
		n.Put(key, e)
	}
}
