// Package entity memoizes entity-reference classifications for one
// processing session. Keys are normalized case- and whitespace-insensitive
// exact terms; a hit bypasses the classifier entirely. The cache is safe
// for concurrent chapter workers, and snapshots let a caller persist it
// across sessions.
package entity

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/text/unicode/norm"

	"github.com/mtl-tools/mtlint/internal/lint"
)

// Normalize folds a detected term into its cache key: Unicode NFC,
// trimmed, inner whitespace collapsed, lower-cased. Matching is exact
// after folding, never fuzzy.
func Normalize(term string) string {
	folded := norm.NFC.String(strings.TrimSpace(term))
	return strings.ToLower(strings.Join(strings.Fields(folded), " "))
}

// Stats counts cache traffic for one session.
type Stats struct {
	Hits   int
	Misses int
	Stores int
}

// Cache is a session-scoped entity-reference cache. A miss followed by a
// classifier call followed by a store is safe to race; last write wins.
type Cache struct {
	mu      sync.Mutex
	entries map[string]lint.EntityReference
	stats   Stats
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]lint.EntityReference)}
}

// Lookup returns the cached reference for a term, if present.
func (c *Cache) Lookup(term string) (lint.EntityReference, bool) {
	key := Normalize(term)
	c.mu.Lock()
	defer c.mu.Unlock()
	ref, ok := c.entries[key]
	if ok {
		c.stats.Hits++
	} else {
		c.stats.Misses++
	}
	return ref, ok
}

// Store records a classification under the term's normalized key.
func (c *Cache) Store(term string, ref lint.EntityReference) {
	key := Normalize(term)
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = ref
	c.stats.Stores++
}

// Len returns the number of cached terms.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a copy of the session counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Entry pairs a normalized key with its cached reference.
type Entry struct {
	Key string
	Ref lint.EntityReference
}

// Snapshot returns the cache contents sorted by key.
func (c *Cache) Snapshot() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := make([]Entry, 0, len(c.entries))
	for key, ref := range c.entries {
		entries = append(entries, Entry{Key: key, Ref: ref})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries
}

const snapshotVersion = 1

type snapshotFile struct {
	Version int             `msgpack:"version"`
	Entries []snapshotEntry `msgpack:"entries"`
}

type snapshotEntry struct {
	Key          string  `msgpack:"key"`
	Term         string  `msgpack:"term"`
	Canonical    string  `msgpack:"canonical"`
	Confidence   float64 `msgpack:"confidence"`
	Type         string  `msgpack:"type"`
	Obfuscated   bool    `msgpack:"obfuscated"`
	Verification string  `msgpack:"verification"`
}

// Export writes a snapshot of the cache.
func (c *Cache) Export(w io.Writer) error {
	snap := snapshotFile{Version: snapshotVersion}
	for _, e := range c.Snapshot() {
		snap.Entries = append(snap.Entries, snapshotEntry{
			Key:          e.Key,
			Term:         e.Ref.Term,
			Canonical:    e.Ref.Canonical,
			Confidence:   e.Ref.Confidence,
			Type:         string(e.Ref.Type),
			Obfuscated:   e.Ref.Obfuscated,
			Verification: string(e.Ref.Verification),
		})
	}
	if err := msgpack.NewEncoder(w).Encode(&snap); err != nil {
		return fmt.Errorf("encode cache snapshot: %w", err)
	}
	return nil
}

// Import merges a snapshot into the cache. Imported entries overwrite
// existing keys.
func (c *Cache) Import(r io.Reader) error {
	var snap snapshotFile
	if err := msgpack.NewDecoder(r).Decode(&snap); err != nil {
		return fmt.Errorf("decode cache snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("unsupported cache snapshot version %d", snap.Version)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range snap.Entries {
		key := e.Key
		if key == "" {
			key = Normalize(e.Term)
		}
		if key == "" {
			continue
		}
		c.entries[key] = lint.EntityReference{
			Term:         e.Term,
			Canonical:    e.Canonical,
			Confidence:   e.Confidence,
			Type:         lint.EntityType(e.Type),
			Obfuscated:   e.Obfuscated,
			Verification: lint.VerificationSource(e.Verification),
		}
	}
	return nil
}
