// Package atom interns block identifiers so they compare by identity.
package atom

import (
	"runtime"
	"sync"
	"weak"

	"github.com/zeebo/xxh3"
)

// AirName is the block id of empty space.
const AirName = "core::air"

const shardCount = 64

type data struct {
	s    string
	hash uint64
}

// Atom is an interned string. Two atoms built from equal content by the same
// Interner share one allocation, so == is the equality test.
type Atom struct {
	p *data
}

func (a Atom) String() string {
	if a.p == nil {
		return ""
	}
	return a.p.s
}

// Hash is the xxh3 hash of the content, stable across processes.
func (a Atom) Hash() uint64 {
	if a.p == nil {
		return 0
	}
	return a.p.hash
}

func (a Atom) IsZero() bool { return a.p == nil }

type shard struct {
	mu      sync.Mutex
	entries map[uint64][]weak.Pointer[data]
	live    int
}

// Interner is the process-wide string table. Construct it once at startup and
// pass it to every component that builds block ids; it stays valid for the
// whole run.
type Interner struct {
	shards   [shardCount]shard
	perShard int
	air      Atom // pinned
}

func New(capacity int) *Interner {
	if capacity <= 0 {
		capacity = 1 << 16
	}
	in := &Interner{perShard: max(capacity/shardCount, 1)}
	for i := range in.shards {
		in.shards[i].entries = make(map[uint64][]weak.Pointer[data])
	}
	in.air = in.Intern(AirName)
	return in
}

func (in *Interner) Air() Atom { return in.air }

// Intern returns the canonical atom for s.
func (in *Interner) Intern(s string) Atom {
	h := xxh3.HashString(s)
	sh := &in.shards[h%shardCount]

	sh.mu.Lock()
	defer sh.mu.Unlock()

	for _, wp := range sh.entries[h] {
		if p := wp.Value(); p != nil && p.s == s {
			return Atom{p: p}
		}
	}

	if sh.live >= in.perShard {
		sh.sweepLocked()
	}

	p := &data{s: s, hash: h}
	sh.entries[h] = append(sh.entries[h], weak.Make(p))
	sh.live++
	runtime.AddCleanup(p, func(key uint64) { sh.purge(key) }, h)
	return Atom{p: p}
}

// Len reports the number of index slots, including dead ones not yet purged.
func (in *Interner) Len() int {
	n := 0
	for i := range in.shards {
		sh := &in.shards[i]
		sh.mu.Lock()
		n += sh.live
		sh.mu.Unlock()
	}
	return n
}

// Sweep drops index slots whose atom has been collected.
func (in *Interner) Sweep() int {
	n := 0
	for i := range in.shards {
		sh := &in.shards[i]
		sh.mu.Lock()
		n += sh.sweepLocked()
		sh.mu.Unlock()
	}
	return n
}

func (sh *shard) purge(key uint64) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.compactLocked(key)
}

func (sh *shard) sweepLocked() int {
	n := 0
	for key := range sh.entries {
		n += sh.compactLocked(key)
	}
	return n
}

func (sh *shard) compactLocked(key uint64) int {
	bucket := sh.entries[key]
	kept := bucket[:0]
	for _, wp := range bucket {
		if wp.Value() != nil {
			kept = append(kept, wp)
		}
	}
	removed := len(bucket) - len(kept)
	sh.live -= removed
	if len(kept) == 0 {
		delete(sh.entries, key)
	} else {
		clear(bucket[len(kept):])
		sh.entries[key] = kept
	}
	return removed
}
