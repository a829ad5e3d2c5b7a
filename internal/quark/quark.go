// Package quark implements the process-wide identifier pool (interned
// string handles). In go-pan the group registry interns group names
// with it. Adapted from the sharded, mutex-guarded
// cache pattern in go-pugleaf's internal/history package, simplified to a
// single append-only table since quarks never need eviction.
package quark

import (
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Quark is a stable, comparable handle for an interned string. The zero
// value is reserved and never returned by Intern.
type Quark uint32

// Pool is a process-wide string interning table. A Pool never shrinks:
// long-lived programs tolerate this because group and author names
// saturate quickly (see spec.md §4.1).
type Pool struct {
	mux     sync.RWMutex
	byValue map[string]Quark
	byQuark []string // index 0 is unused so the zero Quark stays invalid

	// collator provides the alphabetical ordering used for user-facing
	// group listings; identity ordering (by handle) is used everywhere
	// else because any total order is sufficient there.
	collator *collate.Collator
}

// NewPool creates an empty identifier pool.
func NewPool() *Pool {
	return &Pool{
		byValue:  make(map[string]Quark, 1024),
		byQuark:  []string{""}, // reserve index 0
		collator: collate.New(language.Und),
	}
}

// Intern returns the stable handle for s, creating one if this is the
// first time s has been seen. Intern is safe for concurrent use.
func (p *Pool) Intern(s string) Quark {
	p.mux.RLock()
	if q, ok := p.byValue[s]; ok {
		p.mux.RUnlock()
		return q
	}
	p.mux.RUnlock()

	p.mux.Lock()
	defer p.mux.Unlock()
	// Re-check under the write lock: another goroutine may have interned
	// the same string between the RUnlock above and this Lock.
	if q, ok := p.byValue[s]; ok {
		return q
	}
	q := Quark(len(p.byQuark))
	p.byQuark = append(p.byQuark, s)
	p.byValue[s] = q
	return q
}

// String returns the source string for q, or "" if q is not a handle
// issued by this pool (including the zero Quark).
func (p *Pool) String(q Quark) string {
	p.mux.RLock()
	defer p.mux.RUnlock()
	if int(q) <= 0 || int(q) >= len(p.byQuark) {
		return ""
	}
	return p.byQuark[q]
}

// Lookup returns the handle for s without interning it.
func (p *Pool) Lookup(s string) (Quark, bool) {
	p.mux.RLock()
	defer p.mux.RUnlock()
	q, ok := p.byValue[s]
	return q, ok
}

// Len reports how many distinct strings have been interned.
func (p *Pool) Len() int {
	p.mux.RLock()
	defer p.mux.RUnlock()
	return len(p.byQuark) - 1
}

// Less provides the identity ordering: any total order over handles,
// cheap to compute, suitable for use as a map/set key order. It carries
// no meaning about the strings' contents.
func Less(a, b Quark) bool { return a < b }

// AlphaLess provides the alphabetical ordering used for user-facing
// group lists: it compares the underlying strings' contents via a
// locale-aware collator rather than interned identity, so "Z" sorts
// after "a" the way a reader expects.
func (p *Pool) AlphaLess(a, b Quark) bool {
	if a == b {
		return false
	}
	sa, sb := p.String(a), p.String(b)
	return p.collator.CompareString(sa, sb) < 0
}
