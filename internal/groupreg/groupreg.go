// Package groupreg implements the group registry (C5, spec.md §3
// "Group" and §4.5): sorted-unique subscribed/unsubscribed sets,
// moderated/no-post sets, descriptions, and cached per-group counts.
// Grounded on go-pugleaf's sorted-vector active-group merge pattern in
// internal/database/db_active.go, generalized to spec.md's multi-set
// model and expressed over quark handles for O(1) identity comparisons.
package groupreg

import (
	"sort"

	"github.com/go-while/go-pan/internal/events"
	"github.com/go-while/go-pan/internal/quark"
)

// Info describes one group entry as seen freshly listed on a server,
// the input shape for AddGroups.
type Info struct {
	Name        string
	Moderated   bool
	NoPost      bool
	Description string
}

// Counts is the cached (unread, total) pair the UI shows per group.
type Counts struct {
	Unread int
	Total  int
}

// EventKind distinguishes the events a Registry publishes.
type EventKind int

const (
	EventGrouplistRebuilt EventKind = iota
	EventGroupCountsChanged
	EventGroupSubscriptionChanged
	EventGroupRead
)

// Event is published on every registry-visible change.
type Event struct {
	Kind  EventKind
	Group string
}

// Registry owns the known-group state across all servers.
type Registry struct {
	pool *quark.Pool

	subscribed   []quark.Quark // sorted alphabetically, unique
	unsubscribed []quark.Quark

	moderated   map[quark.Quark]bool
	noPost      map[quark.Quark]bool
	descriptions map[quark.Quark]string
	counts      map[quark.Quark]Counts

	bus *events.Bus[Event]
}

// New creates an empty group registry over pool.
func New(pool *quark.Pool) *Registry {
	return &Registry{
		pool:         pool,
		moderated:    make(map[quark.Quark]bool),
		noPost:       make(map[quark.Quark]bool),
		descriptions: make(map[quark.Quark]string),
		counts:       make(map[quark.Quark]Counts),
		bus:          events.NewBus[Event](),
	}
}

// Subscribe registers a listener for registry events.
func (r *Registry) Subscribe() (int, <-chan Event) { return r.bus.Subscribe() }

// Unsubscribe removes a listener.
func (r *Registry) Unsubscribe(id int) { r.bus.Unsubscribe(id) }

// AddGroups merges a server's freshly listed groups into the
// unsubscribed set (any group not already subscribed becomes
// unsubscribed by default), updates the moderated/no-post sets, and
// keeps descriptions for entries whose description is non-empty and
// not "?" (spec.md §4.5). Each group is added to the sorted set by a
// binary-search insertion that skips groups already present.
func (r *Registry) AddGroups(infos []Info) {
	for _, info := range infos {
		q := r.pool.Intern(info.Name)
		if !r.inSet(r.subscribed, q) {
			r.unsubscribed = insertSorted(r.pool, r.unsubscribed, q)
		}
		if info.Moderated {
			r.moderated[q] = true
		}
		if info.NoPost {
			r.noPost[q] = true
		}
		if info.Description != "" && info.Description != "?" {
			r.descriptions[q] = info.Description
		}
	}
	r.bus.Publish(Event{Kind: EventGrouplistRebuilt})
}

// inSet reports whether q is present in a sorted-unique slice.
func (r *Registry) inSet(set []quark.Quark, q quark.Quark) bool {
	i := sort.Search(len(set), func(i int) bool { return !r.pool.AlphaLess(set[i], q) })
	return i < len(set) && set[i] == q
}

// insertSorted inserts q into a sorted-unique slice, no-op if present.
func insertSorted(pool *quark.Pool, set []quark.Quark, q quark.Quark) []quark.Quark {
	i := sort.Search(len(set), func(i int) bool { return !pool.AlphaLess(set[i], q) })
	if i < len(set) && set[i] == q {
		return set // already present
	}
	set = append(set, quark.Quark(0))
	copy(set[i+1:], set[i:])
	set[i] = q
	return set
}

// removeSorted deletes q from a sorted-unique slice if present.
func removeSorted(pool *quark.Pool, set []quark.Quark, q quark.Quark) []quark.Quark {
	i := sort.Search(len(set), func(i int) bool { return !pool.AlphaLess(set[i], q) })
	if i < len(set) && set[i] == q {
		return append(set[:i], set[i+1:]...)
	}
	return set
}

// SetSubscribed moves a group between the subscribed and unsubscribed
// sets. A group is always in exactly one of the two (spec.md §3
// invariant).
func (r *Registry) SetSubscribed(name string, subscribe bool) {
	q := r.pool.Intern(name)
	if subscribe {
		r.unsubscribed = removeSorted(r.pool, r.unsubscribed, q)
		r.subscribed = insertSorted(r.pool, r.subscribed, q)
	} else {
		r.subscribed = removeSorted(r.pool, r.subscribed, q)
		r.unsubscribed = insertSorted(r.pool, r.unsubscribed, q)
	}
	r.bus.Publish(Event{Kind: EventGroupSubscriptionChanged, Group: name})
}

// IsSubscribed reports whether name is currently subscribed.
func (r *Registry) IsSubscribed(name string) bool {
	q := r.pool.Intern(name)
	return r.inSet(r.subscribed, q)
}

// Subscribed returns the subscribed groups, alphabetically sorted.
func (r *Registry) Subscribed() []string { return r.names(r.subscribed) }

// Unsubscribed returns the unsubscribed groups, alphabetically sorted.
func (r *Registry) Unsubscribed() []string { return r.names(r.unsubscribed) }

func (r *Registry) names(set []quark.Quark) []string {
	out := make([]string, len(set))
	for i, q := range set {
		out[i] = r.pool.String(q)
	}
	return out
}

// IsModerated reports whether name is flagged moderated.
func (r *Registry) IsModerated(name string) bool {
	return r.moderated[r.pool.Intern(name)]
}

// IsNoPost reports whether name is flagged no-post.
func (r *Registry) IsNoPost(name string) bool {
	return r.noPost[r.pool.Intern(name)]
}

// Description returns the cached description for name, if any.
func (r *Registry) Description(name string) (string, bool) {
	d, ok := r.descriptions[r.pool.Intern(name)]
	return d, ok
}

// UpdateCounts sets the cached (unread, total) pair for name and
// publishes group-counts-changed.
func (r *Registry) UpdateCounts(name string, unread, total int) {
	q := r.pool.Intern(name)
	r.counts[q] = Counts{Unread: unread, Total: total}
	r.bus.Publish(Event{Kind: EventGroupCountsChanged, Group: name})
}

// GetCounts returns the cached counts for name.
func (r *Registry) GetCounts(name string) Counts {
	return r.counts[r.pool.Intern(name)]
}

// MarkGroupRead publishes group-read for name (counts themselves are
// updated by the header store via UpdateCounts).
func (r *Registry) MarkGroupRead(name string) {
	r.bus.Publish(Event{Kind: EventGroupRead, Group: name})
}

// RemoveServerGroups drops counts/moderation/descriptions bookkeeping
// for groups that no longer belong to any known server (invoked by the
// caller after serverreg.DeleteServer, per spec.md §3's server/group
// invariant: "every group referenced by any article's xref list belongs
// to at least one server's group set, or the reference is dropped").
// Groups still present on another server are left untouched; callers
// pass only the subset that truly became orphaned.
func (r *Registry) RemoveServerGroups(orphaned []string) {
	for _, name := range orphaned {
		q := r.pool.Intern(name)
		r.subscribed = removeSorted(r.pool, r.subscribed, q)
		r.unsubscribed = removeSorted(r.pool, r.unsubscribed, q)
		delete(r.moderated, q)
		delete(r.noPost, q)
		delete(r.descriptions, q)
		delete(r.counts, q)
	}
	r.bus.Publish(Event{Kind: EventGrouplistRebuilt})
}
