// Package treeview implements the article tree view (C8, spec.md
// §4.8): a client-facing derived, filtered, re-parented tree over a
// group's threading graph. When the group's header store reports added,
// removed, reparented or refiltered articles, the view recomputes
// membership and parents for the whole group and publishes the
// difference; it does not update only the affected nodes.
package treeview

import (
	"github.com/go-while/go-pan/internal/events"
	"github.com/go-while/go-pan/internal/filter"
	"github.com/go-while/go-pan/internal/headerstore"
	"github.com/go-while/go-pan/internal/scorefile"
)

// ShowMode selects how threads are collapsed into the view.
type ShowMode int

const (
	ShowArticles ShowMode = iota
	ShowThreads
	ShowSubthreads
)

// AddedEntry is one node newly present in the view.
type AddedEntry struct {
	MessageID string
	Parent    string // "" = view root
}

// ReparentedEntry is one node whose view-parent moved.
type ReparentedEntry struct {
	MessageID string
	OldParent string
	NewParent string
}

// Diff is the event a View publishes. Clients apply Added, then
// Reparented, then Removed, per spec.md §4.8. Changed lists nodes whose
// membership and parent are unchanged but that should be redrawn (e.g.
// a score or read-state update).
type Diff struct {
	Added      []AddedEntry
	Reparented []ReparentedEntry
	Removed    []string
	Changed    []string
}

func (d Diff) empty() bool {
	return len(d.Added) == 0 && len(d.Reparented) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// ContextFunc resolves the read/self-authorship facts for one article,
// backed by whatever read-range and identity state the caller owns.
type ContextFunc func(messageID string) filter.Context

// View is a derived tree over one group's header store.
type View struct {
	group    *headerstore.GroupHeaders
	criteria *scorefile.Item // filter expression
	rules    *scorefile.Item // separate rules expression (auto-cache/download)
	savePath string
	mode     ShowMode
	cache    filter.ArticleCache
	ctxFn    ContextFunc

	members map[string]bool
	parent  map[string]string // mid -> view-parent ("" = view root)

	bus      *events.Bus[Diff]
	groupSub int
	groupCh  <-chan headerstore.Change
	done     chan struct{}
}

// Options configures a new View.
type Options struct {
	Criteria *scorefile.Item
	Rules    *scorefile.Item
	SavePath string
	Mode     ShowMode
	Cache    filter.ArticleCache
	Context  ContextFunc
}

// New creates a view over group and performs the initial full
// derivation (spec.md §4.8 "Derivation").
func New(group *headerstore.GroupHeaders, opts Options) *View {
	ctxFn := opts.Context
	if ctxFn == nil {
		ctxFn = func(string) filter.Context { return filter.Context{} }
	}
	v := &View{
		group:    group,
		criteria: opts.Criteria,
		rules:    opts.Rules,
		savePath: opts.SavePath,
		mode:     opts.Mode,
		cache:    opts.Cache,
		ctxFn:    ctxFn,
		members:  make(map[string]bool),
		parent:   make(map[string]string),
		bus:      events.NewBus[Diff](),
	}
	v.recomputeFull()
	v.groupSub, v.groupCh = group.Subscribe()
	v.done = make(chan struct{})
	go v.listen()
	return v
}

// Subscribe registers a listener for this view's diff events.
func (v *View) Subscribe() (int, <-chan Diff) { return v.bus.Subscribe() }

// Unsubscribe removes a listener.
func (v *View) Unsubscribe(id int) { v.bus.Unsubscribe(id) }

// Close stops listening to the underlying group.
func (v *View) Close() {
	v.group.Unsubscribe(v.groupSub)
	close(v.done)
}

// Members returns the current view's message-ids, unordered.
func (v *View) Members() []string {
	out := make([]string, 0, len(v.members))
	for mid := range v.members {
		out = append(out, mid)
	}
	return out
}

// ParentOf returns the view-parent of mid ("" for the view root or a
// non-member).
func (v *View) ParentOf(mid string) string { return v.parent[mid] }

func (v *View) listen() {
	for {
		select {
		case <-v.done:
			return
		case ch, ok := <-v.groupCh:
			if !ok {
				return
			}
			v.handleChange(ch)
		}
	}
}

func (v *View) handleChange(ch headerstore.Change) {
	switch ch.Kind {
	case headerstore.ChangeAdded:
		diff := v.recomputeFull()
		if !diff.empty() {
			v.bus.Publish(diff)
		}
	case headerstore.ChangeChanged:
		if ch.Refilter {
			diff := v.recomputeFull()
			if !diff.empty() {
				v.bus.Publish(diff)
			}
		} else if len(ch.MessageIDs) > 0 {
			v.bus.Publish(Diff{Changed: ch.MessageIDs})
		}
	case headerstore.ChangeRemoved, headerstore.ChangeReparented:
		diff := v.recomputeFull()
		if !diff.empty() {
			v.bus.Publish(diff)
		}
	}
}

// passes reports whether an article passes the view's filter
// expression (spec.md §4.8 uses the same criterion-tree evaluator as
// C7).
func (v *View) passes(mid string) bool {
	a, ok := v.group.Article(mid)
	if !ok {
		return false
	}
	return filter.TestArticle(v.criteria, a, v.cache, v.ctxFn(mid))
}

// computeMembership implements the derivation rule in spec.md §4.8.
func (v *View) computeMembership() map[string]bool {
	passing := make(map[string]bool)
	for _, mid := range v.group.AllArticleIDs() {
		if v.passes(mid) {
			passing[mid] = true
		}
	}

	base := make(map[string]bool)
	if v.mode == ShowThreads {
		for mid := range passing {
			base[v.group.ThreadRoot(mid)] = true
		}
	} else {
		for mid := range passing {
			base[mid] = true
		}
	}

	members := make(map[string]bool, len(base))
	for mid := range base {
		members[mid] = true
	}

	if v.mode == ShowThreads || v.mode == ShowSubthreads {
		for root := range base {
			for _, d := range v.group.Descendants(root) {
				if members[d] {
					continue
				}
				a, ok := v.group.Article(d)
				if !ok {
					continue // ghost node, no article to keep
				}
				if a.Score > -9999 || passing[d] {
					members[d] = true
				}
			}
		}
	}
	return members
}

// computeParents re-parents every kept node to its nearest kept
// ancestor, or the view root ("") if none (spec.md §4.8).
func (v *View) computeParents(members map[string]bool) map[string]string {
	parent := make(map[string]string, len(members))
	for mid := range members {
		cur := mid
		found := ""
		for {
			p, ok := v.group.ParentOf(cur)
			if !ok {
				break
			}
			if members[p] {
				found = p
				break
			}
			cur = p
		}
		parent[mid] = found
	}
	return parent
}

// recomputeFull re-derives membership and parenting from scratch and
// diffs against the view's previous state.
func (v *View) recomputeFull() Diff {
	newMembers := v.computeMembership()
	newParent := v.computeParents(newMembers)

	var diff Diff
	for mid := range newMembers {
		if !v.members[mid] {
			diff.Added = append(diff.Added, AddedEntry{MessageID: mid, Parent: newParent[mid]})
			continue
		}
		if v.parent[mid] != newParent[mid] {
			diff.Reparented = append(diff.Reparented, ReparentedEntry{
				MessageID: mid, OldParent: v.parent[mid], NewParent: newParent[mid],
			})
		}
	}
	for mid := range v.members {
		if !newMembers[mid] {
			diff.Removed = append(diff.Removed, mid)
		}
	}

	v.members = newMembers
	v.parent = newParent
	return diff
}
