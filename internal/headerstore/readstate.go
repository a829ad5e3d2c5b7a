package headerstore

import "github.com/go-while/go-pan/internal/readrange"

// isRead reports whether an article counts as read: per Design Notes
// §9 ("read wins"), an article is read if marked read on at least one
// server that carries it — unread counts can therefore over-count
// across servers unless the same mark is applied everywhere the
// article is carried. This is a deliberate carry-over of the source's
// is_read semantics, not a bug.
func (g *GroupHeaders) isRead(a *Article) bool {
	for _, x := range a.Xref {
		if x.Group != g.Group {
			continue
		}
		if set, ok := g.readByServer[x.Server]; ok && set.IsMarked(x.Number) {
			return true
		}
	}
	return false
}

// UnreadCount returns total_count - the number of articles currently
// read (spec.md §8 invariant 3: unread_count <= article_count).
func (g *GroupHeaders) UnreadCount() int {
	g.mux.Lock()
	defer g.mux.Unlock()
	unread := 0
	for _, idx := range g.nodes {
		n := g.at(idx)
		if !n.isGhost() && !g.isRead(&g.articles[n.articleIdx]) {
			unread++
		}
	}
	return unread
}

// MarkRead implements mark_read(articles, read?) from spec.md §4.6.4:
// groups the input by each article's xref entries belonging to this
// group, marks the per-(group,server) read-range set, tallies changed
// articles, and emits group-counts-changed / articles-changed
// (refilter=false).
func (g *GroupHeaders) MarkRead(mids []string, read bool) int {
	g.mux.Lock()
	defer g.mux.Unlock()

	changed := make([]string, 0, len(mids))
	for _, mid := range mids {
		idx, ok := g.nodes[mid]
		if !ok || g.at(idx).isGhost() {
			continue
		}
		a := &g.articles[g.at(idx).articleIdx]
		before := g.isRead(a)
		for _, x := range a.Xref {
			if x.Group != g.Group {
				continue
			}
			set, ok := g.readByServer[x.Server]
			if !ok {
				set = readrange.New()
				g.readByServer[x.Server] = set
			}
			set.MarkOne(x.Number, read)
		}
		if g.isRead(a) != before {
			changed = append(changed, mid)
		}
	}
	if len(changed) == 0 {
		return 0
	}
	g.dirty = true
	g.bus.Publish(Change{Kind: ChangeCountsChanged, Group: g.Group})
	g.bus.Publish(Change{Kind: ChangeChanged, Group: g.Group, MessageIDs: changed, Refilter: false})
	return len(changed)
}

// ReadRangeFor returns the read-range set for one server (creating one
// if absent), used by the newsrc writer (C9).
func (g *GroupHeaders) ReadRangeFor(server string) *readrange.Set {
	g.mux.Lock()
	defer g.mux.Unlock()
	set, ok := g.readByServer[server]
	if !ok {
		set = readrange.New()
		g.readByServer[server] = set
	}
	return set
}

// LoadReadRange installs a previously persisted read-range set for
// server, used when restoring from newsrc-<server-id> at group load.
func (g *GroupHeaders) LoadReadRange(server string, set *readrange.Set) {
	g.mux.Lock()
	defer g.mux.Unlock()
	g.readByServer[server] = set
}
