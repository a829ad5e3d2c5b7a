package headerstore

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-while/go-pan/internal/events"
	"github.com/go-while/go-pan/internal/readrange"
	"github.com/go-while/go-pan/internal/utils"
)

// ChangeKind distinguishes the events a GroupHeaders publishes. Order
// of delivery within one batch is added, then changed, then removed,
// then reparented, matching the causality guarantee in spec.md §5.
type ChangeKind int

const (
	ChangeAdded ChangeKind = iota
	ChangeChanged
	ChangeRemoved
	ChangeReparented
	ChangeCountsChanged
)

// ReparentEntry records one child's move to a new parent.
type ReparentEntry struct {
	MessageID string
	OldParent string // "" means forest root
	NewParent string // "" means forest root
}

// Change is one event published by a GroupHeaders.
type Change struct {
	Kind       ChangeKind
	Group      string
	MessageIDs []string
	Reparented []ReparentEntry
	Refilter   bool
}

// flushInterval is how long xover_add batches unsaved additions before
// emitting added/changed events (spec.md §4.6.1 step 5).
const flushInterval = 10 * time.Second

// GroupHeaders holds one group's threading graph, article arena, and
// batching state. Every exported method takes g's mutex, so it may be
// used from several goroutines.
type GroupHeaders struct {
	mux sync.Mutex

	Group string

	nodes map[string]nodeIdx
	arena []node

	articles []Article // parallel to arena slots with articleIdx >= 0

	refcount int
	dirty    bool

	addedBatch   map[string]bool
	changedBatch map[string]bool
	lastFlush    time.Time

	readByServer map[string]*readrange.Set
	totalCount   int

	bus *events.Bus[Change]
}

// New creates an empty, unreferenced GroupHeaders for group.
func New(group string) *GroupHeaders {
	return &GroupHeaders{
		Group:        group,
		nodes:        make(map[string]nodeIdx),
		addedBatch:   make(map[string]bool),
		changedBatch: make(map[string]bool),
		readByServer: make(map[string]*readrange.Set),
		bus:          events.NewBus[Change](),
		lastFlush:    time.Time{},
	}
}

// Subscribe registers a listener for this group's events.
func (g *GroupHeaders) Subscribe() (int, <-chan Change) { return g.bus.Subscribe() }

// Unsubscribe removes a listener.
func (g *GroupHeaders) Unsubscribe(id int) { g.bus.Unsubscribe(id) }

// Ref increments the reference count, loading the group from a
// provided loader on first use. Callers that need on-disk loading pass
// load; it is invoked only on the 0->1 transition.
func (g *GroupHeaders) Ref(load func(*GroupHeaders) error) error {
	g.mux.Lock()
	defer g.mux.Unlock()
	if g.refcount == 0 && load != nil {
		if err := load(g); err != nil {
			return err
		}
	}
	g.refcount++
	return nil
}

// Unref flushes pending batches, decrements the refcount, and when it
// reaches zero with unsaved changes invokes save (if non-nil). The
// graph and batching state stay in memory.
func (g *GroupHeaders) Unref(save func(*GroupHeaders) error) error {
	g.mux.Lock()
	defer g.mux.Unlock()
	g.flushLocked()
	if g.refcount > 0 {
		g.refcount--
	}
	if g.refcount == 0 && g.dirty && save != nil {
		if err := save(g); err != nil {
			return err
		}
		g.dirty = false
	}
	return nil
}

// Article returns a copy of the article named mid, if present.
func (g *GroupHeaders) Article(mid string) (Article, bool) {
	g.mux.Lock()
	defer g.mux.Unlock()
	idx, ok := g.nodes[mid]
	if !ok || g.at(idx).isGhost() {
		return Article{}, false
	}
	return g.articles[g.at(idx).articleIdx], true
}

// ArticleCount returns the number of non-ghost nodes.
func (g *GroupHeaders) ArticleCount() int {
	g.mux.Lock()
	defer g.mux.Unlock()
	return g.totalCount
}

var partToken = regexp.MustCompile(`[\[(](\d+)\s*/\s*(\d+)[\])]\s*$`)
var imageExt = regexp.MustCompile(`(?i)\.(jpe?g|gif|png)$`)
var replyPrefix = regexp.MustCompile(`(?i)^\s*re\s*[:\[]`)

// multipartInfo holds the outcome of multipart detection (spec.md
// §4.6.1 step 1).
type multipartInfo struct {
	normalizedSubject string
	part              int
	total             int
	binary            bool
}

// detectMultipart normalizes subject and classifies it per the
// heuristics in spec.md §4.6.1. The thresholds (400 lines, the
// binaries|fan|mag|sex group-name heuristic, the 0<lines<100
// reply-prefix override) are carried over from the source verbatim per
// Design Notes §9. The 400-line threshold and the group-name heuristic
// are the package vars LineCountBinaryThreshold and BinaryGroupHint, so
// a caller can override them; the reply-prefix bound is fixed here.
func detectMultipart(group, subject string, lines int) multipartInfo {
	if loc := partToken.FindStringSubmatchIndex(subject); loc != nil {
		k, _ := strconv.Atoi(subject[loc[2]:loc[3]])
		n, _ := strconv.Atoi(subject[loc[4]:loc[5]])
		normalized := subject[:loc[0]] + subject[loc[1]:]
		if k == 0 {
			n = 0
		}
		if k >= 1 && k <= n {
			return multipartInfo{normalizedSubject: strings.TrimSpace(normalized), part: k, total: n, binary: n >= 2}
		}
		return multipartInfo{normalizedSubject: subject, part: 0, total: 0}
	}
	if replyPrefix.MatchString(subject) && lines > 0 && lines < 100 {
		return multipartInfo{normalizedSubject: subject, part: 0, total: 0}
	}
	if lines > LineCountBinaryThreshold && (BinaryGroupHint.MatchString(group) || imageExt.MatchString(subject)) {
		return multipartInfo{normalizedSubject: subject, part: 1, total: 1, binary: true}
	}
	return multipartInfo{normalizedSubject: subject, part: 0, total: 0}
}

// LineCountBinaryThreshold and BinaryGroupHint are the configurable
// heuristic thresholds from spec.md §4.6.1 / Design Notes §9.
var (
	LineCountBinaryThreshold = 400
	BinaryGroupHint          = regexp.MustCompile(`(?i)binaries|fan|mag|sex`)
)

// XoverEntry is the raw overview-line input to XoverAdd.
type XoverEntry struct {
	Server     string
	Group      string
	Number     int64
	Subject    string
	Author     string
	PostedTime time.Time
	MessageID  string
	References []string
	Bytes      int
	Lines      int
}

// NewXoverEntry builds an XoverEntry from raw overview-line fields,
// splitting the raw References header text the way an XOVER/HDR
// response presents it. Grounded on go-pugleaf's
// utils.ParseReferences, used the same way at the NNTP-client/tree-cache
// ingest boundary there.
func NewXoverEntry(server, group string, number int64, subject, author string, posted time.Time, messageID, rawReferences string, bytes, lines int) XoverEntry {
	return XoverEntry{
		Server:     server,
		Group:      group,
		Number:     number,
		Subject:    subject,
		Author:     author,
		PostedTime: posted,
		MessageID:  messageID,
		References: utils.ParseReferences(rawReferences),
		Bytes:      bytes,
		Lines:      lines,
	}
}

// XoverAdd ingests one overview entry per spec.md §4.6.1.
func (g *GroupHeaders) XoverAdd(e XoverEntry) {
	g.mux.Lock()
	defer g.mux.Unlock()

	mp := detectMultipart(e.Group, e.Subject, e.Lines)
	xref := XrefEntry{Server: e.Server, Group: e.Group, Number: e.Number}

	if mp.total >= 2 {
		if idx, ok := g.findFoldTarget(mp.normalizedSubject, e.Author, mp.total); ok {
			art := &g.articles[idx]
			art.addXref(xref)
			art.addPart(Part{Number: mp.part, MessageID: e.MessageID, Bytes: e.Bytes}, e.Lines)
			g.changedBatch[art.MessageID] = true
			g.dirty = true
			g.maybeFlush()
			return
		}
	}

	node := g.getOrCreateNode(e.MessageID)
	art := Article{
		MessageID:  e.MessageID,
		Subject:    mp.normalizedSubject,
		Author:     e.Author,
		PostedTime: e.PostedTime,
		Binary:     mp.binary,
		TotalParts: maxInt(mp.total, 1),
	}
	art.addXref(xref)
	art.addPart(Part{Number: maxInt(mp.part, 1), MessageID: e.MessageID, Bytes: e.Bytes}, e.Lines)

	idx := int32(len(g.articles))
	g.articles = append(g.articles, art)
	g.at(node).articleIdx = idx
	g.totalCount++

	g.threadArticle(e.MessageID, e.References)
	g.addedBatch[e.MessageID] = true
	g.dirty = true
	g.maybeFlush()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// findFoldTarget looks for a prior article in this group sharing the
// normalized subject, author, and total-part count (spec.md §4.6.1
// step 2).
func (g *GroupHeaders) findFoldTarget(subject, author string, total int) (int32, bool) {
	for i := range g.articles {
		a := &g.articles[i]
		if a.Subject == subject && a.Author == author && a.TotalParts == total {
			return int32(i), true
		}
	}
	return 0, false
}

// maybeFlush emits articles-added/articles-changed once flushInterval
// has elapsed since the last flush (spec.md §4.6.1 step 5). Callers
// that need a deterministic flush (tests, shutdown) use Flush.
func (g *GroupHeaders) maybeFlush() {
	if g.lastFlush.IsZero() {
		g.lastFlush = time.Now()
		return
	}
	if time.Since(g.lastFlush) >= flushInterval {
		g.flushLocked()
	}
}

// Flush forces an immediate batch flush regardless of elapsed time.
func (g *GroupHeaders) Flush() {
	g.mux.Lock()
	defer g.mux.Unlock()
	g.flushLocked()
}

func (g *GroupHeaders) flushLocked() {
	if len(g.addedBatch) > 0 {
		ids := make([]string, 0, len(g.addedBatch))
		for id := range g.addedBatch {
			ids = append(ids, id)
		}
		g.bus.Publish(Change{Kind: ChangeAdded, Group: g.Group, MessageIDs: ids})
		g.addedBatch = make(map[string]bool)
	}
	if len(g.changedBatch) > 0 {
		ids := make([]string, 0, len(g.changedBatch))
		for id := range g.changedBatch {
			ids = append(ids, id)
		}
		g.bus.Publish(Change{Kind: ChangeChanged, Group: g.Group, MessageIDs: ids, Refilter: true})
		g.changedBatch = make(map[string]bool)
	}
	g.lastFlush = time.Now()
}

// RemoveArticles deletes the named articles, re-parenting surviving
// descendants, and emits articles-removed followed by
// articles-reparented (spec.md §4.6.2 "Reparenting on removal").
func (g *GroupHeaders) RemoveArticles(mids []string) {
	g.mux.Lock()
	defer g.mux.Unlock()
	present := make([]string, 0, len(mids))
	for _, mid := range mids {
		if idx, ok := g.nodes[mid]; ok && !g.at(idx).isGhost() {
			present = append(present, mid)
			g.totalCount--
		}
	}
	reparented := g.removeArticles(mids)
	g.dirty = true
	if len(present) > 0 {
		g.bus.Publish(Change{Kind: ChangeRemoved, Group: g.Group, MessageIDs: present})
	}
	if len(reparented) > 0 {
		g.bus.Publish(Change{Kind: ChangeReparented, Group: g.Group, Reparented: reparented})
	}
}

// ExpireArticles sweeps every article's xref list against expireCheck
// (the same predicate Load prunes against on the file-read path),
// dropping xref entries for servers whose retention window has
// elapsed since the article was posted. An article left with no
// surviving xref is removed from the graph, reparenting its children
// per spec.md §4.6.2, exactly as RemoveArticles does. This is the live,
// in-memory counterpart to Load's on-disk pruning: Design Notes §9's
// expire sweep doesn't require a save/reload round-trip to take
// effect.
func (g *GroupHeaders) ExpireArticles(expireCheck ExpireCheck) {
	g.mux.Lock()
	defer g.mux.Unlock()

	var removing, changed []string
	for mid, idx := range g.nodes {
		n := g.at(idx)
		if n.isGhost() {
			continue
		}
		art := &g.articles[n.articleIdx]
		kept := art.Xref[:0:0]
		for _, x := range art.Xref {
			if expireCheck != nil && expireCheck(x.Server, art.PostedTime) {
				continue
			}
			kept = append(kept, x)
		}
		if len(kept) == len(art.Xref) {
			continue
		}
		art.Xref = kept
		if len(kept) == 0 {
			removing = append(removing, mid)
			g.totalCount--
		} else {
			changed = append(changed, mid)
		}
	}

	reparented := g.removeArticles(removing)
	if len(removing) > 0 || len(changed) > 0 {
		g.dirty = true
	}
	if len(changed) > 0 {
		g.bus.Publish(Change{Kind: ChangeChanged, Group: g.Group, MessageIDs: changed, Refilter: true})
	}
	if len(removing) > 0 {
		g.bus.Publish(Change{Kind: ChangeRemoved, Group: g.Group, MessageIDs: removing})
	}
	if len(reparented) > 0 {
		g.bus.Publish(Change{Kind: ChangeReparented, Group: g.Group, Reparented: reparented})
	}
}

// References returns the reconstructed References header for mid
// (spec.md §4.6.2 "References reconstruction").
func (g *GroupHeaders) References(mid string) []string {
	g.mux.Lock()
	defer g.mux.Unlock()
	return g.reconstructReferences(mid)
}

// ParentOf returns the message-id of mid's parent node, and whether mid
// has a parent at all (used by tests verifying S1/S2/S5 in spec.md §8).
func (g *GroupHeaders) ParentOf(mid string) (string, bool) {
	g.mux.Lock()
	defer g.mux.Unlock()
	idx, ok := g.nodes[mid]
	if !ok {
		return "", false
	}
	p := g.at(idx).parent
	if p == noNode {
		return "", false
	}
	return g.at(p).messageID, true
}

// IsGhost reports whether mid is currently a ghost node (referenced but
// never ingested as an article).
func (g *GroupHeaders) IsGhost(mid string) bool {
	g.mux.Lock()
	defer g.mux.Unlock()
	idx, ok := g.nodes[mid]
	return ok && g.at(idx).isGhost()
}
