package headerstore

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func xover(mid string, refs []string) XoverEntry {
	return XoverEntry{
		Server: "s1", Group: "alt.test", Number: 1,
		Subject: "hello", Author: "a@example.com",
		PostedTime: time.Unix(0, 0), MessageID: mid, References: refs,
		Bytes: 100, Lines: 10,
	}
}

// S1 — Straight-order threading.
func TestStraightOrderThreading(t *testing.T) {
	g := New("alt.test")
	g.XoverAdd(xover("<a1>", nil))
	g.XoverAdd(xover("<a2>", []string{"<a1>"}))
	g.XoverAdd(xover("<a3>", []string{"<a1>", "<a2>"}))

	if _, ok := g.ParentOf("<a1>"); ok {
		t.Fatalf("a1 must have no parent")
	}
	if p, ok := g.ParentOf("<a2>"); !ok || p != "<a1>" {
		t.Fatalf("expected parent(a2)=a1, got %q,%v", p, ok)
	}
	if p, ok := g.ParentOf("<a3>"); !ok || p != "<a2>" {
		t.Fatalf("expected parent(a3)=a2, got %q,%v", p, ok)
	}
}

// S2 — Reverse-order threading.
func TestReverseOrderThreading(t *testing.T) {
	g := New("alt.test")
	g.XoverAdd(xover("<a3>", []string{"<a1>", "<a2>", "<a3>"}))
	if !g.IsGhost("<a1>") || !g.IsGhost("<a2>") {
		t.Fatalf("expected a1 and a2 to be ghosts after step 1")
	}
	if p, ok := g.ParentOf("<a3>"); !ok || p != "<a2>" {
		t.Fatalf("expected parent(a3)=a2 after step 1, got %q", p)
	}

	g.XoverAdd(xover("<a2>", []string{"<a1>"}))
	if g.IsGhost("<a2>") {
		t.Fatalf("a2 should be promoted after step 2")
	}
	if p, ok := g.ParentOf("<a2>"); !ok || p != "<a1>" {
		t.Fatalf("expected parent(a2)=a1 after step 2, got %q", p)
	}
	if p, _ := g.ParentOf("<a3>"); p != "<a2>" {
		t.Fatalf("expected parent(a3)=a2 to survive step 2, got %q", p)
	}

	g.XoverAdd(xover("<a1>", nil))
	if g.IsGhost("<a1>") {
		t.Fatalf("a1 should be promoted after step 3")
	}
	if _, ok := g.ParentOf("<a1>"); ok {
		t.Fatalf("a1 must have no parent")
	}
	if g.IsGhost("<a2>") || g.IsGhost("<a3>") {
		t.Fatalf("no ghosts should remain")
	}
}

// S3 — Multipart fold.
func TestMultipartFold(t *testing.T) {
	g := New("alt.binaries.test")
	e1 := XoverEntry{Server: "s1", Group: "alt.binaries.test", Number: 1,
		Subject: "Pic (1/2)", Author: "a@example.com", MessageID: "<p1>", Bytes: 50, Lines: 800}
	e2 := XoverEntry{Server: "s1", Group: "alt.binaries.test", Number: 2,
		Subject: "Pic (2/2)", Author: "a@example.com", MessageID: "<p2>", Bytes: 50, Lines: 99}
	g.XoverAdd(e1)
	g.XoverAdd(e2)

	if g.ArticleCount() != 1 {
		t.Fatalf("expected one folded article, got %d", g.ArticleCount())
	}
	a, ok := g.Article("<p1>")
	if !ok {
		t.Fatalf("expected article present under its first part's message-id")
	}
	if a.TotalParts != 2 || a.FoundParts != 2 {
		t.Fatalf("expected total=2 found=2, got %+v", a)
	}
	if a.Lines != 899 {
		t.Fatalf("expected 899 lines, got %d", a.Lines)
	}
	if !a.Binary {
		t.Fatalf("expected binary=true")
	}
}

// S5 — Delete with reparent.
func TestDeleteWithReparent(t *testing.T) {
	g := New("alt.test")
	g.XoverAdd(xover("<b1>", nil))
	g.XoverAdd(xover("<b2>", []string{"<b1>"}))
	g.XoverAdd(xover("<b3>", []string{"<b1>", "<b2>"}))
	g.XoverAdd(xover("<c3>", []string{"<b1>", "<b2>"}))

	g.RemoveArticles([]string{"<b2>"})

	if !g.IsGhost("<b2>") {
		t.Fatalf("expected b2 to become a ghost, not be deleted from the graph")
	}
	if p, ok := g.ParentOf("<b3>"); !ok || p != "<b1>" {
		t.Fatalf("expected parent(b3)=b1, got %q", p)
	}
	if p, ok := g.ParentOf("<c3>"); !ok || p != "<b1>" {
		t.Fatalf("expected parent(c3)=b1, got %q", p)
	}
}

func TestMarkReadUpdatesUnreadCount(t *testing.T) {
	g := New("alt.test")
	g.XoverAdd(xover("<r1>", nil))
	r2 := xover("<r2>", nil)
	r2.Number = 2
	g.XoverAdd(r2)
	if g.UnreadCount() != 2 {
		t.Fatalf("expected 2 unread, got %d", g.UnreadCount())
	}
	changed := g.MarkRead([]string{"<r1>"}, true)
	if changed != 1 {
		t.Fatalf("expected 1 article to change, got %d", changed)
	}
	if g.UnreadCount() != 1 {
		t.Fatalf("expected 1 unread after marking, got %d", g.UnreadCount())
	}
	// idempotent
	changed = g.MarkRead([]string{"<r1>"}, true)
	if changed != 0 {
		t.Fatalf("expected marking an already-read article read again to be a no-op, got %d changed", changed)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	g := New("alt.test")
	g.XoverAdd(xover("<a1>", nil))
	g.XoverAdd(xover("<a2>", []string{"<a1>"}))

	var buf bytes.Buffer
	if err := Save(g, &buf); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, expired, err := Load("alt.test", strings.NewReader(buf.String()), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if expired != 0 {
		t.Fatalf("expected no expired articles, got %d", expired)
	}
	if loaded.ArticleCount() != 2 {
		t.Fatalf("expected 2 articles after reload, got %d", loaded.ArticleCount())
	}
	if p, ok := loaded.ParentOf("<a2>"); !ok || p != "<a1>" {
		t.Fatalf("expected threading to survive round-trip, got %q", p)
	}
}

func TestExpireArticlesRemovesAndReparentsLive(t *testing.T) {
	g := New("alt.test")
	g.XoverAdd(xover("<e1>", nil))
	g.XoverAdd(xover("<e2>", []string{"<e1>"}))
	g.XoverAdd(xover("<e3>", []string{"<e1>", "<e2>"}))

	g.ExpireArticles(func(server string, posted time.Time) bool {
		return server == "s1"
	})

	if g.ArticleCount() != 0 {
		t.Fatalf("expected all articles on s1 to expire, got %d remaining", g.ArticleCount())
	}
	if !g.IsGhost("<e2>") {
		t.Fatalf("expected e2 to become a ghost, not be deleted from the graph")
	}
	if p, ok := g.ParentOf("<e3>"); ok {
		t.Fatalf("expected e3 to have no parent once its whole ancestry expired, got %q", p)
	}
}

func TestExpireArticlesDropsOnlyStaleXref(t *testing.T) {
	g := New("alt.test")
	g.XoverAdd(xover("<m1>", nil))

	// A second server's xref for the same article; XoverAdd itself only
	// merges xrefs for folded multipart posts, so this reaches into the
	// arena directly the way a second-server overview merge would.
	idx := g.nodes["<m1>"]
	art := &g.articles[g.arena[idx].articleIdx]
	art.addXref(XrefEntry{Server: "s2", Group: "alt.test", Number: 2})

	g.ExpireArticles(func(server string, posted time.Time) bool {
		return server == "s1"
	})

	if g.ArticleCount() != 1 {
		t.Fatalf("expected the article to survive via its s2 xref, got %d remaining", g.ArticleCount())
	}
	a, ok := g.Article("<m1>")
	if !ok {
		t.Fatalf("expected <m1> to still be present")
	}
	if len(a.Xref) != 1 || a.Xref[0].Server != "s2" {
		t.Fatalf("expected only the s2 xref to survive, got %+v", a.Xref)
	}
}

func TestLoadPrunesExpiredXrefs(t *testing.T) {
	g := New("alt.test")
	g.XoverAdd(xover("<a1>", nil))
	var buf bytes.Buffer
	if err := Save(g, &buf); err != nil {
		t.Fatalf("Save: %v", err)
	}
	_, expired, err := Load("alt.test", strings.NewReader(buf.String()), func(server string, posted time.Time) bool {
		return true // everything is expired
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expected 1 expired article, got %d", expired)
	}
}
