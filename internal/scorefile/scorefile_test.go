package scorefile

import (
	"strings"
	"testing"
	"time"
)

func TestParseRoundTrip(t *testing.T) {
	src := `# a comment
[alt.binaries.*]
item enabled=1 score=-9999 assign=1 days=0 criterion=TEXT(Subject,spam,contains)

item enabled=1 score=100 assign=0 days=0 criterion=IS_BINARY
`
	sf, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(sf.Sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(sf.Sections))
	}
	if len(sf.Sections[0].Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(sf.Sections[0].Items))
	}
}

func TestScoreSpamAssign(t *testing.T) {
	// Scenario S4 from spec.md §8.
	src := `[alt.binaries.*]
item enabled=1 score=-9999 assign=1 days=0 criterion=TEXT(Subject,spam,is)
`
	sf, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	now := time.Now()

	score, _ := ScoreArticle(sf.Sections, "alt.binaries.test", ArticleFacts{Subject: "spam free"}, true, now)
	if score != 0 {
		t.Fatalf("expected score 0 for 'spam free', got %d", score)
	}

	score, items := ScoreArticle(sf.Sections, "alt.binaries.test", ArticleFacts{Subject: "spam"}, true, now)
	if score != -9999 {
		t.Fatalf("expected score -9999 for 'spam', got %d", score)
	}
	if len(items) != 1 {
		t.Fatalf("expected exactly one contributing item, got %d", len(items))
	}
}

func TestAssignShortCircuits(t *testing.T) {
	src := `[*]
item enabled=1 score=100 assign=0 days=0 criterion=IS_BINARY
item enabled=1 score=-9999 assign=1 days=0 criterion=IS_BINARY
item enabled=1 score=500 assign=0 days=0 criterion=IS_BINARY
`
	sf, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	score, items := ScoreArticle(sf.Sections, "any.group", ArticleFacts{Binary: true}, true, time.Now())
	if score != -9999 {
		t.Fatalf("expected assign to short-circuit to -9999, got %d", score)
	}
	if len(items) != 2 {
		t.Fatalf("expected evaluation to stop after the assign item, got %d items", len(items))
	}
}

func TestOrderInvarianceAmongNonAssignItems(t *testing.T) {
	srcA := `[*]
item enabled=1 score=10 assign=0 days=0 criterion=IS_BINARY
item enabled=1 score=20 assign=0 days=0 criterion=IS_BINARY
`
	srcB := `[*]
item enabled=1 score=20 assign=0 days=0 criterion=IS_BINARY
item enabled=1 score=10 assign=0 days=0 criterion=IS_BINARY
`
	sfA, _ := Parse(strings.NewReader(srcA))
	sfB, _ := Parse(strings.NewReader(srcB))
	scoreA, _ := ScoreArticle(sfA.Sections, "g", ArticleFacts{Binary: true}, true, time.Now())
	scoreB, _ := ScoreArticle(sfB.Sections, "g", ArticleFacts{Binary: true}, true, time.Now())
	if scoreA != scoreB {
		t.Fatalf("expected order-invariant total score, got %d vs %d", scoreA, scoreB)
	}
}

func TestNeedsBodyAndOrPolicy(t *testing.T) {
	and := &Item{Kind: KindAndAggregate, Children: []*Item{
		{Kind: KindIsBinary, NeedsBody: true},
		{Kind: KindIsRead},
	}}
	// NeedsBody child unmet should be skipped (treated as passing) in AND.
	if !and.Test(ArticleFacts{IsRead: true}, false) {
		t.Fatalf("AND aggregate should pass when the needs-body child is skipped and the other child passes")
	}

	or := &Item{Kind: KindOrAggregate, Children: []*Item{
		{Kind: KindIsBinary, NeedsBody: true},
		{Kind: KindIsRead},
	}}
	// NeedsBody child unmet should be treated as failing in OR; with
	// IsRead false too, the whole OR must fail.
	if or.Test(ArticleFacts{IsRead: false}, false) {
		t.Fatalf("OR aggregate should fail when its needs-body child is skipped-as-failed and its other child also fails")
	}
}

func TestEmptyOrAggregatePasses(t *testing.T) {
	or := &Item{Kind: KindOrAggregate}
	if !or.Test(ArticleFacts{}, true) {
		t.Fatalf("an empty OR aggregate must pass")
	}
}

func TestBandFor(t *testing.T) {
	cases := []struct {
		score int
		want  Band
	}{
		{9999, BandWatched},
		{5000, BandHigh},
		{9998, BandHigh},
		{1, BandMedium},
		{4999, BandMedium},
		{0, BandNeutral},
		{-1, BandLow},
		{-9998, BandLow},
		{-9999, BandIgnored},
		{-20000, BandIgnored},
	}
	for _, c := range cases {
		if got := BandFor(c.score); got != c.want {
			t.Errorf("BandFor(%d) = %v, want %v", c.score, got, c.want)
		}
	}
}

func TestExpiredItemIgnored(t *testing.T) {
	it := &Item{Kind: KindIsBinary, Enabled: true, ScoreDelta: 100, ExpiresAt: time.Now().Add(-time.Hour)}
	sec := &Section{Wildmat: "*", Items: []*Item{it}}
	score, items := ScoreArticle([]*Section{sec}, "g", ArticleFacts{Binary: true}, true, time.Now())
	if score != 0 || len(items) != 0 {
		t.Fatalf("expired item must be ignored by evaluation, got score=%d items=%d", score, len(items))
	}
}

func TestSectionNegatedWildmat(t *testing.T) {
	sec := &Section{Wildmat: "~alt.binaries.*"}
	if sec.Matches("alt.binaries.test") {
		t.Fatalf("negated wildmat must not match alt.binaries.test")
	}
	if !sec.Matches("comp.lang.go") {
		t.Fatalf("negated wildmat must match groups outside the pattern")
	}
}

func TestCommentOutLine(t *testing.T) {
	src := `[*]
item enabled=1 score=5 assign=0 days=0 criterion=IS_BINARY
`
	sf, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	item := sf.Sections[0].Items[0]
	if err := sf.CommentOutLines(item.SourceLineStart, item.SourceLineEnd); err != nil {
		t.Fatalf("CommentOutLines: %v", err)
	}
	if !item.Commented {
		t.Fatalf("expected item to be marked Commented")
	}
	score, items := ScoreArticle(sf.Sections, "g", ArticleFacts{Binary: true}, true, time.Now())
	if score != 0 || len(items) != 0 {
		t.Fatalf("commented-out item must not contribute to score")
	}

	var buf strings.Builder
	if err := sf.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.Contains(buf.String(), "# item") {
		t.Fatalf("expected commented item line to survive a Write, got:\n%s", buf.String())
	}
}

func TestAddScoreAppendsNormalizedBlock(t *testing.T) {
	sf := New()
	it, err := sf.AddScore("alt.binaries.*", "IS_BINARY", 1000, false, 0)
	if err != nil {
		t.Fatalf("AddScore: %v", err)
	}
	if len(sf.Sections) != 1 || len(sf.Sections[0].Items) != 1 {
		t.Fatalf("expected one section with one item after AddScore")
	}
	if it.ScoreDelta != 1000 {
		t.Fatalf("expected score delta 1000, got %d", it.ScoreDelta)
	}

	var buf strings.Builder
	if err := sf.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	sf2, err := Parse(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("re-Parse after AddScore: %v", err)
	}
	if len(sf2.Sections) != 1 || len(sf2.Sections[0].Items) != 1 {
		t.Fatalf("round trip through Write/Parse lost the added item")
	}
}
