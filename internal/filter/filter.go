// Package filter implements the article filter (C7, spec.md §4.7): a
// pure boolean test over one article plus the scoring pass that drives
// auto-cache/auto-download decisions, expressed against the same
// criterion tree type as internal/scorefile.
package filter

import (
	"time"

	"github.com/go-while/go-pan/internal/headerstore"
	"github.com/go-while/go-pan/internal/scorefile"
)

// ArticleCache is the read-only collaborator consulted for
// body-dependent criteria (spec.md §6). The filter never mutates it.
type ArticleCache interface {
	Contains(messageID string) bool
	GetMessage(messageIDs []string) ([]byte, error)
}

// Context carries the facts about an article the header store knows
// but headerstore.Article does not itself record: read state and
// self-authorship. Both are owned by collaborators outside this
// package (the group registry's read-range sets, the posting
// profiles), so callers supply them per call rather than this package
// reaching for them itself.
type Context struct {
	IsRead       bool
	IsPostedByMe bool
}

// facts builds scorefile.ArticleFacts for a, consulting cache only for
// the body-cached flag so body-dependent criteria can apply the AND/OR
// needs-body skip policy from spec.md §4.3.
func facts(a headerstore.Article, cache ArticleCache, ctx Context) (scorefile.ArticleFacts, bool) {
	bodyCached := cache != nil && cache.Contains(a.MessageID)
	return scorefile.ArticleFacts{
		Subject:        a.Subject,
		Author:         a.Author,
		PostedTime:     a.PostedTime,
		Score:          a.Score,
		Binary:         a.Binary,
		Bytes:          a.TotalBytes(),
		Lines:          a.Lines,
		CrosspostCount: len(a.Xref),
		IsRead:         ctx.IsRead,
		IsPostedByMe:   ctx.IsPostedByMe,
	}, bodyCached
}

// TestArticle evaluates criteria against an article (spec.md §4.7
// test_article): a pure function. When the body cache does not have
// the article, a body-dependent criterion follows the AND/OR policy of
// Item.Test: it counts as passing on its own or inside an AND group and
// as failing inside an OR group.
func TestArticle(criteria *scorefile.Item, a headerstore.Article, cache ArticleCache, ctx Context) bool {
	if criteria == nil {
		return true
	}
	f, bodyCached := facts(a, cache, ctx)
	return criteria.Test(f, bodyCached)
}

// ScoreArticle evaluates every section whose wildmat matches group and
// returns the resulting score plus the contributing items (spec.md
// §4.7 score_article / get_article_scores).
func ScoreArticle(sections []*scorefile.Section, group string, a headerstore.Article, cache ArticleCache, ctx Context, now time.Time) (int, []*scorefile.Item) {
	f, bodyCached := facts(a, cache, ctx)
	return scorefile.ScoreArticle(sections, group, f, bodyCached, now)
}
