package store

import (
	"os"
	"time"

	"github.com/go-while/go-pan/internal/errkind"
	"github.com/go-while/go-pan/internal/headerstore"
)

// SaveGroup writes groups/<group> via the atomic protocol, delegating
// the article format to headerstore.Save (spec.md §4.6.3 / §4.9).
func SaveGroup(dir Dir, g *headerstore.GroupHeaders) error {
	return WriteFile(dir.GroupPath(g.Group), func(sink *Sink) error {
		return headerstore.Save(g, sink)
	})
}

// LoadGroup reads groups/<group>, pruning xref entries expired under
// expireCheck (spec.md §4.6.3). A missing file yields a fresh, empty
// GroupHeaders and is not an error.
func LoadGroup(dir Dir, group string, expireCheck headerstore.ExpireCheck) (*headerstore.GroupHeaders, int, error) {
	f, err := os.Open(dir.GroupPath(group))
	if os.IsNotExist(err) {
		return headerstore.New(group), 0, nil
	}
	if err != nil {
		return nil, 0, errkind.New(errkind.IO, err)
	}
	defer f.Close()
	return headerstore.Load(group, f, expireCheck)
}

// ExpireByAge builds an ExpireCheck from per-server retention windows
// (0 = never expire), per Design Notes §9's "read-state across
// servers" caveat: expiration is evaluated per xref entry, not per
// article.
func ExpireByAge(expireDays map[string]int, now time.Time) headerstore.ExpireCheck {
	return func(server string, posted time.Time) bool {
		days, ok := expireDays[server]
		if !ok || days <= 0 {
			return false
		}
		return now.Sub(posted) > time.Duration(days)*24*time.Hour
	}
}
