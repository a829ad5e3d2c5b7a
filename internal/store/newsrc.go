package store

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-while/go-pan/internal/errkind"
	"github.com/go-while/go-pan/internal/readrange"
)

// NewsrcEntry is one parsed line of a newsrc-<server-id> file.
type NewsrcEntry struct {
	Group      string
	Subscribed bool
	Ranges     *readrange.Set
}

// SaveNewsrc writes newsrc-<server-id>: one line per group known on
// this server, "group(:|!)[ ranges]" — ':' subscribed, '!'
// unsubscribed, ranges in read-range-set form (spec.md §4.9).
func SaveNewsrc(dir Dir, serverID string, names []string, isSubscribed func(group string) bool, rangeFor func(group string) *readrange.Set) error {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return WriteFile(dir.NewsrcPath(serverID), func(sink *Sink) error {
		w := bufio.NewWriter(sink)
		for _, g := range sorted {
			mark := "!"
			if isSubscribed(g) {
				mark = ":"
			}
			line := g + mark
			if set := rangeFor(g); set != nil {
				if ranges := set.String(); ranges != "" {
					line += " " + ranges
				}
			}
			if _, err := w.WriteString(line); err != nil {
				return err
			}
			if err := w.WriteByte('\n'); err != nil {
				return err
			}
		}
		return w.Flush()
	})
}

// LoadNewsrc parses newsrc-<server-id>. A missing file yields an empty
// slice, not an error.
func LoadNewsrc(dir Dir, serverID string) ([]NewsrcEntry, error) {
	f, err := os.Open(dir.NewsrcPath(serverID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errkind.New(errkind.IO, err)
	}
	defer f.Close()

	var out []NewsrcEntry
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if line == "" {
			continue
		}
		sep := strings.IndexAny(line, ":!")
		if sep < 0 {
			continue // malformed line: skip (errkind.Parse policy, §7)
		}
		group := line[:sep]
		subscribed := line[sep] == ':'
		rest := strings.TrimSpace(line[sep+1:])
		var ranges *readrange.Set
		if rest != "" {
			ranges, err = readrange.FromString(rest)
			if err != nil {
				ranges = readrange.New() // malformed ranges: skip, keep group
			}
		} else {
			ranges = readrange.New()
		}
		out = append(out, NewsrcEntry{Group: group, Subscribed: subscribed, Ranges: ranges})
	}
	if err := sc.Err(); err != nil {
		return out, errkind.New(errkind.IO, fmt.Errorf("store: reading newsrc-%s: %w", serverID, err))
	}
	return out, nil
}
