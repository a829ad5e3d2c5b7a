package store

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-while/go-pan/internal/errkind"
)

// SaveDescriptions writes newsgroups.dsc: "group:description" per line
// (spec.md §4.9).
func SaveDescriptions(dir Dir, descriptions map[string]string) error {
	names := sortedStringKeys(descriptions)
	return WriteFile(dir.DescriptionsPath(), func(sink *Sink) error {
		w := bufio.NewWriter(sink)
		for _, g := range names {
			if _, err := fmt.Fprintf(w, "%s:%s\n", g, descriptions[g]); err != nil {
				return err
			}
		}
		return w.Flush()
	})
}

// LoadDescriptions parses newsgroups.dsc.
func LoadDescriptions(dir Dir) (map[string]string, error) {
	out := make(map[string]string)
	err := eachLine(dir.DescriptionsPath(), func(line string) {
		group, desc, ok := strings.Cut(line, ":")
		if !ok {
			return
		}
		out[group] = desc
	})
	return out, err
}

// SavePermissions writes the permissions file in the same
// "group:marker" shape as the descriptions file. 'y' = open, 'm' = moderated, 'n' = no-post;
// only non-'y' groups are stored (spec.md §4.9).
func SavePermissions(dir Dir, moderated, noPost map[string]bool) error {
	rows := make(map[string]byte)
	for g := range moderated {
		rows[g] = 'm'
	}
	for g := range noPost {
		rows[g] = 'n'
	}
	names := make([]string, 0, len(rows))
	for g := range rows {
		names = append(names, g)
	}
	sort.Strings(names)
	return WriteFile(dir.PermissionsPath(), func(sink *Sink) error {
		w := bufio.NewWriter(sink)
		for _, g := range names {
			if _, err := fmt.Fprintf(w, "%s:%c\n", g, rows[g]); err != nil {
				return err
			}
		}
		return w.Flush()
	})
}

// LoadPermissions parses newsgroups.ynm.
func LoadPermissions(dir Dir) (moderated, noPost map[string]bool, err error) {
	moderated = make(map[string]bool)
	noPost = make(map[string]bool)
	err = eachLine(dir.PermissionsPath(), func(line string) {
		group, marker, ok := strings.Cut(line, ":")
		if !ok || len(marker) != 1 {
			return
		}
		switch marker[0] {
		case 'm':
			moderated[group] = true
		case 'n':
			noPost[group] = true
		}
	})
	return moderated, noPost, err
}

// OverviewRow is one line of newsgroups.xov: per-group total/unread
// counts plus each server's highest-seen article number.
type OverviewRow struct {
	Group  string
	Total  int
	Unread int
	High   map[string]int64 // server id -> highest number seen
}

// SaveOverview writes newsgroups.xov: "group total unread
// server1:high1 server2:high2 ..." per line (spec.md §4.9).
func SaveOverview(dir Dir, rows []OverviewRow) error {
	sorted := append([]OverviewRow(nil), rows...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Group < sorted[j].Group })
	return WriteFile(dir.OverviewPath(), func(sink *Sink) error {
		w := bufio.NewWriter(sink)
		for _, r := range sorted {
			servers := make([]string, 0, len(r.High))
			for s := range r.High {
				servers = append(servers, s)
			}
			sort.Strings(servers)
			tokens := make([]string, 0, len(servers))
			for _, s := range servers {
				tokens = append(tokens, fmt.Sprintf("%s:%d", s, r.High[s]))
			}
			line := fmt.Sprintf("%s %d %d", r.Group, r.Total, r.Unread)
			if len(tokens) > 0 {
				line += " " + strings.Join(tokens, " ")
			}
			if _, err := w.WriteString(line + "\n"); err != nil {
				return err
			}
		}
		return w.Flush()
	})
}

// LoadOverview parses newsgroups.xov.
func LoadOverview(dir Dir) ([]OverviewRow, error) {
	var out []OverviewRow
	err := eachLine(dir.OverviewPath(), func(line string) {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return
		}
		row := OverviewRow{Group: fields[0], High: make(map[string]int64)}
		fmt.Sscanf(fields[1], "%d", &row.Total)
		fmt.Sscanf(fields[2], "%d", &row.Unread)
		for _, tok := range fields[3:] {
			server, high, ok := strings.Cut(tok, ":")
			if !ok {
				continue
			}
			var n int64
			fmt.Sscanf(high, "%d", &n)
			row.High[server] = n
		}
		out = append(out, row)
	})
	return out, err
}

func sortedStringKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func eachLine(path string, fn func(line string)) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errkind.New(errkind.IO, err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		fn(line)
	}
	if err := sc.Err(); err != nil {
		return errkind.New(errkind.IO, err)
	}
	return nil
}
