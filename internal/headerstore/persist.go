package headerstore

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-while/go-pan/internal/errkind"
)

// fileVersion is the mandatory write version (spec.md §4.6.3). Files at
// version 1 or 2 are accepted on read and upgraded on next write.
const fileVersion = 3

// shorthandAlphabet is the pool of single printable characters a
// frequent group/author name can be abbreviated to. It excludes space,
// tab and characters used as field delimiters in the tagged line
// format below.
const shorthandAlphabet = "!\"#$%&'()*+,-./0123456789;<=>?@ABCDEFGHIJKLMNOPQRSTUVWXYZ[]^_`abcdefghijklmnopqrstuvwxyz{|}~"

// buildShorthand ranks names by descending frequency and assigns each
// of the top len(shorthandAlphabet) names a single character.
func buildShorthand(counts map[string]int) map[string]byte {
	type row struct {
		name string
		n    int
	}
	rows := make([]row, 0, len(counts))
	for name, n := range counts {
		rows = append(rows, row{name, n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].n != rows[j].n {
			return rows[i].n > rows[j].n
		}
		return rows[i].name < rows[j].name
	})
	table := make(map[string]byte)
	for i, r := range rows {
		if i >= len(shorthandAlphabet) {
			break
		}
		table[r.name] = shorthandAlphabet[i]
	}
	return table
}

func invert(table map[string]byte) map[byte]string {
	out := make(map[byte]string, len(table))
	for name, ch := range table {
		out[ch] = name
	}
	return out
}

// Save writes g's article set to w in the tagged text format described
// in spec.md §4.6.3. The field tags (V, G/g, A/a, M, F, S, U, R, D, X,
// P, p, E) are this implementation's own encoding of that structure;
// spec.md does not specify a literal byte grammar for the header file,
// only which elements must be present (version, shorthand tables, xref
// triples) and that round-tripping must be exact (§8 property 5).
func Save(g *GroupHeaders, w io.Writer) error {
	g.mux.Lock()
	defer g.mux.Unlock()

	groupCounts := make(map[string]int)
	authorCounts := make(map[string]int)
	for i := range g.articles {
		a := &g.articles[i]
		if idx, ok := g.nodes[a.MessageID]; !ok || g.at(idx).articleIdx != int32(i) {
			continue // removed article
		}
		authorCounts[a.Author]++
		for _, x := range a.Xref {
			groupCounts[x.Group]++
		}
	}
	groupTable := buildShorthand(groupCounts)
	authorTable := buildShorthand(authorCounts)

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "V\t%d\n", fileVersion)

	fmt.Fprintf(bw, "G\t%d\n", len(groupTable))
	for _, name := range sortedKeys(groupTable) {
		fmt.Fprintf(bw, "g\t%c\t%s\n", groupTable[name], name)
	}
	fmt.Fprintf(bw, "A\t%d\n", len(authorTable))
	for _, name := range sortedKeys(authorTable) {
		fmt.Fprintf(bw, "a\t%c\t%s\n", authorTable[name], name)
	}

	for i := range g.articles {
		a := &g.articles[i]
		if idx, ok := g.nodes[a.MessageID]; !ok || g.at(idx).articleIdx != int32(i) {
			continue // removed article
		}
		fmt.Fprintf(bw, "M\t%s\n", a.MessageID)
		if a.Flagged {
			fmt.Fprintf(bw, "F\tT\n")
		} else {
			fmt.Fprintf(bw, "F\tF\n")
		}
		fmt.Fprintf(bw, "S\t%s\n", a.Subject)
		if ch, ok := authorTable[a.Author]; ok {
			fmt.Fprintf(bw, "U\t%c\n", ch)
		} else {
			fmt.Fprintf(bw, "U\t%s\n", a.Author)
		}
		if refs := g.reconstructReferences(a.MessageID); len(refs) > 0 {
			fmt.Fprintf(bw, "R\t%s\n", strings.Join(refs, " "))
		}
		fmt.Fprintf(bw, "D\t%d\n", a.PostedTime.Unix())

		xrefTokens := make([]string, 0, len(a.Xref))
		for _, x := range a.Xref {
			groupTok := x.Group
			if ch, ok := groupTable[x.Group]; ok {
				groupTok = string(ch)
			}
			xrefTokens = append(xrefTokens, fmt.Sprintf("%s:%s:%d", x.Server, groupTok, x.Number))
		}
		fmt.Fprintf(bw, "X\t%s\n", strings.Join(xrefTokens, " "))

		tf := "f"
		if a.Binary {
			tf = "t"
		}
		fmt.Fprintf(bw, "P\t%s\t%d\t%d\t%d\n", tf, a.TotalParts, a.FoundParts, a.Lines)
		for _, p := range a.Parts {
			fmt.Fprintf(bw, "p\t%d\t%s\t%d\n", p.Number, p.MessageID, p.Bytes)
		}
		fmt.Fprintf(bw, "E\n")
	}
	if err := bw.Flush(); err != nil {
		return errkind.New(errkind.IO, err)
	}
	return nil
}

func sortedKeys(table map[string]byte) []string {
	out := make([]string, 0, len(table))
	for k := range table {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ExpireCheck reports whether an xref entry for the given server and
// posting time has aged out of that server's retention window.
type ExpireCheck func(server string, posted time.Time) bool

// Load parses a header file written by Save, threading every article
// through the graph in file order. Xref entries that expireCheck
// reports as expired are pruned before the article is inserted;
// articles left with no surviving xref are dropped and counted in the
// returned expired count, per spec.md §4.6.3. A non-nil error is
// returned for a bad or unsupported version line and for a read error
// from r; any other malformed record or field is skipped without
// logging.
func Load(group string, r io.Reader, expireCheck ExpireCheck) (*GroupHeaders, int, error) {
	g := New(group)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)

	groupTable := make(map[byte]string)
	authorTable := make(map[byte]string)
	expired := 0

	var cur *pendingArticle
	for sc.Scan() {
		line := sc.Text()
		tag, rest, _ := strings.Cut(line, "\t")
		switch tag {
		case "V":
			v, err := strconv.Atoi(rest)
			if err != nil {
				return nil, 0, errkind.New(errkind.Parse, fmt.Errorf("headerstore: bad version line %q", line))
			}
			if v < 1 || v > fileVersion {
				return nil, 0, errkind.New(errkind.Parse, fmt.Errorf("headerstore: unsupported version %d", v))
			}
		case "G", "A":
			// count line, informational only; rows are parsed as they arrive.
		case "g":
			ch, name, ok := splitShorthandRow(rest)
			if ok {
				groupTable[ch] = name
			}
		case "a":
			ch, name, ok := splitShorthandRow(rest)
			if ok {
				authorTable[ch] = name
			}
		case "M":
			cur = &pendingArticle{messageID: rest}
		case "F":
			if cur != nil {
				cur.flagged = rest == "T"
			}
		case "S":
			if cur != nil {
				cur.subject = rest
			}
		case "U":
			if cur != nil {
				cur.author = resolveShorthand(rest, authorTable)
			}
		case "R":
			if cur != nil {
				if rest != "" {
					cur.references = strings.Fields(rest)
				}
			}
		case "D":
			if cur != nil {
				sec, _ := strconv.ParseInt(rest, 10, 64)
				cur.posted = time.Unix(sec, 0).UTC()
			}
		case "X":
			if cur != nil {
				cur.xref = parseXrefLine(rest, groupTable)
			}
		case "P":
			if cur != nil {
				fields := strings.Fields(rest)
				if len(fields) == 4 {
					cur.binary = fields[0] == "t"
					cur.totalParts, _ = strconv.Atoi(fields[1])
					cur.foundParts, _ = strconv.Atoi(fields[2])
					cur.lines, _ = strconv.Atoi(fields[3])
				}
			}
		case "p":
			if cur != nil {
				fields := strings.Fields(rest)
				if len(fields) == 3 {
					num, _ := strconv.Atoi(fields[0])
					bytes, _ := strconv.Atoi(fields[2])
					cur.parts = append(cur.parts, Part{Number: num, MessageID: fields[1], Bytes: bytes})
				}
			}
		case "E":
			if cur == nil {
				continue
			}
			if expireCheck != nil {
				kept := cur.xref[:0]
				for _, x := range cur.xref {
					if !expireCheck(x.Server, cur.posted) {
						kept = append(kept, x)
					}
				}
				cur.xref = kept
			}
			if len(cur.xref) == 0 {
				expired++
				cur = nil
				continue
			}
			g.insertLoaded(cur)
			cur = nil
		}
	}
	if err := sc.Err(); err != nil {
		return nil, expired, errkind.New(errkind.IO, err)
	}
	return g, expired, nil
}

type pendingArticle struct {
	messageID  string
	flagged    bool
	subject    string
	author     string
	references []string
	posted     time.Time
	xref       []XrefEntry
	binary     bool
	totalParts int
	foundParts int
	lines      int
	parts      []Part
}

func (g *GroupHeaders) insertLoaded(p *pendingArticle) {
	node := g.getOrCreateNode(p.messageID)
	art := Article{
		MessageID:  p.messageID,
		Subject:    p.subject,
		Author:     p.author,
		PostedTime: p.posted,
		Binary:     p.binary,
		TotalParts: p.totalParts,
		FoundParts: p.foundParts,
		Lines:      p.lines,
		Parts:      p.parts,
		Xref:       p.xref,
		Flagged:    p.flagged,
	}
	idx := int32(len(g.articles))
	g.articles = append(g.articles, art)
	g.at(node).articleIdx = idx
	g.totalCount++
	g.threadArticle(p.messageID, p.references)
}

func splitShorthandRow(rest string) (byte, string, bool) {
	ch, name, ok := strings.Cut(rest, "\t")
	if !ok || len(ch) != 1 {
		return 0, "", false
	}
	return ch[0], name, true
}

func resolveShorthand(token string, table map[byte]string) string {
	if len(token) == 1 {
		if name, ok := table[token[0]]; ok {
			return name
		}
	}
	return token
}

func parseXrefLine(rest string, groupTable map[byte]string) []XrefEntry {
	if rest == "" {
		return nil
	}
	tokens := strings.Fields(rest)
	out := make([]XrefEntry, 0, len(tokens))
	for _, tok := range tokens {
		parts := strings.SplitN(tok, ":", 3)
		if len(parts) != 3 {
			continue
		}
		group := parts[1]
		if len(group) == 1 {
			if name, ok := groupTable[group[0]]; ok {
				group = name
			}
		}
		num, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			continue
		}
		out = append(out, XrefEntry{Server: parts[0], Group: group, Number: num})
	}
	return out
}
