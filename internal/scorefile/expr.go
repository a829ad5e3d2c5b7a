package scorefile

import (
	"fmt"
	"strconv"
	"strings"
)

// parseCriterion parses the small criterion DSL used inside a scorefile
// item line, e.g. "AND(IS_BINARY;LINE_COUNT_GE=400)" or
// "TEXT(Subject,spam,contains)" or "!IS_READ". It returns an *Item with
// only the criterion-tree fields populated (Kind, Negate, GE, TextKey,
// TextPattern, TextMatch, NeedsBody, Children); callers fill in the
// top-level scoring fields (ScoreDelta, Assign, ...) separately.
func parseCriterion(expr string) (*Item, error) {
	p := &exprParser{s: expr}
	it, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.i != len(p.s) {
		return nil, fmt.Errorf("scorefile: trailing input in criterion %q at %d", expr, p.i)
	}
	return it, nil
}

type exprParser struct {
	s string
	i int
}

func (p *exprParser) skipSpace() {
	for p.i < len(p.s) && (p.s[p.i] == ' ' || p.s[p.i] == '\t') {
		p.i++
	}
}

func (p *exprParser) parseExpr() (*Item, error) {
	p.skipSpace()
	negate := false
	if p.i < len(p.s) && p.s[p.i] == '!' {
		negate = true
		p.i++
	}
	name, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	upper := strings.ToUpper(name)

	switch upper {
	case "AND", "OR":
		children, err := p.parseChildren()
		if err != nil {
			return nil, err
		}
		kind := KindAndAggregate
		if upper == "OR" {
			kind = KindOrAggregate
		}
		return &Item{Kind: kind, Negate: negate, Children: children}, nil
	case "TEXT":
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		if len(args) < 3 {
			return nil, fmt.Errorf("scorefile: TEXT() requires key,pattern,matchkind")
		}
		mk, err := parseMatchKind(strings.TrimSpace(args[2]))
		if err != nil {
			return nil, err
		}
		needsBody := len(args) >= 4 && strings.TrimSpace(args[3]) == "needsbody"
		return &Item{
			Kind:        KindTextMatch,
			Negate:      negate,
			TextKey:     strings.TrimSpace(args[0]),
			TextPattern: strings.TrimSpace(args[1]),
			TextMatch:   mk,
			NeedsBody:   needsBody,
		}, nil
	default:
		kind, hasGE, err := leafKindByName(upper)
		if err != nil {
			return nil, err
		}
		it := &Item{Kind: kind, Negate: negate}
		if p.i < len(p.s) && p.s[p.i] == '=' {
			p.i++
			numStr, err := p.parseNumber()
			if err != nil {
				return nil, err
			}
			n, err := strconv.ParseInt(numStr, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("scorefile: invalid threshold %q: %w", numStr, err)
			}
			it.GE = n
		} else if hasGE {
			return nil, fmt.Errorf("scorefile: %s requires a threshold (KIND=N)", upper)
		}
		return it, nil
	}
}

func (p *exprParser) parseChildren() ([]*Item, error) {
	if p.i >= len(p.s) || p.s[p.i] != '(' {
		return nil, fmt.Errorf("scorefile: expected '(' at %d", p.i)
	}
	p.i++
	var children []*Item
	for {
		p.skipSpace()
		if p.i < len(p.s) && p.s[p.i] == ')' {
			p.i++
			return children, nil
		}
		child, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		children = append(children, child)
		p.skipSpace()
		if p.i < len(p.s) && p.s[p.i] == ';' {
			p.i++
			continue
		}
		if p.i < len(p.s) && p.s[p.i] == ')' {
			p.i++
			return children, nil
		}
		return nil, fmt.Errorf("scorefile: expected ';' or ')' at %d", p.i)
	}
}

func (p *exprParser) parseArgs() ([]string, error) {
	if p.i >= len(p.s) || p.s[p.i] != '(' {
		return nil, fmt.Errorf("scorefile: expected '(' at %d", p.i)
	}
	end := strings.IndexByte(p.s[p.i:], ')')
	if end < 0 {
		return nil, fmt.Errorf("scorefile: unterminated arguments starting at %d", p.i)
	}
	inner := p.s[p.i+1 : p.i+end]
	p.i += end + 1
	if strings.TrimSpace(inner) == "" {
		return nil, nil
	}
	return strings.Split(inner, ","), nil
}

func (p *exprParser) parseIdent() (string, error) {
	start := p.i
	for p.i < len(p.s) {
		c := p.s[p.i]
		if c == '(' || c == ')' || c == ';' || c == '=' || c == ' ' {
			break
		}
		p.i++
	}
	if start == p.i {
		return "", fmt.Errorf("scorefile: expected identifier at %d", start)
	}
	return p.s[start:p.i], nil
}

func (p *exprParser) parseNumber() (string, error) {
	start := p.i
	if p.i < len(p.s) && (p.s[p.i] == '-' || p.s[p.i] == '+') {
		p.i++
	}
	for p.i < len(p.s) && p.s[p.i] >= '0' && p.s[p.i] <= '9' {
		p.i++
	}
	if start == p.i {
		return "", fmt.Errorf("scorefile: expected number at %d", start)
	}
	return p.s[start:p.i], nil
}

func leafKindByName(name string) (Kind, bool, error) {
	switch name {
	case "IS_BINARY":
		return KindIsBinary, false, nil
	case "IS_POSTED_BY_ME":
		return KindIsPostedByMe, false, nil
	case "IS_READ":
		return KindIsRead, false, nil
	case "IS_UNREAD":
		return KindIsUnread, false, nil
	case "IS_CACHED":
		return KindIsCached, false, nil
	case "BYTE_COUNT_GE":
		return KindByteCountGE, true, nil
	case "CROSSPOST_COUNT_GE":
		return KindCrosspostCountGE, true, nil
	case "DAYS_OLD_GE":
		return KindDaysOldGE, true, nil
	case "LINE_COUNT_GE":
		return KindLineCountGE, true, nil
	case "SCORE_GE":
		return KindScoreGE, true, nil
	default:
		return 0, false, fmt.Errorf("scorefile: unknown criterion kind %q", name)
	}
}

// serializeCriterion renders an Item's criterion tree back into the DSL
// parseCriterion accepts, used when writing a normalized block for
// add_score.
func serializeCriterion(it *Item) string {
	var sb strings.Builder
	if it.Negate {
		sb.WriteByte('!')
	}
	switch it.Kind {
	case KindAndAggregate, KindOrAggregate:
		if it.Kind == KindAndAggregate {
			sb.WriteString("AND(")
		} else {
			sb.WriteString("OR(")
		}
		for i, c := range it.Children {
			if i > 0 {
				sb.WriteByte(';')
			}
			sb.WriteString(serializeCriterion(c))
		}
		sb.WriteByte(')')
	case KindTextMatch:
		fmt.Fprintf(&sb, "TEXT(%s,%s,%s", it.TextKey, it.TextPattern, it.TextMatch)
		if it.NeedsBody {
			sb.WriteString(",needsbody")
		}
		sb.WriteByte(')')
	default:
		sb.WriteString(it.Kind.String())
		switch it.Kind {
		case KindByteCountGE, KindCrosspostCountGE, KindDaysOldGE, KindLineCountGE, KindScoreGE:
			fmt.Fprintf(&sb, "=%d", it.GE)
		}
	}
	return sb.String()
}
