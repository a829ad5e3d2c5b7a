// Package readrange implements the compact read/unread article-number
// range set described in spec.md §4.2 (one per (group, server) pair).
// Ranges are kept canonical — sorted, non-overlapping, non-adjacent — so
// to_string/from_string round-trip exactly and membership tests run in
// O(log n).
package readrange

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// span is an inclusive [Low, High] article-number range, 1-based.
type span struct {
	Low, High int64
}

// Set is a canonical set of marked (read) article numbers.
type Set struct {
	spans []span // sorted, non-overlapping, non-adjacent
}

// New returns an empty read-range set.
func New() *Set {
	return &Set{}
}

// MarkRange marks every article number in [low, high] as read (or
// unread, when read is false). Each call rebuilds the span slice, so
// its cost is linear in the number of stored spans.
func (s *Set) MarkRange(low, high int64, read bool) {
	if low > high {
		low, high = high, low
	}
	if read {
		s.addRange(low, high)
	} else {
		s.removeRange(low, high)
	}
}

// MarkOne marks a single article number and reports whether it was
// marked before the call (the "previous state" callers use to adjust
// unread counters without double-counting).
func (s *Set) MarkOne(number int64, read bool) (previous bool) {
	previous = s.IsMarked(number)
	if previous == read {
		return previous // idempotent: nothing to change
	}
	s.MarkRange(number, number, read)
	return previous
}

// IsMarked reports whether number is currently read. O(log n).
func (s *Set) IsMarked(number int64) bool {
	i := sort.Search(len(s.spans), func(i int) bool { return s.spans[i].High >= number })
	return i < len(s.spans) && s.spans[i].Low <= number
}

func (s *Set) addRange(low, high int64) {
	// Find the first span whose High is >= low-1 (a candidate for merging).
	i := sort.Search(len(s.spans), func(i int) bool { return s.spans[i].High >= low-1 })
	j := i
	for j < len(s.spans) && s.spans[j].Low <= high+1 {
		if s.spans[j].Low < low {
			low = s.spans[j].Low
		}
		if s.spans[j].High > high {
			high = s.spans[j].High
		}
		j++
	}
	merged := append([]span{}, s.spans[:i]...)
	merged = append(merged, span{low, high})
	merged = append(merged, s.spans[j:]...)
	s.spans = merged
}

func (s *Set) removeRange(low, high int64) {
	var out []span
	for _, sp := range s.spans {
		if sp.High < low || sp.Low > high {
			out = append(out, sp)
			continue
		}
		if sp.Low < low {
			out = append(out, span{sp.Low, low - 1})
		}
		if sp.High > high {
			out = append(out, span{high + 1, sp.High})
		}
	}
	s.spans = out
}

// String renders the set in newsrc form: comma-separated ranges,
// "a-b,c,d-e"; the empty set renders as "".
func (s *Set) String() string {
	parts := make([]string, 0, len(s.spans))
	for _, sp := range s.spans {
		if sp.Low == sp.High {
			parts = append(parts, strconv.FormatInt(sp.Low, 10))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", sp.Low, sp.High))
		}
	}
	return strings.Join(parts, ",")
}

// FromString parses the newsrc range form produced by String. It is
// strict about malformed ranges (low > high, non-numeric tokens) to
// avoid silently corrupting a read-state on a damaged newsrc line.
func FromString(str string) (*Set, error) {
	s := New()
	str = strings.TrimSpace(str)
	if str == "" {
		return s, nil
	}
	for _, tok := range strings.Split(str, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if dash := strings.IndexByte(tok, '-'); dash >= 0 {
			lowStr, highStr := tok[:dash], tok[dash+1:]
			low, err := strconv.ParseInt(lowStr, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("readrange: invalid range start %q: %w", tok, err)
			}
			high, err := strconv.ParseInt(highStr, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("readrange: invalid range end %q: %w", tok, err)
			}
			if low > high {
				return nil, fmt.Errorf("readrange: inverted range %q", tok)
			}
			s.addRange(low, high)
		} else {
			n, err := strconv.ParseInt(tok, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("readrange: invalid number %q: %w", tok, err)
			}
			s.addRange(n, n)
		}
	}
	return s, nil
}

// Count returns the number of distinct article numbers marked read.
func (s *Set) Count() int64 {
	var n int64
	for _, sp := range s.spans {
		n += sp.High - sp.Low + 1
	}
	return n
}
