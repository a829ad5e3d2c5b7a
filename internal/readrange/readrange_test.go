package readrange

import "testing"

func TestMarkRangeAndIsMarked(t *testing.T) {
	s := New()
	s.MarkRange(5, 10, true)
	for i := int64(5); i <= 10; i++ {
		if !s.IsMarked(i) {
			t.Fatalf("expected %d to be marked", i)
		}
	}
	if s.IsMarked(4) || s.IsMarked(11) {
		t.Fatalf("boundary articles must not be marked")
	}
}

func TestMarkOneIdempotentAndPreviousState(t *testing.T) {
	s := New()
	prev := s.MarkOne(1, true)
	if prev {
		t.Fatalf("expected previous state false before first mark")
	}
	prev = s.MarkOne(1, true)
	if !prev {
		t.Fatalf("expected previous state true on idempotent re-mark")
	}
}

func TestStringCanonicalForm(t *testing.T) {
	s := New()
	s.MarkRange(1, 3, true)
	s.MarkRange(5, 5, true)
	s.MarkRange(7, 9, true)
	got := s.String()
	want := "1-3,5,7-9"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestAdjacentRangesMerge(t *testing.T) {
	s := New()
	s.MarkRange(1, 3, true)
	s.MarkRange(4, 6, true) // adjacent, must merge into one span
	if got := s.String(); got != "1-6" {
		t.Fatalf("expected adjacent ranges to merge, got %q", got)
	}
}

func TestOverlappingRangesMerge(t *testing.T) {
	s := New()
	s.MarkRange(1, 5, true)
	s.MarkRange(3, 8, true)
	if got := s.String(); got != "1-8" {
		t.Fatalf("expected overlapping ranges to merge, got %q", got)
	}
}

func TestUnmarkSplitsRange(t *testing.T) {
	s := New()
	s.MarkRange(1, 10, true)
	s.MarkRange(5, 5, false)
	if got := s.String(); got != "1-4,6-10" {
		t.Fatalf("got %q", got)
	}
}

func TestEmptySetString(t *testing.T) {
	s := New()
	if s.String() != "" {
		t.Fatalf("empty set must render as empty string")
	}
}

func TestRoundTrip(t *testing.T) {
	cases := []string{"", "1", "1-5", "1-3,5,7-9", "42"}
	for _, c := range cases {
		s, err := FromString(c)
		if err != nil {
			t.Fatalf("FromString(%q) error: %v", c, err)
		}
		if got := s.String(); got != c {
			t.Fatalf("round trip failed: FromString(%q).String() = %q", c, got)
		}
	}
}

func TestFromStringRejectsMalformed(t *testing.T) {
	for _, bad := range []string{"5-1", "abc", "1-abc", "abc-5"} {
		if _, err := FromString(bad); err == nil {
			t.Fatalf("expected error parsing %q", bad)
		}
	}
}

func TestCount(t *testing.T) {
	s := New()
	s.MarkRange(1, 5, true)
	s.MarkRange(10, 10, true)
	if s.Count() != 6 {
		t.Fatalf("expected count 6, got %d", s.Count())
	}
}
