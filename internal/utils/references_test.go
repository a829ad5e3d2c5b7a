package utils

import "testing"

func TestParseReferencesWhitespace(t *testing.T) {
	refs := ParseReferences("  <a@x>\t<b@x>\n<c@x>  ")
	want := []string{"<a@x>", "<b@x>", "<c@x>"}
	if len(refs) != len(want) {
		t.Fatalf("expected %v, got %v", want, refs)
	}
	for i := range want {
		if refs[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, refs)
		}
	}
}

func TestParseReferencesEmpty(t *testing.T) {
	if refs := ParseReferences(""); len(refs) != 0 {
		t.Fatalf("expected no references, got %v", refs)
	}
}
