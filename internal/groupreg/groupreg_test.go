package groupreg

import (
	"testing"

	"github.com/go-while/go-pan/internal/quark"
)

func TestAddGroupsDefaultsToUnsubscribed(t *testing.T) {
	r := New(quark.NewPool())
	r.AddGroups([]Info{{Name: "alt.test"}, {Name: "comp.lang.go"}})
	if r.IsSubscribed("alt.test") {
		t.Fatalf("freshly listed groups must start unsubscribed")
	}
	un := r.Unsubscribed()
	if len(un) != 2 || un[0] != "alt.test" || un[1] != "comp.lang.go" {
		t.Fatalf("expected sorted unsubscribed set, got %v", un)
	}
}

func TestAddGroupsDeduplicates(t *testing.T) {
	r := New(quark.NewPool())
	r.AddGroups([]Info{{Name: "alt.test"}})
	r.AddGroups([]Info{{Name: "alt.test"}, {Name: "alt.test2"}})
	if len(r.Unsubscribed()) != 2 {
		t.Fatalf("expected no duplicate entries, got %v", r.Unsubscribed())
	}
}

func TestSubscriptionIsMutuallyExclusive(t *testing.T) {
	r := New(quark.NewPool())
	r.AddGroups([]Info{{Name: "alt.test"}})
	r.SetSubscribed("alt.test", true)
	if !r.IsSubscribed("alt.test") {
		t.Fatalf("expected alt.test to be subscribed")
	}
	for _, g := range r.Unsubscribed() {
		if g == "alt.test" {
			t.Fatalf("alt.test must not appear in both sets")
		}
	}
}

func TestModeratedAndNoPostFlags(t *testing.T) {
	r := New(quark.NewPool())
	r.AddGroups([]Info{{Name: "alt.mod", Moderated: true}, {Name: "alt.nopost", NoPost: true}})
	if !r.IsModerated("alt.mod") {
		t.Fatalf("expected alt.mod to be moderated")
	}
	if !r.IsNoPost("alt.nopost") {
		t.Fatalf("expected alt.nopost to be no-post")
	}
}

func TestDescriptionIgnoresEmptyAndQuestionMark(t *testing.T) {
	r := New(quark.NewPool())
	r.AddGroups([]Info{{Name: "alt.test", Description: "A test group"}})
	r.AddGroups([]Info{{Name: "alt.test", Description: "?"}})
	desc, ok := r.Description("alt.test")
	if !ok || desc != "A test group" {
		t.Fatalf("expected '?' description update to be ignored, got %q", desc)
	}
}

func TestUpdateCounts(t *testing.T) {
	r := New(quark.NewPool())
	r.AddGroups([]Info{{Name: "alt.test"}})
	r.UpdateCounts("alt.test", 5, 10)
	c := r.GetCounts("alt.test")
	if c.Unread != 5 || c.Total != 10 {
		t.Fatalf("expected counts {5,10}, got %+v", c)
	}
}

func TestRemoveServerGroups(t *testing.T) {
	r := New(quark.NewPool())
	r.AddGroups([]Info{{Name: "alt.gone"}})
	r.RemoveServerGroups([]string{"alt.gone"})
	if r.IsSubscribed("alt.gone") {
		t.Fatalf("removed group must not be subscribed")
	}
	for _, g := range r.Unsubscribed() {
		if g == "alt.gone" {
			t.Fatalf("removed group must not remain in unsubscribed set")
		}
	}
}
