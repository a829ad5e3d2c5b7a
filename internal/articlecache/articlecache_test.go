package articlecache

import (
	"path/filepath"
	"testing"
)

func open(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPutContainsGetMessage(t *testing.T) {
	c := open(t)
	if c.Contains("<a1>") {
		t.Fatalf("expected empty cache to not contain <a1>")
	}
	if err := c.Put("<a1>", []byte("hello")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !c.Contains("<a1>") {
		t.Fatalf("expected cache to contain <a1> after Put")
	}
	body, err := c.GetMessage([]string{"<a1>"})
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if string(body) != "hello" {
		t.Fatalf("expected %q, got %q", "hello", body)
	}
}

func TestClearRemovesEverything(t *testing.T) {
	c := open(t)
	c.Put("<a1>", []byte("x"))
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if c.Contains("<a1>") {
		t.Fatalf("expected cache to be empty after Clear")
	}
}

func TestSetMaxMegsEvictsOldest(t *testing.T) {
	c := open(t)
	c.SetMaxMegs(0) // unbounded while seeding
	c.Put("<a1>", make([]byte, 1024*1024))
	c.Put("<a2>", make([]byte, 1024*1024))

	c.SetMaxMegs(1)
	if err := c.Put("<a3>", make([]byte, 512*1024)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if c.Contains("<a1>") {
		t.Fatalf("expected oldest entry to be evicted once over the cap")
	}
	if !c.Contains("<a3>") {
		t.Fatalf("expected newest entry to remain cached")
	}
}
