package serverreg

import "testing"

func TestAddNewServerGeneratesID(t *testing.T) {
	r := New()
	id := r.AddNewServer()
	if id == "" {
		t.Fatalf("expected non-empty id")
	}
	if _, ok := r.Get(id); !ok {
		t.Fatalf("expected newly added server to be retrievable")
	}
}

func TestDeleteServerTriggersRebuild(t *testing.T) {
	var rebuiltFor string
	var rebuiltGroups []string
	r := New(WithOnDelete(func(id string, groups []string) {
		rebuiltFor = id
		rebuiltGroups = groups
	}))
	id := r.AddNewServer()
	if err := r.AddGroups(id, []string{"alt.test", "comp.lang.go"}); err != nil {
		t.Fatalf("AddGroups: %v", err)
	}
	if err := r.DeleteServer(id); err != nil {
		t.Fatalf("DeleteServer: %v", err)
	}
	if rebuiltFor != id {
		t.Fatalf("expected rebuild callback for %s, got %s", id, rebuiltFor)
	}
	if len(rebuiltGroups) != 2 {
		t.Fatalf("expected 2 groups passed to rebuild callback, got %d", len(rebuiltGroups))
	}
	if _, ok := r.Get(id); ok {
		t.Fatalf("expected server to be gone after delete")
	}
}

func TestFindByHost(t *testing.T) {
	r := New()
	id := r.AddNewServer()
	if err := r.Mutate(id, func(s *Server) { s.Host = "news.example.org" }); err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	found, ok := r.FindByHost("news.example.org")
	if !ok || found != id {
		t.Fatalf("expected FindByHost to return %s, got %s, %v", id, found, ok)
	}
}

type fakeSecrets struct{ store map[string]string }

func (f *fakeSecrets) Store(serverID, user, password string) error {
	f.store[serverID+"/"+user] = password
	return nil
}
func (f *fakeSecrets) Lookup(serverID, user string) (string, bool) {
	pw, ok := f.store[serverID+"/"+user]
	return pw, ok
}

func TestCredentialsPreferSecretStore(t *testing.T) {
	secrets := &fakeSecrets{store: map[string]string{}}
	r := New(WithSecretStore(secrets))
	id := r.AddNewServer()
	if err := r.SetCredentials(id, "alice", "hunter2"); err != nil {
		t.Fatalf("SetCredentials: %v", err)
	}
	srv, _ := r.Get(id)
	if srv.Password != "" {
		t.Fatalf("expected in-memory password to stay empty when a secret store is attached")
	}
	if got := r.ResolvePassword(srv); got != "hunter2" {
		t.Fatalf("expected ResolvePassword to consult the secret store, got %q", got)
	}
}

func TestMutateUnknownServer(t *testing.T) {
	r := New()
	if err := r.Mutate("nonexistent", func(s *Server) {}); err == nil {
		t.Fatalf("expected error mutating an unknown server")
	}
}

func TestEventsPublishedOnMutation(t *testing.T) {
	r := New()
	_, ch := r.Subscribe()
	id := r.AddNewServer()
	ev := <-ch
	if ev.Kind != EventServerAdded || ev.ServerID != id {
		t.Fatalf("expected EventServerAdded for %s, got %+v", id, ev)
	}
}
