// Package store implements the persistence layer (C9, spec.md §4.9):
// the atomic write-rename-chmod protocol and the per-user data
// directory's file set (servers.xml, newsrc-<server-id>,
// newsgroups.dsc/.ynm/.xov, groups/<group>, tasks.nzb, posting.xml,
// Score). Grounded on go-pugleaf's database.MoveFile rename pattern in
// internal/database/utils.go, generalized into the write/flush/rename/
// chmod sequence spec.md requires for every write in this layer.
package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-while/go-pan/internal/errkind"
)

// Sink is the stream callers write into; WriteDone finalizes via the
// atomic write-rename-chmod protocol described in spec.md §4.9. A Sink
// that is never finalized leaves only a .tmp file behind; the target
// path is never touched until a successful WriteDone.
type Sink struct {
	path string
	tmp  string
	f    *os.File
	err  error
}

// Create opens path.tmp for a fresh atomic write.
func Create(path string) (*Sink, error) {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errkind.New(errkind.IO, err)
	}
	return &Sink{path: path, tmp: tmp, f: f}, nil
}

// Write implements io.Writer, recording the first stream error so a
// later WriteDone can abort the rename.
func (s *Sink) Write(p []byte) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	n, err := s.f.Write(p)
	if err != nil {
		s.err = err
	}
	return n, err
}

// WriteDone finalizes the sink per spec.md §4.9: flush, check the
// stream error state, close, rename(tmp, path), chmod(path, 0600). On
// any prior stream error the .tmp file is removed and the original
// path is left untouched.
func (s *Sink) WriteDone() error {
	if s.err != nil {
		s.f.Close()
		os.Remove(s.tmp)
		return errkind.New(errkind.IO, fmt.Errorf("store: write to %s failed: %w", s.tmp, s.err))
	}
	if err := s.f.Sync(); err != nil {
		s.f.Close()
		os.Remove(s.tmp)
		return errkind.New(errkind.IO, err)
	}
	if err := s.f.Close(); err != nil {
		os.Remove(s.tmp)
		return errkind.New(errkind.IO, err)
	}
	if err := os.Rename(s.tmp, s.path); err != nil {
		os.Remove(s.tmp)
		return errkind.New(errkind.IO, err)
	}
	if err := os.Chmod(s.path, 0600); err != nil {
		return errkind.New(errkind.IO, err)
	}
	return nil
}

// WriteFile creates path's directory, runs write against a fresh Sink
// for path, and finalizes it with WriteDone. If write returns an error
// the .tmp file is removed and path is left untouched.
func WriteFile(path string, write func(*Sink) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errkind.New(errkind.IO, err)
	}
	sink, err := Create(path)
	if err != nil {
		return err
	}
	if err := write(sink); err != nil {
		sink.f.Close()
		os.Remove(sink.tmp)
		return err
	}
	return sink.WriteDone()
}
