package queue

import (
	"encoding/xml"
	"os"

	"github.com/go-while/go-pan/internal/errkind"
	"github.com/go-while/go-pan/internal/store"
)

// Archive format: tasks.nzb serializes queued and stopped tasks as an
// NZB-style document (spec.md §4.10). Each task is one <file> whose
// target attribute holds the task id. Its <head> carries the fields an
// NZB doesn't natively have (id, kind, server, state) as <meta> rows,
// matching how real NZB producers smuggle nonstandard metadata without
// breaking generic NZB consumers, and its completed and failed parts
// are <segment> rows with a status attribute.
type nzbDoc struct {
	XMLName xml.Name  `xml:"nzb"`
	Files   []nzbFile `xml:"file"`
}

type nzbFile struct {
	TargetPath string   `xml:"target,attr"`
	Meta       []nzbMeta `xml:"head>meta"`
	Segments   []nzbSeg  `xml:"segments>segment"`
}

type nzbMeta struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type nzbSeg struct {
	Number int    `xml:"number,attr"`
	Status string `xml:"status,attr"` // "done" | "failed" | "pending"
	Bytes  int64  `xml:",chardata"`
}

// SaveArchive writes tasks.nzb atomically (spec.md §4.9 protocol).
func SaveArchive(dir store.Dir, tasks []*Task) error {
	var doc nzbDoc
	for _, t := range tasks {
		f := nzbFile{TargetPath: t.ID}
		f.Meta = append(f.Meta,
			nzbMeta{Type: "id", Value: t.ID},
			nzbMeta{Type: "kind", Value: t.Kind},
			nzbMeta{Type: "server", Value: t.ServerID},
			nzbMeta{Type: "state", Value: t.State.String()},
		)
		for _, c := range t.Completed {
			f.Segments = append(f.Segments, nzbSeg{Number: c.Index, Status: "done", Bytes: c.Bytes})
		}
		for _, fp := range t.Failed {
			f.Segments = append(f.Segments, nzbSeg{Number: fp.Index, Status: "failed", Bytes: fp.Bytes})
		}
		doc.Files = append(doc.Files, f)
	}
	return store.WriteFile(dir.TasksPath(), func(sink *store.Sink) error {
		enc := xml.NewEncoder(sink)
		enc.Indent("", "  ")
		return enc.Encode(doc)
	})
}

// LoadArchive reads tasks.nzb back into restartable Task records. Only
// the fields needed to reconstruct a task per spec.md §4.10 are
// restored; byte totals and progress are left to the caller to refresh
// once the task resumes against its server.
func LoadArchive(dir store.Dir) ([]*Task, error) {
	f, err := os.Open(dir.TasksPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errkind.New(errkind.IO, err)
	}
	defer f.Close()

	var doc nzbDoc
	if err := xml.NewDecoder(f).Decode(&doc); err != nil {
		return nil, errkind.New(errkind.Parse, err)
	}

	out := make([]*Task, 0, len(doc.Files))
	for _, file := range doc.Files {
		t := &Task{ID: file.TargetPath, State: StateQueued}
		for _, m := range file.Meta {
			switch m.Type {
			case "kind":
				t.Kind = m.Value
			case "server":
				t.ServerID = m.Value
			}
		}
		for _, seg := range file.Segments {
			switch seg.Status {
			case "done":
				t.Completed = append(t.Completed, PartResult{Index: seg.Number, Bytes: seg.Bytes})
			case "failed":
				t.Failed = append(t.Failed, PartResult{Index: seg.Number, Bytes: seg.Bytes})
			}
		}
		out = append(out, t)
	}
	return out, nil
}
