package store

import (
	"encoding/xml"
	"os"
	"sort"

	"github.com/go-while/go-pan/internal/errkind"
	"github.com/go-while/go-pan/internal/postmgr"
)

type xmlProfiles struct {
	XMLName xml.Name    `xml:"profiles"`
	Profile []xmlProfile `xml:"profile"`
}

type xmlProfile struct {
	Name         string         `xml:"name,attr"`
	DisplayName  string         `xml:"display-name"`
	Address      string         `xml:"address"`
	Signature    string         `xml:"signature"`
	ExtraHeaders []xmlHeaderRow `xml:"extra-header"`
}

type xmlHeaderRow struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

// SavePosting writes posting.xml (spec.md §4.9).
func SavePosting(dir Dir, m *postmgr.Manager) error {
	var doc xmlProfiles
	for _, p := range m.List() {
		xp := xmlProfile{Name: p.Name, DisplayName: p.DisplayName, Address: p.Address, Signature: p.Signature}
		keys := make([]string, 0, len(p.ExtraHeaders))
		for k := range p.ExtraHeaders {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			xp.ExtraHeaders = append(xp.ExtraHeaders, xmlHeaderRow{Key: k, Value: p.ExtraHeaders[k]})
		}
		doc.Profile = append(doc.Profile, xp)
	}
	return WriteFile(dir.PostingPath(), func(sink *Sink) error {
		enc := xml.NewEncoder(sink)
		enc.Indent("", "  ")
		return enc.Encode(doc)
	})
}

// LoadPosting reads posting.xml into m via Add. A missing file is not
// an error.
func LoadPosting(dir Dir, m *postmgr.Manager) error {
	f, err := os.Open(dir.PostingPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errkind.New(errkind.IO, err)
	}
	defer f.Close()

	var doc xmlProfiles
	if err := xml.NewDecoder(f).Decode(&doc); err != nil {
		return errkind.New(errkind.Parse, err)
	}
	for _, xp := range doc.Profile {
		headers := make(map[string]string, len(xp.ExtraHeaders))
		for _, h := range xp.ExtraHeaders {
			headers[h.Key] = h.Value
		}
		if err := m.Add(&postmgr.Profile{
			Name: xp.Name, DisplayName: xp.DisplayName, Address: xp.Address,
			Signature: xp.Signature, ExtraHeaders: headers,
		}); err != nil {
			return errkind.New(errkind.Parse, err)
		}
	}
	return nil
}
