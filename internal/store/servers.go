package store

import (
	"encoding/xml"
	"os"

	"github.com/go-while/go-pan/internal/errkind"
	"github.com/go-while/go-pan/internal/serverreg"
)

type xmlServers struct {
	XMLName xml.Name    `xml:"servers"`
	Server  []xmlServer `xml:"server"`
}

type xmlServer struct {
	ID          string `xml:"id,attr"`
	Host        string `xml:"host"`
	Port        int    `xml:"port"`
	Username    string `xml:"username,omitempty"`
	MaxConns    int    `xml:"max-conns"`
	Rank        int    `xml:"rank"`
	TLS         int    `xml:"tls"`
	PinnedCert  string `xml:"pinned-cert,omitempty"`
	Trust       bool   `xml:"trust"`
	Compression int    `xml:"compression"`
	ExpireDays  int    `xml:"expire-days"`
	NewsrcPath  string `xml:"newsrc-path"`
}

// SaveServers writes servers.xml, one <server> element per registered
// server (spec.md §4.9).
func SaveServers(dir Dir, reg *serverreg.Registry) error {
	var doc xmlServers
	for _, id := range reg.Servers() {
		s, ok := reg.Get(id)
		if !ok {
			continue
		}
		doc.Server = append(doc.Server, xmlServer{
			ID: s.ID, Host: s.Host, Port: s.Port, Username: s.Username,
			MaxConns: s.MaxConns, Rank: s.Rank, TLS: int(s.TLS),
			PinnedCert: s.PinnedCert, Trust: s.Trust,
			Compression: int(s.Compression), ExpireDays: s.ExpireDays,
			NewsrcPath: s.NewsrcPath,
		})
	}
	return WriteFile(dir.ServersPath(), func(sink *Sink) error {
		enc := xml.NewEncoder(sink)
		enc.Indent("", "  ")
		return enc.Encode(doc)
	})
}

// LoadServers reads servers.xml into reg via RestoreServer. A missing
// file is not an error: a fresh data directory simply has no servers
// yet.
func LoadServers(dir Dir, reg *serverreg.Registry) error {
	f, err := os.Open(dir.ServersPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errkind.New(errkind.IO, err)
	}
	defer f.Close()

	var doc xmlServers
	if err := xml.NewDecoder(f).Decode(&doc); err != nil {
		return errkind.New(errkind.Parse, err)
	}
	for _, s := range doc.Server {
		reg.RestoreServer(&serverreg.Server{
			ID: s.ID, Host: s.Host, Port: s.Port, Username: s.Username,
			MaxConns: s.MaxConns, Rank: s.Rank, TLS: serverreg.TLSMode(s.TLS),
			PinnedCert: s.PinnedCert, Trust: s.Trust,
			Compression: serverreg.Compression(s.Compression), ExpireDays: s.ExpireDays,
			NewsrcPath: s.NewsrcPath,
		})
	}
	return nil
}
