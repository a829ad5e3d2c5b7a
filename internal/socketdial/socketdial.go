// Package socketdial implements the SocketCreator collaborator
// (spec.md §6): it opens a raw or TLS socket to a host:port and,
// optionally, pins the peer certificate to an expected fingerprint. It
// issues no NNTP verbs; everything past the TCP/TLS handshake is the
// caller's concern. Grounded on go-pugleaf's internal/nntp
// BackendConn.Connect dial logic, generalized into a standalone dialer
// that doesn't assume a connection pool.
package socketdial

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"net"
	"strconv"
	"time"

	"github.com/go-while/go-pan/internal/errkind"
)

// DefaultTimeout is used when Dial's ctx carries no deadline.
const DefaultTimeout = 30 * time.Second

// Socket is the live connection handed back to the caller. It is a
// plain net.Conn; TLS connections are wrapped as *tls.Conn underneath
// but callers never need the concrete type.
type Socket = net.Conn

// Options configures a single Connect call.
type Options struct {
	TLS                bool
	InsecureSkipVerify bool   // only honored when CertFingerprint is empty
	CertFingerprint    string // hex sha256 of the peer leaf cert, or "" for none
}

// Connect opens a socket to host:port, optionally negotiating TLS and
// pinning the peer certificate (spec.md §6: "connect(host, port, tls?,
// cert_fingerprint?) -> Socket"). The context's deadline, if any,
// bounds the dial; otherwise DefaultTimeout applies.
func Connect(ctx context.Context, host string, port int, opts Options) (Socket, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	timeout := DefaultTimeout
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			timeout = d
		}
	}
	dialer := &net.Dialer{Timeout: timeout}

	if !opts.TLS {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, errkind.Newf(errkind.Network, "socketdial: dial %s: %v", addr, err)
		}
		return conn, nil
	}

	tlsConfig := &tls.Config{
		ServerName:         host,
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: opts.InsecureSkipVerify || opts.CertFingerprint != "",
	}
	conn, err := tls.DialWithDialer(dialer, "tcp", addr, tlsConfig)
	if err != nil {
		return nil, errkind.Newf(errkind.Network, "socketdial: tls dial %s: %v", addr, err)
	}

	if opts.CertFingerprint != "" {
		if err := verifyFingerprint(conn, opts.CertFingerprint); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

// verifyFingerprint checks the peer's leaf certificate against a
// pinned hex-encoded sha256 fingerprint (serverreg.Server.PinnedCert).
// TLS verification of the chain is skipped in favor of this explicit
// pin, matching how certificate pinning is normally layered on top of
// (not instead of) a TLS handshake when the expected fingerprint is
// known out of band.
func verifyFingerprint(conn *tls.Conn, want string) error {
	state := conn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return errkind.Newf(errkind.Network, "socketdial: no peer certificate presented")
	}
	leaf := state.PeerCertificates[0]
	sum := sha256.Sum256(leaf.Raw)
	got := hex.EncodeToString(sum[:])
	if !certFingerprintEqual(got, want) {
		return errkind.Newf(errkind.Network, "socketdial: certificate fingerprint mismatch: got %s, want %s", got, want)
	}
	return nil
}

func certFingerprintEqual(a, b string) bool {
	return normalizeFingerprint(a) == normalizeFingerprint(b)
}

func normalizeFingerprint(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ':' || c == ' ' {
			continue
		}
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}
