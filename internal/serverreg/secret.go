package serverreg

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"os"
	"sync"

	"github.com/go-while/go-pan/internal/errkind"
)

// MachineSecretStore is the concrete SecretStore collaborator (spec.md
// §6): unlike cmd/usermgr's bcrypt-hashed web-user passwords, NNTP
// server credentials must be recoverable so the connection pool can
// actually log in, not just verify a login attempt. Passwords are
// therefore obfuscated rather than hashed: XORed against a keystream
// derived from a local machine secret, serverID and user, and stored
// base64-encoded. Anyone who can read the machine secret file can
// reverse this; it guards against casual disclosure (e.g. an
// accidentally shared servers.xml), not a determined local attacker.
type MachineSecretStore struct {
	mux    sync.RWMutex
	secret []byte
	creds  map[string]string // serverID+"\x00"+user -> base64 obfuscated password
}

// NewMachineSecretStore loads the machine secret from path, generating
// and persisting a fresh 32-byte one via writeFile (callers wire this
// to store.WriteFile for the atomic write-rename-chmod(0600) protocol)
// if none exists yet.
func NewMachineSecretStore(path string, writeFile func(path string, data []byte) error) (*MachineSecretStore, error) {
	secret, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, errkind.New(errkind.IO, err)
		}
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, errkind.New(errkind.IO, err)
		}
		if err := writeFile(path, secret); err != nil {
			return nil, err
		}
	}
	return &MachineSecretStore{secret: secret, creds: make(map[string]string)}, nil
}

func (m *MachineSecretStore) key(serverID, user string) string {
	return serverID + "\x00" + user
}

func (m *MachineSecretStore) keystream(serverID, user string, n int) []byte {
	out := make([]byte, 0, n)
	counter := byte(0)
	for len(out) < n {
		h := sha256.New()
		h.Write(m.secret)
		h.Write([]byte(serverID))
		h.Write([]byte(user))
		h.Write([]byte{counter})
		out = append(out, h.Sum(nil)...)
		counter++
	}
	return out[:n]
}

// Store obfuscates password with a keystream unique to (serverID,
// user) and keeps it in memory, keyed for Lookup.
func (m *MachineSecretStore) Store(serverID, user, password string) error {
	plain := []byte(password)
	stream := m.keystream(serverID, user, len(plain))
	out := make([]byte, len(plain))
	for i := range plain {
		out[i] = plain[i] ^ stream[i]
	}
	m.mux.Lock()
	m.creds[m.key(serverID, user)] = base64.StdEncoding.EncodeToString(out)
	m.mux.Unlock()
	return nil
}

// Lookup reverses Store's obfuscation.
func (m *MachineSecretStore) Lookup(serverID, user string) (string, bool) {
	m.mux.RLock()
	enc, ok := m.creds[m.key(serverID, user)]
	m.mux.RUnlock()
	if !ok {
		return "", false
	}
	raw, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return "", false
	}
	stream := m.keystream(serverID, user, len(raw))
	out := make([]byte, len(raw))
	for i := range raw {
		out[i] = raw[i] ^ stream[i]
	}
	return string(out), true
}
