// Package adminauth implements the local operator's admin password
// gate on cmd/add-server's delete operation (spec.md §6). Grounded
// directly on cmd/usermgr's bcrypt.GenerateFromPassword /
// CompareHashAndPassword password-setup flow, reused here to protect a
// destructive CLI operation instead of a web login.
package adminauth

import (
	"os"

	"golang.org/x/crypto/bcrypt"

	"github.com/go-while/go-pan/internal/errkind"
)

// SetPassword hashes password with bcrypt and writes it to path via
// writeFile (callers wire this to store.WriteFile for the atomic
// write-rename-chmod(0600) protocol).
func SetPassword(path, password string, writeFile func(path string, data []byte) error) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return errkind.New(errkind.IO, err)
	}
	return writeFile(path, hashed)
}

// HasPassword reports whether an admin password has been set at path.
func HasPassword(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Verify checks password against the bcrypt hash stored at path.
func Verify(path, password string) (bool, error) {
	hashed, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, errkind.Newf(errkind.User, "adminauth: no admin password set at %s", path)
		}
		return false, errkind.New(errkind.IO, err)
	}
	err = bcrypt.CompareHashAndPassword(hashed, []byte(password))
	if err != nil {
		if err == bcrypt.ErrMismatchedHashAndPassword {
			return false, nil
		}
		return false, errkind.New(errkind.IO, err)
	}
	return true, nil
}
