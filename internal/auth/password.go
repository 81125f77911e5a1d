// Package auth creates and verifies the crypt(3) password hashes kept
// in the shadow table.
package auth

import (
	"errors"
	"strings"

	"github.com/GehirnInc/crypt"
	"github.com/GehirnInc/crypt/md5_crypt"
	"github.com/GehirnInc/crypt/sha256_crypt"
	"github.com/GehirnInc/crypt/sha512_crypt"

	"github.com/hnrobert/userdb/internal/userdb"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserLocked         = errors.New("user is locked")
	ErrUnsupportedHash    = errors.New("unsupported password hash")
)

// Hash produces a sha512-crypt shadow hash for a cleartext password,
// suitable for CreateUserArgs.PasswordHash.
func Hash(password string) (string, error) {
	return sha512_crypt.New().Generate([]byte(password), nil)
}

// VerifyPassword checks a cleartext password against the user's shadow
// hash in a loaded database.
func VerifyPassword(db *userdb.DB, username, password string) error {
	u := db.UserByName(username)
	if u == nil {
		return ErrInvalidCredentials
	}
	var hash string
	if s := u.Shadow(); s != nil {
		hash = s.Password
	} else if u.Password.Kind == userdb.PasswordEncrypted {
		hash = u.Password.Crypt
	}
	if hash == "" || strings.HasPrefix(hash, "!") || strings.HasPrefix(hash, "*") {
		return ErrUserLocked
	}
	ok, err := verifyCrypt(hash, password)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCredentials
	}
	return nil
}

func verifyCrypt(hash, password string) (bool, error) {
	// Support common crypt formats: $1$ (md5-crypt), $5$ (sha256-crypt),
	// $6$ (sha512-crypt). Newer formats like yescrypt are not supported.
	crypters := []crypt.Crypter{
		sha512_crypt.New(),
		sha256_crypt.New(),
		md5_crypt.New(),
	}
	for _, c := range crypters {
		if err := c.Verify(hash, []byte(password)); err == nil {
			return true, nil
		}
	}
	if strings.HasPrefix(hash, "$y$") || strings.HasPrefix(hash, "$7$") || strings.HasPrefix(hash, "$2") {
		return false, ErrUnsupportedHash
	}
	return false, nil
}
