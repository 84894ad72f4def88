package account

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"hash"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

// werkzeug's default when the method string carries no iteration count
const werkzeugDefaultIterations = 260000

func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckPassword verifies password against a bcrypt hash or a werkzeug
// "method$salt$hex" hash. legacy reports whether the stored hash should be
// replaced with a bcrypt one.
func CheckPassword(password, stored string) (ok, legacy bool) {
	if strings.HasPrefix(stored, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil, false
	}
	return checkWerkzeug(password, stored), true
}

func checkWerkzeug(password, stored string) bool {
	parts := strings.SplitN(stored, "$", 3)
	if len(parts) != 3 {
		return false
	}
	method, salt, want := parts[0], parts[1], parts[2]

	expected, err := hex.DecodeString(want)
	if err != nil || len(expected) == 0 {
		return false
	}

	var got []byte
	args := strings.Split(method, ":")
	switch args[0] {
	case "pbkdf2":
		if len(args) < 2 {
			return false
		}
		h := pbkdf2Hash(args[1])
		if h == nil {
			return false
		}
		iter := werkzeugDefaultIterations
		if len(args) > 2 {
			if iter, err = strconv.Atoi(args[2]); err != nil || iter <= 0 {
				return false
			}
		}
		got = pbkdf2.Key([]byte(password), []byte(salt), iter, len(expected), h)
	case "scrypt":
		n, r, p := 32768, 8, 1
		if len(args) == 4 {
			var e1, e2, e3 error
			n, e1 = strconv.Atoi(args[1])
			r, e2 = strconv.Atoi(args[2])
			p, e3 = strconv.Atoi(args[3])
			if e1 != nil || e2 != nil || e3 != nil {
				return false
			}
		}
		if got, err = scrypt.Key([]byte(password), []byte(salt), n, r, p, len(expected)); err != nil {
			return false
		}
	default:
		return false
	}

	return subtle.ConstantTimeCompare(got, expected) == 1
}

func pbkdf2Hash(name string) func() hash.Hash {
	switch name {
	case "sha256":
		return sha256.New
	case "sha512":
		return sha512.New
	case "sha1":
		return sha1.New
	}
	return nil
}
