// Package password hashes and checks user passwords with Argon2id, stored
// in the PHC string form "$argon2id$v=19$m=..,t=..,p=..$salt$key".
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// MinLength is the shortest accepted password.
const MinLength = 6

type params struct {
	memory  uint32 // KiB
	passes  uint32
	threads uint8
}

var current = params{memory: 64 * 1024, passes: 1, threads: 4}

const (
	saltBytes = 16
	keyBytes  = 32
)

var b64 = base64.RawStdEncoding

func (p params) derive(plain string, salt []byte, n uint32) []byte {
	return argon2.IDKey([]byte(plain), salt, p.passes, p.memory, p.threads, n)
}

func Hash(plain string) (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := current.derive(plain, salt, keyBytes)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, current.memory, current.passes, current.threads,
		b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

// Verify reports whether plain matches encoded. Malformed hashes never match.
func Verify(plain, encoded string) bool {
	p, salt, key, ok := decode(encoded)
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare(key, p.derive(plain, salt, uint32(len(key)))) == 1
}

func decode(encoded string) (params, []byte, []byte, bool) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return params{}, nil, nil, false
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil || version != argon2.Version {
		return params{}, nil, nil, false
	}

	var p params
	if n, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &p.memory, &p.passes, &p.threads); err != nil || n != 3 {
		return params{}, nil, nil, false
	}
	if p.memory == 0 || p.passes == 0 || p.threads == 0 {
		return params{}, nil, nil, false
	}

	salt, err := b64.DecodeString(fields[4])
	if err != nil {
		return params{}, nil, nil, false
	}
	key, err := b64.DecodeString(fields[5])
	if err != nil || len(key) == 0 {
		return params{}, nil, nil, false
	}
	return p, salt, key, true
}
