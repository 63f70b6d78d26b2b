// Package secret provides Argon2id hashing and verification for login
// secrets. Directory records store only the PHC-format hash; cleartext
// secrets are verified at login and never persisted.
package secret

import (
	"fmt"

	"github.com/alexedwards/argon2id"
)

// params defines OWASP minimum parameters for Argon2id.
// Memory: 47 MiB, Iterations: 1, Parallelism: 1
var params = &argon2id.Params{
	Memory:      47 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// Hash returns an Argon2id hash of the secret in PHC format.
// Format: $argon2id$v=19$m=48128,t=1,p=1$<salt>$<hash>
func Hash(raw string) (string, error) {
	return argon2id.CreateHash(raw, params)
}

// Verify compares a cleartext secret against a stored PHC hash.
// The underlying argon2 library panics on malformed hashes with invalid
// parameters (e.g. t=0 rounds); the panic is converted to an error so a
// corrupt directory record can never take the process down.
func Verify(raw, storedHash string) (match bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			match = false
			err = fmt.Errorf("invalid argon2id hash parameters: %v", r)
		}
	}()
	return argon2id.ComparePasswordAndHash(raw, storedHash)
}
