package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// enrollmentSecretLen is the byte length of derived enrollment secrets
// before hex encoding.
const enrollmentSecretLen = 16

// DeriveEnrollmentSecret derives the per-user secret presented to the CA
// when registering userID. Derivation is deterministic in (adminSecret,
// userID), so re-running a batch re-presents the same secret instead of
// rotating it, which keeps registration idempotent from the CA's point
// of view.
func DeriveEnrollmentSecret(adminSecret, userID string) (string, error) {
	r := hkdf.New(sha256.New, []byte(adminSecret), nil, []byte("enroll:"+userID))

	buf := make([]byte, enrollmentSecretLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("derive enrollment secret: %w", err)
	}

	return hex.EncodeToString(buf), nil
}
