package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// HashSecretSHA256 is how partner credential tokens are stored at rest.
func HashSecretSHA256(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func ConstantTimeEqualHex(aHex, bHex string) bool {
	a, err1 := hex.DecodeString(aHex)
	b, err2 := hex.DecodeString(bHex)
	if err1 != nil || err2 != nil {
		return false
	}
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// CredentialToken extracts the token from an "Authorization: Token <t>" header.
// Partners may send the token base64 encoded; both forms are accepted.
func CredentialToken(header string) (string, bool) {
	const prefix = "Token "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(header[len(prefix):])
	if tok == "" {
		return "", false
	}
	if raw, err := base64.StdEncoding.DecodeString(tok); err == nil && isPrintable(raw) {
		return string(raw), true
	}
	return tok, true
}

// EncodeCredentialToken is the outbound form of CredentialToken.
func EncodeCredentialToken(tok string) string {
	return "Token " + base64.StdEncoding.EncodeToString([]byte(tok))
}

// MatchesHash reports whether token hashes to the stored hex digest.
func MatchesHash(token, storedHex string) bool {
	return ConstantTimeEqualHex(HashSecretSHA256(token), storedHex)
}

func isPrintable(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		if c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}
