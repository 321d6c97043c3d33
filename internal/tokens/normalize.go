// Package tokens maps partner tokens onto station-side authorizations.
package tokens

import (
	"crypto/sha256"
	"encoding/hex"

	"ocpi/internal/models"
)

// MaxIDTokenLength is the longest id token a station accepts.
const MaxIDTokenLength = 20

// Normalize returns uid unchanged when it fits a station id token, otherwise
// the first MaxIDTokenLength hex characters of its SHA-256.
func Normalize(uid string) string {
	if len(uid) <= MaxIDTokenLength {
		return uid
	}
	sum := sha256.Sum256([]byte(uid))
	return hex.EncodeToString(sum[:])[:MaxIDTokenLength]
}

// NeedsExternalCopy reports whether Normalize alters uid, in which case the
// original must be kept to answer partners with their own identifier.
func NeedsExternalCopy(uid string) bool {
	return Normalize(uid) != uid
}

// MergeAdditionalInfo overwrites the id token of every entry in oldComplete
// whose type also appears in newPartial. Types only present in newPartial are
// ignored.
func MergeAdditionalInfo(newPartial, oldComplete []models.AdditionalInfo) []models.AdditionalInfo {
	byType := make(map[string]string, len(newPartial))
	for _, p := range newPartial {
		byType[p.Type] = p.AdditionalIDToken
	}

	merged := make([]models.AdditionalInfo, 0, len(oldComplete))
	for _, o := range oldComplete {
		if v, ok := byType[o.Type]; ok {
			o.AdditionalIDToken = v
		}
		merged = append(merged, o)
	}
	return merged
}
