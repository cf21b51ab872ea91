// Package personalize resolves per-recipient tokens in the cached rendered
// document at dispatch time. The document-level compile artifact is shared
// by every recipient; everything subscriber-specific happens here.
package personalize

import (
	"crypto/sha256"
	"encoding/hex"
)

// tokenLength is the truncated hex length of recipient tokens. Long enough
// to resist guessing, short enough for readable URLs.
const tokenLength = 16

// Token derives the recipient token from a keyed hash of (email, secret).
// It is a pure function of its inputs: the same pair always yields the same
// token, across calls and process restarts, so unsubscribe links stay valid
// indefinitely without server-side session state. Not reversible.
func Token(email, secret string) string {
	sum := sha256.Sum256([]byte(email + ":" + secret))
	return hex.EncodeToString(sum[:])[:tokenLength]
}
