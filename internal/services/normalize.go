package services

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// NormalizeQuestion canonicalizes a question string: lowercase, trimmed,
// internal whitespace runs collapsed to a single space.
func NormalizeQuestion(question string) string {
	return strings.Join(strings.Fields(strings.ToLower(question)), " ")
}

// QuestionHash returns the SHA-256 hex digest of the normalized question.
// Questions differing only in case or whitespace hash identically.
func QuestionHash(question string) string {
	h := sha256.Sum256([]byte(NormalizeQuestion(question)))
	return fmt.Sprintf("%x", h)
}
