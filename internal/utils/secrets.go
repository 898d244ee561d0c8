package utils

import (
	"crypto/rand"
	"fmt"
	"time"
)

// referenceAlphabet excludes ambiguous characters (0/O, 1/I/L)
const referenceAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// GenerateReference builds a human-readable booking reference like
// PUR-20260829-X7K2M9. The random tail makes collisions implausible; the
// unique index on the column catches the rest.
func GenerateReference(prefix string) (string, error) {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	for i := range b {
		b[i] = referenceAlphabet[int(b[i])%len(referenceAlphabet)]
	}
	return fmt.Sprintf("%s-%s-%s", prefix, time.Now().UTC().Format("20060102"), string(b)), nil
}
