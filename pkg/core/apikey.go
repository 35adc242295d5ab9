package core

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const (
	apiKeyPrefix   = "NEXUS-"
	apiKeyAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	apiKeyRandLen  = 9
)

// GenerateAPIKey produces a user-visible key of the form
// NEXUS-XXXXXXXXX-TTTTTTTT where X is a random base36 character and T is
// the creation time in base36. The key is opaque to the core; only the
// URL-triggered request path checks it.
func GenerateAPIKey() string {
	var b strings.Builder
	b.WriteString(apiKeyPrefix)
	for i := 0; i < apiKeyRandLen; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(apiKeyAlphabet))))
		if err != nil {
			// crypto/rand only fails when the platform source is broken.
			panic("apikey: " + err.Error())
		}
		b.WriteByte(apiKeyAlphabet[n.Int64()])
	}
	b.WriteByte('-')
	b.WriteString(strings.ToUpper(strconv.FormatInt(time.Now().UnixMilli(), 36)))
	return b.String()
}

// ValidKeyShape reports whether key has the NEXUS-XXXXXXXXX-T... shape.
// Shape checking alone never authorizes a request; the caller must also
// compare against the stored key.
func ValidKeyShape(key string) bool {
	rest, ok := strings.CutPrefix(key, apiKeyPrefix)
	if !ok {
		return false
	}
	randPart, tsPart, ok := strings.Cut(rest, "-")
	if !ok || len(randPart) != apiKeyRandLen || tsPart == "" {
		return false
	}
	for _, part := range []string{randPart, tsPart} {
		for i := 0; i < len(part); i++ {
			if !strings.ContainsRune(apiKeyAlphabet, rune(part[i])) {
				return false
			}
		}
	}
	return true
}
