package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"unicode"
)

const fallbackUsernameBase = "partner"

// GenerateUsername derives a login from a company name: letters and digits
// only, lowercased, cut to prefixLen runes, then "_" and suffixDigits random
// digits. "Acme LLC" becomes something like "acmellc_4821". The result is not
// guaranteed to be unique.
func GenerateUsername(companyName string, prefixLen, suffixDigits int) (string, error) {
	var base strings.Builder
	count := 0
	for _, r := range companyName {
		if prefixLen > 0 && count >= prefixLen {
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			base.WriteRune(unicode.ToLower(r))
			count++
		}
	}

	name := base.String()
	if name == "" {
		name = fallbackUsernameBase
	}
	if suffixDigits <= 0 {
		return name, nil
	}

	suffix := make([]byte, suffixDigits)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to generate username suffix: %w", err)
		}
		suffix[i] = byte('0' + n.Int64())
	}
	return name + "_" + string(suffix), nil
}
