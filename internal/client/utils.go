package client

import (
	"strings"

	"github.com/mmcloughlin/geohash"
	"github.com/rivo/uniseg"
)

// anonNickname derives the default nickname for an identity that never set
// one: "anon" plus the first eight hex characters of the pubkey.
func anonNickname(pubkey string) string {
	if len(pubkey) < 8 {
		return "anon" + pubkey
	}
	return "anon" + pubkey[:8]
}

func shortPubKey(pubkey string) string {
	if len(pubkey) < 8 {
		return pubkey
	}
	return pubkey[:8]
}

func isValidGeohash(s string) bool {
	if s == "" {
		return false
	}
	return geohash.Validate(s) == nil
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return len(s) > 0
}

// sanitizeString strips control characters that could corrupt the terminal,
// keeping newlines and tabs.
func sanitizeString(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 32 && r != '\n' && r != '\t' {
			continue
		}
		if r == 127 {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// truncateString cuts s to at most maxClusters grapheme clusters so that
// multi-rune emoji are never split mid-sequence.
func truncateString(s string, maxClusters int) string {
	g := uniseg.NewGraphemes(s)
	var b strings.Builder
	count := 0
	for g.Next() {
		if count >= maxClusters {
			b.WriteString("...")
			break
		}
		b.WriteString(g.Str())
		count++
	}
	return b.String()
}
