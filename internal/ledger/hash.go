package ledger

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// HashWidth is the number of hex digits in a ledger key (32 bytes).
const HashWidth = 64

// NormalizeHash converts a hex digest of up to 32 bytes into the fixed-width,
// 0x-prefixed lowercase form the ledger stores. Shorter values are left-padded
// with zeros.
func NormalizeHash(h string) (string, error) {
	h = strings.TrimSpace(h)
	h = strings.TrimPrefix(strings.TrimPrefix(h, "0x"), "0X")
	if h == "" {
		return "", fmt.Errorf("empty hash")
	}
	if len(h) > HashWidth {
		return "", fmt.Errorf("hash is %d hex digits, max %d", len(h), HashWidth)
	}
	if len(h)%2 == 1 {
		h = "0" + h
	}
	if _, err := hex.DecodeString(h); err != nil {
		return "", fmt.Errorf("hash is not hex: %w", err)
	}
	return "0x" + strings.Repeat("0", HashWidth-len(h)) + strings.ToLower(h), nil
}
