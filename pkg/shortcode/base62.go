// Package shortcode encodes numeric IDs into fixed-length base-62 short codes.
package shortcode

import (
	"fmt"
	"strings"
)

// Alphabet is the base-62 glyph set in code-point order.
const Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const base = int64(len(Alphabet))

// DefaultLength is the platform-wide short code length.
const DefaultLength = 7

// Encode converts id to base-62 and left-pads the result with the zero glyph
// to exactly length characters. If the raw encoding is longer than length,
// only the rightmost length glyphs are kept; codes stay unique as long as
// id < 62^length.
func Encode(id int64, length int) (string, error) {
	if id < 0 {
		return "", fmt.Errorf("shortcode: id must be non-negative, got %d", id)
	}
	if length <= 0 {
		return "", fmt.Errorf("shortcode: length must be positive, got %d", length)
	}

	if id == 0 {
		return strings.Repeat(string(Alphabet[0]), length), nil
	}

	buf := make([]byte, 0, 11) // 62^11 > MaxInt64
	for id > 0 {
		buf = append(buf, Alphabet[id%base])
		id /= base
	}
	// digits were produced least-significant first
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}

	encoded := string(buf)
	if len(encoded) < length {
		return strings.Repeat(string(Alphabet[0]), length-len(encoded)) + encoded, nil
	}
	return encoded[len(encoded)-length:], nil
}

// Decode converts a base-62 code back to its numeric value.
// Leading zero glyphs are ignored, matching the Encode padding.
func Decode(code string) (int64, error) {
	if code == "" {
		return 0, fmt.Errorf("shortcode: empty code")
	}
	var id int64
	for _, r := range code {
		idx := strings.IndexRune(Alphabet, r)
		if idx < 0 {
			return 0, fmt.Errorf("shortcode: invalid glyph %q", r)
		}
		id = id*base + int64(idx)
	}
	return id, nil
}

// IsValid reports whether code consists only of base-62 glyphs.
func IsValid(code string) bool {
	if code == "" {
		return false
	}
	for _, r := range code {
		if !strings.ContainsRune(Alphabet, r) {
			return false
		}
	}
	return true
}
