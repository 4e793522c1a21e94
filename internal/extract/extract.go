// Package extract implements the narrow value extraction the validation
// engine applies to attested payloads.
//
// Payloads are treated as flat or shallow JSON-like text. A dotted path such
// as "data.rates.USD" is resolved by scanning forward for each segment in
// turn: the pattern is the quoted segment followed, after optional
// whitespace, by a colon. After the last segment the numeric token at the
// value position is parsed into a fixed-point integer with an implied
// 2-decimal scale (see pkg/fixedpoint).
//
// This is a linear first-match scan, not a structural parser. It tracks no
// brace or bracket depth, so a key name occurring inside a string value or a
// sibling object can satisfy a lookup. Rules in production are calibrated
// against this exact behavior, including truncation of extra fractional
// digits; keep the scan semantics stable.
package extract

import (
	"bytes"
	"math/big"
	"strings"

	"github.com/xiangxiecrypto/veritas-sub001/pkg/fixedpoint"
)

// Value resolves path inside data and parses the value position as a signed
// decimal, returning it scaled to two implied fractional digits.
//
// The boolean reports whether every path segment was located. A located key
// whose value carries no digits yields zero with found=true; a missing
// segment yields zero with found=false. Value never fails on malformed
// input.
func Value(data []byte, path string) (*big.Int, bool) {
	pos, ok := locate(data, path)
	if !ok {
		return new(big.Int), false
	}
	b := data[pos:]
	i := skipDelimiters(b, 0)

	negative := false
	if i < len(b) && b[i] == '-' {
		negative = true
		i++
	}

	intStart := i
	for i < len(b) && isDigit(b[i]) {
		i++
	}
	intDigits := string(b[intStart:i])

	fracDigits := ""
	if i < len(b) && b[i] == '.' {
		i++
		fracStart := i
		for i < len(b) && isDigit(b[i]) {
			i++
		}
		fracDigits = string(b[fracStart:i])
	}

	return fixedpoint.Compose(negative, intDigits, fracDigits), true
}

// Count resolves path inside data and parses the value position as an
// unsigned whole number: a digits-only scan with no sign or decimal
// handling, used for count-style gates (followers, holders, confirmations).
// A located key with no digits yields zero with found=true.
func Count(data []byte, path string) (*big.Int, bool) {
	pos, ok := locate(data, path)
	if !ok {
		return new(big.Int), false
	}
	b := data[pos:]
	i := skipDelimiters(b, 0)

	start := i
	for i < len(b) && isDigit(b[i]) {
		i++
	}
	if i == start {
		return new(big.Int), true
	}
	n, ok := new(big.Int).SetString(string(b[start:i]), 10)
	if !ok {
		return new(big.Int), true
	}
	return n, true
}

// Contains reports whether the literal pattern `"key":` occurs anywhere in
// data. The match is byte-exact with no whitespace tolerance.
func Contains(data []byte, key string) bool {
	return bytes.Contains(data, []byte(`"`+key+`":`))
}

// locate walks the dotted path and returns the offset just past the colon
// of the final segment.
func locate(data []byte, path string) (int, bool) {
	pos := 0
	for _, segment := range strings.Split(path, ".") {
		next, ok := keyIndex(data, pos, segment)
		if !ok {
			return 0, false
		}
		pos = next
	}
	return pos, true
}

// keyIndex scans data from offset from for the first occurrence of the
// quoted segment followed, after optional whitespace, by a colon. It
// returns the offset just past that colon.
func keyIndex(data []byte, from int, segment string) (int, bool) {
	pattern := []byte(`"` + segment + `"`)
	for i := from; i <= len(data)-len(pattern); {
		j := bytes.Index(data[i:], pattern)
		if j < 0 {
			return 0, false
		}
		k := i + j + len(pattern)
		for k < len(data) && isSpace(data[k]) {
			k++
		}
		if k < len(data) && data[k] == ':' {
			return k + 1, true
		}
		// Quoted segment without a trailing colon is a string value, not a
		// key. Resume one byte past the false hit.
		i = i + j + 1
	}
	return 0, false
}

// skipDelimiters advances past the whitespace, quote, and colon characters
// separating a key's colon from its numeric token.
func skipDelimiters(b []byte, i int) int {
	for i < len(b) && (isSpace(b[i]) || b[i] == '"' || b[i] == ':') {
		i++
	}
	return i
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
