package vm

import (
	"unicode/utf16"
	"unicode/utf8"
)

// Strings are stored as WTF-8: UTF-8 that may also carry a lone surrogate
// as its three-byte generalized encoding (ED A0..BF xx). Go's own decoding
// turns such a sequence into three U+FFFD runes, so code-unit views go
// through the helpers below.

func surrogateAt(s string, i int) (uint16, bool) {
	if i+2 >= len(s) || s[i] != 0xED || s[i+1] < 0xA0 || s[i+1] > 0xBF || s[i+2]&0xC0 != 0x80 {
		return 0, false
	}
	return 0xD000 | uint16(s[i+1]&0x3F)<<6 | uint16(s[i+2]&0x3F), true
}

// codeUnits returns s as UTF-16 code units.
func codeUnits(s string) []uint16 {
	units := make([]uint16, 0, len(s))
	for i := 0; i < len(s); {
		if u, ok := surrogateAt(s, i); ok {
			units = append(units, u)
			i += 3
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		units = utf16.AppendRune(units, r)
		i += size
	}
	return units
}

// codeUnitString returns the one-unit string for u, keeping a lone surrogate.
func codeUnitString(u uint16) string {
	if !utf16.IsSurrogate(rune(u)) {
		return string(rune(u))
	}
	return string([]byte{0xE0 | byte(u>>12), 0x80 | byte(u>>6)&0x3F, 0x80 | byte(u)&0x3F})
}

// UTF16Length returns the length of s in UTF-16 code units.
func UTF16Length(s string) int {
	n := 0
	for i := 0; i < len(s); {
		if _, ok := surrogateAt(s, i); ok {
			n++
			i += 3
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		n += utf16.RuneLen(r)
		i += size
	}
	return n
}
