package recovery

import (
	"fmt"
	"regexp"
	"strings"
)

// singleQuotedKey matches a key written with single quotes: 'word' then optional whitespace and a colon.
var singleQuotedKey = regexp.MustCompile(`^'([\p{L}\p{N}_]+)'\s*:`)

// scanState is the state of the value normalizer.
type scanState int

const (
	scanning scanState = iota
	// inString copies an already double-quoted JSON string verbatim.
	inString
	// capturingValue rewrites a single-quoted value into a double-quoted one.
	capturingValue
)

// NormalizeKeys rewrites single-quoted keys into double-quoted ones. Double-quoted strings
// are copied untouched. A quote only opens a string or a key after a structural character, so
// a stray '"' inside a single-quoted value (5" screen) is copied as plain text.
func NormalizeKeys(block string) string {
	var b strings.Builder
	b.Grow(len(block))
	var prev byte
	for i := 0; i < len(block); {
		c := block[i]
		if (c == '"' || c == '\'') && opensString(prev) {
			if c == '"' {
				end := skipString(block, i)
				b.WriteString(block[i:end])
				i = end
				prev = '"'
				continue
			}
			if m := singleQuotedKey.FindStringSubmatchIndex(block[i:]); m != nil {
				b.WriteByte('"')
				b.WriteString(block[i+m[2] : i+m[3]])
				b.WriteByte('"')
				// Whitespace and the colon are copied by the following iterations.
				i += m[3] + 1
				prev = '"'
				continue
			}
		}
		b.WriteByte(c)
		if !isSpace(c) {
			prev = c
		}
		i++
	}
	return b.String()
}

// opensString reports whether a quote following prev, the last non-space byte, can start a
// string: at the start of the text or after a structural character.
func opensString(prev byte) bool {
	switch prev {
	case 0, '{', '[', ',', ':':
		return true
	}
	return false
}

// skipString returns the index just past the double-quoted string starting at start,
// or len(s) when the string is never closed.
func skipString(s string, start int) int {
	for i := start + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return i + 1
		}
	}
	return len(s)
}

// NormalizeValues turns single-quoted values into double-quoted JSON strings.
//
// A value starts at ": '". Inside it, a single quote ends the value only when the next
// non-whitespace character is ',' or '}'; any other single quote is an apostrophe and stays
// part of the text. A value still open at the end of the block is closed there.
func NormalizeValues(block string) string {
	var b strings.Builder
	b.Grow(len(block) + 16)

	state := scanning
	for i := 0; i < len(block); i++ {
		c := block[i]
		switch state {
		case scanning:
			switch {
			case c == '"':
				b.WriteByte(c)
				state = inString
			case c == ':' && strings.HasPrefix(block[i+1:], " '"):
				b.WriteString(`: "`)
				i += 2
				state = capturingValue
			default:
				b.WriteByte(c)
			}

		case inString:
			b.WriteByte(c)
			switch c {
			case '\\':
				if i+1 < len(block) {
					i++
					b.WriteByte(block[i])
				}
			case '"':
				state = scanning
			}

		case capturingValue:
			switch {
			case c == '\'' && closesValue(block, i):
				b.WriteByte('"')
				state = scanning
			case c == '\\':
				i += writeEscape(&b, block, i)
			case c == '"':
				b.WriteString(`\"`)
			case c < 0x20:
				writeControl(&b, c)
			default:
				b.WriteByte(c)
			}
		}
	}
	if state == capturingValue {
		b.WriteByte('"')
	}
	return b.String()
}

// closesValue reports whether the quote at i is followed, after whitespace only, by ',' or '}'.
func closesValue(s string, i int) bool {
	j := i + 1
	for j < len(s) && isSpace(s[j]) {
		j++
	}
	return j < len(s) && (s[j] == ',' || s[j] == '}')
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

// writeEscape handles a backslash inside a captured value and returns how many extra bytes
// it consumed.
func writeEscape(b *strings.Builder, s string, i int) int {
	if i+1 >= len(s) {
		b.WriteString(`\\`)
		return 0
	}
	switch next := s[i+1]; next {
	case '\'':
		b.WriteByte('\'')
		return 1
	case '"', '\\', '/', 'b', 'f', 'n', 'r', 't', 'u':
		b.WriteByte('\\')
		b.WriteByte(next)
		return 1
	default:
		b.WriteString(`\\`)
		return 0
	}
}

func writeControl(b *strings.Builder, c byte) {
	switch c {
	case '\n':
		b.WriteString(`\n`)
	case '\r':
		b.WriteString(`\r`)
	case '\t':
		b.WriteString(`\t`)
	default:
		fmt.Fprintf(b, `\u%04x`, c)
	}
}

// StripTrailingCommas drops a comma that directly precedes a closing brace or bracket.
func StripTrailingCommas(block string) string {
	var b strings.Builder
	b.Grow(len(block))
	for i := 0; i < len(block); {
		switch c := block[i]; c {
		case '"':
			end := skipString(block, i)
			b.WriteString(block[i:end])
			i = end
		case ',':
			j := i + 1
			for j < len(block) && isSpace(block[j]) {
				j++
			}
			if j < len(block) && (block[j] == '}' || block[j] == ']') {
				i++
				continue
			}
			b.WriteByte(c)
			i++
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}
