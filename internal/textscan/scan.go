// Package textscan holds the lexical helpers of the text record format:
// the depth and quote aware splitter and string escaping.
package textscan

import (
	"strings"

	"github.com/surrealdb/recordcodec/pkg/constants"
)

// Split cuts s on sep wherever sep is outside quotes and outside any
// bracketed value. Every part is trimmed of surrounding blanks. An empty or
// blank s yields no parts.
func Split(s string, sep byte) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	var (
		parts []string
		depth int
		quote byte
		inBag bool
		start int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch c {
			case constants.EscapeChar:
				i++
			case quote:
				quote = 0
			}
			continue
		}

		switch c {
		case constants.StringDelimiter, '\'':
			quote = c
		case constants.EmbeddedBegin, constants.ListBegin, constants.MapBegin, constants.SetBegin:
			depth++
		case constants.EmbeddedEnd, constants.ListEnd, constants.MapEnd, constants.SetEnd:
			depth--
		case constants.BagDelimiter:
			if inBag {
				inBag = false
				depth--
			} else {
				inBag = true
				depth++
			}
		case constants.LegacyBagEnd:
			if inBag {
				inBag = false
				depth--
			}
		default:
			if c == sep && depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(parts, strings.TrimSpace(s[start:]))
}

// IndexTopLevel returns the index of the first sep outside quotes and
// brackets, or -1.
func IndexTopLevel(s string, sep byte) int {
	var (
		depth int
		quote byte
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch c {
			case constants.EscapeChar:
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case constants.StringDelimiter, '\'':
			quote = c
		case constants.EmbeddedBegin, constants.ListBegin, constants.MapBegin, constants.SetBegin:
			depth++
		case constants.EmbeddedEnd, constants.ListEnd, constants.MapEnd, constants.SetEnd:
			depth--
		default:
			if c == sep && depth == 0 {
				return i
			}
		}
	}
	return -1
}

// Unwrap strips the open and close framing characters from token. It
// reports false when token is not framed by them.
func Unwrap(token string, open, close byte) (string, bool) {
	if len(token) < 2 || token[0] != open || token[len(token)-1] != close {
		return token, false
	}
	return token[1 : len(token)-1], true
}

// IsQuoted reports whether token is a quoted string.
func IsQuoted(token string) bool {
	if len(token) < 2 {
		return false
	}
	first, last := token[0], token[len(token)-1]
	return (first == constants.StringDelimiter || first == '\'') && first == last
}

// Escape prefixes quotes and backslashes with a backslash.
func Escape(s string) string {
	if !strings.ContainsAny(s, `"\`) {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s) + len(s)/2)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == constants.StringDelimiter || c == constants.EscapeChar {
			sb.WriteByte(constants.EscapeChar)
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// Unescape reverses Escape. It also understands \n, \t and \r.
func Unescape(s string) string {
	pos := strings.IndexByte(s, constants.EscapeChar)
	if pos < 0 {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	sb.WriteString(s[:pos])

	escaped := false
	for i := pos; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			switch c {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			default:
				sb.WriteByte(c)
			}
			continue
		}
		if c == constants.EscapeChar {
			escaped = true
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// Unquote removes the quotes around token and unescapes its content.
func Unquote(token string) string {
	if !IsQuoted(token) {
		return token
	}
	return Unescape(token[1 : len(token)-1])
}

// Quote wraps s in double quotes, escaping it.
func Quote(s string) string {
	return `"` + Escape(s) + `"`
}
