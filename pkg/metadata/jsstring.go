package metadata

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// unquoteJS decodes the body of a JavaScript string literal (without its
// surrounding quotes). It covers the escapes bundlers emit: \\ \' \" \n \r
// \t \b \f \v \0 \xHH \uHHHH \u{H...} and line continuations.
func unquoteJS(body string) (string, error) {
	if !strings.Contains(body, `\`) {
		return body, nil
	}

	var b strings.Builder
	b.Grow(len(body))

	for i := 0; i < len(body); {
		c := body[i]
		if c != '\\' {
			r, size := utf8.DecodeRuneInString(body[i:])
			b.WriteRune(r)
			i += size
			continue
		}
		if i+1 >= len(body) {
			return "", fmt.Errorf("dangling escape at offset %d", i)
		}

		esc := body[i+1]
		i += 2
		switch esc {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0':
			b.WriteByte(0)
		case '\n':
			// line continuation
		case 'x':
			if i+2 > len(body) {
				return "", fmt.Errorf("short \\x escape at offset %d", i-2)
			}
			v, err := strconv.ParseUint(body[i:i+2], 16, 8)
			if err != nil {
				return "", fmt.Errorf("bad \\x escape at offset %d: %w", i-2, err)
			}
			b.WriteRune(rune(v))
			i += 2
		case 'u':
			r, n, err := decodeUnicodeEscape(body[i:])
			if err != nil {
				return "", fmt.Errorf("bad \\u escape at offset %d: %w", i-2, err)
			}
			i += n
			// surrogate pair
			if r >= 0xD800 && r <= 0xDBFF && strings.HasPrefix(body[i:], `\u`) {
				if lo, m, err := decodeUnicodeEscape(body[i+2:]); err == nil && lo >= 0xDC00 && lo <= 0xDFFF {
					r = (r-0xD800)<<10 + (lo - 0xDC00) + 0x10000
					i += 2 + m
				}
			}
			b.WriteRune(r)
		default:
			// \\ \' \" and any other identity escape
			r, size := utf8.DecodeRuneInString(body[i-1:])
			b.WriteRune(r)
			i += size - 1
		}
	}

	return b.String(), nil
}

func decodeUnicodeEscape(s string) (rune, int, error) {
	if strings.HasPrefix(s, "{") {
		end := strings.IndexByte(s, '}')
		if end < 0 {
			return 0, 0, fmt.Errorf("unterminated code point")
		}
		v, err := strconv.ParseUint(s[1:end], 16, 32)
		if err != nil {
			return 0, 0, err
		}
		return rune(v), end + 1, nil
	}
	if len(s) < 4 {
		return 0, 0, fmt.Errorf("short escape")
	}
	v, err := strconv.ParseUint(s[:4], 16, 32)
	if err != nil {
		return 0, 0, err
	}
	return rune(v), 4, nil
}
