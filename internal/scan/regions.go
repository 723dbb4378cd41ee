// Package scan splits C-family source text into code, comment and literal
// regions and extracts call-like identifiers from the code regions only.
package scan

import (
	"bytes"

	"github.com/phobologic/subcheck/internal/model"
)

// maxRawDelimiter is the longest d-char-sequence a C++ raw string may carry.
const maxRawDelimiter = 16

// Regions partitions src into an ordered sequence of tagged regions. Every
// byte of src belongs to exactly one region, so concatenating the regions
// reproduces src. Malformed input (an unterminated comment or literal) never
// fails: the open region simply runs to the end of input.
func Regions(src []byte, kind model.Kind) []model.Region {
	var (
		regions []model.Region
		state   = model.Code
		start   int
		n       = len(src)
	)

	emit := func(end int, next model.RegionKind) {
		if end > start {
			regions = append(regions, model.Region{Kind: state, Start: start, End: end})
		}
		start = end
		state = next
	}

	for i := 0; i < n; {
		c := src[i]
		switch state {
		case model.Code:
			switch {
			case c == '/' && i+1 < n && src[i+1] == '/':
				emit(i, model.LineComment)
				i += 2
			case c == '/' && i+1 < n && src[i+1] == '*':
				emit(i, model.BlockComment)
				i += 2
			case c == '"':
				if kind == model.CPP {
					if prefix, end, ok := rawString(src, i); ok && prefix >= start {
						emit(prefix, model.StringLiteral)
						i = end
						emit(i, model.Code)
						continue
					}
				}
				emit(i, model.StringLiteral)
				i++
			case c == '\'' && !(kind == model.CPP && digitSeparator(src, i)):
				emit(i, model.CharLiteral)
				i++
			default:
				i++
			}

		case model.LineComment:
			if skip := continuation(src, i); skip > 0 {
				i += skip
				continue
			}
			if c == '\n' || (c == '\r' && i+1 < n && src[i+1] == '\n') {
				// The newline itself is code.
				emit(i, model.Code)
				continue
			}
			i++

		case model.BlockComment:
			if c == '*' && i+1 < n && src[i+1] == '/' {
				i += 2
				emit(i, model.Code)
				continue
			}
			i++

		case model.StringLiteral, model.CharLiteral:
			quote := byte('"')
			if state == model.CharLiteral {
				quote = '\''
			}
			switch {
			case c == '\\':
				// The escaped byte is consumed without being looked at.
				if w := continuation(src, i); w > 0 {
					i += w
				} else {
					i += 2
				}
			case c == quote:
				i++
				emit(i, model.Code)
			case c == '\n':
				// Unterminated literal: close it so the rest of the file is
				// still scanned as code.
				emit(i, model.Code)
			default:
				i++
			}
		}
	}

	if n > start {
		regions = append(regions, model.Region{Kind: state, Start: start, End: n})
	}
	return regions
}

// continuation reports the width of a backslash-newline sequence at i
// (2 for "\\\n", 3 for "\\\r\n"), or 0 when there is none.
func continuation(src []byte, i int) int {
	if i >= len(src) || src[i] != '\\' {
		return 0
	}
	if i+1 < len(src) && src[i+1] == '\n' {
		return 2
	}
	if i+2 < len(src) && src[i+1] == '\r' && src[i+2] == '\n' {
		return 3
	}
	return 0
}

// rawString recognizes a C++ raw string literal whose opening quote is at q,
// such as R"(...)" or u8R"x(...)x". It returns the offset of the encoding
// prefix and the end of the literal. An unterminated raw string runs to the
// end of input.
func rawString(src []byte, q int) (prefix, end int, ok bool) {
	if q == 0 || src[q-1] != 'R' {
		return 0, 0, false
	}
	prefix = q - 1
	for prefix > 0 && isIdentByte(src[prefix-1]) {
		prefix--
	}
	switch string(src[prefix:q]) {
	case "R", "LR", "uR", "UR", "u8R":
	default:
		return 0, 0, false
	}

	open := -1
	for j := q + 1; j < len(src) && j <= q+1+maxRawDelimiter; j++ {
		c := src[j]
		if c == '(' {
			open = j
			break
		}
		if c == ')' || c == '\\' || c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f' {
			return 0, 0, false
		}
	}
	if open < 0 {
		return 0, 0, false
	}

	closing := make([]byte, 0, open-q+1)
	closing = append(closing, ')')
	closing = append(closing, src[q+1:open]...)
	closing = append(closing, '"')
	if k := bytes.Index(src[open+1:], closing); k >= 0 {
		return prefix, open + 1 + k + len(closing), true
	}
	return prefix, len(src), true
}

// digitSeparator reports whether the quote at i sits inside a numeric
// literal such as 1'000'000 (C++14 digit separators).
func digitSeparator(src []byte, i int) bool {
	if i == 0 || i+1 >= len(src) {
		return false
	}
	if !isHexDigit(src[i-1]) || !isIdentByte(src[i+1]) {
		return false
	}
	j := i - 1
	for j > 0 && (isIdentByte(src[j-1]) || src[j-1] == '\'' || src[j-1] == '.') {
		j--
	}
	return isDigit(src[j])
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentByte(c byte) bool { return isIdentStart(c) || isDigit(c) }
