package scan

import (
	"sort"

	"github.com/phobologic/subcheck/internal/model"
)

// keywords are identifiers that may be followed by '(' without being a call.
var keywords = map[string]struct{}{
	// control flow
	"if": {}, "else": {}, "for": {}, "while": {}, "do": {}, "switch": {},
	"case": {}, "return": {}, "goto": {},
	// operators
	"sizeof": {}, "_Alignof": {}, "alignof": {}, "_Alignas": {}, "alignas": {},
	"typeof": {}, "__typeof__": {}, "_Generic": {}, "_Static_assert": {},
	"static_assert": {}, "defined": {}, "__has_include": {},
	"__attribute__": {}, "__declspec": {}, "_Pragma": {}, "asm": {}, "__asm__": {},
	// type names, so that declarators like void (*fn)(int) are not calls
	"void": {}, "char": {}, "short": {}, "int": {}, "long": {}, "float": {},
	"double": {}, "signed": {}, "unsigned": {}, "_Bool": {}, "bool": {},
	"const": {}, "volatile": {}, "restrict": {}, "static": {}, "extern": {},
	"inline": {}, "register": {}, "auto": {}, "struct": {}, "union": {}, "enum": {},
	// C++
	"new": {}, "delete": {}, "throw": {}, "catch": {}, "decltype": {},
	"noexcept": {}, "typeid": {}, "operator": {}, "static_cast": {},
	"dynamic_cast": {}, "const_cast": {}, "reinterpret_cast": {}, "explicit": {},
}

// IsKeyword reports whether name is excluded from call-site extraction.
func IsKeyword(name string) bool {
	_, ok := keywords[name]
	return ok
}

// CallSites returns every identifier in a Code region whose next
// significant byte is '('. Whitespace and comments between the identifier
// and the parenthesis are skipped; a literal in between means no call.
// Member calls (after '.' or '->') name a field, not a library function, and
// are left out. Qualified calls such as std::printf are kept.
func CallSites(file string, src []byte, regions []model.Region) []model.CallSite {
	lines := lineStarts(src)
	var sites []model.CallSite

	for ri, r := range regions {
		if r.Kind != model.Code {
			continue
		}
		for j := r.Start; j < r.End; {
			if !isIdentByte(src[j]) {
				j++
				continue
			}
			k := j
			for k < r.End && isIdentByte(src[k]) {
				k++
			}
			// Runs starting with a digit are numeric literals.
			if isIdentStart(src[j]) && nextIsParen(src, regions, ri, k) && !afterMemberAccess(src, regions, ri, j) {
				name := string(src[j:k])
				if !IsKeyword(name) {
					line, col := position(lines, j)
					sites = append(sites, model.CallSite{
						Name:   name,
						File:   file,
						Line:   line,
						Column: col,
						Offset: j,
					})
				}
			}
			j = k
		}
	}
	return sites
}

// nextIsParen scans forward from pos (inside regions[ri]) for the next
// significant code byte and reports whether it is '('.
func nextIsParen(src []byte, regions []model.Region, ri, pos int) bool {
	for ; ri < len(regions); ri++ {
		r := regions[ri]
		switch r.Kind {
		case model.LineComment, model.BlockComment:
			continue
		case model.StringLiteral, model.CharLiteral:
			return false
		}
		if pos < r.Start {
			pos = r.Start
		}
		for ; pos < r.End; pos++ {
			switch src[pos] {
			case ' ', '\t', '\n', '\r', '\v', '\f':
				continue
			case '(':
				return true
			default:
				return false
			}
		}
	}
	return false
}

// afterMemberAccess reports whether the last significant code bytes before
// pos (inside regions[ri]) are a '.' or '->' member access operator.
func afterMemberAccess(src []byte, regions []model.Region, ri, pos int) bool {
	for ; ri >= 0; ri-- {
		r := regions[ri]
		switch r.Kind {
		case model.LineComment, model.BlockComment:
			continue
		case model.StringLiteral, model.CharLiteral:
			return false
		}
		if pos > r.End {
			pos = r.End
		}
		for pos--; pos >= r.Start; pos-- {
			switch src[pos] {
			case ' ', '\t', '\n', '\r', '\v', '\f':
				continue
			case '.':
				return true
			case '>':
				return pos > 0 && src[pos-1] == '-'
			default:
				return false
			}
		}
		pos = r.Start
	}
	return false
}

func lineStarts(src []byte) []int {
	starts := []int{0}
	for i, c := range src {
		if c == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// position converts a byte offset to a 1-based line and byte column.
func position(starts []int, offset int) (int, int) {
	line := sort.Search(len(starts), func(i int) bool { return starts[i] > offset }) - 1
	return line + 1, offset - starts[line] + 1
}
