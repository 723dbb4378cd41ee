// Package model defines core data structures for subcheck.
package model

// Kind is the source language of a file.
type Kind string

const (
	C   Kind = "c"
	CPP Kind = "cpp"
)

// SourceFile is one scanned file. Path is slash-separated and relative to the
// project root.
type SourceFile struct {
	Path    string
	Content []byte
	Kind    Kind
}

// RegionKind tags a span of source bytes.
type RegionKind int

const (
	Code RegionKind = iota
	LineComment
	BlockComment
	StringLiteral
	CharLiteral
)

func (k RegionKind) String() string {
	switch k {
	case Code:
		return "code"
	case LineComment:
		return "line-comment"
	case BlockComment:
		return "block-comment"
	case StringLiteral:
		return "string"
	case CharLiteral:
		return "char"
	}
	return "unknown"
}

// Region is the half-open byte span [Start, End) of a file.
type Region struct {
	Kind  RegionKind
	Start int
	End   int
}

// Len returns the number of bytes covered by the region.
func (r Region) Len() int { return r.End - r.Start }

// CallSite is an identifier in code immediately followed by '('.
type CallSite struct {
	Name   string
	File   string
	Line   int
	Column int
	Offset int
}

// Severity of a violation.
type Severity string

const (
	Pass Severity = "PASS"
	Warn Severity = "WARN"
	Fail Severity = "FAIL"
)

// Rank orders severities so the worst one can be picked with a comparison.
func (s Severity) Rank() int {
	switch s {
	case Fail:
		return 2
	case Warn:
		return 1
	}
	return 0
}

// ViolationKind classifies a detected compliance problem.
type ViolationKind string

const (
	MissingFile      ViolationKind = "missing-file"
	MissingHeader    ViolationKind = "missing-header"
	ForbiddenCall    ViolationKind = "forbidden-call"
	Relink           ViolationKind = "relink"
	BuildFailed      ViolationKind = "build-failed"
	DocStructure     ViolationKind = "doc-structure"
	DocDisclosure    ViolationKind = "doc-disclosure"
	Unreadable       ViolationKind = "unreadable"
	Style            ViolationKind = "style"
	StyleUnavailable ViolationKind = "style-unavailable"
)

// Violation is one detected compliance failure or warning. File and Line are
// zero when the problem has no location.
type Violation struct {
	Kind     ViolationKind `json:"kind"`
	Severity Severity      `json:"severity"`
	File     string        `json:"file,omitempty"`
	Line     int           `json:"line,omitempty"`
	Column   int           `json:"column,omitempty"`
	Message  string        `json:"message"`
}

// Report is the complete, ordered outcome of one compliance run.
type Report struct {
	Project    string      `json:"project"`
	Files      int         `json:"files"`
	Result     Severity    `json:"result"`
	Violations []Violation `json:"violations"`
}
