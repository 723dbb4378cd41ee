// Package report aggregates checker output into an ordered Report and
// renders it.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"

	"github.com/phobologic/subcheck/internal/model"
)

// checkerOrder is the position of each violation kind's checker in a report.
var checkerOrder = map[model.ViolationKind]int{
	model.MissingFile:      0,
	model.DocStructure:     1,
	model.DocDisclosure:    1,
	model.MissingHeader:    2,
	model.Unreadable:       3,
	model.ForbiddenCall:    4,
	model.Style:            5,
	model.StyleUnavailable: 5,
	model.BuildFailed:      6,
	model.Relink:           6,
}

// New builds a Report. Violations are sorted by checker, file, line, column
// and message; the input slice is not modified.
func New(project string, files int, violations []model.Violation) *model.Report {
	vs := append([]model.Violation{}, violations...)
	sort.SliceStable(vs, func(i, j int) bool {
		a, b := vs[i], vs[j]
		if oa, ob := checkerOrder[a.Kind], checkerOrder[b.Kind]; oa != ob {
			return oa < ob
		}
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.Message < b.Message
	})

	result := model.Pass
	for _, v := range vs {
		if v.Severity.Rank() > result.Rank() {
			result = v.Severity
		}
	}
	return &model.Report{
		Project:    project,
		Files:      files,
		Result:     result,
		Violations: vs,
	}
}

// ExitCode maps a report to the process exit status: 1 on FAIL, else 0.
func ExitCode(r *model.Report) int {
	if r.Result == model.Fail {
		return 1
	}
	return 0
}

// TextOptions controls WriteText.
type TextOptions struct {
	Color bool
}

// WriteText writes one line per violation followed by a summary line.
func WriteText(w io.Writer, r *model.Report, opts TextOptions) error {
	fail := color.New(color.FgRed, color.Bold)
	warn := color.New(color.FgYellow, color.Bold)
	pass := color.New(color.FgGreen, color.Bold)
	for _, c := range []*color.Color{fail, warn, pass} {
		if opts.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	tag := func(s model.Severity) string {
		label := "[" + string(s) + "]"
		switch s {
		case model.Fail:
			return fail.Sprint(label)
		case model.Warn:
			return warn.Sprint(label)
		}
		return pass.Sprint(label)
	}

	var fails, warns int
	for _, v := range r.Violations {
		switch v.Severity {
		case model.Fail:
			fails++
		case model.Warn:
			warns++
		}
		if _, err := fmt.Fprintf(w, "%s %s %s: %s\n", tag(v.Severity), v.Kind, location(v), v.Message); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%s %s: %d file(s) scanned, %d failure(s), %d warning(s)\n",
		tag(r.Result), r.Project, r.Files, fails, warns)
	return err
}

func location(v model.Violation) string {
	switch {
	case v.File == "":
		return "-"
	case v.Line == 0:
		return v.File
	case v.Column == 0:
		return fmt.Sprintf("%s:%d", v.File, v.Line)
	}
	return fmt.Sprintf("%s:%d:%d", v.File, v.Line, v.Column)
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, r *model.Report) error {
	out := *r
	if out.Violations == nil {
		out.Violations = []model.Violation{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(&out)
}
