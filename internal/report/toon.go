package report

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/phobologic/subcheck/internal/model"
)

// TOON (Token-Oriented Object Notation) is a compact tabular rendering for
// consumers that read reports as text, such as editor integrations.

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	literals     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// WriteTOON writes the report header fields followed by a violations table.
func WriteTOON(w io.Writer, r *model.Report) error {
	parts := []string{
		"project: " + encodeValue(r.Project),
		"files: " + strconv.Itoa(r.Files),
		"result: " + encodeValue(string(r.Result)),
	}

	rows := make([][]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		rows = append(rows, []string{
			string(v.Severity),
			string(v.Kind),
			v.File,
			strconv.Itoa(v.Line),
			strconv.Itoa(v.Column),
			v.Message,
		})
	}
	parts = append(parts, formatTabular("violations",
		[]string{"severity", "kind", "file", "line", "column", "message"}, rows))

	_, err := fmt.Fprintln(w, strings.Join(parts, "\n"))
	return err
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	switch {
	case value == "":
		return `""`
	case value != strings.TrimSpace(value), strings.ContainsAny(value, "\n\r\t"):
		return quote(value)
	}
	if _, ok := literals[strings.ToLower(value)]; ok {
		return quote(value)
	}
	if looksNumeric.MatchString(value) {
		return value
	}
	if needsQuoting.MatchString(value) || strings.HasPrefix(value, "-") {
		return quote(value)
	}
	return value
}

func quote(value string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)
	return `"` + r.Replace(value) + `"`
}
