package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/subcheck/internal/model"
)

func sample() []model.Violation {
	return []model.Violation{
		{Kind: model.Relink, Severity: model.Fail, File: "libft.a", Message: "relink detected"},
		{Kind: model.ForbiddenCall, Severity: model.Fail, File: "b.c", Line: 3, Column: 2, Message: "function 'printf' is not in the allowed list"},
		{Kind: model.ForbiddenCall, Severity: model.Fail, File: "a.c", Line: 9, Column: 5, Message: "function 'puts' is not in the allowed list"},
		{Kind: model.ForbiddenCall, Severity: model.Fail, File: "a.c", Line: 9, Column: 1, Message: "function 'exit' is not in the allowed list"},
		{Kind: model.DocStructure, Severity: model.Warn, File: "README.md", Message: "missing a 'Resources' section"},
		{Kind: model.MissingHeader, Severity: model.Fail, File: "a.c", Message: "missing header"},
		{Kind: model.MissingFile, Severity: model.Fail, File: "Makefile", Message: "required path missing: Makefile"},
	}
}

func TestNewOrdersByCheckerThenLocation(t *testing.T) {
	t.Parallel()

	r := New("libft", 2, sample())
	var kinds []model.ViolationKind
	for _, v := range r.Violations {
		kinds = append(kinds, v.Kind)
	}
	assert.Equal(t, []model.ViolationKind{
		model.MissingFile,
		model.DocStructure,
		model.MissingHeader,
		model.ForbiddenCall,
		model.ForbiddenCall,
		model.ForbiddenCall,
		model.Relink,
	}, kinds)

	calls := r.Violations[3:6]
	assert.Equal(t, "a.c", calls[0].File)
	assert.Equal(t, 1, calls[0].Column)
	assert.Equal(t, 5, calls[1].Column)
	assert.Equal(t, "b.c", calls[2].File)
}

func TestNewDoesNotModifyInput(t *testing.T) {
	t.Parallel()

	in := sample()
	first := in[0]
	New("libft", 1, in)
	assert.Equal(t, first, in[0])
}

func TestResultIsWorstSeverity(t *testing.T) {
	t.Parallel()

	assert.Equal(t, model.Pass, New("x", 0, nil).Result)

	warnOnly := []model.Violation{{Kind: model.DocStructure, Severity: model.Warn, Message: "w"}}
	r := New("x", 0, warnOnly)
	assert.Equal(t, model.Warn, r.Result)
	assert.Equal(t, 0, ExitCode(r))

	r = New("x", 0, sample())
	assert.Equal(t, model.Fail, r.Result)
	assert.Equal(t, 1, ExitCode(r))
}

func TestWriteTextIsByteIdentical(t *testing.T) {
	t.Parallel()

	render := func(vs []model.Violation) string {
		var buf bytes.Buffer
		require.NoError(t, WriteText(&buf, New("libft", 2, vs), TextOptions{}))
		return buf.String()
	}

	shuffled := sample()
	shuffled[0], shuffled[6] = shuffled[6], shuffled[0]
	shuffled[1], shuffled[4] = shuffled[4], shuffled[1]

	assert.Equal(t, render(sample()), render(shuffled))
}

func TestWriteTextFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, New("libft", 2, sample()[1:2]), TextOptions{}))
	assert.Equal(t,
		"[FAIL] forbidden-call b.c:3:2: function 'printf' is not in the allowed list\n"+
			"[FAIL] libft: 2 file(s) scanned, 1 failure(s), 0 warning(s)\n",
		buf.String())

	buf.Reset()
	require.NoError(t, WriteText(&buf, New("libft", 2, nil), TextOptions{}))
	assert.Equal(t, "[PASS] libft: 2 file(s) scanned, 0 failure(s), 0 warning(s)\n", buf.String())
}

func TestWriteTextColor(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, New("libft", 1, sample()[:1]), TextOptions{Color: true}))
	assert.Contains(t, buf.String(), "\x1b[")
}

func TestLocation(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "-", location(model.Violation{}))
	assert.Equal(t, "a.c", location(model.Violation{File: "a.c"}))
	assert.Equal(t, "a.c:4", location(model.Violation{File: "a.c", Line: 4}))
	assert.Equal(t, "a.c:4:7", location(model.Violation{File: "a.c", Line: 4, Column: 7}))
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, New("libft", 0, nil)))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "libft", got["project"])
	assert.Equal(t, "PASS", got["result"])
	assert.Equal(t, []any{}, got["violations"])
}
