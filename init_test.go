package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/subcheck/internal/check"
	"github.com/phobologic/subcheck/internal/rules"
)

func defaultDocs(t *testing.T) rules.DocTemplate {
	t.Helper()
	r, err := rules.Default("dev")
	require.NoError(t, err)
	return r.DefaultDocs()
}

// conforms reports whether content would pass every documentation check.
func conforms(t *testing.T, content string, docs rules.DocTemplate) bool {
	t.Helper()
	src := []byte(content)
	return check.FirstLineConforms(src, docs.FirstLineKeywords) && len(check.MissingSections(src, docs.Sections)) == 0
}

// TestApplyTemplateCreate verifies that empty content becomes a complete
// skeleton.
func TestApplyTemplateCreate(t *testing.T) {
	t.Parallel()
	docs := defaultDocs(t)

	got := applyTemplate("", docs, "jdoe")
	assert.True(t, strings.HasPrefix(got, "*This project has been created as part of the 42 curriculum by jdoe.*\n"))
	assert.Contains(t, got, "## Description\n")
	assert.Contains(t, got, "## Instructions\n")
	assert.Contains(t, got, "## Resources\n")
	assert.True(t, conforms(t, got, docs))
}

// TestApplyTemplateKeepsContent verifies that existing text is preserved and
// only the missing pieces are added.
func TestApplyTemplateKeepsContent(t *testing.T) {
	t.Parallel()
	docs := defaultDocs(t)

	existing := "# so_long\n\n## Instructions\n\nRun make.\n"
	got := applyTemplate(existing, docs, "jdoe")

	assert.Contains(t, got, existing)
	assert.Equal(t, 1, strings.Count(got, "## Instructions"))
	assert.Less(t, strings.Index(got, "## Description"), strings.Index(got, "## Resources"))
	assert.True(t, conforms(t, got, docs))
}

// TestApplyTemplateIdempotent verifies that a conforming file is unchanged.
func TestApplyTemplateIdempotent(t *testing.T) {
	t.Parallel()
	docs := defaultDocs(t)

	once := applyTemplate("some notes", docs, "jdoe")
	assert.Equal(t, once, applyTemplate(once, docs, "someone-else"))
	assert.Equal(t, testReadme, applyTemplate(testReadme, docs, "jdoe"))
}

func TestApplyTemplateNoLogin(t *testing.T) {
	t.Parallel()

	got := applyTemplate("", defaultDocs(t), "")
	assert.Contains(t, got, "by <login>.*")
}

func TestInitCreatesFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "README.md")

	code, _, stderr := runCLI(t, "init", path, "--login", "jdoe")
	require.Equal(t, exitOK, code, stderr)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, conforms(t, string(data), defaultDocs(t)))
	assert.Contains(t, stderr, "wrote README template")
}

func TestInitDryRun(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "README.md")
	require.NoError(t, os.WriteFile(path, []byte("notes\n"), 0o644))

	code, out, _ := runCLI(t, "init", path, "--dry-run", "--login", "jdoe")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "notes\n")
	assert.Contains(t, out, "## Resources")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "notes\n", string(data), "--dry-run must not modify the file")
}

func TestInitAlreadyConforming(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "README.md")
	require.NoError(t, os.WriteFile(path, []byte(testReadme), 0o644))

	code, _, stderr := runCLI(t, "init", path)
	require.Equal(t, exitOK, code)
	assert.Contains(t, stderr, "already follows the template")
}

func TestInitUnknownProject(t *testing.T) {
	t.Parallel()

	code, _, _ := runCLI(t, "init", filepath.Join(t.TempDir(), "README.md"), "--project", "nope")
	assert.Equal(t, exitConfig, code)
}
