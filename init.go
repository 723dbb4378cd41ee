package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/phobologic/subcheck/internal/check"
	"github.com/phobologic/subcheck/internal/config"
	"github.com/phobologic/subcheck/internal/rules"
)

func newInitCmd(a *app) *cobra.Command {
	var (
		dryRun  bool
		project string
		login   string
	)

	cmd := &cobra.Command{
		Use:   "init [path-to-README]",
		Short: "Write or complete a README that follows the documentation template",
		Long: `Write a README skeleton with the template first line and every required
section. An existing file keeps its content: only a missing template first
line is prepended and missing sections are appended. Creates the file if it
does not exist.

path-to-README defaults to the project's documentation file (README.md).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			docs := a.registry.DefaultDocs()
			if project != "" {
				rs, err := a.registry.Resolve(project)
				if err != nil {
					return configError(err)
				}
				docs = rs.Docs
			}

			path := docs.File
			if len(args) > 0 {
				path = args[0]
			}

			existing, err := afero.ReadFile(config.AppFs, path)
			if err != nil && !os.IsNotExist(err) {
				return &exitError{code: exitFail, err: fmt.Errorf("reading %s: %w", path, err)}
			}
			updated := applyTemplate(string(existing), docs, login)

			if dryRun {
				_, _ = fmt.Fprint(a.stdout, updated)
				return nil
			}
			if updated == string(existing) {
				_, _ = fmt.Fprintf(a.stderr, "%s already follows the template\n", path)
				return nil
			}
			if err := afero.WriteFile(config.AppFs, path, []byte(updated), 0o644); err != nil {
				return &exitError{code: exitFail, err: fmt.Errorf("writing %s: %w", path, err)}
			}
			_, _ = fmt.Fprintf(a.stderr, "wrote README template to %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the resulting file without modifying it")
	cmd.Flags().StringVar(&project, "project", "", "take the documentation template from this project")
	cmd.Flags().StringVar(&login, "login", os.Getenv("USER"), "login named on the first line")
	return cmd
}

// firstLine returns the template first line for login.
func firstLine(login string) string {
	if login == "" {
		login = "<login>"
	}
	return fmt.Sprintf("*This project has been created as part of the 42 curriculum by %s.*", login)
}

// sectionBody is placeholder text for a scaffolded section.
var sectionBody = map[string]string{
	"description":  "Describe the project: its goal and a brief overview.",
	"instructions": "Explain how to compile, install and run the project.",
	"resources": "List the references you used (documentation, articles, tutorials).\n" +
		"Describe how AI was used in this project, and for which tasks.",
}

// applyTemplate completes content so it follows docs. Existing text is never
// changed: a non-conforming first line gets the template line prepended and
// missing sections are appended in template order. It is a pure function for
// easy testing.
func applyTemplate(content string, docs rules.DocTemplate, login string) string {
	src := []byte(content)
	missing := check.MissingSections(src, docs.Sections)

	var b strings.Builder
	if !check.FirstLineConforms(src, docs.FirstLineKeywords) {
		b.WriteString(firstLine(login))
		b.WriteString("\n")
		if strings.TrimSpace(content) != "" {
			b.WriteString("\n")
		}
	}
	b.WriteString(content)

	for _, name := range missing {
		out := b.String()
		if len(out) > 0 && !strings.HasSuffix(out, "\n") {
			b.WriteString("\n")
		}
		b.WriteString("\n## " + name + "\n\n")
		body, ok := sectionBody[strings.ToLower(name)]
		if !ok {
			body = "TBD."
		}
		b.WriteString(body + "\n")
	}
	return b.String()
}
