package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newProjectsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List supported projects",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			_, _ = fmt.Fprintln(a.stdout, "Supported projects:")
			for _, key := range a.registry.List() {
				_, _ = fmt.Fprintf(a.stdout, "  %s\n", key)
			}
			return nil
		},
	}
}

func newValidateProjectsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-projects",
		Short: "Validate the rule table",
		Long: `Validate the rule table and exit 0 when it has no problems, 1 otherwise.
Problems include duplicate normalized names, a project declaring both an
allowed and a forbidden function list, duplicate or empty lists and
required paths that escape the project folder.`,
		Args: cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			problems := a.registry.Validate()
			if len(problems) > 0 {
				_, _ = fmt.Fprintln(a.stdout, "[FAIL] rule table validation failed:")
				for _, p := range problems {
					_, _ = fmt.Fprintf(a.stdout, "  - %v\n", p)
				}
				return &exitError{code: exitFail}
			}
			_, _ = fmt.Fprintf(a.stdout, "[OK] rule table validated: %d projects, no issues found.\n", len(a.registry.List()))
			return nil
		},
	}
}
