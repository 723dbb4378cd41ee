package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/phobologic/subcheck/internal/build"
	"github.com/phobologic/subcheck/internal/engine"
	"github.com/phobologic/subcheck/internal/model"
	"github.com/phobologic/subcheck/internal/report"
	"github.com/phobologic/subcheck/internal/style"
)

// checkFlags are the options shared by check and watch.
type checkFlags struct {
	noBuild bool
}

func (f *checkFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.BoolVar(&f.noBuild, "no-build", false, "skip the build and relink check")
	fl.String("format", "text", "report format (text, json, toon)")
	fl.String("color", "auto", "color the text report (auto, always, never)")
	fl.Bool("style", true, "run norminette through docker when available")
	fl.Int("workers", 0, "files scanned in parallel (0 = GOMAXPROCS)")
}

func newCheckCmd(a *app) *cobra.Command {
	var flags checkFlags
	cmd := &cobra.Command{
		Use:   "check <folder> <project>",
		Short: "Check a project folder",
		Example: `  subcheck check ./libft libft
  subcheck check . fract-ol --format json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.check(cmd, args[0], args[1], flags)
			if err != nil {
				return err
			}
			if report.ExitCode(r) != exitOK {
				return &exitError{code: exitFail}
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

// engine builds an Engine from the loaded configuration.
func (a *app) engine(flags checkFlags) *engine.Engine {
	fs := afero.NewOsFs()
	opts := engine.Options{
		Registry:     a.registry,
		Fs:           fs,
		HeaderMarker: a.cfg.Header.Marker,
		HeaderWindow: a.cfg.Header.Window,
		Workers:      a.cfg.Scan.Workers,
	}
	if a.cfg.Style.Enabled {
		opts.Style = style.Norminette{Image: a.cfg.Style.Image, Timeout: a.cfg.Style.Timeout}
	}
	if !flags.noBuild {
		opts.Relink = &build.Detector{
			Driver:      build.MakeDriver{Command: a.cfg.Build.Command},
			Fs:          fs,
			SettleDelay: a.cfg.Build.SettleDelay,
			Timeout:     a.cfg.Build.Timeout,
		}
	}
	return engine.New(opts)
}

// check runs one compliance check and writes the report.
func (a *app) check(cmd *cobra.Command, folder, project string, flags checkFlags) (*model.Report, error) {
	root, err := filepath.Abs(folder)
	if err != nil {
		return nil, configError(fmt.Errorf("resolving %s: %w", folder, err))
	}

	r, err := a.engine(flags).Run(cmd.Context(), project, root)
	if err != nil {
		var cfgErr *engine.ConfigError
		if errors.As(err, &cfgErr) {
			return nil, configError(err)
		}
		return nil, &exitError{code: exitFail, err: err}
	}

	switch a.cfg.Output.Format {
	case "json":
		err = report.WriteJSON(a.stdout, r)
	case "toon":
		err = report.WriteTOON(a.stdout, r)
	default:
		err = report.WriteText(a.stdout, r, report.TextOptions{Color: useColor(a.cfg.Output.Color, a.stdout)})
	}
	if err != nil {
		return nil, &exitError{code: exitFail, err: fmt.Errorf("writing report: %w", err)}
	}
	return r, nil
}

// useColor resolves the color setting; "auto" colors only a terminal.
func useColor(setting string, w io.Writer) bool {
	switch setting {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
