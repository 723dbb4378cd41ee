// subcheck checks a student C/C++ project against its curriculum rulebook.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/phobologic/subcheck/internal/config"
	"github.com/phobologic/subcheck/internal/rules"
)

var version = "dev"

// Process exit statuses.
const (
	exitOK     = 0
	exitFail   = 1
	exitConfig = 2
)

// exitError carries an exit status out of a command. A nil err exits
// silently.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func configError(err error) error { return &exitError{code: exitConfig, err: err} }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line and returns the process exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			_, _ = fmt.Fprintf(stderr, "error: %v\n", ee.err)
		}
		return ee.code
	}
	// Anything else comes from cobra's own flag and argument parsing.
	_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
	return exitConfig
}

// app is the state shared by every subcommand once the root command's
// pre-run has loaded configuration.
type app struct {
	stdout, stderr io.Writer
	v              *viper.Viper
	configFile     string

	cfg      *config.Config
	registry *rules.Registry
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr, v: config.New()}

	cmd := &cobra.Command{
		Use:   "subcheck",
		Short: "Check a student project against its curriculum rulebook",
		Long: `subcheck validates a C/C++ project folder against the rules of a
curriculum project: allowed library calls, source headers, required files,
README structure, norminette style and Makefile relinking.

Exit status is 0 when the project passes (warnings included), 1 when any
check fails and 2 on a configuration error.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.bindFlags(cmd)
			return a.setup()
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default .subcheck.yaml in the working or home directory)")
	pf.String("log-level", "warn", "log level (debug, info, warn, error)")
	pf.String("registry", "", "rule table YAML file (default: built-in table)")

	cmd.AddCommand(
		newCheckCmd(a),
		newProjectsCmd(a),
		newValidateProjectsCmd(a),
		newInitCmd(a),
		newWatchCmd(a),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			// Needs no configuration.
			PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
			Run: func(*cobra.Command, []string) {
				_, _ = fmt.Fprintf(stdout, "subcheck %s\n", version)
			},
		},
	)
	return cmd
}

// flagKeys maps command-line flags to the configuration keys they override.
var flagKeys = map[string]string{
	"log-level": "log.level",
	"registry":  "registry.path",
	"format":    "output.format",
	"color":     "output.color",
	"style":     "style.enabled",
	"workers":   "scan.workers",
}

// bindFlags binds the flags of the command being run; several commands
// define the same flag and only the running one may feed the config.
func (a *app) bindFlags(cmd *cobra.Command) {
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			_ = a.v.BindPFlag(key, f)
		}
	}
}

// setup loads configuration, installs the logger and loads the rule table.
func (a *app) setup() error {
	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return configError(err)
	}
	a.cfg = cfg
	slog.SetDefault(slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	if cfg.Registry.Path == "" {
		a.registry, err = rules.Default(version)
	} else {
		var data []byte
		data, err = afero.ReadFile(config.AppFs, cfg.Registry.Path)
		if err == nil {
			a.registry, err = rules.Load(data, version)
		}
	}
	if err != nil {
		return configError(fmt.Errorf("loading rule table: %w", err))
	}
	slog.Debug("configuration loaded", "config", a.v.ConfigFileUsed(), "projects", len(a.registry.List()))
	return nil
}
