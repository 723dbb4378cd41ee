// Package engine runs every compliance checker over a project directory and
// aggregates their findings into a Report.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/phobologic/subcheck/internal/check"
	"github.com/phobologic/subcheck/internal/discover"
	"github.com/phobologic/subcheck/internal/lang"
	"github.com/phobologic/subcheck/internal/model"
	"github.com/phobologic/subcheck/internal/parse"
	"github.com/phobologic/subcheck/internal/report"
	"github.com/phobologic/subcheck/internal/rules"
	"github.com/phobologic/subcheck/internal/scan"
	"github.com/phobologic/subcheck/internal/style"
)

// ConfigError is a fatal configuration problem: an invalid rule registry, an
// unknown project or an unusable project root. No checker runs.
type ConfigError struct {
	Problems []error
}

func (e *ConfigError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes the individual problems to errors.Is and errors.As.
func (e *ConfigError) Unwrap() []error { return e.Problems }

// StyleChecker checks source files against an external style guide.
type StyleChecker interface {
	Check(ctx context.Context, root string, files []string) ([]model.Violation, error)
}

// RelinkDetector builds a target twice and reports relinking.
type RelinkDetector interface {
	Detect(ctx context.Context, dir, target string) ([]model.Violation, error)
}

// Options configures an Engine. Style and Relink are optional; a nil value
// skips that checker.
type Options struct {
	Registry     *rules.Registry
	Fs           afero.Fs
	HeaderMarker string
	HeaderWindow int
	Workers      int
	Style        StyleChecker
	Relink       RelinkDetector
}

// Engine runs compliance checks. It is safe for concurrent use.
type Engine struct {
	opts    Options
	parsers map[string]*sync.Pool
}

// New creates an Engine.
func New(opts Options) *Engine {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.HeaderMarker == "" {
		opts.HeaderMarker = "By: "
	}
	if opts.HeaderWindow <= 0 {
		opts.HeaderWindow = 500
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}

	// tree-sitter parsers are not safe for concurrent use; each scan
	// borrows one from its language's pool.
	parsers := make(map[string]*sync.Pool, len(lang.Languages))
	for name, l := range lang.Languages {
		parsers[name] = &sync.Pool{New: func() any { return l.NewParser() }}
	}
	return &Engine{opts: opts, parsers: parsers}
}

// ValidateRegistry returns every problem in the rule registry.
func (e *Engine) ValidateRegistry() []error {
	if e.opts.Registry == nil {
		return []error{errors.New("no rule registry configured")}
	}
	return e.opts.Registry.Validate()
}

// fileScan is what one source file contributes to a run.
type fileScan struct {
	sites      []model.CallSite
	defs       []parse.Definition
	violations []model.Violation
}

// Run checks the project at root against the rules registered for
// projectKey. A cancelled ctx yields an error and no report.
func (e *Engine) Run(ctx context.Context, projectKey, root string) (*model.Report, error) {
	if problems := e.ValidateRegistry(); len(problems) > 0 {
		return nil, &ConfigError{Problems: problems}
	}
	rs, err := e.opts.Registry.Resolve(projectKey)
	if err != nil {
		return nil, &ConfigError{Problems: []error{err}}
	}
	info, err := e.opts.Fs.Stat(root)
	if err != nil {
		return nil, &ConfigError{Problems: []error{fmt.Errorf("project folder: %w", err)}}
	}
	if !info.IsDir() {
		return nil, &ConfigError{Problems: []error{fmt.Errorf("project folder %s: not a directory", root)}}
	}

	files, err := discover.Files(e.opts.Fs, root, rs.Exclude)
	if err != nil {
		return nil, fmt.Errorf("discovering files: %w", err)
	}
	slog.Debug("discovered files", "project", rs.Key, "count", len(files))

	scans, err := e.scanFiles(ctx, root, files)
	if err != nil {
		return nil, err
	}

	var violations []model.Violation
	var sites []model.CallSite
	var defs []parse.Definition
	for _, s := range scans {
		violations = append(violations, s.violations...)
		sites = append(sites, s.sites...)
		defs = append(defs, s.defs...)
	}
	violations = append(violations, check.ForbiddenCalls(rs.Calls, sites, parse.Names(defs))...)
	violations = append(violations, check.RequiredPaths(e.opts.Fs, root, rs.RequiredPaths)...)
	violations = append(violations, check.Documentation(e.opts.Fs, root, rs.Docs)...)

	if e.opts.Style != nil {
		paths := make([]string, len(files))
		for i, f := range files {
			paths[i] = f.Path
		}
		vs, err := e.opts.Style.Check(ctx, root, paths)
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case errors.Is(err, style.ErrUnavailable):
			slog.Debug("style check skipped", "reason", err)
		case err != nil:
			violations = append(violations, model.Violation{
				Kind:     model.StyleUnavailable,
				Severity: model.Warn,
				Message:  fmt.Sprintf("style check could not run: %v", err),
			})
		default:
			violations = append(violations, vs...)
		}
	}

	if e.opts.Relink != nil && rs.BuildTarget != "" {
		vs, err := e.opts.Relink.Detect(ctx, root, rs.BuildTarget)
		if err != nil {
			return nil, err
		}
		violations = append(violations, vs...)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return report.New(rs.Name, len(files), violations), nil
}

// scanFiles scans every file concurrently. Results land in per-index slots
// so the outcome does not depend on scheduling.
func (e *Engine) scanFiles(ctx context.Context, root string, files []discover.FileEntry) ([]fileScan, error) {
	slots := make([]fileScan, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			slots[i] = e.scanFile(gctx, root, f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slots, nil
}

func (e *Engine) scanFile(ctx context.Context, root string, f discover.FileEntry) fileScan {
	content, err := afero.ReadFile(e.opts.Fs, filepath.Join(root, filepath.FromSlash(f.Path)))
	if err != nil {
		slog.Debug("unreadable file", "file", f.Path, "err", err)
		return fileScan{violations: []model.Violation{{
			Kind:     model.Unreadable,
			Severity: model.Fail,
			File:     f.Path,
			Message:  fmt.Sprintf("cannot read file: %v", err),
		}}}
	}

	var out fileScan
	if v := check.Header(f.Path, content, e.opts.HeaderMarker, e.opts.HeaderWindow); v != nil {
		out.violations = append(out.violations, *v)
	}
	out.sites = scan.CallSites(f.Path, content, scan.Regions(content, f.Kind))
	out.defs = e.definitions(ctx, f, content)
	slog.Debug("scanned file", "file", f.Path, "calls", len(out.sites), "definitions", len(out.defs))
	return out
}

func (e *Engine) definitions(ctx context.Context, f discover.FileEntry, content []byte) []parse.Definition {
	l := lang.ForExtension(path.Ext(f.Path))
	if l == nil {
		return nil
	}
	q, err := l.GetDefinitionQuery()
	if err != nil {
		slog.Warn("definition query unavailable", "language", l.Name, "err", err)
		return nil
	}
	pool := e.parsers[l.Name]
	parser := pool.Get().(*sitter.Parser)
	defer pool.Put(parser)
	return parse.ExtractDefinitions(ctx, parser, q, content)
}
