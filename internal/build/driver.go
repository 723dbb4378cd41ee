// Package build runs a project's build and detects relinking: a second build
// that does work although no input changed.
package build

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Result is the outcome of one build invocation.
type Result struct {
	ExitCode int
	// WorkDone reports whether the build tool did anything beyond
	// announcing that the target was already up to date.
	WorkDone bool
	Output   string
}

// Driver invokes a build tool. Build returns an error only when the tool
// could not be run at all; a failing build is a Result with a non-zero
// ExitCode.
type Driver interface {
	Build(ctx context.Context, dir, target string) (Result, error)
	Artifact(dir, target string) string
}

// MakeDriver builds with make.
type MakeDriver struct {
	// Command is the make binary; "make" when empty.
	Command string
}

func (d MakeDriver) command() string {
	if d.Command == "" {
		return "make"
	}
	return d.Command
}

// Build runs `make -C dir --no-print-directory [target]`.
func (d MakeDriver) Build(ctx context.Context, dir, target string) (Result, error) {
	args := []string{"-C", dir, "--no-print-directory"}
	if target != "" {
		args = append(args, target)
	}
	cmd := exec.CommandContext(ctx, d.command(), args...)
	// make's notices are matched by text.
	cmd.Env = append(os.Environ(), "LC_ALL=C")

	out, err := cmd.CombinedOutput()
	res := Result{Output: string(out), WorkDone: workDone(string(out))}
	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	return res, fmt.Errorf("running %s: %w", d.command(), err)
}

// Artifact returns the path make produces for target.
func (d MakeDriver) Artifact(dir, target string) string {
	return filepath.Join(dir, filepath.FromSlash(target))
}

var upToDateNotices = []string{
	"Nothing to be done",
	"is up to date",
}

// workDone reports whether output holds any line that is not one of make's
// up-to-date notices.
func workDone(output string) bool {
	sc := bufio.NewScanner(strings.NewReader(output))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		notice := false
		for _, n := range upToDateNotices {
			if strings.Contains(line, n) {
				notice = true
				break
			}
		}
		if !notice {
			return true
		}
	}
	return false
}
