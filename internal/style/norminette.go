// Package style runs the external norminette style checker inside a pinned
// container image.
package style

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/phobologic/subcheck/internal/lang"
	"github.com/phobologic/subcheck/internal/model"
)

// ErrUnavailable means the container runtime is not installed. Callers treat
// it as an expected absence, not a finding.
var ErrUnavailable = errors.New("docker not found")

// DefaultImage is the pinned norminette image.
const DefaultImage = "ghcr.io/42school/norminette:3.3.55"

// Norminette checks C sources with norminette run under docker.
type Norminette struct {
	Image   string
	Timeout time.Duration
	// Docker is the container runtime binary; "docker" when empty.
	Docker string
}

// Eligible reports whether the file at p goes through the style checker.
func Eligible(p string) bool {
	l := lang.ForExtension(path.Ext(p))
	return l != nil && l.Style
}

// Check runs norminette over files, given slash-separated and relative to
// root. Only eligible files are sent. A container that cannot run yields one
// StyleUnavailable warning; each reported norm error is a Style failure.
func (n Norminette) Check(ctx context.Context, root string, files []string) ([]model.Violation, error) {
	var targets []string
	for _, f := range files {
		if Eligible(f) {
			targets = append(targets, f)
		}
	}
	if len(targets) == 0 {
		return nil, nil
	}

	docker := n.Docker
	if docker == "" {
		docker = "docker"
	}
	bin, err := exec.LookPath(docker)
	if err != nil {
		return nil, ErrUnavailable
	}
	image := n.Image
	if image == "" {
		image = DefaultImage
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", root, err)
	}

	rctx := ctx
	if n.Timeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, n.Timeout)
		defer cancel()
	}

	args := append([]string{
		"run", "--rm", "--network", "none",
		"-v", abs + ":/code:ro", "-w", "/code",
		image, "norminette",
	}, targets...)
	slog.Debug("running norminette", "image", image, "files", len(targets))

	out, err := exec.CommandContext(rctx, bin, args...).CombinedOutput()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if rctx.Err() != nil {
		return []model.Violation{unavailable(fmt.Sprintf("norminette timed out after %s", n.Timeout))}, nil
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return []model.Violation{unavailable(fmt.Sprintf("norminette could not run: %v", err))}, nil
		}
		// 125-127 come from docker itself: daemon down, image missing,
		// command not runnable.
		if code := exitErr.ExitCode(); code >= 125 && code <= 127 {
			return []model.Violation{unavailable(fmt.Sprintf("norminette container failed (exit %d): %s",
				code, firstLine(string(out))))}, nil
		}
	}
	return parseOutput(string(out)), nil
}

func unavailable(msg string) model.Violation {
	return model.Violation{
		Kind:     model.StyleUnavailable,
		Severity: model.Warn,
		Message:  msg,
	}
}

func firstLine(s string) string {
	l, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(l)
}

var (
	fileLine  = regexp.MustCompile(`^(.+): Error!$`)
	errorLine = regexp.MustCompile(`^Error:\s+([A-Z0-9_]+)\s+\(line:\s*(\d+),\s*col:\s*(\d+)\):\s*(.*)$`)
	bareError = regexp.MustCompile(`^Error:\s*(.*)$`)
)

// parseOutput turns norminette's report into Style violations. Error lines
// belong to the most recent "<file>: Error!" line.
func parseOutput(out string) []model.Violation {
	var vs []model.Violation
	file := ""
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if m := fileLine.FindStringSubmatch(line); m != nil {
			file = m[1]
			continue
		}
		if m := errorLine.FindStringSubmatch(line); m != nil {
			ln, _ := strconv.Atoi(m[2])
			col, _ := strconv.Atoi(m[3])
			vs = append(vs, model.Violation{
				Kind:     model.Style,
				Severity: model.Fail,
				File:     file,
				Line:     ln,
				Column:   col,
				Message:  fmt.Sprintf("%s: %s", m[1], strings.TrimSpace(m[4])),
			})
			continue
		}
		if m := bareError.FindStringSubmatch(line); m != nil && file != "" {
			vs = append(vs, model.Violation{
				Kind:     model.Style,
				Severity: model.Fail,
				File:     file,
				Message:  strings.TrimSpace(m[1]),
			})
		}
	}
	return vs
}
