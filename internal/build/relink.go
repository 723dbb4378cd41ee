package build

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/phobologic/subcheck/internal/model"
)

// ErrNoArtifact is reported when a successful build leaves no artifact.
var ErrNoArtifact = errors.New("build produced no artifact")

// DefaultSettleDelay covers filesystems with one-second mtime resolution.
const DefaultSettleDelay = 1100 * time.Millisecond

// Detector runs the build-fingerprint-build-fingerprint relink protocol.
type Detector struct {
	Driver Driver
	Fs     afero.Fs
	// SettleDelay is slept between the first fingerprint and the second
	// build.
	SettleDelay time.Duration
	// Timeout bounds each build; zero means no limit beyond ctx.
	Timeout time.Duration
}

var dirLocks sync.Map // absolute dir -> *sync.Mutex

func lockDir(dir string) func() {
	key, err := filepath.Abs(dir)
	if err != nil {
		key = filepath.Clean(dir)
	}
	v, _ := dirLocks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Detect builds target in dir twice and reports a Relink when the second
// build does work or changes the artifact. A build that fails, times out or
// leaves no artifact yields a single BuildFailed and nothing else. An empty
// target is a no-op. The returned error is non-nil only when ctx is done.
func (d *Detector) Detect(ctx context.Context, dir, target string) ([]model.Violation, error) {
	if target == "" {
		return nil, nil
	}
	unlock := lockDir(dir)
	defer unlock()

	if _, v, err := d.build(ctx, dir, target, "first"); err != nil || v != nil {
		return wrap(v), err
	}
	artifact := d.Driver.Artifact(dir, target)
	before, err := d.fingerprint(artifact)
	if err != nil {
		return []model.Violation{buildFailed(target, fmt.Sprintf("%v: %s", ErrNoArtifact, target))}, nil
	}

	if d.SettleDelay > 0 {
		t := time.NewTimer(d.SettleDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	second, v, err := d.build(ctx, dir, target, "second")
	if err != nil || v != nil {
		return wrap(v), err
	}
	after, err := d.fingerprint(artifact)
	if err != nil {
		return []model.Violation{buildFailed(target, fmt.Sprintf("%v after rebuild: %s", ErrNoArtifact, target))}, nil
	}

	changed := !before.equal(after)
	slog.Debug("relink check", "target", target, "work_done", second.WorkDone, "artifact_changed", changed)
	if !second.WorkDone && !changed {
		return nil, nil
	}
	reason := "second build did work"
	if !second.WorkDone {
		reason = "artifact changed on the second build"
	}
	return []model.Violation{{
		Kind:     model.Relink,
		Severity: model.Fail,
		File:     target,
		Message:  fmt.Sprintf("relink detected: %s with no source changes", reason),
	}}, nil
}

func wrap(v *model.Violation) []model.Violation {
	if v == nil {
		return nil
	}
	return []model.Violation{*v}
}

// build runs one build under the per-build timeout and turns every failure
// into a BuildFailed violation. The error is non-nil only when ctx is done.
func (d *Detector) build(ctx context.Context, dir, target, which string) (Result, *model.Violation, error) {
	bctx := ctx
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		bctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	slog.Debug("building", "dir", dir, "target", target, "pass", which)
	res, err := d.Driver.Build(bctx, dir, target)
	if ctx.Err() != nil {
		return res, nil, ctx.Err()
	}
	switch {
	case bctx.Err() != nil:
		v := buildFailed(target, fmt.Sprintf("%s build timed out after %s", which, d.Timeout))
		return res, &v, nil
	case err != nil:
		v := buildFailed(target, fmt.Sprintf("%s build could not run: %v", which, err))
		return res, &v, nil
	case res.ExitCode != 0:
		msg := fmt.Sprintf("%s build failed with exit code %d", which, res.ExitCode)
		if tail := lastLine(res.Output); tail != "" {
			msg += ": " + tail
		}
		v := buildFailed(target, msg)
		return res, &v, nil
	}
	return res, nil, nil
}

func buildFailed(target, msg string) model.Violation {
	return model.Violation{
		Kind:     model.BuildFailed,
		Severity: model.Fail,
		File:     target,
		Message:  msg,
	}
}

func lastLine(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

type fingerprint struct {
	size    int64
	modTime time.Time
	sum     [sha256.Size]byte
}

func (f fingerprint) equal(o fingerprint) bool {
	return f.size == o.size && f.modTime.Equal(o.modTime) && f.sum == o.sum
}

func (d *Detector) fingerprint(p string) (fingerprint, error) {
	info, err := d.Fs.Stat(p)
	if err != nil {
		return fingerprint{}, err
	}
	if info.IsDir() {
		return fingerprint{}, fmt.Errorf("%s is a directory", p)
	}
	f, err := d.Fs.Open(p)
	if err != nil {
		return fingerprint{}, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fingerprint{}, err
	}
	fp := fingerprint{size: info.Size(), modTime: info.ModTime()}
	copy(fp.sum[:], h.Sum(nil))
	return fp, nil
}
