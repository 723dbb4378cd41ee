package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

const watchDebounce = 300 * time.Millisecond

// watchPatterns select the changes that trigger a new check.
var watchPatterns = []string{
	"**/*.{c,h,cpp,cc,cxx,hpp,hh,tpp,ipp}",
	"**/Makefile",
	"**/README.md",
}

func newWatchCmd(a *app) *cobra.Command {
	var flags checkFlags
	cmd := &cobra.Command{
		Use:   "watch <folder> <project>",
		Short: "Re-run the check whenever sources, the Makefile or the README change",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := filepath.Abs(args[0])
			if err != nil {
				return configError(err)
			}

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return &exitError{code: exitFail, err: fmt.Errorf("watch init failed: %w", err)}
			}
			defer watcher.Close()
			if err := addWatchRecursive(watcher, root); err != nil {
				return configError(fmt.Errorf("watch failed: %w", err))
			}

			trigger := func() error {
				_, err := a.check(cmd, args[0], args[1], flags)
				_, _ = fmt.Fprintf(a.stdout, "--- watching %s (Ctrl-C to stop)\n", args[0])
				return err
			}
			err = trigger()
			if err == nil {
				changes := make(chan string)
				go forwardEvents(cmd.Context(), watcher, root, changes)
				err = debounce(cmd.Context(), changes, watchDebounce, trigger)
			}
			// Interrupting the watch is the normal way out.
			if cmd.Context().Err() != nil {
				return nil
			}
			return err
		},
	}
	flags.register(cmd)
	return cmd
}

// forwardEvents sends the root-relative path of every relevant change.
// New directories are watched as they appear.
func forwardEvents(ctx context.Context, w *fsnotify.Watcher, root string, out chan<- string) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = addWatchRecursive(w, ev.Name)
				}
			}
			rel, err := filepath.Rel(root, ev.Name)
			if err != nil || !watched(filepath.ToSlash(rel)) {
				continue
			}
			select {
			case out <- rel:
			case <-ctx.Done():
				return
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			slog.Warn("watch error", "err", err)
		}
	}
}

func watched(rel string) bool {
	for _, p := range watchPatterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// debounce calls fn once changes have been quiet for delay. It returns when
// ctx is done or fn fails.
func debounce(ctx context.Context, changes <-chan string, delay time.Duration, fn func() error) error {
	timer := time.NewTimer(delay)
	timer.Stop()
	pending := false
	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case rel := <-changes:
			slog.Debug("change detected", "path", rel)
			timer.Reset(delay)
			pending = true
		case <-timer.C:
			if !pending {
				continue
			}
			pending = false
			if err := fn(); err != nil {
				return err
			}
		}
	}
}

func addWatchRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if path != root && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return w.Add(path)
		}
		return nil
	})
}
