// Package discover finds the C and C++ source files of a submitted project.
package discover

import (
	"context"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"
	"github.com/spf13/afero"

	"github.com/phobologic/subcheck/internal/lang"
	"github.com/phobologic/subcheck/internal/model"
)

// FileEntry represents a discovered source file.
type FileEntry struct {
	Path string // Relative to project root, slash-separated
	Kind model.Kind
}

var skipDirs = map[string]struct{}{
	".git":         {},
	".hg":          {},
	".svn":         {},
	".vscode":      {},
	".idea":        {},
	".cache":       {},
	"node_modules": {},
}

// Files discovers source files under root on fsys. Paths matching any of the
// exclude globs (doublestar syntax, relative to root) are left out.
func Files(fsys afero.Fs, root string, exclude []string) ([]FileEntry, error) {
	var gitFiles map[string]struct{}
	if _, ok := fsys.(*afero.OsFs); ok {
		gitFiles = gitLsFiles(root)
	}
	var gi *ignore.GitIgnore
	if gitFiles == nil {
		gi = loadGitignore(fsys, root)
	}

	var results []FileEntry

	err := afero.Walk(fsys, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip errors
		}

		name := info.Name()
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if p == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if Excluded(rel, exclude) {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}

		// Skip symlinks
		if info.Mode()&os.ModeSymlink != 0 {
			return nil
		}

		if gitFiles != nil {
			if _, ok := gitFiles[rel]; !ok {
				return nil
			}
		} else if gi != nil && gi.MatchesPath(rel) {
			return nil
		}

		if Excluded(rel, exclude) {
			return nil
		}

		l := lang.ForExtension(path.Ext(name))
		if l == nil {
			return nil
		}

		results = append(results, FileEntry{Path: rel, Kind: l.Kind})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})

	return results, nil
}

// Excluded reports whether the slash-separated relative path matches one of
// the patterns. A pattern naming a directory also excludes its contents.
func Excluded(rel string, patterns []string) bool {
	for _, p := range patterns {
		p = strings.TrimSuffix(p, "/")
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(p+"/**", rel); ok {
			return true
		}
	}
	return false
}

func gitLsFiles(root string) map[string]struct{} {
	gitDir := filepath.Join(root, ".git")
	info, err := os.Stat(gitDir)
	if err != nil || !info.IsDir() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	files := make(map[string]struct{})
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			files[line] = struct{}{}
		}
	}
	return files
}

func loadGitignore(fsys afero.Fs, root string) *ignore.GitIgnore {
	data, err := afero.ReadFile(fsys, filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return ignore.CompileIgnoreLines(strings.Split(string(data), "\n")...)
}
