package check

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"github.com/phobologic/subcheck/internal/model"
)

// RequiredPaths reports every entry of required that does not exist under
// root. An entry ending in '/' must be a directory; an entry containing glob
// metacharacters must match at least one path.
func RequiredPaths(fsys afero.Fs, root string, required []string) []model.Violation {
	var out []model.Violation
	for _, rp := range required {
		if !pathExists(fsys, root, rp) {
			out = append(out, model.Violation{
				Kind:     model.MissingFile,
				Severity: model.Fail,
				File:     rp,
				Message:  fmt.Sprintf("required path missing: %s", rp),
			})
		}
	}
	return out
}

func pathExists(fsys afero.Fs, root, rp string) bool {
	wantDir := strings.HasSuffix(rp, "/")
	clean := path.Clean(strings.TrimSuffix(rp, "/"))

	if strings.ContainsAny(clean, "*?[{") {
		matches, err := doublestar.Glob(afero.NewIOFS(afero.NewBasePathFs(fsys, root)), clean)
		if err != nil {
			return false
		}
		for _, m := range matches {
			if !wantDir || isDir(fsys, filepath.Join(root, filepath.FromSlash(m))) {
				return true
			}
		}
		return false
	}

	info, err := fsys.Stat(filepath.Join(root, filepath.FromSlash(clean)))
	if err != nil {
		return false
	}
	return !wantDir || info.IsDir()
}

func isDir(fsys afero.Fs, p string) bool {
	info, err := fsys.Stat(p)
	return err == nil && info.Mode()&fs.ModeDir != 0
}
