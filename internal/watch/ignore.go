package watch

import (
	"path/filepath"
	"strings"

	"github.com/eddiedunn/moltest/internal/discovery"
)

// noisePatterns are editor, interpreter and atomic-write leftovers that
// never warrant a rerun.
var noisePatterns = []string{
	"*.swp",
	"*.swx",
	"*~",
	"*.tmp.*",
	"*.pyc",
	"*.retry",
	"__pycache__",
	".#*",
}

// NewIgnore builds an IgnoreFunc from discovery ignore patterns relative to
// root, plus exact files the run itself writes, such as the result cache and
// report files.
func NewIgnore(root string, patterns []string, ownFiles ...string) IgnoreFunc {
	all := append(append([]string(nil), patterns...), noisePatterns...)

	own := make(map[string]struct{}, len(ownFiles))
	for _, f := range ownFiles {
		if f == "" {
			continue
		}
		if !filepath.IsAbs(f) {
			f = filepath.Join(root, f)
		}
		own[filepath.Clean(f)] = struct{}{}
	}

	return func(path string) bool {
		clean := filepath.Clean(path)
		if _, ok := own[clean]; ok {
			return true
		}
		// SQLite sidecar files follow the database they belong to.
		for _, suffix := range []string{"-wal", "-shm", "-journal"} {
			if base, ok := strings.CutSuffix(clean, suffix); ok {
				if _, ok := own[base]; ok {
					return true
				}
			}
		}
		// Any ignored ancestor below root ignores the path.
		for p := clean; ; {
			if discovery.MatchIgnore(all, root, p) {
				return true
			}
			parent := filepath.Dir(p)
			if parent == p || parent == root || !within(root, parent) {
				return false
			}
			p = parent
		}
	}
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	rel = filepath.ToSlash(rel)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, "../")
}
