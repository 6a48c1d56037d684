package editor

import (
	"path"
	"strings"
)

// Normalize resolves p to an absolute path under repoRoot, following the
// rule in spec §4.3: if p already begins with repoRoot and still lies under
// it once cleaned, it is returned cleaned; otherwise it is resolved against
// cwd; if the result still does not lie under repoRoot, it is re-rooted
// under repoRoot. The result never contains ".." segments and always lies
// under repoRoot.
func Normalize(repoRoot, cwd, p string) string {
	repoRoot = path.Clean("/" + repoRoot)
	under := func(q string) bool {
		return repoRoot == "/" || q == repoRoot || strings.HasPrefix(q, repoRoot+"/")
	}

	if strings.HasPrefix(p, repoRoot) && under(path.Clean(p)) {
		return path.Clean(p)
	}

	var resolved string
	if path.IsAbs(p) {
		resolved = path.Clean(p)
	} else {
		resolved = path.Clean(path.Join(cwd, p))
	}

	if under(resolved) {
		return resolved
	}

	rel := strings.TrimPrefix(resolved, "/")
	return path.Clean(path.Join(repoRoot, rel))
}
