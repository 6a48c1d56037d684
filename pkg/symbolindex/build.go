package symbolindex

import (
	"archive/tar"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sweagent/sweenv/pkg/containerrt"
	"github.com/sweagent/sweenv/pkg/types"
)

// snapshotAndHash streams repoRoot out of the container, extracts it under
// a local temp directory, and returns that directory plus a content hash
// covering every regular file's relative path and bytes.
func snapshotAndHash(ctx context.Context, rt containerrt.Runtime, handle types.ContainerHandle, repoRoot string) (string, string, error) {
	stream, err := rt.Archive(ctx, handle, repoRoot)
	if err != nil {
		return "", "", err
	}
	defer stream.Close()

	dir, err := os.MkdirTemp("", "sweenv-symbolindex-*")
	if err != nil {
		return "", "", err
	}

	type fileHash struct {
		rel  string
		sum  [32]byte
	}
	var hashes []fileHash

	tr := tar.NewReader(stream)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			cleanupDir(dir)
			return "", "", fmt.Errorf("read archive: %w", err)
		}

		target := filepath.Join(dir, hdr.Name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				cleanupDir(dir)
				return "", "", err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				cleanupDir(dir)
				return "", "", err
			}
			f, err := os.Create(target)
			if err != nil {
				cleanupDir(dir)
				return "", "", err
			}
			h := sha256.New()
			if _, err := io.Copy(io.MultiWriter(f, h), tr); err != nil {
				f.Close()
				cleanupDir(dir)
				return "", "", err
			}
			f.Close()
			var sum [32]byte
			copy(sum[:], h.Sum(nil))
			hashes = append(hashes, fileHash{rel: hdr.Name, sum: sum})
		}
	}

	sort.Slice(hashes, func(i, j int) bool { return hashes[i].rel < hashes[j].rel })
	overall := sha256.New()
	for _, fh := range hashes {
		overall.Write([]byte(fh.rel))
		overall.Write(fh.sum[:])
	}

	return dir, hex.EncodeToString(overall.Sum(nil)), nil
}

// snapshotRoot accounts for archive formats (tar -C <parent> <base>) that
// nest the extracted tree one level under the base name of repoRoot,
// rather than writing repoRoot's own children at the top level.
func snapshotRoot(dir, repoRoot string) string {
	nested := filepath.Join(dir, filepath.Base(repoRoot))
	if info, err := os.Stat(nested); err == nil && info.IsDir() {
		return nested
	}
	return dir
}

func cleanupDir(dir string) {
	if dir != "" {
		_ = os.RemoveAll(dir)
	}
}

// parseTree walks the local snapshot at dir, parsing every .go and .py
// file, and records entries with container-rooted paths (dir swapped for
// repoRoot).
func parseTree(dir, repoRoot, hash string) (*types.SymbolIndex, error) {
	idx := &types.SymbolIndex{
		ContentHash: hash,
		Functions:   make(map[string][]types.FunctionEntry),
		Classes:     make(map[string][]types.ClassEntry),
	}

	root := snapshotRoot(dir, repoRoot)

	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		containerPath := filepath.ToSlash(filepath.Join(repoRoot, rel))

		switch {
		case strings.HasSuffix(p, ".go"):
			funcs, classes, err := parseGoFile(p, containerPath)
			if err != nil {
				return nil // skip unparseable files rather than fail the whole build
			}
			mergeFunctions(idx.Functions, funcs)
			mergeClasses(idx.Classes, classes)
		case strings.HasSuffix(p, ".py"):
			funcs, classes, err := parsePythonFile(p, containerPath)
			if err != nil {
				return nil
			}
			mergeFunctions(idx.Functions, funcs)
			mergeClasses(idx.Classes, classes)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return idx, nil
}

func mergeFunctions(dst map[string][]types.FunctionEntry, src []types.FunctionEntry) {
	for _, f := range src {
		dst[f.QualifiedName] = append(dst[f.QualifiedName], f)
	}
}

func mergeClasses(dst map[string][]types.ClassEntry, src []types.ClassEntry) {
	for _, c := range src {
		dst[c.Name] = append(dst[c.Name], c)
	}
}
