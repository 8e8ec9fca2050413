package neobench

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const sourceName = "matmul.c"

// workspace is the private scratch directory of one combination. It holds
// the source, binaries, profile data and traces, and is removed as a whole.
type workspace struct {
	dir string
	src string
}

// newWorkspace creates a fresh directory under root and writes source into it.
// The caller owns the workspace and must call remove on every path.
func newWorkspace(root string, c Combination, source []byte) (*workspace, error) {
	mkdirErr := os.MkdirAll(root, 0o755)
	if mkdirErr != nil {
		return nil, fmt.Errorf("create work root: %w", mkdirErr)
	}

	dir, err := os.MkdirTemp(root, c.Signature()+"-")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	ws := &workspace{dir: dir, src: filepath.Join(dir, sourceName)}

	writeErr := os.WriteFile(ws.src, source, 0o644)
	if writeErr != nil {
		_ = ws.remove()

		return nil, fmt.Errorf("write benchmark source: %w", writeErr)
	}

	return ws, nil
}

func (w *workspace) path(name string) string {
	return filepath.Join(w.dir, name)
}

func (w *workspace) remove() error {
	err := os.RemoveAll(w.dir)
	if err != nil {
		return fmt.Errorf("remove workspace: %w", err)
	}

	return nil
}

// treeBytes returns the total size of regular files under dir.
func treeBytes(dir string) (int64, error) {
	var total int64

	walkErr := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.Type().IsRegular() {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}

		total += info.Size()

		return nil
	})
	if walkErr != nil {
		return 0, fmt.Errorf("walk %s: %w", dir, walkErr)
	}

	return total, nil
}
