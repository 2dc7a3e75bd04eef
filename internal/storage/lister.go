package storage

import (
	"os"
	"path/filepath"
)

// ListContents splits the immediate entries of path into directories and
// regular files. Symlinks are classified by what they point to; anything
// else is skipped. The order is not meaningful.
func ListContents(path string) (dirs []string, files []string, err error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, nil, err
	}

	dirs = []string{}
	files = []string{}
	for _, entry := range entries {
		mode := entry.Type()
		if mode&os.ModeSymlink != 0 {
			info, statErr := os.Stat(filepath.Join(path, entry.Name()))
			if statErr != nil {
				continue
			}
			mode = info.Mode().Type()
		}

		switch {
		case mode.IsDir():
			dirs = append(dirs, entry.Name())
		case mode.IsRegular():
			files = append(files, entry.Name())
		}
	}

	return dirs, files, nil
}
