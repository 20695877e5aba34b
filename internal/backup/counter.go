package backup

import (
	"context"
	"path"

	"sftpbackup/internal/models"
)

type Lister interface {
	List(dir string) ([]models.RemoteEntry, error)
}

// Count walks the whole tree under root and returns how many directories
// (root included) and files it holds, along with the listed size of the
// files. Every subdirectory at every level is visited.
func Count(ctx context.Context, lister Lister, root string) (models.Counts, error) {
	counts := models.Counts{Dirs: 1}
	pending := []string{root}

	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return counts, err
		}

		dir := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		entries, err := lister.List(dir)
		if err != nil {
			return counts, err
		}

		for _, entry := range entries {
			if err := checkEntryName(dir, entry.Name); err != nil {
				return counts, err
			}

			if entry.Dir {
				counts.Dirs++
				pending = append(pending, path.Join(dir, entry.Name))
				continue
			}
			counts.Files++
			counts.Bytes += entry.Size
		}
	}

	return counts, nil
}
