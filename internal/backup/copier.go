package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"sftpbackup/internal/errdefs"
	"sftpbackup/internal/models"
)

type Fetcher interface {
	Fetch(remotePath, localPath string) (int64, error)
}

// Source is the read side of a remote session used by the walks.
type Source interface {
	Lister
	Fetcher
}

type Session interface {
	Source
	Close() error
}

type copier struct {
	src Source
	out io.Writer
	log logrus.FieldLogger

	total int
	count int
	stats models.CopyStats
}

// Copy mirrors the tree under remoteRoot into localRoot. The running count
// starts at 1 for the root and grows by one per directory and per file, so
// a complete copy ends at the total reported by Count. Each file prints
// "Copying <count> of <total>: <name>" to out before it is fetched.
func Copy(ctx context.Context, src Source, remoteRoot, localRoot string, total int, out io.Writer, log logrus.FieldLogger) (models.CopyStats, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	c := &copier{
		src:   src,
		out:   out,
		log:   log,
		total: total,
		count: 1,
	}

	err := c.copyDir(ctx, remoteRoot, localRoot)
	return c.stats, err
}

func (c *copier) copyDir(ctx context.Context, remoteDir, localDir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := c.ensureDir(localDir); err != nil {
		return err
	}

	entries, err := c.src.List(remoteDir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if err := checkEntryName(remoteDir, entry.Name); err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		remotePath := path.Join(remoteDir, entry.Name)
		localPath := filepath.Join(localDir, entry.Name)
		c.count++

		if entry.Dir {
			if err := c.copyDir(ctx, remotePath, localPath); err != nil {
				return err
			}
			continue
		}

		fmt.Fprintf(c.out, "Copying %d of %d: %s\n", c.count, c.total, entry.Name)

		n, err := c.src.Fetch(remotePath, localPath)
		if err != nil {
			return err
		}

		c.stats.FilesCopied++
		c.stats.BytesCopied += n
		c.log.WithFields(logrus.Fields{
			"remote": remotePath,
			"local":  localPath,
			"bytes":  n,
		}).Debug("file copied")
	}

	return nil
}

func (c *copier) ensureDir(dir string) error {
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errdefs.IO("create directory", dir, errors.New("a file with that name exists"))
		}
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errdefs.IO("create directory", dir, err)
	}
	c.stats.DirsCreated++

	return nil
}

// checkEntryName rejects listing entries that would escape the directory
// they were listed from.
func checkEntryName(dir, name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsRune(name, '/') || strings.ContainsRune(name, filepath.Separator) {
		return errdefs.Path("list", dir, fmt.Errorf("invalid entry name %q", name))
	}
	return nil
}
