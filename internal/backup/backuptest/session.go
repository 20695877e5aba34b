// Package backuptest provides a Session that serves a local directory tree,
// so the backup walks can be exercised without an SSH server.
package backuptest

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"sftpbackup/internal/errdefs"
	"sftpbackup/internal/models"
)

// Session treats remote paths as local paths.
type Session struct {
	// FetchErr makes Fetch fail for the given remote paths.
	FetchErr map[string]error
	// ListErr makes List fail for the given remote paths.
	ListErr  map[string]error
	CloseErr error

	Listed  []string
	Fetched []string
	Closed  int
}

func (s *Session) List(dir string) ([]models.RemoteEntry, error) {
	s.Listed = append(s.Listed, dir)

	if err, ok := s.ListErr[dir]; ok {
		return nil, err
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, errdefs.Path("list", dir, err)
	}
	if !info.IsDir() {
		return nil, errdefs.Path("list", dir, errors.New("not a directory"))
	}

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errdefs.Path("list", dir, err)
	}

	entries := make([]models.RemoteEntry, 0, len(dirEntries))
	for _, de := range dirEntries {
		fi, err := de.Info()
		if err != nil {
			return nil, errdefs.Path("list", dir, err)
		}
		entries = append(entries, models.RemoteEntry{
			Name: fi.Name(),
			Dir:  fi.IsDir(),
			Size: fi.Size(),
		})
	}

	return entries, nil
}

func (s *Session) Fetch(remotePath, localPath string) (int64, error) {
	s.Fetched = append(s.Fetched, remotePath)

	if err, ok := s.FetchErr[remotePath]; ok {
		return 0, err
	}

	src, err := os.Open(remotePath)
	if err != nil {
		return 0, errdefs.IO("open remote file", remotePath, err)
	}
	defer src.Close()

	dst, err := os.Create(localPath)
	if err != nil {
		return 0, errdefs.IO("create local file", localPath, err)
	}
	defer dst.Close()

	n, err := io.Copy(dst, src)
	if err != nil {
		return n, errdefs.IO("transfer", remotePath, err)
	}

	return n, nil
}

func (s *Session) Close() error {
	s.Closed++
	return s.CloseErr
}

// WriteTree creates files under root. Keys are slash-separated relative
// paths; a key ending in "/" creates an empty directory.
func WriteTree(t testing.TB, root string, files map[string]string) {
	t.Helper()

	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if strings.HasSuffix(name, "/") {
			require.NoError(t, os.MkdirAll(p, 0o755))
			continue
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

// ReadTree returns every file under root keyed by slash-separated relative
// path, and every directory (root excluded) with a trailing "/".
func ReadTree(t testing.TB, root string) map[string]string {
	t.Helper()

	tree := map[string]string{}
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil || rel == "." {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			tree[rel+"/"] = ""
			return nil
		}
		content, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		tree[rel] = string(content)
		return nil
	})
	require.NoError(t, err)

	return tree
}
