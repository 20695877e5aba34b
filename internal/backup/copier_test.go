package backup

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sftpbackup/internal/backup/backuptest"
	"sftpbackup/internal/errdefs"
	"sftpbackup/internal/models"
)

func copyTree(t *testing.T, tree map[string]string) (string, string, *bytes.Buffer, models.Counts, models.CopyStats, error) {
	t.Helper()

	src := t.TempDir()
	dst := t.TempDir()
	backuptest.WriteTree(t, src, tree)

	session := &backuptest.Session{}
	counts, err := Count(context.Background(), session, src)
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	var out bytes.Buffer
	stats, err := Copy(context.Background(), session, src, dst, counts.Total(), &out, logger)

	return src, dst, &out, counts, stats, err
}

func TestCopyFileAndSubdirectory(t *testing.T) {
	tree := map[string]string{
		"a.txt":     "alpha\n",
		"sub/b.txt": "bravo\x00\xff",
	}

	_, dst, out, counts, stats, err := copyTree(t, tree)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"a.txt":     "alpha\n",
		"sub/":      "",
		"sub/b.txt": "bravo\x00\xff",
	}, backuptest.ReadTree(t, dst))

	assert.Equal(t, models.Counts{Dirs: 2, Files: 2, Bytes: 13}, counts)
	assert.Equal(t, "Copying 2 of 4: a.txt\nCopying 4 of 4: b.txt\n", out.String())
	assert.Equal(t, models.CopyStats{DirsCreated: 1, FilesCopied: 2, BytesCopied: 13}, stats)
}

func TestCopyBranchingTree(t *testing.T) {
	_, dst, out, counts, stats, err := copyTree(t, branchingTree)
	require.NoError(t, err)

	want := map[string]string{
		"docs/":       "",
		"docs/guide/": "",
		"src/":        "",
		"src/cmd/":    "",
		"src/lib/":    "",
	}
	for name, content := range branchingTree {
		want[name] = content
	}
	assert.Equal(t, want, backuptest.ReadTree(t, dst))

	assert.Equal(t, []string{
		"Copying 2 of 12: a.txt",
		"Copying 5 of 12: intro.md",
		"Copying 6 of 12: readme.md",
		"Copying 10 of 12: util.go",
		"Copying 11 of 12: main.go",
		"Copying 12 of 12: z.txt",
	}, strings.Split(strings.TrimSpace(out.String()), "\n"))

	assert.Equal(t, counts.Files, stats.FilesCopied)
	assert.Equal(t, counts.Dirs-1, stats.DirsCreated)
}

func TestCopyAgreesWithCount(t *testing.T) {
	tests := map[string]map[string]string{
		"flat":      {"a": "1", "b": "22", "c": "333"},
		"chain":     {"x": "x", "one/y": "y", "one/two/z": "z"},
		"branching": branchingTree,
	}

	for name, tree := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, _, counts, stats, err := copyTree(t, tree)
			require.NoError(t, err)

			assert.Equal(t, counts.Files, stats.FilesCopied)
			assert.Equal(t, counts.Bytes, stats.BytesCopied)
			assert.Equal(t, counts.Total(), 1+stats.DirsCreated+stats.FilesCopied)
			if name == "flat" {
				assert.Equal(t, 1, counts.Dirs)
			}
		})
	}
}

func TestCopyOverwritesExistingFiles(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	backuptest.WriteTree(t, src, map[string]string{"sub/b.txt": "new"})
	backuptest.WriteTree(t, dst, map[string]string{"sub/b.txt": "old and longer"})

	stats, err := Copy(context.Background(), &backuptest.Session{}, src, dst, 3, &bytes.Buffer{}, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, stats.DirsCreated)
	content, err := os.ReadFile(filepath.Join(dst, "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(content))
}

func TestCopyStopsAtFirstFetchError(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	backuptest.WriteTree(t, src, map[string]string{
		"a.txt":     "a",
		"sub/b.txt": "b",
		"z.txt":     "z",
	})

	failing := filepath.Join(src, "sub", "b.txt")
	session := &backuptest.Session{FetchErr: map[string]error{
		failing: errdefs.IO("transfer", failing, assert.AnError),
	}}

	var out bytes.Buffer
	stats, err := Copy(context.Background(), session, src, dst, 5, &out, nil)
	assert.ErrorIs(t, err, errdefs.ErrIO)
	assert.ErrorIs(t, err, assert.AnError)

	assert.Equal(t, 1, stats.FilesCopied)
	assert.Equal(t, map[string]string{"a.txt": "a", "sub/": ""}, backuptest.ReadTree(t, dst))
	assert.NotContains(t, session.Fetched, filepath.Join(src, "z.txt"))
}

func TestCopyLocalDirectoryBlockedByFile(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	backuptest.WriteTree(t, src, map[string]string{"sub/b.txt": "b"})
	backuptest.WriteTree(t, dst, map[string]string{"sub": "i am a file"})

	_, err := Copy(context.Background(), &backuptest.Session{}, src, dst, 3, &bytes.Buffer{}, nil)
	assert.ErrorIs(t, err, errdefs.ErrIO)
}

func TestCopyCancelled(t *testing.T) {
	src := t.TempDir()
	backuptest.WriteTree(t, src, map[string]string{"a.txt": "a"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	session := &backuptest.Session{}
	_, err := Copy(ctx, session, src, t.TempDir(), 2, &bytes.Buffer{}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, session.Fetched)
}

type cancellingSession struct {
	*backuptest.Session
	cancel context.CancelFunc
}

func (s *cancellingSession) Fetch(remotePath, localPath string) (int64, error) {
	defer s.cancel()
	return s.Session.Fetch(remotePath, localPath)
}

func TestCopyCancelledMidWalkStopsCounting(t *testing.T) {
	src := t.TempDir()
	backuptest.WriteTree(t, src, map[string]string{"a.txt": "a", "b.txt": "b", "sub/c.txt": "c"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out bytes.Buffer
	c := &copier{
		src:   &cancellingSession{Session: &backuptest.Session{}, cancel: cancel},
		out:   &out,
		log:   logrus.StandardLogger(),
		total: 5,
		count: 1,
	}

	err := c.copyDir(ctx, src, t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, "Copying 2 of 5: a.txt\n", out.String())
	assert.Equal(t, 2, c.count)
	assert.Equal(t, 1, c.stats.FilesCopied)
}
