package backup

import (
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/benbjohnson/clock"

	"sftpbackup/internal/errdefs"
)

// TimestampLayout has second resolution; two runs in the same second
// collide on the destination name.
const TimestampLayout = "2006-01-02-15-04-05"

// DestinationName returns "<basename(remoteDir)>-<timestamp>".
func DestinationName(remoteDir string, now time.Time) (string, error) {
	if remoteDir == "" {
		return "", errdefs.Argumentf("remote directory must not be empty")
	}

	base := path.Base(path.Clean(remoteDir))
	if base == "/" || base == "." || base == ".." {
		return "", errdefs.Argumentf("remote directory %q has no base name", remoteDir)
	}

	return base + "-" + now.Format(TimestampLayout), nil
}

func DestinationPath(localRoot, remoteDir string, now time.Time) (string, error) {
	if localRoot == "" {
		return "", errdefs.Argumentf("local directory must not be empty")
	}

	name, err := DestinationName(remoteDir, now)
	if err != nil {
		return "", err
	}

	return filepath.Join(localRoot, name), nil
}

// SetupDestination creates the timestamped backup directory under localRoot
// and returns its absolute path. localRoot must already exist, and an
// existing destination is an error rather than being reused.
func SetupDestination(localRoot, remoteDir string, clk clock.Clock) (string, error) {
	dir, err := DestinationPath(localRoot, remoteDir, clk.Now())
	if err != nil {
		return "", err
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", errdefs.IO("resolve destination", dir, err)
	}

	if err := os.Mkdir(abs, 0o755); err != nil {
		return "", errdefs.IO("create destination", abs, err)
	}

	return abs, nil
}
