// Package backup copies a remote directory tree into a new timestamped
// local directory: one pass to count the tree, one pass to copy it.
package backup

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"sftpbackup/internal/errdefs"
	"sftpbackup/internal/models"
	"sftpbackup/pkg/utils"
)

type Connector func(ctx context.Context, server, user string) (Session, error)

type Request struct {
	Server    string
	User      string
	RemoteDir string
	LocalDir  string
}

func (r Request) validate() error {
	switch {
	case r.Server == "":
		return errdefs.Argumentf("server must not be empty")
	case r.User == "":
		return errdefs.Argumentf("user must not be empty")
	}

	_, err := DestinationPath(r.LocalDir, r.RemoteDir, time.Time{})
	return err
}

type Runner struct {
	Connect Connector
	Clock   clock.Clock
	Out     io.Writer
	Logger  logrus.FieldLogger
}

// Run connects, creates the destination, counts and copies the tree. The
// session is closed on every path out of Run; a close failure is reported
// together with any earlier error. Nothing is rolled back on failure: a
// destination that was created stays, with whatever was copied into it.
func (r *Runner) Run(ctx context.Context, req Request) (result *models.BackupResult, err error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	clk := r.Clock
	if clk == nil {
		clk = clock.New()
	}
	out := r.Out
	if out == nil {
		out = io.Discard
	}
	log := r.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithFields(logrus.Fields{"server": req.Server, "remote_dir": req.RemoteDir})

	started := clk.Now()

	session, err := r.Connect(ctx, req.Server, req.User)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			err = multierror.Append(err, errdefs.Connection("close session", req.Server, cerr))
		}
	}()

	dest, err := SetupDestination(req.LocalDir, req.RemoteDir, clk)
	if err != nil {
		return nil, err
	}
	log.WithField("destination", dest).Info("backup destination created")

	fmt.Fprintln(out, "Calculating how many to copy.")
	counts, err := Count(ctx, session, req.RemoteDir)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"dirs":  counts.Dirs,
		"files": counts.Files,
		"bytes": utils.FormatBytes(counts.Bytes),
	}).Debug("tree counted")
	fmt.Fprintf(out, "Copying %d files and %d directories from %s to %s\n",
		counts.Files, counts.Dirs, req.RemoteDir, dest)

	stats, err := Copy(ctx, session, req.RemoteDir, dest, counts.Total(), out, log)
	if err != nil {
		return nil, err
	}

	duration := clk.Since(started)
	log.WithFields(logrus.Fields{
		"files":    stats.FilesCopied,
		"bytes":    stats.BytesCopied,
		"duration": duration,
	}).Info("backup finished")

	return &models.BackupResult{
		Server:         req.Server,
		User:           req.User,
		RemoteDir:      req.RemoteDir,
		Destination:    dest,
		Counted:        counts,
		DirsCreated:    stats.DirsCreated,
		FilesCopied:    stats.FilesCopied,
		TotalSizeBytes: stats.BytesCopied,
		TotalSizeHuman: utils.FormatBytes(stats.BytesCopied),
		StartedAt:      started,
		BackupDuration: duration.String(),
	}, nil
}
