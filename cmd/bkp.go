package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"sftpbackup/internal/backup"
	"sftpbackup/internal/errdefs"
	"sftpbackup/internal/remote"
	"sftpbackup/internal/s3client"
	"sftpbackup/pkg/utils"
)

// connect is replaced in tests.
var connect = func(ctx context.Context, opts remote.Options) (backup.Session, error) {
	session, err := remote.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func newBkpCmd() *cobra.Command {
	bkpCmd := &cobra.Command{
		Use:   "bkp SERVER USER REMOTE_DIR LOCAL_DIR",
		Short: "Back up a remote directory into a timestamped local directory",
		Long: `Back up REMOTE_DIR on SERVER into a new directory inside LOCAL_DIR.

The tree is walked twice: once to count directories and files, then again to
copy them, printing "Copying <n> of <total>: <file>" for every file.

Arguments:
  SERVER      Remote server to back up from. Passwordless public key
              authentication must already be set up.
  USER        User to log in to the remote server as.
  REMOTE_DIR  Full path of the remote directory to back up.
  LOCAL_DIR   Full path of the local directory inside which the backup is
              created, named <remote_dir_name>-<YYYY-MM-DD-HH-MM-SS>.`,
		Example: `  # Back up /var/www from web1
  sftpbackup bkp web1.example.com deploy /var/www /srv/backups

  # Non-standard SSH port and a specific key
  sftpbackup bkp web1.example.com deploy /var/www /srv/backups -p 2222 -i ~/.ssh/backup_ed25519

  # Zip the finished backup and upload it to the configured S3 bucket
  sftpbackup bkp web1.example.com deploy /var/www /srv/backups --upload`,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(4)(cmd, args); err != nil {
				return errdefs.Argument("bkp", "", err)
			}
			return nil
		},
		RunE: runBkp,
	}

	bkpCmd.Flags().StringP("port", "p", "", "SSH port (default: SSH_PORT or 22)")
	bkpCmd.Flags().StringP("identity", "i", "", "Private key file (default: SSH_IDENTITY_FILE or ~/.ssh/id_*)")
	bkpCmd.Flags().String("known-hosts", "", "Known hosts file (default: SSH_KNOWN_HOSTS or ~/.ssh/known_hosts)")
	bkpCmd.Flags().Bool("archive", false, "Zip the finished backup next to it")
	bkpCmd.Flags().Bool("upload", false, "Upload the zipped backup to the configured S3 bucket (implies --archive)")
	bkpCmd.Flags().Bool("json", false, "Print a JSON summary when the backup finishes")

	return bkpCmd
}

func runBkp(cmd *cobra.Command, args []string) error {
	archive, _ := cmd.Flags().GetBool("archive")
	upload, _ := cmd.Flags().GetBool("upload")
	asJSON, _ := cmd.Flags().GetBool("json")

	if upload && !cfg.UploadEnabled() {
		return errdefs.Argumentf("--upload needs BUCKET_NAME and REGION to be configured")
	}

	cmd.SilenceUsage = true

	req := backup.Request{
		Server:    args[0],
		User:      args[1],
		RemoteDir: args[2],
		LocalDir:  args[3],
	}
	opts := sessionOptions(cmd)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if isVerbose(cmd) {
		logger.WithFields(logrus.Fields{
			"server":     req.Server,
			"user":       req.User,
			"remote_dir": req.RemoteDir,
			"local_dir":  req.LocalDir,
		}).Debug("starting backup")
	}

	// --json keeps stdout for the summary alone.
	progress := cmd.OutOrStdout()
	if asJSON {
		progress = cmd.ErrOrStderr()
	}

	runner := &backup.Runner{
		Connect: func(ctx context.Context, server, user string) (backup.Session, error) {
			opts.Host = server
			opts.User = user
			return connect(ctx, opts)
		},
		Out:    progress,
		Logger: logger,
	}

	result, err := runner.Run(ctx, req)
	if err != nil {
		return err
	}

	if archive || upload {
		info, err := utils.CreateArchive(result.Destination, utils.ArchivePath(result.Destination))
		if err != nil {
			return errdefs.IO("archive", result.Destination, err)
		}
		result.ArchivePath = info.ArchivePath

		logger.WithFields(logrus.Fields{
			"archive": info.ArchivePath,
			"size":    utils.FormatBytes(info.CompressedSize),
		}).Info("backup archived")
	}

	if upload {
		client, err := s3client.New(cfg)
		if err != nil {
			return errdefs.Connection("s3 client", cfg.BucketName, err)
		}

		uploadResult, err := client.UploadArchive(ctx, result.ArchivePath)
		if err != nil {
			return errdefs.IO("upload", result.ArchivePath, err)
		}
		result.Upload = uploadResult

		logger.WithFields(logrus.Fields{
			"bucket": uploadResult.BucketName,
			"key":    uploadResult.RemotePath,
		}).Info("backup uploaded")
	}

	if asJSON {
		return utils.PrintJSON(cmd.OutOrStdout(), result)
	}

	return nil
}

func sessionOptions(cmd *cobra.Command) remote.Options {
	opts := remote.Options{
		Port:   cfg.SSHPort,
		Logger: logger,
	}

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		opts.Port = port
	}

	identity := cfg.IdentityFile
	if flag, _ := cmd.Flags().GetString("identity"); flag != "" {
		identity = flag
	}
	if identity != "" {
		opts.IdentityFiles = []string{identity}
	}

	knownHosts := cfg.KnownHostsFile
	if flag, _ := cmd.Flags().GetString("known-hosts"); flag != "" {
		knownHosts = flag
	}
	if knownHosts != "" {
		opts.KnownHostsFiles = []string{knownHosts}
	}

	return opts
}
