package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"sftpbackup/config"
	"sftpbackup/internal/errdefs"
)

var (
	cfg    *config.Config
	logger = logrus.New()
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sftpbackup",
		Short: "Recursive full backup of a remote directory over SFTP",
		Long: `sftpbackup copies a remote directory tree to a new local directory named
<remote_dir_name>-<YYYY-MM-DD-HH-MM-SS>, over SFTP.

Passwordless public key authentication to the server must already be set up,
through ssh-agent or a key in ~/.ssh. Optional settings are read from a .env
file or environment variables.`,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return configureLogger(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Usage(); err != nil {
				return err
			}
			return errdefs.Argumentf("a command is required")
		},
	}

	rootCmd.AddCommand(newBkpCmd())

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")

	return rootCmd
}

func Execute(config *config.Config) error {
	cfg = config
	return newRootCmd().Execute()
}

func configureLogger(cmd *cobra.Command) error {
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return errdefs.Argument("parse LOG_LEVEL", cfg.LogLevel, err)
	}
	if isVerbose(cmd) {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)

	return nil
}

func isVerbose(cmd *cobra.Command) bool {
	verbose, _ := cmd.Flags().GetBool("verbose")
	return verbose
}
