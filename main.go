package main

import (
	"os"
	"sftpbackup/cmd"
	"sftpbackup/config"
	"sftpbackup/pkg/utils"

	"github.com/sirupsen/logrus"
)

func main() {
	cnf, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cmd.Execute(cnf); err != nil {
		utils.PrintError(os.Stderr, err, "sftpbackup")
		os.Exit(1)
	}
}
