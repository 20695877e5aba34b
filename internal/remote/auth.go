package remote

import (
	"errors"
	"net"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

var defaultIdentityFiles = []string{"id_ed25519", "id_ecdsa", "id_rsa"}

// authMethods collects public key signers from the ssh-agent and from the
// identity files. Passwords are never offered. The returned func releases
// the agent connection once the handshake is over.
func authMethods(identityFiles []string, log logrus.FieldLogger) ([]ssh.AuthMethod, func(), error) {
	var methods []ssh.AuthMethod
	done := func() {}

	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		conn, err := net.Dial("unix", sock)
		if err != nil {
			log.WithError(err).Debug("ssh-agent not reachable")
		} else {
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
			done = func() { _ = conn.Close() }
		}
	}

	if len(identityFiles) == 0 {
		identityFiles = defaultIdentityPaths()
	}

	var signers []ssh.Signer
	for _, file := range identityFiles {
		signer, err := loadSigner(file)
		if err != nil {
			log.WithError(err).WithField("identity", file).Debug("skipping identity file")
			continue
		}
		signers = append(signers, signer)
	}
	if len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}

	if len(methods) == 0 {
		done()
		return nil, done, errors.New("no public key available from ssh-agent or identity files")
	}

	return methods, done, nil
}

func defaultIdentityPaths() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	paths := make([]string, 0, len(defaultIdentityFiles))
	for _, name := range defaultIdentityFiles {
		paths = append(paths, filepath.Join(home, ".ssh", name))
	}
	return paths
}

func loadSigner(identityFile string) (ssh.Signer, error) {
	buf, err := os.ReadFile(identityFile)
	if err != nil {
		return nil, err
	}
	return ssh.ParsePrivateKey(buf)
}
