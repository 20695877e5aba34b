// Package remote opens SFTP sessions to the host being backed up.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/sftp"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"

	"sftpbackup/internal/errdefs"
	"sftpbackup/internal/models"
)

type Options struct {
	Host string
	User string
	Port string

	// IdentityFiles replaces the default ~/.ssh keys when set.
	IdentityFiles []string
	// KnownHostsFiles replaces the default known hosts files when set.
	KnownHostsFiles []string

	Logger logrus.FieldLogger
}

func (o Options) address() string {
	if _, _, err := net.SplitHostPort(o.Host); err == nil {
		return o.Host
	}
	port := o.Port
	if port == "" {
		port = "22"
	}
	return net.JoinHostPort(o.Host, port)
}

type Session struct {
	client *sftp.Client
	conn   io.Closer
	closed bool
}

// Connect dials the host, authenticates with public keys only and starts
// the sftp subsystem.
func Connect(ctx context.Context, opts Options) (*Session, error) {
	if opts.Host == "" {
		return nil, errdefs.Argumentf("server must not be empty")
	}

	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	addr := opts.address()
	log = log.WithField("host", addr)

	methods, closeAgent, err := authMethods(opts.IdentityFiles, log)
	if err != nil {
		return nil, errdefs.Connection("authenticate", addr, err)
	}
	defer closeAgent()

	hostKeys, err := newHostKeyPolicy(opts.KnownHostsFiles, log)
	if err != nil {
		return nil, errdefs.Connection("load known hosts", addr, err)
	}

	var dialer net.Dialer
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errdefs.Connection("dial", addr, err)
	}

	config := &ssh.ClientConfig{
		User:              opts.User,
		Auth:              methods,
		HostKeyCallback:   hostKeys.Check,
		HostKeyAlgorithms: hostKeys.Algorithms(addr, netConn.RemoteAddr()),
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, addr, config)
	if err != nil {
		_ = netConn.Close()
		return nil, errdefs.Connection("ssh handshake", addr, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		_ = client.Close()
		return nil, errdefs.Connection("start sftp subsystem", addr, err)
	}

	log.Debug("sftp session established")

	return newSession(sftpClient, client), nil
}

func newSession(client *sftp.Client, conn io.Closer) *Session {
	return &Session{client: client, conn: conn}
}

func (s *Session) List(dir string) ([]models.RemoteEntry, error) {
	info, err := s.client.Stat(dir)
	if err != nil {
		return nil, errdefs.Path("list", dir, err)
	}
	if !info.IsDir() {
		return nil, errdefs.Path("list", dir, errors.New("not a directory"))
	}

	infos, err := s.client.ReadDir(dir)
	if err != nil {
		return nil, errdefs.Path("list", dir, err)
	}

	entries := make([]models.RemoteEntry, 0, len(infos))
	for _, fi := range infos {
		entries = append(entries, models.RemoteEntry{
			Name: fi.Name(),
			Dir:  fi.IsDir(),
			Size: fi.Size(),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})

	return entries, nil
}

// Fetch copies one remote file to localPath, replacing any existing file.
func (s *Session) Fetch(remotePath, localPath string) (int64, error) {
	src, err := s.client.Open(remotePath)
	if err != nil {
		return 0, errdefs.IO("open remote file", remotePath, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(localPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, errdefs.IO("create local file", localPath, err)
	}

	n, err := src.WriteTo(dst)
	if err != nil {
		_ = dst.Close()
		return n, errdefs.IO("transfer", remotePath, err)
	}

	if err := dst.Close(); err != nil {
		return n, errdefs.IO("close local file", localPath, err)
	}

	return n, nil
}

func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var result *multierror.Error
	if err := s.client.Close(); err != nil && !errors.Is(err, io.EOF) {
		result = multierror.Append(result, fmt.Errorf("close sftp client: %w", err))
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			result = multierror.Append(result, fmt.Errorf("close ssh connection: %w", err))
		}
	}

	return result.ErrorOrNil()
}
