package remote

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/binary"
	"encoding/pem"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

const stubUser = "backup"

// stubServer is an SSH server on 127.0.0.1 that serves the sftp subsystem
// from the local filesystem and accepts one public key for stubUser.
// HostKey is an ed25519 key; extra host keys are offered next to it.
type stubServer struct {
	HostKey ssh.Signer

	listener net.Listener
	config   *ssh.ServerConfig
}

func newStubServer(t *testing.T, authorized ssh.PublicKey, extraHostKeys ...ssh.Signer) *stubServer {
	t.Helper()

	hostKey := newSigner(t)

	config := &ssh.ServerConfig{
		PublicKeyCallback: func(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if conn.User() == stubUser && bytes.Equal(key.Marshal(), authorized.Marshal()) {
				return nil, nil
			}
			return nil, fmt.Errorf("unknown public key for %q", conn.User())
		},
	}
	config.AddHostKey(hostKey)
	for _, key := range extraHostKeys {
		config.AddHostKey(key)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &stubServer{HostKey: hostKey, listener: listener, config: config}
	go s.serve()
	t.Cleanup(func() { _ = listener.Close() })

	return s
}

func (s *stubServer) Host() string {
	host, _, _ := net.SplitHostPort(s.listener.Addr().String())
	return host
}

func (s *stubServer) Port() string {
	_, port, _ := net.SplitHostPort(s.listener.Addr().String())
	return port
}

func (s *stubServer) Addr() string {
	return s.listener.Addr().String()
}

func (s *stubServer) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *stubServer) handle(conn net.Conn) {
	defer conn.Close()

	_, chans, reqs, err := ssh.NewServerConn(conn, s.config)
	if err != nil {
		return
	}
	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			_ = newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}

		channel, requests, err := newChannel.Accept()
		if err != nil {
			return
		}

		go func(in <-chan *ssh.Request) {
			for req := range in {
				_ = req.Reply(isSFTPSubsystem(req), nil)
			}
		}(requests)

		go func() {
			defer channel.Close()

			server, err := sftp.NewServer(channel)
			if err != nil {
				return
			}
			_ = server.Serve()
		}()
	}
}

func isSFTPSubsystem(req *ssh.Request) bool {
	if req.Type != "subsystem" || len(req.Payload) < 4 {
		return false
	}
	n := binary.BigEndian.Uint32(req.Payload[:4])
	return int(n) == len(req.Payload)-4 && string(req.Payload[4:]) == "sftp"
}

func newSigner(t *testing.T) ssh.Signer {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)

	return signer
}

func newECDSASigner(t *testing.T) ssh.Signer {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)

	return signer
}

// writeIdentity writes a fresh unencrypted OpenSSH private key and returns
// its path and public half.
func writeIdentity(t *testing.T, dir string) (string, ssh.PublicKey) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	block, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)

	path := filepath.Join(dir, "id_ed25519")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0o600))

	sshPub, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)

	return path, sshPub
}
