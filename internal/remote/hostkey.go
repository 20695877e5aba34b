package remote

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const systemKnownHostsFile = "/etc/ssh/ssh_known_hosts"

// hostKeyPolicy checks host keys against the known hosts files. A host, or
// a key type, missing from every file is accepted for this session only; a
// host whose recorded key of the same type differs is rejected.
type hostKeyPolicy struct {
	// known is nil when none of the files exist.
	known ssh.HostKeyCallback
	log   logrus.FieldLogger
}

func newHostKeyPolicy(knownHostsFiles []string, log logrus.FieldLogger) (*hostKeyPolicy, error) {
	if len(knownHostsFiles) == 0 {
		knownHostsFiles = defaultKnownHostsFiles()
	}

	var existing []string
	for _, file := range knownHostsFiles {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}

	p := &hostKeyPolicy{log: log}
	if len(existing) == 0 {
		return p, nil
	}

	known, err := knownhosts.New(existing...)
	if err != nil {
		return nil, fmt.Errorf("parse known hosts: %w", err)
	}
	p.known = known

	return p, nil
}

func (p *hostKeyPolicy) Check(hostname string, remote net.Addr, key ssh.PublicKey) error {
	if p.known == nil {
		logUnknownHost(p.log, hostname, key)
		return nil
	}

	err := p.known(hostname, remote, key)

	var keyErr *knownhosts.KeyError
	if errors.As(err, &keyErr) && !recordsKeyType(keyErr.Want, key.Type()) {
		logUnknownHost(p.log, hostname, key)
		return nil
	}

	return err
}

// Algorithms returns the host key algorithms to offer: those matching key
// types recorded for the host first, then every other supported one. It
// returns nil, meaning the ssh defaults, for hosts with no record.
func (p *hostKeyPolicy) Algorithms(hostname string, remote net.Addr) []string {
	if p.known == nil {
		return nil
	}

	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil
	}
	placeholder, err := ssh.NewPublicKey(pub)
	if err != nil {
		return nil
	}

	// No key can match the placeholder, so the error lists what is recorded.
	var keyErr *knownhosts.KeyError
	if !errors.As(p.known(hostname, remote, placeholder), &keyErr) || len(keyErr.Want) == 0 {
		return nil
	}

	types := make([]string, 0, len(keyErr.Want))
	for _, k := range keyErr.Want {
		types = append(types, k.Key.Type())
	}
	sort.Strings(types)

	supported := ssh.SupportedAlgorithms().HostKeys

	var algos []string
	for _, t := range types {
		for _, algo := range algorithmsForKeyType(t) {
			if slices.Contains(supported, algo) && !slices.Contains(algos, algo) {
				algos = append(algos, algo)
			}
		}
	}
	if len(algos) == 0 {
		return nil
	}

	for _, algo := range supported {
		if !slices.Contains(algos, algo) {
			algos = append(algos, algo)
		}
	}

	return algos
}

func algorithmsForKeyType(keyType string) []string {
	if keyType == ssh.KeyAlgoRSA {
		return []string{ssh.KeyAlgoRSASHA512, ssh.KeyAlgoRSASHA256}
	}
	return []string{keyType}
}

func recordsKeyType(want []knownhosts.KnownKey, keyType string) bool {
	for _, k := range want {
		if k.Key.Type() == keyType {
			return true
		}
	}
	return false
}

func defaultKnownHostsFiles() []string {
	files := []string{systemKnownHostsFile}

	home, err := os.UserHomeDir()
	if err == nil {
		files = append([]string{filepath.Join(home, ".ssh", "known_hosts")}, files...)
	}

	return files
}

func logUnknownHost(log logrus.FieldLogger, hostname string, key ssh.PublicKey) {
	log.WithFields(logrus.Fields{
		"hostname":    hostname,
		"fingerprint": ssh.FingerprintSHA256(key),
	}).Warn("accepting unknown host key")
}
