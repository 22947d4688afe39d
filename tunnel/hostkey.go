package tunnel

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"fixbridge/util"
)

// hostKeyCallback checks the jump host against known_hosts when
// StrictHostKey is set.  Otherwise any key is accepted and its
// fingerprint logged so the operator can pin it.
func (c Config) hostKeyCallback(logger *util.Logger) (ssh.HostKeyCallback, error) {
	if !c.StrictHostKey {
		return func(hostname string, _ net.Addr, key ssh.PublicKey) error {
			logger.Warn("SSH: unverified host key for %s: %s %s",
				hostname, key.Type(), ssh.FingerprintSHA256(key))
			return nil
		}, nil
	}

	path := c.KnownHosts
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locating home directory: %w", err)
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}
	check, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("known_hosts: %w", err)
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := check(hostname, remote, key)
		var keyErr *knownhosts.KeyError
		if errors.As(err, &keyErr) && len(keyErr.Want) == 0 {
			return fmt.Errorf("%s is not in %s (%s %s)",
				hostname, path, key.Type(), ssh.FingerprintSHA256(key))
		}
		return err
	}, nil
}
