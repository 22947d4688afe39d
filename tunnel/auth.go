package tunnel

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"fixbridge/util"
)

// Auth selects the credentials offered to the jump host.  With none
// selected, the agent and unencrypted keys under ~/.ssh are tried.
type Auth struct {
	KeyPath  string
	Agent    bool
	Password bool

	// Prompt reads a secret from the operator.  Nil means the terminal.
	Prompt func(label string) (string, error)
}

var defaultKeyNames = []string{"id_ed25519", "id_ecdsa", "id_rsa"}

// Methods returns the ssh.AuthMethods in the order they are offered.
func (a *Auth) Methods() ([]ssh.AuthMethod, error) {
	if a.KeyPath == "" && !a.Agent && !a.Password {
		methods := a.discover()
		if len(methods) == 0 {
			return nil, errors.New("no SSH credentials found; pass --ssh-key, --ssh-agent or --ssh-password")
		}
		return methods, nil
	}

	var methods []ssh.AuthMethod
	if a.KeyPath != "" {
		signer, err := a.loadKey(a.KeyPath, true)
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", a.KeyPath, err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if a.Agent {
		m, err := agentMethod()
		if err != nil {
			return nil, fmt.Errorf("ssh-agent: %w", err)
		}
		methods = append(methods, m)
	}
	if a.Password {
		// Only prompts if the server gets this far.
		methods = append(methods, ssh.PasswordCallback(func() (string, error) {
			return a.prompt("SSH password")
		}))
	}
	return methods, nil
}

func (a *Auth) prompt(label string) (string, error) {
	if a.Prompt != nil {
		return a.Prompt(label)
	}
	return util.PromptSecret(label)
}

// loadKey parses the private key at path.  Encrypted keys prompt for a
// passphrase when interactive is set and are rejected otherwise.
func (a *Auth) loadKey(path string, interactive bool) (ssh.Signer, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	signer, err := ssh.ParsePrivateKey(pem)
	var missing *ssh.PassphraseMissingError
	if !errors.As(err, &missing) {
		return signer, err
	}
	if !interactive {
		return nil, err
	}

	pass, err := a.prompt("Passphrase for " + path)
	if err != nil {
		return nil, err
	}
	signer, err = ssh.ParsePrivateKeyWithPassphrase(pem, []byte(pass))
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return signer, nil
}

// discover collects whatever works without asking: the agent, then
// unencrypted default keys.  The bridge usually runs unattended.
func (a *Auth) discover() []ssh.AuthMethod {
	var methods []ssh.AuthMethod
	if m, err := agentMethod(); err == nil {
		methods = append(methods, m)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return methods
	}
	var signers []ssh.Signer
	for _, name := range defaultKeyNames {
		if s, err := a.loadKey(filepath.Join(home, ".ssh", name), false); err == nil {
			signers = append(signers, s)
		}
	}
	if len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}
	return methods
}

func agentMethod() (ssh.AuthMethod, error) {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil, errors.New("SSH_AUTH_SOCK is not set")
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, fmt.Errorf("agent at %s: %w", sock, err)
	}
	return ssh.PublicKeysCallback(agent.NewClient(conn).Signers), nil
}
