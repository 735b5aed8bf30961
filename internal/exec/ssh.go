package exec

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/felixgeelhaar/afterpkg/internal/scripts"
)

// SSHConfig locates and authenticates the remote build host.
type SSHConfig struct {
	Addr       string
	User       string
	KeyFile    string
	KnownHosts string
	Timeout    time.Duration
}

// SSHRunner runs commands on a remote host, one session per command over
// a shared connection. Paths are assumed identical on both ends.
type SSHRunner struct {
	cfg  SSHConfig
	dial func(network, addr string, config *ssh.ClientConfig) (*ssh.Client, error)

	mu     sync.Mutex
	client *ssh.Client
}

// NewSSHRunner creates a runner; the connection is opened on first use.
func NewSSHRunner(cfg SSHConfig) *SSHRunner {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &SSHRunner{cfg: cfg, dial: ssh.Dial}
}

func (r *SSHRunner) clientConfig() (*ssh.ClientConfig, error) {
	key, err := os.ReadFile(r.cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("read ssh key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("parse ssh key: %w", err)
	}

	knownHostsFile := r.cfg.KnownHosts
	if knownHostsFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locate known_hosts: %w", err)
		}
		knownHostsFile = filepath.Join(home, ".ssh", "known_hosts")
	}
	hostKeys, err := knownhosts.New(knownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("load known_hosts: %w", err)
	}

	return &ssh.ClientConfig{
		User:            r.cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeys,
		Timeout:         r.cfg.Timeout,
	}, nil
}

func (r *SSHRunner) connect() (*ssh.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client != nil {
		return r.client, nil
	}

	cfg, err := r.clientConfig()
	if err != nil {
		return nil, err
	}
	client, err := r.dial("tcp", r.cfg.Addr, cfg)
	if err != nil {
		return nil, err
	}
	r.client = client
	return client, nil
}

// drop forgets a broken connection so the next Run redials.
func (r *SSHRunner) drop(c *ssh.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == c {
		_ = r.client.Close()
		r.client = nil
	}
}

// Run implements Runner.
func (r *SSHRunner) Run(ctx context.Context, cmd Command) (int, error) {
	client, err := r.connect()
	if err != nil {
		return -1, fmt.Errorf("%s: %w: %w", r.cfg.Addr, ErrUnavailable, err)
	}

	session, err := client.NewSession()
	if err != nil {
		r.drop(client)
		return -1, fmt.Errorf("%s: open session: %w: %w", r.cfg.Addr, ErrUnavailable, err)
	}
	defer session.Close()
	session.Stdout = cmd.Stdout
	session.Stderr = cmd.Stderr

	line := cmd.Line
	if cmd.Dir != "" {
		line = "cd " + scripts.ShellQuote(cmd.Dir) + " && " + line
	}

	done := make(chan error, 1)
	go func() { done <- session.Run(line) }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGTERM)
		_ = session.Close()
		<-done
		return -1, ctx.Err()
	case err := <-done:
		if err == nil {
			return 0, nil
		}
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitStatus(), nil
		}
		var missing *ssh.ExitMissingError
		var netErr net.Error
		if errors.As(err, &missing) || errors.As(err, &netErr) {
			r.drop(client)
		}
		return -1, fmt.Errorf("%s: %w: %w", r.cfg.Addr, ErrUnavailable, err)
	}
}

// Close closes the connection, if any.
func (r *SSHRunner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	return err
}
