package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/mensylisir/remoteify/pkg/connector"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// ConnectionCfg turns a defaulted host into a connector configuration. The
// private key and known_hosts files are read here.
func (h *HostSpec) ConnectionCfg() (connector.ConnectionCfg, error) {
	timeout, err := h.timeout()
	if err != nil {
		return connector.ConnectionCfg{}, errors.Wrapf(err, "host %s: invalid timeout", h.Name)
	}
	auth, err := authFor(h.Password, h.PrivateKeyPath, h.Passphrase)
	if err != nil {
		return connector.ConnectionCfg{}, errors.Wrapf(err, "host %s", h.Name)
	}
	callback, err := hostKeyCallback(h.KnownHostsFile)
	if err != nil {
		return connector.ConnectionCfg{}, errors.Wrapf(err, "host %s", h.Name)
	}

	cfg := connector.ConnectionCfg{
		Host:            h.Host,
		Port:            h.Port,
		User:            h.User,
		Auth:            auth,
		Timeout:         timeout,
		HostKeyCallback: callback,
	}
	if b := h.Bastion; b != nil {
		bastionAuth, err := authFor(b.Password, b.PrivateKeyPath, b.Passphrase)
		if err != nil {
			return connector.ConnectionCfg{}, errors.Wrapf(err, "host %s: bastion", h.Name)
		}
		bastionCallback, err := hostKeyCallback(b.KnownHostsFile)
		if err != nil {
			return connector.ConnectionCfg{}, errors.Wrapf(err, "host %s: bastion", h.Name)
		}
		cfg.Bastion = &connector.BastionCfg{
			Host:            b.Host,
			Port:            b.Port,
			User:            b.User,
			Auth:            bastionAuth,
			Timeout:         timeout,
			HostKeyCallback: bastionCallback,
		}
	}
	return cfg, nil
}

func authFor(password, keyPath, passphrase string) (connector.Auth, error) {
	if password != "" {
		return connector.PasswordAuth{Password: password}, nil
	}
	if keyPath == "" {
		return nil, errors.New("no password or private key configured")
	}
	key, err := os.ReadFile(expandHome(keyPath))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read private key %s", keyPath)
	}
	return connector.PublicKeyAuth{PrivateKey: key, Passphrase: passphrase}, nil
}

// hostKeyCallback returns nil for an empty path, which makes the connector
// fall back to accepting any host key with a warning.
func hostKeyCallback(path string) (ssh.HostKeyCallback, error) {
	if path == "" {
		return nil, nil
	}
	callback, err := knownhosts.New(expandHome(path))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load known_hosts %s", path)
	}
	return callback, nil
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
