package connector

import (
	"net"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
)

const (
	DefaultPort    = 22
	DefaultTimeout = 30 * time.Second
)

// Auth is one SSH authentication method. Exactly one is used per connection.
type Auth interface {
	authMethod() (ssh.AuthMethod, error)
}

// PasswordAuth authenticates with a plain password.
type PasswordAuth struct {
	Password string
}

func (a PasswordAuth) authMethod() (ssh.AuthMethod, error) {
	return ssh.Password(a.Password), nil
}

// PublicKeyAuth authenticates with a PEM or OpenSSH encoded private key.
// Passphrase is only consulted for encrypted keys.
type PublicKeyAuth struct {
	PrivateKey []byte
	Passphrase string
}

func (a PublicKeyAuth) authMethod() (ssh.AuthMethod, error) {
	if len(a.PrivateKey) == 0 {
		return nil, errors.New("private key is empty")
	}
	var (
		signer ssh.Signer
		err    error
	)
	if a.Passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(a.PrivateKey, []byte(a.Passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(a.PrivateKey)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse private key")
	}
	return ssh.PublicKeys(signer), nil
}

// BastionCfg defines configuration for a bastion/jump host.
type BastionCfg struct {
	Host            string
	Port            int
	User            string
	Auth            Auth
	Timeout         time.Duration
	HostKeyCallback ssh.HostKeyCallback
}

// ForwardHandler receives connections accepted on a reverse-forwarded port.
// conn.RemoteAddr reports the originator as seen by the peer. The handler owns conn.
type ForwardHandler func(conn net.Conn)

// ConnectionCfg holds all parameters needed to establish a session.
type ConnectionCfg struct {
	Host    string
	Port    int
	User    string
	Auth    Auth
	Timeout time.Duration
	// HostKeyCallback defaults to ssh.InsecureIgnoreHostKey with a warning.
	HostKeyCallback ssh.HostKeyCallback
	Bastion         *BastionCfg
	ForwardHandler  ForwardHandler
}

func (c ConnectionCfg) port() int {
	if c.Port == 0 {
		return DefaultPort
	}
	return c.Port
}

func (c ConnectionCfg) timeout() time.Duration {
	if c.Timeout == 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

func (c ConnectionCfg) bastionTarget() ConnectionCfg {
	b := c.Bastion
	return ConnectionCfg{
		Host:            b.Host,
		Port:            b.Port,
		User:            b.User,
		Auth:            b.Auth,
		Timeout:         b.Timeout,
		HostKeyCallback: b.HostKeyCallback,
	}
}
