package connector

import (
	"context"
	"strconv"

	"github.com/mensylisir/remoteify/pkg/linux"
	"github.com/mensylisir/remoteify/pkg/logger"
)

// SSHLinux implements linux.Linux over one SSH session: SFTP for the
// filesystem, exec channels for processes and tcpip-forward for the network.
type SSHLinux struct {
	session *Session
	log     *logger.Logger
}

// NewSSHLinux dials cfg and wraps the resulting session.
func NewSSHLinux(ctx context.Context, cfg ConnectionCfg) (*SSHLinux, error) {
	session, err := Dial(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewSSHLinuxFromSession(session), nil
}

// NewSSHLinuxFromSession takes ownership of session.
func NewSSHLinuxFromSession(session *Session) *SSHLinux {
	return &SSHLinux{session: session, log: session.log}
}

func (s *SSHLinux) Session() *Session {
	return s.session
}

func (s *SSHLinux) BeginExecute(ctx context.Context, config *linux.ProcessConfiguration) (linux.Process, error) {
	p, err := startSSHProcess(ctx, s.session, config)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *SSHLinux) Execute(ctx context.Context, config *linux.ProcessConfiguration) (*linux.ProcessOutput, error) {
	return linux.Execute(ctx, s, config)
}

func (s *SSHLinux) Close() error {
	return s.session.Close()
}

// New returns the SSH backend for cfg, or the local backend when cfg is nil.
func New(ctx context.Context, cfg *ConnectionCfg) (linux.Linux, error) {
	if cfg == nil {
		return NewLocalLinux(), nil
	}
	return NewSSHLinux(ctx, *cfg)
}

func formatPort(port uint32) string {
	return strconv.FormatUint(uint64(port), 10)
}

var (
	_ linux.Linux = (*SSHLinux)(nil)
	_ linux.Linux = (*LocalLinux)(nil)
)
