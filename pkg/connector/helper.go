package connector

import (
	"context"
	"strings"

	"github.com/mensylisir/remoteify/pkg/linux"
	"github.com/pkg/errors"
)

// maxHelperStderr bounds the stderr embedded in helper command errors.
const maxHelperStderr = 1024

// runHelper runs argv on a transient exec channel and fails on a non-zero exit.
func (s *SSHLinux) runHelper(ctx context.Context, op, path string, argv ...string) error {
	config := linux.NewProcessConfiguration(argv[0]).WithArgs(argv[1:]...).WithRedirectStderr()
	out, err := s.Execute(ctx, config)
	if err != nil {
		return linux.NewIOError(op, path, err)
	}
	if out.Status == nil {
		return linux.NewIOError(op, path, &CommandError{
			Cmd:        joinArgv(argv...),
			ExitCode:   -1,
			Stderr:     truncateStderr(out.Stderr),
			Underlying: errors.New("terminated without exit status"),
		})
	}
	if *out.Status != 0 {
		return linux.NewIOError(op, path, &CommandError{
			Cmd:      joinArgv(argv...),
			ExitCode: int(*out.Status),
			Stderr:   truncateStderr(out.Stderr),
		})
	}
	return nil
}

func truncateStderr(stderr []byte) string {
	if len(stderr) > maxHelperStderr {
		stderr = stderr[:maxHelperStderr]
	}
	return strings.TrimSpace(string(stderr))
}
