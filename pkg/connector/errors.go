package connector

import (
	"errors"
	"fmt"
)

// Stage names the connection step that failed.
type Stage string

const (
	StageConnect   Stage = "connect"
	StageAuth      Stage = "auth"
	StageSubsystem Stage = "subsystem"
)

var (
	ErrConnectFailed   = errors.New("connect failed")
	ErrAuthFailed      = errors.New("authentication failed")
	ErrSubsystemFailed = errors.New("sftp subsystem failed")
)

// ConnectionError represents a failure to establish a session.
// errors.Is matches the sentinel of its Stage.
type ConnectionError struct {
	Host  string
	Stage Stage
	Err   error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to host %s (%s): %v", e.Host, e.Stage, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func (e *ConnectionError) Is(target error) bool {
	switch e.Stage {
	case StageConnect:
		return target == ErrConnectFailed
	case StageAuth:
		return target == ErrAuthFailed
	case StageSubsystem:
		return target == ErrSubsystemFailed
	}
	return false
}

// CommandError encapsulates a failed helper command run on the remote host.
type CommandError struct {
	Cmd        string
	ExitCode   int
	Stderr     string
	Underlying error
}

func (e *CommandError) Error() string {
	errMsg := fmt.Sprintf("command '%s' failed with exit code %d", e.Cmd, e.ExitCode)
	if e.Stderr != "" {
		errMsg = fmt.Sprintf("%s: %s", errMsg, e.Stderr)
	}
	if e.Underlying != nil {
		errMsg = fmt.Sprintf("%s (underlying error: %v)", errMsg, e.Underlying)
	}
	return errMsg
}

func (e *CommandError) Unwrap() error {
	return e.Underlying
}
