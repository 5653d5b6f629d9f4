package connector

import (
	"context"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/mensylisir/remoteify/pkg/linux"
	"github.com/mensylisir/remoteify/pkg/logger"
	"github.com/pkg/errors"
)

// localProcess is a child process of the running program.
type localProcess struct {
	cmd    *exec.Cmd
	config *linux.ProcessConfiguration
	log    *logger.Logger
	stdin  io.WriteCloser

	stdout *boundedBuffer
	stderr *boundedBuffer

	mu          sync.Mutex
	state       processState
	stdinClosed bool
	status      *int64
	waitErr     error

	done chan struct{}
}

func (l *LocalLinux) BeginExecute(ctx context.Context, config *linux.ProcessConfiguration) (linux.Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := l.log.With("program", config.Program)

	cmd := exec.Command(config.Program, config.Args...)
	cmd.Dir = config.WorkingDir
	if len(config.Envs) > 0 {
		cmd.Env = os.Environ()
		for _, name := range config.SortedEnvKeys() {
			cmd.Env = append(cmd.Env, name+"="+config.Envs[name])
		}
	}
	if config.HasCredentials() {
		cmd.SysProcAttr = sysProcAttr(config)
	}

	p := &localProcess{cmd: cmd, config: config, log: log, done: make(chan struct{})}
	if config.RedirectStdin {
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, linux.NewIOError("exec", config.Program, err)
		}
		p.stdin = stdin
	} else {
		p.stdinClosed = true
	}
	if config.RedirectStdout {
		p.stdout = newBoundedBuffer("stdout", DefaultMaxBufferSize, log)
		cmd.Stdout = p.stdout
	}
	if config.RedirectStderr {
		p.stderr = newBoundedBuffer("stderr", DefaultMaxBufferSize, log)
		cmd.Stderr = p.stderr
	}

	log.Debugf("exec: %s %v", config.Program, config.Args)
	if err := cmd.Start(); err != nil {
		return nil, linux.NewIOError("exec", config.Program, err)
	}
	go p.wait()
	return p, nil
}

func (l *LocalLinux) Execute(ctx context.Context, config *linux.ProcessConfiguration) (*linux.ProcessOutput, error) {
	return linux.Execute(ctx, l, config)
}

func sysProcAttr(config *linux.ProcessConfiguration) *syscall.SysProcAttr {
	attr := &syscall.SysProcAttr{}
	if config.UserID != nil || config.GroupID != nil {
		cred := &syscall.Credential{Uid: uint32(os.Getuid()), Gid: uint32(os.Getgid())}
		if config.UserID != nil {
			cred.Uid = *config.UserID
		}
		if config.GroupID != nil {
			cred.Gid = *config.GroupID
		}
		attr.Credential = cred
	}
	if config.ProcessGroupID != nil {
		attr.Setpgid = true
		attr.Pgid = int(*config.ProcessGroupID)
	}
	return attr
}

func (p *localProcess) wait() {
	err := p.cmd.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = stateExited
	if state := p.cmd.ProcessState; state != nil {
		if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			status := -int64(ws.Signal())
			p.status = &status
		} else {
			status := int64(state.ExitCode())
			p.status = &status
		}
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		p.waitErr = err
	}
	close(p.done)
}

func (p *localProcess) ID() (uint32, error) {
	if p.cmd.Process == nil {
		return 0, linux.ErrProcessIDNotFound
	}
	return uint32(p.cmd.Process.Pid), nil
}

func (p *localProcess) WriteToStdin(ctx context.Context, data []byte) (int, error) {
	if !p.config.RedirectStdin {
		return 0, linux.ErrStdinNotPiped
	}
	p.mu.Lock()
	closed := p.stdinClosed || p.state == stateExited
	p.mu.Unlock()
	if closed {
		return 0, linux.ErrStdinNotPiped
	}
	n, err := await(ctx, func() (int, error) {
		return p.stdin.Write(data)
	})
	if err != nil {
		return n, linux.NewIOError("write stdin", p.config.Program, err)
	}
	return n, nil
}

func (p *localProcess) CloseStdin(ctx context.Context) error {
	if !p.config.RedirectStdin {
		return linux.ErrStdinNotPiped
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stdinClosed {
		return nil
	}
	p.stdinClosed = true
	if p.state == stateExited {
		return nil
	}
	return linux.NewIOError("close stdin", p.config.Program, p.stdin.Close())
}

func (p *localProcess) PartialOutput() (*linux.PartialProcessOutput, error) {
	partial := &linux.PartialProcessOutput{}
	if !p.config.DisableExtraReads {
		partial.StdoutExtended = map[uint32][]byte{}
	}
	if p.stdout != nil {
		partial.Stdout = p.stdout.Bytes()
	}
	if p.stderr != nil {
		partial.Stderr = p.stderr.Bytes()
	}
	return partial, nil
}

func (p *localProcess) AwaitExit(ctx context.Context) (*int64, error) {
	select {
	case <-p.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.waitErr != nil {
		return p.status, linux.NewIOError("wait", p.config.Program, p.waitErr)
	}
	return p.status, nil
}

func (p *localProcess) AwaitExitWithOutput(ctx context.Context) (*linux.ProcessOutput, error) {
	status, err := p.AwaitExit(ctx)
	if err != nil {
		return nil, err
	}
	partial, _ := p.PartialOutput()
	return &linux.ProcessOutput{
		Stdout:         partial.Stdout,
		Stderr:         partial.Stderr,
		StdoutExtended: partial.StdoutExtended,
		Status:         status,
	}, nil
}

func (p *localProcess) BeginKill(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == stateExited {
		return nil
	}
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return linux.NewIOError("kill", p.config.Program, err)
	}
	p.state = stateSignalled
	return nil
}

func (p *localProcess) Kill(ctx context.Context) (*int64, error) {
	if err := p.BeginKill(ctx); err != nil {
		return nil, err
	}
	return p.AwaitExit(ctx)
}

func (p *localProcess) KillWithOutput(ctx context.Context) (*linux.ProcessOutput, error) {
	if err := p.BeginKill(ctx); err != nil {
		return nil, err
	}
	return p.AwaitExitWithOutput(ctx)
}

var _ linux.Process = (*localProcess)(nil)
