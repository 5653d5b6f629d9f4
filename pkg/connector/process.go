package connector

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/mensylisir/remoteify/pkg/linux"
	"github.com/mensylisir/remoteify/pkg/logger"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxBufferSize bounds each captured output stream of a process.
const DefaultMaxBufferSize = 64 << 20

type processState int

const (
	stateRunning processState = iota
	stateSignalled
	stateExited
)

func (s processState) String() string {
	switch s {
	case stateRunning:
		return "running"
	case stateSignalled:
		return "signalled"
	case stateExited:
		return "exited"
	}
	return "unknown"
}

// boundedBuffer keeps the first limit bytes written to it and drops the rest.
type boundedBuffer struct {
	mu         sync.Mutex
	buf        bytes.Buffer
	limit      int
	overflowed bool
	name       string
	log        *logger.Logger
}

func newBoundedBuffer(name string, limit int, log *logger.Logger) *boundedBuffer {
	return &boundedBuffer{name: name, limit: limit, log: log}
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(p)
	if room := b.limit - b.buf.Len(); room < len(p) {
		if !b.overflowed {
			b.overflowed = true
			b.log.Warnf("%s exceeded %d bytes, further output is dropped", b.name, b.limit)
		}
		if room < 0 {
			room = 0
		}
		p = p[:room]
	}
	b.buf.Write(p)
	return n, nil
}

// Bytes returns a copy of the contents. The result is never nil.
func (b *boundedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, b.buf.Len())
	copy(out, b.buf.Bytes())
	return out
}

func sinkFor(b *boundedBuffer) io.Writer {
	if b == nil {
		return io.Discard
	}
	return b
}

type exitStatusMsg struct {
	Status uint32
}

type exitSignalMsg struct {
	Signal     string
	CoreDumped bool
	Error      string
	Lang       string
}

// sshProcess is a program running on an exec channel.
type sshProcess struct {
	session *Session
	channel ssh.Channel
	config  *linux.ProcessConfiguration
	log     *logger.Logger

	stdout *boundedBuffer
	stderr *boundedBuffer

	mu          sync.Mutex
	state       processState
	stdinClosed bool
	status      *int64
	readErr     error

	done chan struct{}
}

func startSSHProcess(ctx context.Context, session *Session, config *linux.ProcessConfiguration) (*sshProcess, error) {
	if config.HasCredentials() {
		return nil, errors.Wrap(linux.ErrUnsupportedOperation, "uid, gid and process group cannot be set on a remote process")
	}

	channel, reqs, err := session.OpenExec(ctx, buildCommand(config), config.Envs)
	if err != nil {
		return nil, linux.NewIOError("exec", config.Program, err)
	}

	log := session.log.With("program", config.Program)
	p := &sshProcess{
		session: session,
		channel: channel,
		config:  config,
		log:     log,
		done:    make(chan struct{}),
	}
	if config.RedirectStdout {
		p.stdout = newBoundedBuffer("stdout", DefaultMaxBufferSize, log)
	}
	if config.RedirectStderr {
		p.stderr = newBoundedBuffer("stderr", DefaultMaxBufferSize, log)
	}
	if !config.RedirectStdin {
		if err := channel.CloseWrite(); err != nil {
			log.Debugf("failed to close stdin of non-interactive process: %v", err)
		}
		p.stdinClosed = true
	}

	go p.run(reqs)
	return p, nil
}

// run drains the channel until both output streams hit EOF and the peer
// closes the channel, then marks the process exited.
func (p *sshProcess) run(reqs <-chan *ssh.Request) {
	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(sinkFor(p.stdout), p.channel)
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(sinkFor(p.stderr), p.channel.Stderr())
		return err
	})
	g.Go(func() error {
		for req := range reqs {
			p.handleRequest(req)
		}
		return nil
	})
	err := g.Wait()
	p.channel.Close()

	p.mu.Lock()
	p.state = stateExited
	p.readErr = err
	if p.status == nil {
		p.log.Debugf("channel closed without exit status")
	}
	p.mu.Unlock()
	close(p.done)
}

func (p *sshProcess) handleRequest(req *ssh.Request) {
	switch req.Type {
	case "exit-status":
		var msg exitStatusMsg
		if err := ssh.Unmarshal(req.Payload, &msg); err != nil {
			p.log.Warnf("malformed exit-status: %v", err)
			break
		}
		p.setStatus(int64(msg.Status))
	case "exit-signal":
		var msg exitSignalMsg
		if err := ssh.Unmarshal(req.Payload, &msg); err != nil {
			p.log.Warnf("malformed exit-signal: %v", err)
			break
		}
		status, ok := signalStatus(msg.Signal)
		if !ok {
			p.log.Warnf("process killed by unknown signal %q", msg.Signal)
			break
		}
		p.setStatus(status)
	}
	if req.WantReply {
		req.Reply(false, nil)
	}
}

func (p *sshProcess) setStatus(status int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = &status
}

func (p *sshProcess) ID() (uint32, error) {
	return 0, linux.ErrProcessIDNotFound
}

func (p *sshProcess) WriteToStdin(ctx context.Context, data []byte) (int, error) {
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
		return p.channel.Write(data)
	})
	if err != nil {
		return n, linux.NewIOError("write stdin", p.config.Program, err)
	}
	return n, nil
}

func (p *sshProcess) CloseStdin(ctx context.Context) error {
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
	if err := p.channel.CloseWrite(); err != nil {
		return linux.NewIOError("close stdin", p.config.Program, err)
	}
	return nil
}

func (p *sshProcess) PartialOutput() (*linux.PartialProcessOutput, error) {
	if p.config.RedirectStdout && p.stdout == nil {
		return nil, linux.ErrStreamPipedButNotFound
	}
	if p.config.RedirectStderr && p.stderr == nil {
		return nil, linux.ErrStreamPipedButNotFound
	}
	partial := &linux.PartialProcessOutput{StdoutExtended: p.extended()}
	if p.stdout != nil {
		partial.Stdout = p.stdout.Bytes()
	}
	if p.stderr != nil {
		partial.Stderr = p.stderr.Bytes()
	}
	return partial, nil
}

// extended reports extended data streams other than stderr. The SSH client
// library only surfaces stream 1, so the map is always empty here.
func (p *sshProcess) extended() map[uint32][]byte {
	if p.config.DisableExtraReads {
		return nil
	}
	return map[uint32][]byte{}
}

func (p *sshProcess) AwaitExit(ctx context.Context) (*int64, error) {
	select {
	case <-p.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.readErr != nil {
		return p.status, linux.NewIOError("read output", p.config.Program, p.readErr)
	}
	return p.status, nil
}

func (p *sshProcess) AwaitExitWithOutput(ctx context.Context) (*linux.ProcessOutput, error) {
	status, err := p.AwaitExit(ctx)
	if err != nil {
		return nil, err
	}
	partial, err := p.PartialOutput()
	if err != nil {
		return nil, err
	}
	return &linux.ProcessOutput{
		Stdout:         partial.Stdout,
		Stderr:         partial.Stderr,
		StdoutExtended: partial.StdoutExtended,
		Status:         status,
	}, nil
}

// BeginKill sends TERM. Peers that refuse signal delivery get the channel
// closed instead.
func (p *sshProcess) BeginKill(ctx context.Context) error {
	p.mu.Lock()
	state := p.state
	p.mu.Unlock()
	if state == stateExited {
		return nil
	}

	ok, err := p.session.Signal(ctx, p.channel, "TERM")
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil || !ok {
		p.log.Warnf("peer did not accept signal (accepted=%v, err=%v), closing channel", ok, err)
		if closeErr := p.channel.Close(); closeErr != nil && closeErr != io.EOF {
			p.log.Debugf("closing channel: %v", closeErr)
		}
	}

	p.mu.Lock()
	if p.state == stateRunning {
		p.state = stateSignalled
	}
	p.mu.Unlock()
	return nil
}

func (p *sshProcess) Kill(ctx context.Context) (*int64, error) {
	if err := p.BeginKill(ctx); err != nil {
		return nil, err
	}
	return p.AwaitExit(ctx)
}

func (p *sshProcess) KillWithOutput(ctx context.Context) (*linux.ProcessOutput, error) {
	if err := p.BeginKill(ctx); err != nil {
		return nil, err
	}
	return p.AwaitExitWithOutput(ctx)
}

var _ linux.Process = (*sshProcess)(nil)
