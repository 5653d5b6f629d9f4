package connector

import (
	"context"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/mensylisir/remoteify/pkg/logger"
	"github.com/pkg/errors"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/semaphore"
)

// Session is an authenticated SSH connection with its persistent SFTP client.
// Raw protocol requests (channel opens, channel and global requests) are
// serialised through a FIFO lock; SFTP traffic is pipelined by the SFTP client.
type Session struct {
	client        *ssh.Client
	bastionClient *ssh.Client
	sftpClient    *sftp.Client
	lock          *semaphore.Weighted

	host string
	port int
	user string

	forwardHandler ForwardHandler
	log            *logger.Logger

	mu        sync.Mutex
	listeners []net.Listener
	closed    bool
}

type envRequest struct {
	Name  string
	Value string
}

type execRequest struct {
	Command string
}

type signalRequest struct {
	Signal string
}

// Dial connects, authenticates and opens the sftp subsystem.
func Dial(ctx context.Context, cfg ConnectionCfg) (*Session, error) {
	log := logger.Get().With("host", cfg.Host)
	log.Debugf("dialing %s@%s:%d", cfg.User, cfg.Host, cfg.port())

	client, bastionClient, err := currentDialer(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		client.Close()
		if bastionClient != nil {
			bastionClient.Close()
		}
		return nil, &ConnectionError{Host: cfg.Host, Stage: StageSubsystem, Err: err}
	}

	return &Session{
		client:         client,
		bastionClient:  bastionClient,
		sftpClient:     sftpClient,
		lock:           semaphore.NewWeighted(1),
		host:           cfg.Host,
		port:           cfg.port(),
		user:           cfg.User,
		forwardHandler: cfg.ForwardHandler,
		log:            log,
	}, nil
}

func (s *Session) Host() string { return s.host }
func (s *Session) Port() int    { return s.port }
func (s *Session) User() string { return s.user }

// SFTP returns the shared SFTP client.
func (s *Session) SFTP() *sftp.Client {
	return s.sftpClient
}

func (s *Session) withLock(ctx context.Context, fn func() error) error {
	if err := s.lock.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.lock.Release(1)
	return fn()
}

// OpenExec opens a session channel, applies env and starts command on it.
// When the peer refuses any env request the whole command is re-run through
// `env NAME=VALUE ... sh -c` so the variables still reach the program.
func (s *Session) OpenExec(ctx context.Context, command string, env map[string]string) (ssh.Channel, <-chan *ssh.Request, error) {
	var (
		channel ssh.Channel
		reqs    <-chan *ssh.Request
	)
	err := s.withLock(ctx, func() error {
		var err error
		channel, reqs, err = s.client.OpenChannel("session", nil)
		if err != nil {
			return errors.Wrap(err, "failed to open session channel")
		}

		inlineEnv := false
		for _, name := range sortedKeys(env) {
			ok, err := channel.SendRequest("env", true, ssh.Marshal(&envRequest{Name: name, Value: env[name]}))
			if err != nil {
				channel.Close()
				return errors.Wrapf(err, "failed to send env %s", name)
			}
			if !ok {
				inlineEnv = true
				break
			}
		}
		if inlineEnv {
			s.log.Warnf("peer refused env requests, passing environment on the command line")
			command = inlineEnvCommand(command, env)
		}

		s.log.Debugf("exec: %s", command)
		ok, err := channel.SendRequest("exec", true, ssh.Marshal(&execRequest{Command: command}))
		if err != nil {
			channel.Close()
			return errors.Wrap(err, "failed to send exec request")
		}
		if !ok {
			channel.Close()
			return errors.Errorf("peer refused exec of %q", command)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return channel, reqs, nil
}

// Signal asks the peer to deliver sig (e.g. "TERM") to the program on channel.
// It reports whether the peer accepted the request.
func (s *Session) Signal(ctx context.Context, channel ssh.Channel, sig string) (bool, error) {
	var ok bool
	err := s.withLock(ctx, func() error {
		var err error
		ok, err = channel.SendRequest("signal", true, ssh.Marshal(&signalRequest{Signal: sig}))
		return err
	})
	return ok, err
}

// Listen asks the peer to listen on host:port and forward connections back.
// An empty host listens on all addresses. host is resolved locally first.
func (s *Session) Listen(ctx context.Context, host string, port uint32) (net.Listener, error) {
	if host == "" {
		host = "0.0.0.0"
	}
	laddr, err := net.ResolveTCPAddr("tcp", net.JoinHostPort(host, strconv.FormatUint(uint64(port), 10)))
	if err != nil {
		return nil, err
	}

	var listener net.Listener
	err = s.withLock(ctx, func() error {
		var err error
		listener, err = s.client.ListenTCP(laddr)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		listener.Close()
		return nil, errors.New("session closed")
	}
	s.listeners = append(s.listeners, listener)
	return listener, nil
}

// KeepaliveTimeout bounds how long IsConnected waits for the peer to answer.
var KeepaliveTimeout = 10 * time.Second

// IsConnected sends a keepalive and reports whether the peer answered before
// ctx ended or KeepaliveTimeout elapsed. The session lock is released on
// timeout even if the reply never comes.
func (s *Session) IsConnected(ctx context.Context) bool {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, KeepaliveTimeout)
	defer cancel()
	err := s.withLock(ctx, func() error {
		_, err := await(ctx, func() (bool, error) {
			ok, _, err := s.client.SendRequest("keepalive@openssh.com", true, nil)
			return ok, err
		})
		return err
	})
	if err != nil {
		s.log.Debugf("keepalive failed: %v", err)
	}
	return err == nil
}

// Close tears down forwards, the SFTP client and the SSH connection. It is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	listeners := s.listeners
	s.listeners = nil
	s.mu.Unlock()

	var firstErr error
	for _, l := range listeners {
		l.Close()
	}
	if err := s.sftpClient.Close(); err != nil {
		firstErr = errors.Wrapf(err, "failed to close SFTP client for %s", s.host)
		s.log.Debugf("%v", firstErr)
	}
	if err := s.client.Close(); err != nil && firstErr == nil {
		firstErr = errors.Wrapf(err, "failed to close SSH client for %s", s.host)
	}
	if s.bastionClient != nil {
		if err := s.bastionClient.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "failed to close bastion client for %s", s.host)
		}
	}
	return firstErr
}

// await runs fn in a goroutine and returns early with ctx.Err when ctx is
// done. The peer may still complete the request after cancellation; a result
// that arrives late and is an io.Closer, such as an opened file, is closed.
func await[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}
	resultCh := make(chan result, 1)
	go func() {
		val, err := fn()
		resultCh <- result{val, err}
	}()
	select {
	case r := <-resultCh:
		return r.val, r.err
	case <-ctx.Done():
		go func() {
			r := <-resultCh
			if r.err != nil {
				return
			}
			if closer, ok := any(r.val).(io.Closer); ok {
				closer.Close()
			}
		}()
		var zero T
		return zero, ctx.Err()
	}
}
