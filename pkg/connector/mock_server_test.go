package connector

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"encoding/pem"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"testing"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

const (
	testUser     = "root"
	testPassword = "root123"
)

// MockServer is an in-process SSH server backed by the local machine: exec
// runs `sh -c`, the sftp subsystem serves the real filesystem and
// tcpip-forward listens on loopback.
type MockServer struct {
	listener net.Listener
	config   *ssh.ServerConfig
	t        *testing.T

	RefuseEnv    bool
	RefuseSignal bool
	RefuseSFTP   bool

	// SilentKeepalive leaves keepalive requests unanswered.
	SilentKeepalive bool

	authorizedKey ssh.PublicKey

	serverDone chan struct{}
	wg         sync.WaitGroup
}

type mockServerOption func(*MockServer)

func withRefusedEnv() mockServerOption    { return func(ms *MockServer) { ms.RefuseEnv = true } }
func withRefusedSignal() mockServerOption { return func(ms *MockServer) { ms.RefuseSignal = true } }
func withRefusedSFTP() mockServerOption   { return func(ms *MockServer) { ms.RefuseSFTP = true } }
func withSilentKeepalive() mockServerOption {
	return func(ms *MockServer) { ms.SilentKeepalive = true }
}
func withAuthorizedKey(key ssh.PublicKey) mockServerOption {
	return func(ms *MockServer) { ms.authorizedKey = key }
}

func NewMockServer(t *testing.T, opts ...mockServerOption) *MockServer {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewMockServer: Failed to listen: %v", err)
	}

	hostKey, err := generateTestKey()
	if err != nil {
		listener.Close()
		t.Fatalf("NewMockServer: Failed to generate key: %v", err)
	}

	ms := &MockServer{listener: listener, t: t, serverDone: make(chan struct{})}
	for _, opt := range opts {
		opt(ms)
	}
	ms.config = &ssh.ServerConfig{
		PasswordCallback: func(conn ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			if conn.User() == testUser && string(password) == testPassword {
				return nil, nil
			}
			return nil, fmt.Errorf("password rejected for %q", conn.User())
		},
		PublicKeyCallback: func(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if ms.authorizedKey != nil && bytes.Equal(key.Marshal(), ms.authorizedKey.Marshal()) {
				return nil, nil
			}
			return nil, fmt.Errorf("unknown public key for %q", conn.User())
		},
	}
	ms.config.AddHostKey(hostKey)

	ms.wg.Add(1)
	go ms.acceptLoop()

	t.Cleanup(func() {
		ms.listener.Close()
		<-ms.serverDone
		ms.wg.Wait()
	})
	return ms
}

func (ms *MockServer) Host() string {
	return ms.listener.Addr().(*net.TCPAddr).IP.String()
}

func (ms *MockServer) Port() int {
	return ms.listener.Addr().(*net.TCPAddr).Port
}

// ConnectionCfg returns a password configuration for the server.
func (ms *MockServer) ConnectionCfg() ConnectionCfg {
	return ConnectionCfg{
		Host: ms.Host(),
		Port: ms.Port(),
		User: testUser,
		Auth: PasswordAuth{Password: testPassword},
	}
}

func (ms *MockServer) acceptLoop() {
	defer ms.wg.Done()
	defer close(ms.serverDone)
	for {
		conn, err := ms.listener.Accept()
		if err != nil {
			return
		}
		ms.wg.Add(1)
		go ms.handleConnection(conn)
	}
}

func (ms *MockServer) handleConnection(c net.Conn) {
	defer ms.wg.Done()
	defer c.Close()
	sconn, chans, globalReqs, err := ssh.NewServerConn(c, ms.config)
	if err != nil {
		return
	}
	defer sconn.Close()

	forwards := &mockForwards{}
	defer forwards.closeAll()
	go ms.handleGlobalRequests(sconn, globalReqs, forwards)

	var channels sync.WaitGroup
	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, requests, err := newChannel.Accept()
		if err != nil {
			continue
		}
		channels.Add(1)
		go func() {
			defer channels.Done()
			ms.handleSession(channel, requests)
		}()
	}
	channels.Wait()
}

func (ms *MockServer) handleSession(ch ssh.Channel, reqs <-chan *ssh.Request) {
	defer ch.Close()
	var (
		env []string
		cmd *exec.Cmd
	)
	for req := range reqs {
		switch req.Type {
		case "env":
			var payload envRequest
			if ms.RefuseEnv || ssh.Unmarshal(req.Payload, &payload) != nil {
				req.Reply(false, nil)
				continue
			}
			env = append(env, payload.Name+"="+payload.Value)
			req.Reply(true, nil)
		case "exec":
			var payload execRequest
			if cmd != nil || ssh.Unmarshal(req.Payload, &payload) != nil {
				req.Reply(false, nil)
				continue
			}
			req.Reply(true, nil)
			cmd = ms.startCommand(ch, payload.Command, env)
		case "signal":
			var payload signalRequest
			if ms.RefuseSignal || cmd == nil || ssh.Unmarshal(req.Payload, &payload) != nil {
				req.Reply(false, nil)
				continue
			}
			n, ok := signalNumbers[payload.Signal]
			if !ok {
				req.Reply(false, nil)
				continue
			}
			syscall.Kill(-cmd.Process.Pid, syscall.Signal(n))
			req.Reply(true, nil)
		case "subsystem":
			var payload struct{ Name string }
			if ms.RefuseSFTP || ssh.Unmarshal(req.Payload, &payload) != nil || payload.Name != "sftp" {
				req.Reply(false, nil)
				continue
			}
			req.Reply(true, nil)
			go func() {
				server, err := sftp.NewServer(ch)
				if err != nil {
					ch.Close()
					return
				}
				server.Serve()
				ch.Close()
			}()
		default:
			if req.WantReply {
				req.Reply(false, nil)
			}
		}
	}
	if cmd != nil && cmd.Process != nil {
		syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}

// startCommand runs command and reports its exit on ch. A nil return means the
// command could not be started and the channel has been closed.
func (ms *MockServer) startCommand(ch ssh.Channel, command string, env []string) *exec.Cmd {
	cmd := exec.Command("sh", "-c", command)
	cmd.Env = append(os.Environ(), env...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Stdout = ch
	cmd.Stderr = ch.Stderr()
	stdin, err := cmd.StdinPipe()
	if err != nil {
		ch.Close()
		return nil
	}
	if err := cmd.Start(); err != nil {
		ch.SendRequest("exit-status", false, ssh.Marshal(&exitStatusMsg{Status: 127}))
		ch.Close()
		return nil
	}
	go func() {
		io.Copy(stdin, ch)
		stdin.Close()
	}()
	go func() {
		cmd.Wait()
		ch.CloseWrite()
		ws, _ := cmd.ProcessState.Sys().(syscall.WaitStatus)
		if ws.Signaled() {
			ch.SendRequest("exit-signal", false, ssh.Marshal(&exitSignalMsg{Signal: signalName(ws.Signal())}))
		} else {
			ch.SendRequest("exit-status", false, ssh.Marshal(&exitStatusMsg{Status: uint32(ws.ExitStatus())}))
		}
		ch.Close()
	}()
	return cmd
}

func signalName(sig syscall.Signal) string {
	for name, n := range signalNumbers {
		if int64(sig) == n {
			return name
		}
	}
	return "UNKNOWN"
}

type tcpipForwardRequest struct {
	Addr string
	Port uint32
}

type forwardedTCPPayload struct {
	Addr       string
	Port       uint32
	OriginAddr string
	OriginPort uint32
}

type mockForwards struct {
	mu        sync.Mutex
	listeners []net.Listener
}

func (f *mockForwards) add(l net.Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, l)
}

func (f *mockForwards) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.listeners {
		l.Close()
	}
}

func (ms *MockServer) handleGlobalRequests(sconn *ssh.ServerConn, reqs <-chan *ssh.Request, forwards *mockForwards) {
	for req := range reqs {
		if req.Type == "keepalive@openssh.com" && ms.SilentKeepalive {
			continue
		}
		if req.Type != "tcpip-forward" {
			if req.WantReply {
				req.Reply(false, nil)
			}
			continue
		}
		var payload tcpipForwardRequest
		if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
			req.Reply(false, nil)
			continue
		}
		listener, err := net.Listen("tcp", net.JoinHostPort(payload.Addr, strconv.Itoa(int(payload.Port))))
		if err != nil {
			req.Reply(false, nil)
			continue
		}
		forwards.add(listener)
		bound := uint32(listener.Addr().(*net.TCPAddr).Port)
		req.Reply(true, ssh.Marshal(&struct{ Port uint32 }{bound}))
		go serveMockForward(sconn, listener, payload.Addr, bound)
	}
}

func serveMockForward(sconn *ssh.ServerConn, listener net.Listener, addr string, port uint32) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		origin := conn.RemoteAddr().(*net.TCPAddr)
		payload := forwardedTCPPayload{
			Addr:       addr,
			Port:       port,
			OriginAddr: origin.IP.String(),
			OriginPort: uint32(origin.Port),
		}
		ch, reqs, err := sconn.OpenChannel("forwarded-tcpip", ssh.Marshal(&payload))
		if err != nil {
			conn.Close()
			continue
		}
		go ssh.DiscardRequests(reqs)
		go func() {
			io.Copy(ch, conn)
			ch.CloseWrite()
		}()
		go func() {
			io.Copy(conn, ch)
			conn.Close()
			ch.Close()
		}()
	}
}

func generateTestKey() (ssh.Signer, error) {
	privateRSAKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA private key: %w", err)
	}
	signer, err := ssh.NewSignerFromKey(privateRSAKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create signer from RSA private key: %w", err)
	}
	return signer, nil
}

// generateClientKey returns an OpenSSH encoded ed25519 key, encrypted when
// passphrase is set, and its public half.
func generateClientKey(t *testing.T, passphrase string) ([]byte, ssh.PublicKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate ed25519 key: %v", err)
	}
	var block *pem.Block
	if passphrase != "" {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte(passphrase))
	} else {
		block, err = ssh.MarshalPrivateKey(priv, "")
	}
	if err != nil {
		t.Fatalf("failed to marshal private key: %v", err)
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("failed to convert public key: %v", err)
	}
	return pem.EncodeToMemory(block), sshPub
}
