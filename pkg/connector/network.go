package connector

import (
	"context"
	"net"

	"github.com/mensylisir/remoteify/pkg/linux"
	"github.com/mensylisir/remoteify/pkg/logger"
)

func (s *SSHLinux) IsRemoteNetwork() bool {
	return true
}

// ReverseForwardTCP asks the peer to listen on host:port and returns the bound
// port. Accepted connections go to the session's ForwardHandler until the
// session is closed.
//
// host is resolved on this side before the request is sent, because the SSH
// client routes forwarded connections by IP address. A name only the peer can
// resolve fails here, and a name such as localhost binds whichever address it
// resolves to locally (possibly ::1). An empty host binds 0.0.0.0.
func (s *SSHLinux) ReverseForwardTCP(ctx context.Context, host string, port uint32) (uint32, error) {
	listener, err := s.session.Listen(ctx, host, port)
	if err != nil {
		return 0, linux.NewIOError("reverse forward", net.JoinHostPort(host, formatPort(port)), err)
	}
	bound := uint32(listener.Addr().(*net.TCPAddr).Port)
	s.log.Infof("peer listening on %s:%d", host, bound)

	handler := s.session.forwardHandler
	if handler == nil {
		handler = discardForward(s.log)
	}
	go serveForwards(listener, handler)
	return bound, nil
}

func serveForwards(listener net.Listener, handler ForwardHandler) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		go handler(conn)
	}
}

func discardForward(log *logger.Logger) ForwardHandler {
	return func(conn net.Conn) {
		log.Warnf("no forward handler configured, dropping connection from %s", conn.RemoteAddr())
		conn.Close()
	}
}
