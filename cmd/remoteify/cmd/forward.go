package cmd

import (
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mensylisir/remoteify/pkg/connector"
	"github.com/mensylisir/remoteify/pkg/logger"
	"github.com/spf13/cobra"
)

type ForwardOptions struct {
	Target string
}

var forwardOptions = &ForwardOptions{}

func init() {
	forwardCmd.Flags().StringVarP(&forwardOptions.Target, "to", "t", "", "Local address that forwarded connections are relayed to (required)")
	if err := forwardCmd.MarkFlagRequired("to"); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to mark 'to' flag as required for 'forward': %v\n", err)
	}
}

var forwardCmd = &cobra.Command{
	Use:   "forward [BIND_HOST:]PORT --to LOCAL_HOST:PORT",
	Short: "Expose a local service on a port of the host",
	Long: `Ask the host to listen on [BIND_HOST:]PORT and relay every accepted
connection to --to on this machine. Port 0 lets the host pick a port.
Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bindHost, port, err := parseForwardAddr(args[0])
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		backend, err := openBackend(ctx, relayTo(forwardOptions.Target))
		if err != nil {
			return err
		}
		defer backend.Close()

		bound, err := backend.ReverseForwardTCP(ctx, bindHost, port)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Forwarding %s -> %s\n", net.JoinHostPort(bindHost, fmt.Sprint(bound)), forwardOptions.Target)

		<-ctx.Done()
		logger.Info("Stopping forward")
		return nil
	},
}

// relayTo returns a handler that pipes each forwarded connection to target.
func relayTo(target string) connector.ForwardHandler {
	return func(conn net.Conn) {
		log := logger.Get().With("origin", conn.RemoteAddr().String())
		upstream, err := net.DialTimeout("tcp", target, 10*time.Second)
		if err != nil {
			log.Warnf("failed to reach %s: %v", target, err)
			conn.Close()
			return
		}
		log.Debugf("relaying to %s", target)

		var wg sync.WaitGroup
		wg.Add(2)
		pipe := func(dst, src net.Conn) {
			defer wg.Done()
			io.Copy(dst, src)
			if cw, ok := dst.(interface{ CloseWrite() error }); ok {
				cw.CloseWrite()
			} else {
				dst.Close()
			}
		}
		go pipe(upstream, conn)
		go pipe(conn, upstream)
		wg.Wait()
		upstream.Close()
		conn.Close()
	}
}
