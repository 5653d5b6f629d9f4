package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mensylisir/remoteify/pkg/linux"
	"github.com/mensylisir/remoteify/pkg/logger"
	"github.com/spf13/cobra"
)

type ExecOptions struct {
	Envs       []string
	WorkingDir string
	Stdin      bool
	Timeout    time.Duration
}

var execOptions = &ExecOptions{}

func init() {
	execCmd.Flags().StringArrayVarP(&execOptions.Envs, "env", "e", nil, "Set an environment variable (KEY=VALUE), may be repeated")
	execCmd.Flags().StringVarP(&execOptions.WorkingDir, "workdir", "w", "", "Working directory for the program")
	execCmd.Flags().BoolVarP(&execOptions.Stdin, "stdin", "i", false, "Forward this process's stdin to the program")
	execCmd.Flags().DurationVar(&execOptions.Timeout, "timeout", 0, "Kill the program after this long (0 waits forever)")
}

var execCmd = &cobra.Command{
	Use:   "exec [flags] -- PROGRAM [ARGS...]",
	Short: "Run a program and print its output",
	Long: `Run a program on the host, print its stdout and stderr, and exit with its
status. A program killed by a signal exits with 128 plus the signal number.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		envs, err := parseEnvFlags(execOptions.Envs)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		backend, err := openBackend(ctx, nil)
		if err != nil {
			return err
		}
		defer backend.Close()

		config := linux.NewProcessConfiguration(args[0]).
			WithArgs(args[1:]...).
			WithEnvs(envs).
			WithRedirectStdout().
			WithRedirectStderr()
		if execOptions.WorkingDir != "" {
			config.WithWorkingDir(execOptions.WorkingDir)
		}
		if execOptions.Stdin {
			config.WithRedirectStdin()
		}

		out, err := runProcess(ctx, backend, config, cmd.InOrStdin(), execOptions.Timeout)
		if err != nil {
			return err
		}
		cmd.OutOrStdout().Write(out.Stdout)
		cmd.ErrOrStderr().Write(out.Stderr)
		if code := exitStatusCode(out.Status); code != 0 {
			return &ExitError{Code: code}
		}
		return nil
	},
}

// runProcess starts config, feeds stdin when it is redirected and waits for
// the exit. The program is killed when ctx ends or timeout elapses.
func runProcess(ctx context.Context, executor linux.Executor, config *linux.ProcessConfiguration, stdin io.Reader, timeout time.Duration) (*linux.ProcessOutput, error) {
	log := logger.Get().With("program", config.Program)
	process, err := executor.BeginExecute(ctx, config)
	if err != nil {
		return nil, err
	}

	if config.RedirectStdin {
		go func() {
			buf := make([]byte, 32*1024)
			for {
				n, err := stdin.Read(buf)
				if n > 0 {
					if _, werr := process.WriteToStdin(ctx, buf[:n]); werr != nil {
						log.Debugf("stdin forwarding stopped: %v", werr)
						return
					}
				}
				if err != nil {
					process.CloseStdin(ctx)
					return
				}
			}
		}()
	}

	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	out, err := process.AwaitExitWithOutput(waitCtx)
	if err == nil {
		return out, nil
	}
	if waitCtx.Err() == nil {
		return nil, err
	}

	log.Warnf("stopping program: %v", waitCtx.Err())
	killCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return process.KillWithOutput(killCtx)
}
