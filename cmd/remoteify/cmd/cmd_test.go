package cmd

import (
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mensylisir/remoteify/pkg/connector"
	"github.com/mensylisir/remoteify/pkg/linux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runRoot executes the CLI against the local machine and returns its stdout.
func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	hostFlag, configFile = "", ""
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestLsCommand(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "a"), 0o755))

	out, err := runRoot(t, "ls", dir)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "NAME")
	assert.Contains(t, lines[1], "a")
	assert.Contains(t, lines[1], "dir")
	assert.Contains(t, lines[2], "b.txt")
	assert.Contains(t, lines[2], "file")
}

func TestStatCommandJSON(t *testing.T) {
	p := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(p, []byte("hello"), 0o640))

	out, err := runRoot(t, "stat", "-o", "json", p)
	require.NoError(t, err)
	assert.Contains(t, out, `"size":5`)
	assert.Contains(t, out, `"mode":"0640"`)

	_, err = runRoot(t, "stat", "-o", "yaml", p)
	assert.Error(t, err)
	statOptions.OutputFormat = "text"
}

func TestExecCommandExitStatus(t *testing.T) {
	out, err := runRoot(t, "exec", "--", "sh", "-c", "printf hi; exit 3")
	assert.Equal(t, "hi", out)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.Code)
}

func TestExecCommandRequiresInventoryForHost(t *testing.T) {
	hostFlag, configFile = "web-1", ""
	defer func() { hostFlag = "" }()
	_, err := openBackend(context.Background(), nil)
	assert.Error(t, err)
}

func TestRunProcessTimeoutKills(t *testing.T) {
	backend := connector.NewLocalLinux()
	config := linux.NewProcessConfiguration("sleep").Arg("30").WithRedirectStdout()

	start := time.Now()
	out, err := runProcess(context.Background(), backend, config, nil, 200*time.Millisecond)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Equal(t, 143, exitStatusCode(out.Status))
}

func TestRunProcessForwardsStdin(t *testing.T) {
	backend := connector.NewLocalLinux()
	config := linux.NewProcessConfiguration("cat").WithRedirectStdin().WithRedirectStdout()

	out, err := runProcess(context.Background(), backend, config, strings.NewReader("piped"), 0)
	require.NoError(t, err)
	assert.Equal(t, "piped", string(out.Stdout))
}

func TestPushPull(t *testing.T) {
	backend := connector.NewLocalLinux()
	ctx := context.Background()
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	require.NoError(t, os.WriteFile(src, []byte("transfer me"), 0o750))

	opts := &TransferOptions{Preserve: true, Quiet: true}
	hostPath := filepath.Join(dir, "on-host")
	require.NoError(t, push(ctx, backend, src, hostPath, opts))

	back := filepath.Join(dir, "back")
	require.NoError(t, pull(ctx, backend, hostPath, back, opts))
	data, err := os.ReadFile(back)
	require.NoError(t, err)
	assert.Equal(t, "transfer me", string(data))

	info, err := os.Stat(back)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o750), info.Mode().Perm())

	assert.Error(t, pull(ctx, backend, dir, filepath.Join(dir, "x"), opts))
}

func TestRelayTo(t *testing.T) {
	upstream, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer upstream.Close()
	go func() {
		conn, err := upstream.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		io.Copy(conn, conn)
	}()

	client, server := net.Pipe()
	go relayTo(upstream.Addr().String())(server)

	_, err = client.Write([]byte("echo"))
	require.NoError(t, err)
	buf := make([]byte, 4)
	_, err = io.ReadFull(client, buf)
	require.NoError(t, err)
	assert.Equal(t, "echo", string(buf))
	client.Close()
}
