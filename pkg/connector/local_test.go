package connector

import (
	"context"
	"errors"
	"os"
	"os/user"
	"testing"

	"github.com/mensylisir/remoteify/pkg/linux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLinux_ProcessID(t *testing.T) {
	backend := newLocalBackend(t, nil)
	process, err := backend.BeginExecute(context.Background(), linux.NewProcessConfiguration("true"))
	require.NoError(t, err)

	pid, err := process.ID()
	require.NoError(t, err)
	assert.NotZero(t, pid)

	status, err := process.AwaitExit(context.Background())
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, int64(0), *status)
}

func TestLocalLinux_CopyFileCountsBytes(t *testing.T) {
	backend := newLocalBackend(t, nil)
	src := initFile(t, backend, "payload")

	copied, err := backend.CopyFile(context.Background(), src, tempPath(t))
	require.NoError(t, err)
	require.NotNil(t, copied)
	assert.Equal(t, uint64(7), *copied)
}

func TestLocalLinux_NetworkIsLocal(t *testing.T) {
	assert.False(t, NewLocalLinux().IsRemoteNetwork())
}

func TestLocalLinux_ProcessGroup(t *testing.T) {
	backend := newLocalBackend(t, nil)
	config := linux.NewProcessConfiguration("sh").WithArgs("-c", "exit 0").WithProcessGroupID(0)

	out, err := backend.Execute(context.Background(), config)
	require.NoError(t, err)
	assert.True(t, out.Success())
}

func TestLocalLinux_MissingProgram(t *testing.T) {
	backend := newLocalBackend(t, nil)
	_, err := backend.BeginExecute(context.Background(), linux.NewProcessConfiguration("/nonexistent/program"))
	require.Error(t, err)
	assert.True(t, linux.IsIO(err))
}

func TestLocalLinux_MetadataOwner(t *testing.T) {
	backend := newLocalBackend(t, nil)
	p := initFile(t, backend, "x")

	meta, err := backend.GetMetadata(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, uint32(os.Getuid()), meta.UID)
	assert.Equal(t, uint32(os.Getgid()), meta.GID)
	require.NotNil(t, meta.Modified)
	require.NotNil(t, meta.Accessed)
	assert.Nil(t, meta.Created)

	if current, err := user.Current(); err == nil && meta.UserName != nil {
		assert.Equal(t, current.Username, *meta.UserName)
	}
}

func TestLocalLinux_CancelledContext(t *testing.T) {
	backend := newLocalBackend(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := backend.Exists(ctx, "/")
	assert.True(t, errors.Is(err, context.Canceled))
	_, err = backend.BeginExecute(ctx, linux.NewProcessConfiguration("true"))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestLocalLinux_ForwardAfterClose(t *testing.T) {
	backend := NewLocalLinux()
	require.NoError(t, backend.Close())
	_, err := backend.ReverseForwardTCP(context.Background(), "127.0.0.1", 0)
	require.Error(t, err)
	assert.True(t, linux.IsIO(err))
}
