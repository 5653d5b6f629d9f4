package linux

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestProcessConfiguration_Builder(t *testing.T) {
	config := NewProcessConfiguration("sh").
		Arg("-c").
		WithArgs("echo $A", "ignored").
		Env("A", "1").
		Env("A", "2").
		WithEnvs(map[string]string{"B": "3"}).
		WithWorkingDir("/tmp").
		WithRedirectStdin().
		WithRedirectStdout().
		WithRedirectStderr().
		WithDisableExtraReads()

	assert.Equal(t, "sh", config.Program)
	assert.Equal(t, []string{"-c", "echo $A", "ignored"}, config.Args)
	assert.Equal(t, map[string]string{"A": "2", "B": "3"}, config.Envs)
	assert.Equal(t, []string{"A", "B"}, config.SortedEnvKeys())
	assert.Equal(t, "/tmp", config.WorkingDir)
	assert.True(t, config.RedirectStdin)
	assert.True(t, config.RedirectStdout)
	assert.True(t, config.RedirectStderr)
	assert.True(t, config.DisableExtraReads)
	assert.False(t, config.HasCredentials())

	config.ClearEnv()
	assert.Empty(t, config.Envs)
}

func TestProcessConfiguration_Credentials(t *testing.T) {
	config := NewProcessConfiguration("id").WithUserID(1000)
	require.NotNil(t, config.UserID)
	assert.Equal(t, uint32(1000), *config.UserID)
	assert.True(t, config.HasCredentials())

	assert.True(t, NewProcessConfiguration("id").WithGroupID(10).HasCredentials())
	assert.True(t, NewProcessConfiguration("id").WithProcessGroupID(10).HasCredentials())
}

func TestProcessConfiguration_EnvOnZeroValue(t *testing.T) {
	config := &ProcessConfiguration{Program: "env"}
	config.Env("K", "V")
	assert.Equal(t, "V", config.Envs["K"])
}

func TestProcessOutput_Success(t *testing.T) {
	zero, one := int64(0), int64(1)
	assert.True(t, (&ProcessOutput{Status: &zero}).Success())
	assert.False(t, (&ProcessOutput{Status: &one}).Success())
	assert.False(t, (&ProcessOutput{}).Success())
}

type mockExecutor struct{ mock.Mock }

func (m *mockExecutor) BeginExecute(ctx context.Context, config *ProcessConfiguration) (Process, error) {
	args := m.Called(ctx, config)
	if p := args.Get(0); p != nil {
		return p.(Process), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockExecutor) Execute(ctx context.Context, config *ProcessConfiguration) (*ProcessOutput, error) {
	return Execute(ctx, m, config)
}

type mockProcess struct {
	mock.Mock
	Process
}

func (m *mockProcess) AwaitExitWithOutput(ctx context.Context) (*ProcessOutput, error) {
	args := m.Called(ctx)
	if out := args.Get(0); out != nil {
		return out.(*ProcessOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestExecute_ComposesBeginAndAwait(t *testing.T) {
	ctx := context.Background()
	config := NewProcessConfiguration("true")
	status := int64(0)
	expected := &ProcessOutput{Status: &status}

	process := &mockProcess{}
	process.On("AwaitExitWithOutput", ctx).Return(expected, nil)
	executor := &mockExecutor{}
	executor.On("BeginExecute", ctx, config).Return(process, nil)

	out, err := executor.Execute(ctx, config)
	require.NoError(t, err)
	assert.Same(t, expected, out)
	executor.AssertExpectations(t)
	process.AssertExpectations(t)
}

func TestExecute_BeginFailureIsReturned(t *testing.T) {
	ctx := context.Background()
	config := NewProcessConfiguration("id").WithUserID(0)
	executor := &mockExecutor{}
	executor.On("BeginExecute", ctx, config).Return(nil, ErrUnsupportedOperation)

	out, err := executor.Execute(ctx, config)
	assert.Nil(t, out)
	assert.True(t, errors.Is(err, ErrUnsupportedOperation))
}

func (m *mockProcess) PartialOutput() (*PartialProcessOutput, error) {
	args := m.Called()
	if out := args.Get(0); out != nil {
		return out.(*PartialProcessOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestPartialStreams(t *testing.T) {
	process := &mockProcess{}
	process.On("PartialOutput").Return(&PartialProcessOutput{Stdout: []byte("he")}, nil)

	stdout, err := PartialStdout(process)
	require.NoError(t, err)
	assert.Equal(t, []byte("he"), stdout)

	_, err = PartialStderr(process)
	assert.True(t, errors.Is(err, ErrStderrNotPiped))

	empty := &mockProcess{}
	empty.On("PartialOutput").Return(&PartialProcessOutput{Stderr: []byte{}}, nil)
	_, err = PartialStdout(empty)
	assert.True(t, errors.Is(err, ErrStdoutNotPiped))
	stderr, err := PartialStderr(empty)
	require.NoError(t, err)
	assert.NotNil(t, stderr)
	assert.Empty(t, stderr)
}
