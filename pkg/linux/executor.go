package linux

import (
	"context"
	"sort"
)

// ProcessConfiguration describes a program to run. Build it with
// NewProcessConfiguration and the chainable setters.
type ProcessConfiguration struct {
	Program           string
	Args              []string
	Envs              map[string]string
	WorkingDir        string
	RedirectStdin     bool
	RedirectStdout    bool
	RedirectStderr    bool
	DisableExtraReads bool
	UserID            *uint32
	GroupID           *uint32
	ProcessGroupID    *uint32
}

func NewProcessConfiguration(program string) *ProcessConfiguration {
	return &ProcessConfiguration{
		Program: program,
		Envs:    make(map[string]string),
	}
}

func (c *ProcessConfiguration) Arg(argument string) *ProcessConfiguration {
	c.Args = append(c.Args, argument)
	return c
}

func (c *ProcessConfiguration) WithArgs(arguments ...string) *ProcessConfiguration {
	c.Args = append(c.Args, arguments...)
	return c
}

// Env sets one variable; a repeated name replaces the earlier value.
func (c *ProcessConfiguration) Env(key, value string) *ProcessConfiguration {
	if c.Envs == nil {
		c.Envs = make(map[string]string)
	}
	c.Envs[key] = value
	return c
}

func (c *ProcessConfiguration) WithEnvs(environment map[string]string) *ProcessConfiguration {
	for k, v := range environment {
		c.Env(k, v)
	}
	return c
}

func (c *ProcessConfiguration) ClearEnv() *ProcessConfiguration {
	c.Envs = make(map[string]string)
	return c
}

func (c *ProcessConfiguration) WithWorkingDir(dir string) *ProcessConfiguration {
	c.WorkingDir = dir
	return c
}

func (c *ProcessConfiguration) WithRedirectStdin() *ProcessConfiguration {
	c.RedirectStdin = true
	return c
}

func (c *ProcessConfiguration) WithRedirectStdout() *ProcessConfiguration {
	c.RedirectStdout = true
	return c
}

func (c *ProcessConfiguration) WithRedirectStderr() *ProcessConfiguration {
	c.RedirectStderr = true
	return c
}

func (c *ProcessConfiguration) WithDisableExtraReads() *ProcessConfiguration {
	c.DisableExtraReads = true
	return c
}

func (c *ProcessConfiguration) WithUserID(id uint32) *ProcessConfiguration {
	c.UserID = &id
	return c
}

func (c *ProcessConfiguration) WithGroupID(id uint32) *ProcessConfiguration {
	c.GroupID = &id
	return c
}

func (c *ProcessConfiguration) WithProcessGroupID(id uint32) *ProcessConfiguration {
	c.ProcessGroupID = &id
	return c
}

// SortedEnvKeys returns the environment names in a stable order.
func (c *ProcessConfiguration) SortedEnvKeys() []string {
	keys := make([]string, 0, len(c.Envs))
	for k := range c.Envs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// HasCredentials reports whether any uid/gid/pgid override is set.
func (c *ProcessConfiguration) HasCredentials() bool {
	return c.UserID != nil || c.GroupID != nil || c.ProcessGroupID != nil
}

// ProcessOutput is the consolidated result of a finished process. Stdout and
// Stderr are nil when the stream was not redirected. Status is nil when the
// process ended without reporting one.
type ProcessOutput struct {
	Stdout         []byte
	Stderr         []byte
	StdoutExtended map[uint32][]byte
	Status         *int64
}

// PartialProcessOutput is a snapshot of what a running process produced so far.
type PartialProcessOutput struct {
	Stdout         []byte
	Stderr         []byte
	StdoutExtended map[uint32][]byte
}

// Success is true only for an observed zero status.
func (o *ProcessOutput) Success() bool {
	return o.Status != nil && *o.Status == 0
}

// Process is a live handle on a spawned program.
type Process interface {
	ID() (uint32, error)
	WriteToStdin(ctx context.Context, data []byte) (int, error)
	// CloseStdin signals EOF. Calling it again after a successful close is a no-op.
	CloseStdin(ctx context.Context) error
	PartialOutput() (*PartialProcessOutput, error)
	AwaitExit(ctx context.Context) (*int64, error)
	// AwaitExitWithOutput consumes the handle.
	AwaitExitWithOutput(ctx context.Context) (*ProcessOutput, error)
	// BeginKill requests termination without waiting for it.
	BeginKill(ctx context.Context) error
	Kill(ctx context.Context) (*int64, error)
	KillWithOutput(ctx context.Context) (*ProcessOutput, error)
}

// Executor spawns processes.
type Executor interface {
	BeginExecute(ctx context.Context, config *ProcessConfiguration) (Process, error)
	Execute(ctx context.Context, config *ProcessConfiguration) (*ProcessOutput, error)
}

// Execute is the BeginExecute + AwaitExitWithOutput composite shared by backends.
func Execute(ctx context.Context, executor Executor, config *ProcessConfiguration) (*ProcessOutput, error) {
	process, err := executor.BeginExecute(ctx, config)
	if err != nil {
		return nil, err
	}
	return process.AwaitExitWithOutput(ctx)
}

// PartialStdout returns the stdout captured so far by p.
func PartialStdout(p Process) ([]byte, error) {
	partial, err := p.PartialOutput()
	if err != nil {
		return nil, err
	}
	if partial.Stdout == nil {
		return nil, ErrStdoutNotPiped
	}
	return partial.Stdout, nil
}

// PartialStderr returns the stderr captured so far by p.
func PartialStderr(p Process) ([]byte, error) {
	partial, err := p.PartialOutput()
	if err != nil {
		return nil, err
	}
	if partial.Stderr == nil {
		return nil, ErrStderrNotPiped
	}
	return partial.Stderr, nil
}
