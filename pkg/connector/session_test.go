package connector

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trackedCloser struct {
	closed atomic.Bool
}

func (c *trackedCloser) Close() error {
	c.closed.Store(true)
	return nil
}

func TestAwait_ReturnsResult(t *testing.T) {
	val, err := await(context.Background(), func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, val)
}

func TestAwait_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	_, err := await(ctx, func() (int, error) {
		called = true
		return 0, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestAwait_ClosesLateCloser(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	closer := &trackedCloser{}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	val, err := await(ctx, func() (*trackedCloser, error) {
		<-release
		return closer, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, val)
	assert.False(t, closer.closed.Load())

	close(release)
	assert.Eventually(t, closer.closed.Load, 2*time.Second, 10*time.Millisecond)
}

func TestAwait_LateErrorIsDropped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	closer := &trackedCloser{}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := await(ctx, func() (*trackedCloser, error) {
		<-release
		return closer, errors.New("open failed")
	})
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	time.Sleep(50 * time.Millisecond)
	assert.False(t, closer.closed.Load())
}
