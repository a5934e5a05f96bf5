package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestScope_FutureObservedAfterCompletion(t *testing.T) {
	s := NewScope(zap.NewNop())
	defer s.Close(context.Background())

	boom := errors.New("boom")
	f := s.Go("fail", func(ctx context.Context) error { return boom })

	<-f.Done()
	// поздний подписчик видит тот же результат
	require.ErrorIs(t, f.Wait(context.Background()), boom)
	require.ErrorIs(t, f.Err(), boom)
	require.Equal(t, "fail", f.Name())
}

func TestScope_TaskOutlivesCallerContext(t *testing.T) {
	s := NewScope(zap.NewNop())
	defer s.Close(context.Background())

	callerCtx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	f := s.Go("long", func(ctx context.Context) error {
		<-release
		return ctx.Err()
	})

	cancel()
	require.Error(t, callerCtx.Err())
	close(release)

	require.NoError(t, f.Wait(context.Background()))
}

func TestScope_CloseCancelsTasks(t *testing.T) {
	s := NewScope(zap.NewNop())

	started := make(chan struct{})
	f := s.Go("blocked", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started

	require.NoError(t, s.Close(context.Background()))
	require.ErrorIs(t, f.Err(), context.Canceled)
}

func TestScope_GoAfterClose(t *testing.T) {
	s := NewScope(zap.NewNop())
	require.NoError(t, s.Close(context.Background()))

	f := s.Go("late", func(ctx context.Context) error { return nil })
	require.ErrorIs(t, f.Wait(context.Background()), ErrScopeClosed)
}

func TestScope_PanicBecomesError(t *testing.T) {
	s := NewScope(zap.NewNop())
	defer s.Close(context.Background())

	f := s.Go("panic", func(ctx context.Context) error { panic("oops") })
	err := f.Wait(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "oops")
}

func TestScope_CloseTimeout(t *testing.T) {
	s := NewScope(zap.NewNop())

	release := make(chan struct{})
	defer close(release)
	s.Go("stuck", func(ctx context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, s.Close(ctx), context.DeadlineExceeded)
}

func TestFuture_WaitRespectsContext(t *testing.T) {
	s := NewScope(zap.NewNop())

	release := make(chan struct{})
	f := s.Go("slow", func(ctx context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, f.Wait(ctx), context.Canceled)

	close(release)
	require.NoError(t, s.Close(context.Background()))
}
