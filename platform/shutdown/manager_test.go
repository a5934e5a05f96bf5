package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestManager_Shutdown_ReverseOrder(t *testing.T) {
	m := New(time.Second, zap.NewNop())

	var order []string
	m.Add("first", func(ctx context.Context) error {
		order = append(order, "first")
		return nil
	})
	m.Add("second", func(ctx context.Context) error {
		order = append(order, "second")
		return errors.New("boom")
	})
	m.Add("third", func(ctx context.Context) error {
		order = append(order, "third")
		return nil
	})

	m.Shutdown()

	// ошибка second не должна прерывать first
	require.Equal(t, []string{"third", "second", "first"}, order)
}

func TestManager_Shutdown_RunsOnce(t *testing.T) {
	m := New(time.Second, zap.NewNop())

	calls := 0
	m.Add("counter", func(ctx context.Context) error {
		calls++
		return nil
	})

	m.Shutdown()
	m.Shutdown()

	require.Equal(t, 1, calls)
}

func TestManager_Shutdown_ContextHasTimeout(t *testing.T) {
	m := New(50*time.Millisecond, zap.NewNop())

	var deadlineSet bool
	m.Add("deadline", func(ctx context.Context) error {
		_, deadlineSet = ctx.Deadline()
		return nil
	})

	m.Shutdown()
	require.True(t, deadlineSet)
}
