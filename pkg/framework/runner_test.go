package framework

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestRunnerWait(t *testing.T) {
	e1, e2 := errors.New("e1"), errors.New("e2")
	r := NewRunner().Go(
		RunFunc(func(context.Context) error { return e1 }),
		NamedRun("second", RunFunc(func(context.Context) error { return e2 })),
		RunFunc(func(context.Context) error { return context.Canceled }),
		RunFunc(func(context.Context) error { return nil }),
	)
	err := r.Wait()
	require.Error(t, err)
	require.ErrorIs(t, err, e1)
	require.ErrorIs(t, err, e2)
	var agg *AggregatedError
	require.ErrorAs(t, err, &agg)
	require.Len(t, agg.Errors, 2)
}

func TestRunnerWaitNoError(t *testing.T) {
	require.NoError(t, NewRunner().Wait())
	require.NoError(t, NewRunner().Go(RunFunc(func(context.Context) error { return nil })).Wait())
}

func TestRunWithContextCloser(t *testing.T) {
	t.Run("canceled", func(t *testing.T) {
		unblock := make(chan struct{})
		var closed bool
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := RunWithContextCloser(ctx, closerFunc(func() error {
			closed = true
			close(unblock)
			return nil
		}), func() error {
			<-unblock
			return errors.New("closed")
		})
		require.ErrorIs(t, err, context.Canceled)
		require.True(t, closed)
	})
	t.Run("returned", func(t *testing.T) {
		var closed bool
		failure := errors.New("failed")
		err := RunWithContextCloser(context.Background(), closerFunc(func() error {
			closed = true
			return nil
		}), func() error { return failure })
		require.ErrorIs(t, err, failure)
		require.True(t, closed)
	})
}

func TestAggregatedError(t *testing.T) {
	var errs AggregatedError
	require.NoError(t, errs.Add(nil, context.Canceled).Aggregate())
	errs.Add(errors.New("a"))
	require.Equal(t, "a", errs.Error())
	errs.Add(errors.New("b"))
	require.Equal(t, "multiple errors:\na\nb", errs.Error())
}
