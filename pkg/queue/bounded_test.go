package queue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBoundedFIFO(t *testing.T) {
	q := NewWithCapacity[int](10)
	for i := 0; i < 10; i++ {
		require.NoError(t, q.Push(i))
	}
	for i := 0; i < 10; i++ {
		v, err := q.Pop()
		require.NoError(t, err)
		require.Equal(t, i, v)
	}
	require.True(t, q.IsEmpty())
}

func TestBoundedOverflow(t *testing.T) {
	q := New[string](4).Named("test")
	require.Equal(t, 3, q.Capacity())
	require.NoError(t, q.Push("A"))
	require.NoError(t, q.Push("B"))
	require.NoError(t, q.Push("C"))
	require.True(t, q.IsFull())

	require.ErrorIs(t, q.Push("D"), ErrFull)
	require.Equal(t, 3, q.Size())

	v, err := q.Pop()
	require.NoError(t, err)
	require.Equal(t, "A", v)

	require.NoError(t, q.Push("D"))
	require.Equal(t, 3, q.Size())

	var got []string
	q.Each(func(s string) bool {
		got = append(got, s)
		return true
	})
	require.Equal(t, []string{"B", "C", "D"}, got)
}

func TestBoundedUnderflow(t *testing.T) {
	q := New[string](2)
	v, err := q.Pop()
	require.ErrorIs(t, err, ErrEmpty)
	require.Empty(t, v)
	v, err = q.Peek()
	require.ErrorIs(t, err, ErrEmpty)
	require.Empty(t, v)

	require.NoError(t, q.Push("x"))
	v, err = q.Peek()
	require.NoError(t, err)
	require.Equal(t, "x", v)
	require.Equal(t, 1, q.Size())
}

func TestBoundedSize(t *testing.T) {
	testCases := []struct {
		name   string
		slots  int
		pushes int
		pops   int
	}{
		{"empty", 5, 0, 0},
		{"push only", 5, 3, 0},
		{"balanced", 5, 4, 4},
		{"wrapped", 3, 2, 1},
		{"minimum", 2, 1, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			q := New[int](tc.slots)
			// rotate head/tail away from zero
			for i := 0; i < tc.slots+1; i++ {
				require.NoError(t, q.Push(i))
				_, err := q.Pop()
				require.NoError(t, err)
			}
			for i := 0; i < tc.pushes; i++ {
				require.NoError(t, q.Push(i))
			}
			for i := 0; i < tc.pops; i++ {
				_, err := q.Pop()
				require.NoError(t, err)
			}
			require.Equal(t, tc.pushes-tc.pops, q.Size())
			require.False(t, q.IsEmpty() && q.IsFull())
		})
	}
}

func TestBoundedReset(t *testing.T) {
	q := NewWithCapacity[*int](2)
	v := 1
	require.NoError(t, q.Push(&v))
	require.NoError(t, q.Push(&v))
	q.Reset()
	require.True(t, q.IsEmpty())
	require.Equal(t, 0, q.Size())
	for _, p := range q.slots {
		require.Nil(t, p)
	}
}
