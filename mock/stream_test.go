package mock_test

import (
	"errors"
	"io"
	"testing"

	"github.com/fwojciec/parley"
	"github.com/fwojciec/parley/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStream_Next(t *testing.T) {
	t.Parallel()
	t.Run("delegates to NextFn", func(t *testing.T) {
		t.Parallel()
		s := mock.Stream{
			NextFn: func() (string, error) {
				return "hello", nil
			},
		}
		got, err := s.Next()
		require.NoError(t, err)
		assert.Equal(t, "hello", got)
	})

	t.Run("returns EOF", func(t *testing.T) {
		t.Parallel()
		s := mock.Stream{
			NextFn: func() (string, error) {
				return "", io.EOF
			},
		}
		_, err := s.Next()
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("panics when NextFn not set", func(t *testing.T) {
		t.Parallel()
		s := mock.Stream{}
		assert.Panics(t, func() {
			_, _ = s.Next()
		})
	})
}

func TestStream_State(t *testing.T) {
	t.Parallel()
	t.Run("delegates to StateFn", func(t *testing.T) {
		t.Parallel()
		s := mock.Stream{
			StateFn: func() parley.StreamState {
				return parley.StreamStateComplete
			},
		}
		assert.Equal(t, parley.StreamStateComplete, s.State())
	})

	t.Run("returns StreamStateNew when StateFn not set", func(t *testing.T) {
		t.Parallel()
		s := mock.Stream{}
		assert.Equal(t, parley.StreamStateNew, s.State())
	})
}

func TestStream_Close(t *testing.T) {
	t.Parallel()
	t.Run("delegates to CloseFn", func(t *testing.T) {
		t.Parallel()
		called := false
		s := mock.Stream{
			CloseFn: func() error {
				called = true
				return nil
			},
		}
		err := s.Close()
		require.NoError(t, err)
		assert.True(t, called)
	})

	t.Run("returns error", func(t *testing.T) {
		t.Parallel()
		wantErr := errors.New("close error")
		s := mock.Stream{
			CloseFn: func() error {
				return wantErr
			},
		}
		err := s.Close()
		assert.ErrorIs(t, err, wantErr)
	})

	t.Run("returns nil when CloseFn not set", func(t *testing.T) {
		t.Parallel()
		s := mock.Stream{}
		assert.NoError(t, s.Close())
	})
}

func TestDeltaStream(t *testing.T) {
	t.Parallel()
	t.Run("yields deltas then EOF", func(t *testing.T) {
		t.Parallel()
		s := mock.DeltaStream(nil, "a", "b")
		for _, want := range []string{"a", "b"} {
			got, err := s.Next()
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
		_, err := s.Next()
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("yields deltas then error", func(t *testing.T) {
		t.Parallel()
		wantErr := errors.New("reset by peer")
		s := mock.DeltaStream(wantErr, "a")
		_, err := s.Next()
		require.NoError(t, err)
		_, err = s.Next()
		assert.ErrorIs(t, err, wantErr)
	})

	t.Run("closed stream stops yielding", func(t *testing.T) {
		t.Parallel()
		s := mock.DeltaStream(nil, "a", "b")
		require.NoError(t, s.Close())
		_, err := s.Next()
		assert.ErrorIs(t, err, parley.ErrStreamClosed)
	})
}
