package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterMaxFailures(t *testing.T) {
	cb := New(Settings{Name: "test", MaxFailures: 2, Timeout: time.Minute})
	boom := errors.New("boom")

	require.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
	require.ErrorIs(t, cb.Execute(func() error { return boom }), boom)

	err := cb.Execute(func() error { return nil })
	var open *ErrOpen
	require.ErrorAs(t, err, &open)
	assert.Equal(t, "test", open.Name)
}

func TestBreakerRecoversAfterTimeout(t *testing.T) {
	cb := New(Settings{Name: "test", MaxFailures: 1, Timeout: 10 * time.Millisecond})
	require.Error(t, cb.Execute(func() error { return errors.New("boom") }))

	time.Sleep(20 * time.Millisecond)

	called := false
	require.NoError(t, cb.Execute(func() error { called = true; return nil }))
	assert.True(t, called, "the probe call runs after the timeout")

	require.NoError(t, cb.Execute(func() error { return nil }))
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	cb := New(Settings{Name: "test", MaxFailures: 2, Timeout: time.Minute})

	require.Error(t, cb.Execute(func() error { return errors.New("boom") }))
	require.NoError(t, cb.Execute(func() error { return nil }))
	require.Error(t, cb.Execute(func() error { return errors.New("boom") }))

	// Still closed: the success in between reset the streak.
	require.NoError(t, cb.Execute(func() error { return nil }))
}
