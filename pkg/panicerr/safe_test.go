package panicerr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCall(t *testing.T) {
	assert.NoError(t, Call(func() {}))

	err := Call(func() { panic("observer exploded") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "observer exploded")
}

func TestSafeContext(t *testing.T) {
	sentinel := errors.New("boom")

	fn := SafeContext(func(context.Context) error { return sentinel })
	assert.ErrorIs(t, fn(context.Background()), sentinel)

	fn = SafeContext(func(context.Context) error { return nil })
	assert.NoError(t, fn(context.Background()))

	fn = SafeContext(func(context.Context) error { panic("listener crashed") })
	err := fn(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listener crashed")
}
