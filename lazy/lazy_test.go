package lazy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOnce(t *testing.T) {
	var loads, unloads int
	l := NewLoader(func() error {
		loads++
		return nil
	}, func() {
		unloads++
	})

	require.NoError(t, l.LoadAndLock())
	l.Unlock()
	require.NoError(t, l.LoadAndLock())
	l.Unlock()
	assert.Equal(t, 1, loads)

	l.Unload()
	assert.Equal(t, 1, unloads)

	// reloads after an Unload
	require.NoError(t, l.LoadAndLock())
	l.Unlock()
	assert.Equal(t, 2, loads)
}

func TestLoadError(t *testing.T) {
	l := NewLoader(func() error {
		return assert.AnError
	}, func() {})

	require.Error(t, l.LoadAndLock())
	// error is sticky until Unload
	require.Error(t, l.LoadAndLock())
}
