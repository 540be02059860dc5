package dialog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	p := Prompt{User: 100, Bundle: "viewer"}

	var cancelled int
	require.NoError(t, r.Show(p, func() { cancelled++ }))
	assert.True(t, r.IsOpen(p))
	assert.Equal(t, 1, r.Shown())

	assert.False(t, r.Dismiss(Prompt{User: 100, Bundle: "other"}))
	assert.True(t, r.Dismiss(p))
	assert.Equal(t, 1, cancelled)
	assert.False(t, r.IsOpen(p))

	// A second dismiss finds nothing to cancel.
	assert.False(t, r.Dismiss(p))
	assert.Equal(t, 1, cancelled)
}

func TestRecorder_Close(t *testing.T) {
	r := NewRecorder()
	p := Prompt{User: 100, Bundle: "viewer"}
	require.NoError(t, r.Show(p, func() { t.Fatal("closed prompt must not be cancelled") }))
	r.Close(p)
	assert.False(t, r.IsOpen(p))
	assert.False(t, r.Dismiss(p))
}

func TestHeadless(t *testing.T) {
	var h Dialog = Headless{}
	require.NoError(t, h.Show(Prompt{User: 1}, func() { t.Fatal("headless never cancels") }))
	h.Close(Prompt{User: 1})
}
