package session

import (
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestResolve_RecoversFromAddress(t *testing.T) {
	r, err := New(zap.NewNop(), "http://localhost:3000/?session_id=abc-123")
	require.NoError(t, err)

	assert.Equal(t, "abc-123", r.Resolve())
	assert.Equal(t, "abc-123", r.Resolve())
}

func TestResolve_GeneratesAndEmbeds(t *testing.T) {
	r, err := New(zap.NewNop(), "http://localhost:3000/")
	require.NoError(t, err)

	id := r.Resolve()
	_, parseErr := uuid.Parse(id)
	assert.NoError(t, parseErr)

	addr, err := url.Parse(r.Address())
	require.NoError(t, err)
	assert.Equal(t, id, addr.Query().Get("session_id"))
}

func TestResolve_Idempotent(t *testing.T) {
	r, err := New(zap.NewNop(), "http://localhost:3000/")
	require.NoError(t, err)

	first := r.Resolve()
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, r.Resolve())
	}
}

func TestResolve_ReloadRoundTrip(t *testing.T) {
	r1, err := New(zap.NewNop(), "http://localhost:3000/")
	require.NoError(t, err)
	id := r1.Resolve()

	// A reload hands the embedded address to a fresh registry.
	r2, err := New(zap.NewNop(), r1.Address())
	require.NoError(t, err)
	assert.Equal(t, id, r2.Resolve())
	assert.Equal(t, r1.Address(), r2.Address())
}

func TestResolve_PreservesOtherQueryParams(t *testing.T) {
	r, err := New(zap.NewNop(), "http://localhost:3000/?theme=dark")
	require.NoError(t, err)
	id := r.Resolve()

	addr, err := url.Parse(r.Address())
	require.NoError(t, err)
	assert.Equal(t, "dark", addr.Query().Get("theme"))
	assert.Equal(t, id, addr.Query().Get("session_id"))
}

func TestNew_InvalidAddress(t *testing.T) {
	_, err := New(zap.NewNop(), "http://[::1")
	assert.Error(t, err)
}
