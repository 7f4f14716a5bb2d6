package mockgen

import (
	"context"
	"testing"
	"time"

	"github.com/crmkit/genwatch/internal/common/cnst"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestManager_AttachCreatesSession(t *testing.T) {
	m := NewManager(zap.NewNop(), time.Second)

	assert.False(t, m.Exists("s1"))
	m.Attach("s1", nil)
	assert.True(t, m.Exists("s1"))

	st, ok := m.Status("s1")
	require.True(t, ok)
	assert.False(t, st.GenerationActive)
	assert.False(t, st.GenerationPaused)
}

func TestManager_DetachIdleSessionRemovesIt(t *testing.T) {
	m := NewManager(zap.NewNop(), time.Second)
	m.Attach("s1", nil)

	m.Detach("s1", nil)
	assert.False(t, m.Exists("s1"))
}

func TestManager_StartGeneration(t *testing.T) {
	m := NewManager(zap.NewNop(), time.Second)

	assert.ErrorIs(t, m.StartGeneration("nope"), cnst.ErrSessionNotFound)

	m.Attach("s1", nil)
	require.NoError(t, m.StartGeneration("s1"))
	assert.ErrorIs(t, m.StartGeneration("s1"), cnst.ErrGenerationActive)

	st, _ := m.Status("s1")
	assert.True(t, st.GenerationActive)

	m.FinishGeneration("s1")
	st, _ = m.Status("s1")
	assert.False(t, st.GenerationActive)
	require.NoError(t, m.StartGeneration("s1"))
}

func TestManager_DetachPausesActiveJob(t *testing.T) {
	m := NewManager(zap.NewNop(), time.Second)
	m.Attach("s1", nil)
	require.NoError(t, m.StartGeneration("s1"))

	m.Detach("s1", nil)
	assert.True(t, m.Exists("s1"))
	st, _ := m.Status("s1")
	assert.True(t, st.GenerationActive)
	assert.True(t, st.GenerationPaused)

	m.Attach("s1", nil)
	st, _ = m.Status("s1")
	assert.True(t, st.GenerationActive)
	assert.False(t, st.GenerationPaused)
}

func TestManager_ShouldAbort(t *testing.T) {
	m := NewManager(zap.NewNop(), 20*time.Millisecond)

	assert.True(t, m.ShouldAbort("unknown"))

	m.Attach("s1", nil)
	assert.False(t, m.ShouldAbort("s1"))

	require.NoError(t, m.StartGeneration("s1"))
	m.Detach("s1", nil)
	assert.False(t, m.ShouldAbort("s1"))

	time.Sleep(40 * time.Millisecond)
	assert.True(t, m.ShouldAbort("s1"))
}

func TestManager_WaitResume(t *testing.T) {
	m := NewManager(zap.NewNop(), time.Second)
	m.Attach("s1", nil)

	// Not paused: returns immediately.
	require.NoError(t, m.WaitResume(context.Background(), "s1"))

	require.NoError(t, m.StartGeneration("s1"))
	m.Detach("s1", nil)

	done := make(chan error, 1)
	go func() { done <- m.WaitResume(context.Background(), "s1") }()

	time.Sleep(50 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("WaitResume returned while still paused")
	default:
	}

	m.Attach("s1", nil)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("WaitResume did not observe the resume")
	}
}

func TestManager_WaitResumeAbortsAfterGrace(t *testing.T) {
	m := NewManager(zap.NewNop(), 30*time.Millisecond)
	m.Attach("s1", nil)
	require.NoError(t, m.StartGeneration("s1"))
	m.Detach("s1", nil)

	err := m.WaitResume(context.Background(), "s1")
	assert.ErrorIs(t, err, cnst.ErrSessionNotFound)
}

func TestManager_WaitResumeHonorsContext(t *testing.T) {
	m := NewManager(zap.NewNop(), time.Minute)
	m.Attach("s1", nil)
	require.NoError(t, m.StartGeneration("s1"))
	m.Detach("s1", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := m.WaitResume(ctx, "s1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestManager_SendWithoutConnection(t *testing.T) {
	m := NewManager(zap.NewNop(), time.Second)
	m.Attach("s1", nil)

	assert.ErrorIs(t, m.Send("s1", nil), cnst.ErrSessionNotFound)
	assert.ErrorIs(t, m.SendText("s1", "pong"), cnst.ErrSessionNotFound)
}

func TestManager_Info(t *testing.T) {
	m := NewManager(zap.NewNop(), time.Second)
	m.Attach("s1", nil)
	m.Attach("s2", nil)
	require.NoError(t, m.StartGeneration("s2"))

	sessions, connected, active := m.Info()
	assert.Equal(t, 2, sessions)
	assert.Equal(t, 0, connected)
	assert.Equal(t, 1, active)
}
