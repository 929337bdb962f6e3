package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCreateThenGetReturnsNegotiatedRow(t *testing.T) {
	s := New(time.Minute)
	id, err := s.Create("u1", "alice", []byte("salt"), 2, 0, nil)
	require.NoError(t, err)

	row, ok := s.Get(id, time.Now())
	require.True(t, ok)
	require.Equal(t, "alice", row.Username)
	require.Equal(t, Negotiated, row.State)
}

func TestGetOnUnknownIDFails(t *testing.T) {
	s := New(time.Minute)
	_, ok := s.Get(12345, time.Now())
	require.False(t, ok)
}

func TestGetAfterTTLExpiryFails(t *testing.T) {
	s := New(10 * time.Millisecond)
	id, err := s.Create("u1", "alice", []byte("salt"), 2, 0, nil)
	require.NoError(t, err)

	_, ok := s.Get(id, time.Now().Add(time.Second))
	require.False(t, ok)
}

func TestSetEphemeralAtMostOncePerSession(t *testing.T) {
	s := New(time.Minute)
	id, err := s.Create("u1", "alice", []byte("salt"), 2, 0, nil)
	require.NoError(t, err)

	now := time.Now()
	var wg sync.WaitGroup
	successes := make([]bool, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			successes[i] = s.SetEphemeral(id, []byte("A"), []byte("B"), []byte("b"), []byte("m"), []byte("hamk"), now)
		}(i)
	}
	wg.Wait()

	successCount := 0
	for _, ok := range successes {
		if ok {
			successCount++
		}
	}
	require.Equal(t, 1, successCount)

	row, ok := s.Get(id, now)
	require.True(t, ok)
	require.Equal(t, EphemeralSent, row.State)
}

func TestSetEphemeralFailsOnUnknownOrExpiredOrWrongState(t *testing.T) {
	s := New(time.Minute)
	now := time.Now()

	require.False(t, s.SetEphemeral(999, nil, nil, nil, nil, nil, now))

	id, err := s.Create("u1", "alice", []byte("salt"), 2, 0, nil)
	require.NoError(t, err)
	require.True(t, s.SetEphemeral(id, []byte("A"), []byte("B"), []byte("b"), []byte("m"), []byte("hamk"), now))
	require.False(t, s.SetEphemeral(id, []byte("A2"), []byte("B2"), []byte("b2"), []byte("m2"), []byte("hamk2"), now))
}

func TestMarkProvenRequiresEphemeralSent(t *testing.T) {
	s := New(time.Minute)
	id, err := s.Create("u1", "alice", []byte("salt"), 2, 0, nil)
	require.NoError(t, err)

	require.False(t, s.MarkProven(id))

	now := time.Now()
	require.True(t, s.SetEphemeral(id, []byte("A"), []byte("B"), []byte("b"), []byte("m"), []byte("hamk"), now))
	require.True(t, s.MarkProven(id))
	require.False(t, s.MarkProven(id))

	row, ok := s.Get(id, now)
	require.True(t, ok)
	require.Equal(t, Proven, row.State)
}

func TestKillIsIdempotentAndDisablesFurtherUse(t *testing.T) {
	s := New(time.Minute)
	id, err := s.Create("u1", "alice", []byte("salt"), 2, 0, nil)
	require.NoError(t, err)

	s.Kill(id)
	s.Kill(id)

	_, ok := s.Get(id, time.Now())
	require.False(t, ok)
	require.False(t, s.SetEphemeral(id, []byte("A"), []byte("B"), []byte("b"), []byte("m"), []byte("hamk"), time.Now()))
}

func TestSweepRemovesExpiredAndDeadSessions(t *testing.T) {
	s := New(10 * time.Millisecond)
	id1, err := s.Create("u1", "alice", []byte("s1"), 2, 0, nil)
	require.NoError(t, err)
	id2, err := s.Create("u2", "bob", []byte("s2"), 2, 0, nil)
	require.NoError(t, err)
	s.Kill(id2)

	require.Equal(t, 2, s.Len())
	removed := s.Sweep(time.Now().Add(time.Second))
	require.Equal(t, 2, removed)
	require.Equal(t, 0, s.Len())
	_ = id1
}

func TestExpiryTimerInvokesKillCallback(t *testing.T) {
	s := New(20 * time.Millisecond)
	done := make(chan uint32, 1)

	id, err := s.Create("u1", "alice", []byte("salt"), 2, 0, func(killedID uint32) {
		done <- killedID
	})
	require.NoError(t, err)

	select {
	case killedID := <-done:
		require.Equal(t, id, killedID)
	case <-time.After(time.Second):
		t.Fatal("expiry callback never fired")
	}

	_, ok := s.Get(id, time.Now())
	require.False(t, ok)
}
