package sched

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestEvery_FiresOnPeriod(t *testing.T) {
	s := New(20, zerolog.Nop())
	var fired []uint64
	s.Every(3, func() { fired = append(fired, s.Tick()) })

	for i := 0; i < 10; i++ {
		s.Step()
	}
	require.Equal(t, []uint64{1, 4, 7, 10}, fired)
}

func TestCancel_DuringStep(t *testing.T) {
	s := New(20, zerolog.Nop())
	var second TaskID
	calls := 0
	s.Every(1, func() { s.Cancel(second) })
	second = s.Every(1, func() { calls++ })

	s.Step()
	require.Equal(t, 0, calls)
	require.False(t, s.Scheduled(second))
	require.False(t, s.Cancel(second))
}

func TestEvery_AddedDuringStepRunsNextTick(t *testing.T) {
	s := New(20, zerolog.Nop())
	var inner []uint64
	added := false
	s.Every(1, func() {
		if added {
			return
		}
		added = true
		s.Every(1, func() { inner = append(inner, s.Tick()) })
	})
	s.Step()
	require.Empty(t, inner)
	s.Step()
	require.Equal(t, []uint64{2}, inner)
}

func TestPost_FromOtherGoroutines(t *testing.T) {
	s := New(20, zerolog.Nop())
	var wg sync.WaitGroup
	n := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Post(func() { n++ })
		}()
	}
	wg.Wait()
	s.Step()
	require.Equal(t, 16, n)
}

func TestRun_StopsOnCancel(t *testing.T) {
	s := New(100, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	ran := make(chan struct{})
	s.Post(func() { close(ran) })
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatalf("posted callback never ran")
	}
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestTicks(t *testing.T) {
	s := New(20, zerolog.Nop())
	require.Equal(t, 20, s.Ticks(time.Second))
	require.Equal(t, 1, s.Ticks(time.Millisecond))
	require.Equal(t, 600, s.Ticks(30*time.Second))
}

func TestStep_PanickingTaskIsCancelled(t *testing.T) {
	var buf bytes.Buffer
	s := New(20, zerolog.New(&buf))
	bad := s.Every(1, func() { panic("arena a broke") })
	calls := 0
	s.Every(1, func() { calls++ })
	s.Post(func() { panic("posted") })

	require.NotPanics(t, s.Step)
	require.Equal(t, 1, calls)
	require.False(t, s.Scheduled(bad))
	require.Equal(t, 2, strings.Count(buf.String(), "task panicked"))
	require.Contains(t, buf.String(), `"task":1`)
	require.Contains(t, buf.String(), "arena a broke")

	s.Step()
	require.Equal(t, 2, calls)
	require.Equal(t, 2, strings.Count(buf.String(), "task panicked"))
}
