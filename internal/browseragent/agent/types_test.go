package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExecutionContext_PauseResumeIdempotent(t *testing.T) {
	ctx := NewExecutionContext(context.Background(), "t1")

	ctx.Pause()
	ctx.Pause()
	assert.True(t, ctx.IsPaused())

	ctx.Resume()
	ctx.Resume()
	assert.False(t, ctx.IsPaused())
}

func TestExecutionContext_CancelIdempotent(t *testing.T) {
	ctx := NewExecutionContext(context.Background(), "t2")

	ctx.Cancel(0)
	ctx.Cancel(0)

	assert.True(t, ctx.IsStopped())
	select {
	case <-ctx.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("context was not cancelled")
	}
}

func TestExecutionContext_CancelWithGraceDelaysContextCancellation(t *testing.T) {
	ctx := NewExecutionContext(context.Background(), "t3")

	ctx.Cancel(50 * time.Millisecond)

	assert.True(t, ctx.IsStopped())
	select {
	case <-ctx.Context().Done():
		t.Fatal("context cancelled before grace period elapsed")
	case <-time.After(10 * time.Millisecond):
	}

	select {
	case <-ctx.Context().Done():
	case <-time.After(200 * time.Millisecond):
		t.Fatal("context was not cancelled after grace period")
	}
}

func TestExecutionContext_WaitIfPausedUnblocksOnResume(t *testing.T) {
	ctx := NewExecutionContext(context.Background(), "t4")
	ctx.Pause()

	done := make(chan struct{})
	go func() {
		ctx.WaitIfPaused()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("WaitIfPaused returned before Resume")
	case <-time.After(20 * time.Millisecond):
	}

	ctx.Resume()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitIfPaused did not unblock after Resume")
	}
}

func TestExecutionContext_WaitIfPausedUnblocksOnCancel(t *testing.T) {
	ctx := NewExecutionContext(context.Background(), "t5")
	ctx.Pause()

	done := make(chan struct{})
	go func() {
		ctx.WaitIfPaused()
		close(done)
	}()

	ctx.Cancel(0)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitIfPaused did not unblock after Cancel")
	}
}

func TestExecutionContext_StepCounterMonotonic(t *testing.T) {
	ctx := NewExecutionContext(context.Background(), "t6")

	assert.Equal(t, 0, ctx.Step())
	assert.Equal(t, 1, ctx.AdvanceStep())
	assert.Equal(t, 2, ctx.AdvanceStep())
	assert.Equal(t, 2, ctx.Step())
}

func TestExecutionContext_FailureCountersResetAndRecord(t *testing.T) {
	ctx := NewExecutionContext(context.Background(), "t7")

	assert.Equal(t, 1, ctx.RecordFailure())
	assert.Equal(t, 2, ctx.RecordFailure())
	ctx.ResetFailures()
	assert.Equal(t, 1, ctx.RecordFailure())
}
