package controllers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestRunPeriodicTask(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var runs atomic.Int32

	done := make(chan struct{})
	go func() {
		RunPeriodicTask(ctx, PeriodicTask{
			Name:           "count",
			Interval:       10 * time.Millisecond,
			RunImmediately: true,
			Task: func() error {
				if runs.Add(1) == 2 {
					return errors.New("second run fails")
				}
				return nil
			},
		}, zap.NewNop().Sugar())
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for runs.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("task ran %d times", runs.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("RunPeriodicTask did not return after cancel")
	}
}

func TestValidateRequiredFields(t *testing.T) {
	if err := ValidateRequiredFields(map[string]string{"host": "dz"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateRequiredFields(map[string]string{"host": ""}); err == nil {
		t.Error("expected an error for an empty field")
	}
}
