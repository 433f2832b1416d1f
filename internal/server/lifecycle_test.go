package server_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bidvictrix/skillforge/internal/server"
)

func TestLifecycle_RunStopsOnContextCancel(t *testing.T) {
	lc := server.NewLifecycle(zap.NewNop())

	var started, stopped atomic.Bool
	block := make(chan struct{})
	lc.Add("blocker", &server.FuncService{
		StartFn: func() error {
			started.Store(true)
			<-block
			return nil
		},
		StopFn: func() {
			stopped.Store(true)
			close(block)
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- lc.Run(ctx) }()

	require.Eventually(t, started.Load, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("lifecycle did not shut down after context cancel")
	}
	assert.True(t, stopped.Load(), "service must be stopped on shutdown")
}

func TestLifecycle_ServiceFailureTriggersShutdown(t *testing.T) {
	lc := server.NewLifecycle(zap.NewNop())

	var healthyStopped atomic.Bool
	block := make(chan struct{})
	lc.Add("healthy", &server.FuncService{
		StartFn: func() error { <-block; return nil },
		StopFn: func() {
			healthyStopped.Store(true)
			close(block)
		},
	})
	lc.Add("broken", &server.FuncService{
		StartFn: func() error { return assert.AnError },
		StopFn:  func() {},
	})

	done := make(chan error, 1)
	go func() { done <- lc.Run(context.Background()) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lifecycle did not shut down after service failure")
	}
	assert.True(t, healthyStopped.Load(), "healthy service must be stopped when a sibling fails")
}
