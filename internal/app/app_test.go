package app

import (
	"context"
	"testing"
	"time"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.LogMode = "test"
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.MetricsEnabled = false
	return cfg
}

func TestAppRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a, err := New(ctx, testConfig())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("app did not stop")
	}
	a.Close()
}

func TestAppRunReportsListenFailure(t *testing.T) {
	cfg := testConfig()
	cfg.HTTPAddr = "256.0.0.1:1"
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := a.Run(context.Background()); err == nil {
		t.Fatalf("expected listen error")
	}
}

func TestNewRejectsBadStore(t *testing.T) {
	cfg := testConfig()
	cfg.StoreMode = StoreMode("mongo")
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatalf("expected bootstrap error")
	}
}
