package client_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/AlexCasual/packio/client"
	"github.com/AlexCasual/packio/codec"
	"github.com/AlexCasual/packio/dispatcher"
	"github.com/AlexCasual/packio/server"
)

func startServer(t *testing.T, d *dispatcher.Dispatcher) string {
	t.Helper()
	s := server.New(d)
	ctx, cancel := context.WithCancel(context.Background())
	go s.Serve(ctx, "tcp", "127.0.0.1:0")

	deadline := time.After(time.Second)
	for s.Addr() == nil {
		select {
		case <-deadline:
			t.Fatal("server did not start listening")
		case <-time.After(time.Millisecond):
		}
	}
	t.Cleanup(func() {
		cancel()
		s.Close()
	})
	return s.Addr().String()
}

func TestCallAndNotify(t *testing.T) {
	d := dispatcher.New()
	d.Add("add", func(a, b int) int { return a + b })
	notified := make(chan int, 1)
	d.Add("sink", func(v int) { notified <- v })

	addr := startServer(t, d)
	c, err := client.Dial("tcp", addr, codec.TypePacked)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	result, err := c.CallSync("add", []any{int64(2), int64(3)}, time.Second)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result != int64(5) {
		t.Fatalf("result = %v (%T), want 5", result, result)
	}

	if err := c.NotifySync("sink", []any{int64(7)}, time.Second); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	select {
	case v := <-notified:
		if v != 7 {
			t.Fatalf("notified with %v, want 7", v)
		}
	case <-time.After(time.Second):
		t.Fatal("notification never arrived")
	}
}

func TestCallUnregisteredMethodReturnsError(t *testing.T) {
	d := dispatcher.New()

	addr := startServer(t, d)
	c, err := client.Dial("tcp", addr, codec.TypePacked, client.WithTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	_, callErr := c.CallSync("missing-entirely", nil, time.Second)
	if callErr == nil {
		t.Fatal("expected an error calling an unregistered method")
	}
}

func TestConcurrentCalls(t *testing.T) {
	d := dispatcher.New()
	d.Add("double", func(v int) int { return v * 2 })

	addr := startServer(t, d)
	c, err := client.Dial("tcp", addr, codec.TypePacked)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	const n = 20
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			result, err := c.CallSync("double", []any{int64(i)}, time.Second)
			if err != nil {
				errs <- err
				return
			}
			if result != int64(i*2) {
				errs <- fmt.Errorf("double(%d) = %v, want %d", i, result, i*2)
				return
			}
			errs <- nil
		}()
	}
	for i := 0; i < n; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("concurrent call failed: %v", err)
		}
	}
}
