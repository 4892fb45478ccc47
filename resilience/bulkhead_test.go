package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBulkhead_LimitsConcurrency(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{Name: "runs", MaxConcurrent: 2})

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := b.Execute(context.Background(), func() error {
				n := running.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				running.Add(-1)
				return nil
			})
			if err != nil {
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()

	if peak.Load() > 2 {
		t.Errorf("expected at most 2 concurrent calls, saw %d", peak.Load())
	}
	if b.InUse() != 0 || b.Available() != 2 {
		t.Errorf("expected all slots released, in use %d", b.InUse())
	}
}

func TestBulkhead_FailFastWhenFull(t *testing.T) {
	var rejected error
	b := NewBulkhead(BulkheadConfig{
		Name:          "runs",
		MaxConcurrent: 1,
		MaxWait:       -1,
		OnReject:      func(_ string, err error) { rejected = err },
	})
	release, err := b.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	err = b.Execute(context.Background(), func() error {
		t.Error("fn must not run")
		return nil
	})
	if !errors.Is(err, ErrBulkheadFull) {
		t.Errorf("expected ErrBulkheadFull, got %v", err)
	}
	if !errors.Is(rejected, ErrBulkheadFull) {
		t.Errorf("expected OnReject with ErrBulkheadFull, got %v", rejected)
	}
}

func TestBulkhead_BoundedWait(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1, MaxWait: 20 * time.Millisecond})
	release, _ := b.Acquire(context.Background())
	defer release()

	start := time.Now()
	_, err := b.Acquire(context.Background())
	if !errors.Is(err, ErrBulkheadTimeout) {
		t.Errorf("expected ErrBulkheadTimeout, got %v", err)
	}
	if time.Since(start) < 15*time.Millisecond {
		t.Error("expected to wait before timing out")
	}
}

func TestBulkhead_WaitsUntilContextDone(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1})
	release, _ := b.Acquire(context.Background())
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := b.Acquire(ctx)
		errc <- err
	}()

	deadline := time.Now().Add(time.Second)
	for b.Waiting() != 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if b.Waiting() != 1 {
		t.Fatalf("expected one waiter, got %d", b.Waiting())
	}
	cancel()

	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestBulkhead_WaiterGetsReleasedSlot(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1})
	release, _ := b.Acquire(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- b.Execute(context.Background(), func() error { return nil })
	}()
	time.Sleep(10 * time.Millisecond)
	release()
	release() // second call is a no-op

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the slot")
	}
	if b.InUse() != 0 {
		t.Errorf("expected no slots in use, got %d", b.InUse())
	}
}
