package result

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func TestSuccessAndFailure(t *testing.T) {
	t.Parallel()

	ok := Success(42)
	if !ok.IsSuccess() || ok.IsFailure() {
		t.Fatalf("expected success, got failure %v", ok.Err())
	}
	if v, present := ok.Value(); !present || v != 42 {
		t.Errorf("Value() = %d, %v; want 42, true", v, present)
	}

	bad := Failure[int](errBoom)
	if bad.IsSuccess() {
		t.Fatal("expected failure")
	}
	if v, err := bad.Unwrap(); err != errBoom || v != 0 {
		t.Errorf("Unwrap() = %d, %v; want 0, errBoom", v, err)
	}

	if Failure[string](nil).Err() == nil {
		t.Error("Failure(nil) must still carry an error")
	}
}

func TestFromOptional(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   string
		ok      bool
		wantErr bool
	}{
		{name: "present", value: "abc", ok: true},
		{name: "present empty string", value: "", ok: true},
		{name: "absent", ok: false, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := FromOptional(tt.value, tt.ok, errBoom)
			v, err := r.Unwrap()
			if tt.wantErr {
				if err != errBoom {
					t.Fatalf("expected fallback error, got %v", err)
				}
				return
			}
			if err != nil || v != tt.value {
				t.Fatalf("Unwrap() = %q, %v; want %q, nil", v, err, tt.value)
			}
		})
	}

	var nilPtr *int
	if FromPointer(nilPtr, errBoom).Err() != errBoom {
		t.Error("FromPointer(nil) should fail with the fallback")
	}
	n := 3
	if p, err := FromPointer(&n, errBoom).Unwrap(); err != nil || *p != 3 {
		t.Errorf("FromPointer(&3) = %v, %v", p, err)
	}
}

func TestMapPassesFailureThrough(t *testing.T) {
	t.Parallel()

	called := false
	double := func(v int) int {
		called = true
		return v * 2
	}

	if v, _ := Map(Success(21), double).Value(); v != 42 {
		t.Errorf("Map(Success(21)) = %d, want 42", v)
	}

	called = false
	r := Map(Failure[int](errBoom), double)
	if called {
		t.Error("Map must not call f on a failure")
	}
	if r.Err() != errBoom {
		t.Errorf("Map failure = %v, want errBoom", r.Err())
	}
}

func TestBindShortCircuits(t *testing.T) {
	t.Parallel()

	parse := func(s string) Result[int] {
		n, err := strconv.Atoi(s)
		return From(n, err)
	}
	var stages int
	count := func(n int) Result[int] {
		stages++
		return Success(n + 1)
	}

	got := Bind(Bind(Success("41"), parse), count)
	if v, err := got.Unwrap(); err != nil || v != 42 {
		t.Fatalf("chain = %d, %v; want 42", v, err)
	}
	if stages != 1 {
		t.Fatalf("stages = %d, want 1", stages)
	}

	stages = 0
	got = Bind(Bind(Success("forty"), parse), count)
	if got.IsSuccess() {
		t.Fatal("expected failure from parse stage")
	}
	if stages != 0 {
		t.Errorf("later stage ran %d times after a failure", stages)
	}

	got = Bind(Failure[string](errBoom), parse)
	if got.Err() != errBoom {
		t.Errorf("Bind should forward the original failure, got %v", got.Err())
	}
}

func TestGoDeliversExactlyOnce(t *testing.T) {
	t.Parallel()

	ch := Go(context.Background(), func(context.Context) Result[string] {
		return Success("done")
	})

	first, ok := <-ch
	if !ok {
		t.Fatal("channel closed before delivering a result")
	}
	if v, _ := first.Value(); v != "done" {
		t.Errorf("got %q, want done", v)
	}
	if _, ok := <-ch; ok {
		t.Error("a second value was delivered")
	}
}

func TestThenCallsBackOnce(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	done := make(chan Result[int], 2)
	Then(Go(context.Background(), func(context.Context) Result[int] {
		return Failure[int](errBoom)
	}), func(r Result[int]) {
		calls.Add(1)
		done <- r
	})

	select {
	case r := <-done:
		if r.Err() != errBoom {
			t.Errorf("callback got %v, want errBoom", r.Err())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("callback never ran")
	}

	time.Sleep(10 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("callback ran %d times, want 1", n)
	}
}

func TestAwaitHonoursContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	block := make(chan Result[int])
	r := Await(ctx, block)
	if !errors.Is(r.Err(), context.Canceled) {
		t.Errorf("Await on cancelled ctx = %v, want context.Canceled", r.Err())
	}
}
