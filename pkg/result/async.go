package result

import "context"

// Go runs fn on its own goroutine and delivers its Result on the returned
// channel. Exactly one value is sent and the channel is then closed, so a
// receiver never blocks the worker and never observes a second completion.
//
// A panic inside fn is not recovered.
func Go[T any](ctx context.Context, fn func(context.Context) Result[T]) <-chan Result[T] {
	ch := make(chan Result[T], 1)
	go func() {
		defer close(ch)
		ch <- fn(ctx)
	}()
	return ch
}

// Then waits for the single Result on ch on a separate goroutine and hands
// it to done. done runs exactly once; a channel closed without a value is
// reported as a failure.
func Then[T any](ch <-chan Result[T], done func(Result[T])) {
	go func() {
		r, ok := <-ch
		if !ok {
			r = Failure[T](errClosed)
		}
		done(r)
	}()
}

// Await blocks until the Result arrives or ctx is done.
func Await[T any](ctx context.Context, ch <-chan Result[T]) Result[T] {
	select {
	case r, ok := <-ch:
		if !ok {
			return Failure[T](errClosed)
		}
		return r
	case <-ctx.Done():
		return Failure[T](ctx.Err())
	}
}
