package storage

import "context"

// stage maps an input channel onto bulk items one at a time, so nothing is
// buffered beyond what the backend has asked for.
type stage struct {
	items chan BulkItem
	done  chan struct{}
	err   error
}

// mapItems starts the mapping goroutine. It stops when in is closed, when ctx
// is done, or at the first item fn rejects; in every case items is closed.
func mapItems[T any](ctx context.Context, in <-chan T, fn func(T) (BulkItem, error)) *stage {
	st := &stage{
		items: make(chan BulkItem),
		done:  make(chan struct{}),
	}

	go func() {
		defer close(st.done)
		defer close(st.items)

		for {
			var v T
			var ok bool
			select {
			case <-ctx.Done():
				return
			case v, ok = <-in:
				if !ok {
					return
				}
			}

			item, err := fn(v)
			if err != nil {
				st.err = err
				return
			}

			select {
			case st.items <- item:
			case <-ctx.Done():
				return
			}
		}
	}()

	return st
}

// wait blocks until the goroutine has exited and reports the rejected item,
// if any.
func (st *stage) wait() error {
	<-st.done
	return st.err
}
