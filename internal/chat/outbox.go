package chat

import (
	"bufio"
	"io"
	"sync"
)

// Outbox is the outbound handle of one client: a line queue drained by a
// single writer goroutine. Lines are written in the order they were accepted
// and none are dropped while the client keeps reading.
//
// With a positive limit, a client that lets more than limit lines pile up is
// cut off instead: the outbox closes, its queue is discarded and the overflow
// callback runs so the session can close the connection.
type Outbox struct {
	mu         sync.Mutex
	cond       *sync.Cond
	queue      []string
	limit      int
	closed     bool
	onOverflow func()
}

// NewOutbox returns an outbox holding at most limit pending lines, or an
// unbounded one when limit <= 0.
func NewOutbox(limit int) *Outbox {
	o := &Outbox{limit: limit}
	o.cond = sync.NewCond(&o.mu)
	return o
}

// OnOverflow sets the callback run once when the limit is exceeded.
func (o *Outbox) OnOverflow(f func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onOverflow = f
}

// Send queues line without blocking. It returns false once the outbox is
// closed, including by overflow.
func (o *Outbox) Send(line string) bool {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false
	}
	if o.limit > 0 && len(o.queue) >= o.limit {
		o.closed = true
		o.queue = nil
		o.cond.Broadcast()
		overflow := o.onOverflow
		o.mu.Unlock()

		OutboxOverflows.Inc()
		if overflow != nil {
			overflow()
		}
		return false
	}
	o.queue = append(o.queue, line)
	o.cond.Signal()
	o.mu.Unlock()
	return true
}

// Close stops accepting lines. Already queued lines are still written.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	o.cond.Broadcast()
}

// next blocks until lines are pending and takes all of them. ok is false
// once the outbox is closed and empty.
func (o *Outbox) next() (batch []string, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for len(o.queue) == 0 && !o.closed {
		o.cond.Wait()
	}
	if len(o.queue) == 0 {
		return nil, false
	}
	batch, o.queue = o.queue, nil
	return batch, true
}

// pending takes whatever is queued without waiting.
func (o *Outbox) pending() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	batch := o.queue
	o.queue = nil
	return batch
}

// StartOutboundWriter drains out into w until the outbox is closed and empty
// or a write fails. The returned channel is closed when the writer exits.
func StartOutboundWriter(w io.Writer, out *Outbox) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		bw := bufio.NewWriter(w)
		for {
			batch, ok := out.next()
			if !ok {
				return
			}
			for _, msg := range batch {
				// Best-effort. If the connection breaks, just stop the writer.
				if _, err := bw.WriteString(msg + "\n"); err != nil {
					return
				}
			}
			if err := bw.Flush(); err != nil {
				return
			}
		}
	}()
	return done
}
