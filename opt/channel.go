package opt

import (
	"context"
	"io"
	"sync"
)

// Channel is the duplex text transport between the coordinator and the remote side.
// Recv blocks until a batch arrives and returns io.EOF once the remote side has
// closed the channel. Send writes one outgoing batch.
type Channel interface {
	Recv(ctx context.Context) (string, error)
	Send(ctx context.Context, batch string) error
}

// pipe is the shared state of the two ends returned by NewPipe.
type pipe struct {
	done chan struct{}
	once sync.Once
}

// PipeEnd is one side of an in-memory synchronous Channel.
type PipeEnd struct {
	p   *pipe
	in  <-chan string
	out chan<- string
}

// NewPipe creates a synchronous in-memory channel pair. A Send completes only
// when the other end has received the batch. Closing either end closes both.
func NewPipe() (*PipeEnd, *PipeEnd) {
	p := &pipe{done: make(chan struct{})}
	ab := make(chan string)
	ba := make(chan string)
	return &PipeEnd{p: p, in: ba, out: ab}, &PipeEnd{p: p, in: ab, out: ba}
}

// Recv implements Channel.
func (e *PipeEnd) Recv(ctx context.Context) (string, error) {
	select {
	case batch := <-e.in:
		return batch, nil
	case <-e.p.done:
		return "", io.EOF
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Send implements Channel. It fails with io.ErrClosedPipe once the pipe is closed.
func (e *PipeEnd) Send(ctx context.Context, batch string) error {
	select {
	case <-e.p.done:
		return io.ErrClosedPipe
	default:
	}
	select {
	case e.out <- batch:
		return nil
	case <-e.p.done:
		return io.ErrClosedPipe
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes both ends. It is safe to call multiple times.
func (e *PipeEnd) Close() error {
	e.p.once.Do(func() { close(e.p.done) })
	return nil
}
