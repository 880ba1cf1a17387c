// Package transport adapts byte streams (process pipes, stdio, TCP connections)
// to the opt.Channel interface.
//
// Framing: every message is one newline-terminated line. A received batch is
// the first complete line plus every further complete line already buffered
// behind it, so a peer that writes several lines in one write is seen as one batch.
package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/sontungtran/dopt/opt"
)

const readBufferSize = 64 * 1024

type readResult struct {
	batch string
	err   error
}

var _ opt.Channel = (*Stream)(nil)

// Stream is an opt.Channel over an io.Reader / io.Writer pair.
// A background goroutine reads batches; Recv hands them out in order.
type Stream struct {
	w       io.Writer
	wmu     sync.Mutex
	closer  io.Closer
	results chan readResult
	done    chan struct{}
	once    sync.Once
}

// NewStream wraps r and w. closer, when non-nil, is closed by Close.
func NewStream(r io.Reader, w io.Writer, closer io.Closer) *Stream {
	s := &Stream{
		w:       w,
		closer:  closer,
		results: make(chan readResult),
		done:    make(chan struct{}),
	}
	go s.readLoop(bufio.NewReaderSize(r, readBufferSize))
	return s
}

func (s *Stream) readLoop(br *bufio.Reader) {
	defer close(s.results)
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			// A trailing fragment without its newline is not a message.
			if !errors.Is(err, io.EOF) {
				s.deliver(readResult{err: err})
			}
			return
		}
		var batch strings.Builder
		batch.WriteString(line)
		for hasBufferedLine(br) {
			next, err := br.ReadString('\n')
			if err != nil {
				break
			}
			batch.WriteString(next)
		}
		if !s.deliver(readResult{batch: batch.String()}) {
			return
		}
	}
}

func (s *Stream) deliver(r readResult) bool {
	select {
	case s.results <- r:
		return true
	case <-s.done:
		return false
	}
}

func hasBufferedLine(br *bufio.Reader) bool {
	n := br.Buffered()
	if n == 0 {
		return false
	}
	buf, err := br.Peek(n)
	if err != nil {
		return false
	}
	return bytes.IndexByte(buf, '\n') >= 0
}

// Recv implements opt.Channel. It returns io.EOF once the peer has closed its side.
func (s *Stream) Recv(ctx context.Context) (string, error) {
	select {
	case r, ok := <-s.results:
		if !ok {
			return "", io.EOF
		}
		return r.batch, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Send implements opt.Channel with a single write.
func (s *Stream) Send(_ context.Context, batch string) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	_, err := io.WriteString(s.w, batch)
	return err
}

// Close closes the underlying closer once.
func (s *Stream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		if s.closer != nil {
			err = s.closer.Close()
		}
	})
	return err
}
