package transport

import (
	"context"
	"fmt"
	"net"
)

// NewConnStream wraps a connection; Close closes the connection.
func NewConnStream(conn net.Conn) *Stream {
	return NewStream(conn, conn, conn)
}

// Accept waits for one connection on l and wraps it. The listener is closed
// when ctx is cancelled first, and a connection accepted in that window is closed too.
func Accept(ctx context.Context, l net.Listener) (*Stream, error) {
	type accepted struct {
		conn net.Conn
		err  error
	}
	ch := make(chan accepted, 1)
	go func() {
		conn, err := l.Accept()
		ch <- accepted{conn: conn, err: err}
	}()

	select {
	case a := <-ch:
		if a.err != nil {
			return nil, fmt.Errorf("accepting connection on %s: %w", l.Addr(), a.err)
		}
		return NewConnStream(a.conn), nil
	case <-ctx.Done():
		_ = l.Close()
		if a := <-ch; a.conn != nil {
			_ = a.conn.Close()
		}
		return nil, ctx.Err()
	}
}

// Listen binds addr and waits for the remote side to connect once.
func Listen(ctx context.Context, addr string) (*Stream, error) {
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}
	defer func() { _ = l.Close() }()
	return Accept(ctx, l)
}

// Dial connects to a coordinator listening on addr.
func Dial(ctx context.Context, addr string) (*Stream, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	return NewConnStream(conn), nil
}
