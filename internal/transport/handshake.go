// Package transport establishes the two loopback TCP connections of a
// supervision cycle and reads the back channel control byte.
package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/MalekiRe/bevy-editor/pkg/consts"
	"github.com/MalekiRe/bevy-editor/pkg/errors"
	"github.com/MalekiRe/bevy-editor/pkg/logger"
)

// Listener is the receiving side of the handshake: bound once, it accepts
// exactly one peer.
type Listener struct {
	port int
	l    net.Listener
}

// Listen binds a loopback TCP listener on port. A bind failure is a
// configuration error and is not retried.
func Listen(port int) (*Listener, error) {
	l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return nil, errors.New(errors.ErrCodeBindFailed, "Listen", fmt.Sprintf("cannot bind port %d", port), err)
	}
	logger.Log.Info("bound to", "port", port)
	return &Listener{port: port, l: l}, nil
}

// Port returns the bound port.
func (l *Listener) Port() int {
	return l.port
}

// Accept blocks until one peer connects, then closes the listener.
// Cancelling ctx abandons the wait and returns ctx.Err().
func (l *Listener) Accept(ctx context.Context) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := l.l.Accept()
		ch <- result{conn, err}
	}()

	select {
	case res := <-ch:
		l.l.Close()
		if res.err != nil {
			return nil, errors.New(errors.ErrCodeAcceptFailed, "Accept", fmt.Sprintf("port %d", l.port), res.err)
		}
		return res.conn, nil
	case <-ctx.Done():
		l.l.Close()
		if res := <-ch; res.conn != nil {
			res.conn.Close()
		}
		return nil, ctx.Err()
	}
}

// Close releases the listener without accepting.
func (l *Listener) Close() error {
	return l.l.Close()
}

// Connector is the sending side of the handshake. It dials a peer that may
// still be starting up, retrying at a fixed interval for a bounded number
// of attempts.
type Connector struct {
	// MaxAttempts is the total number of dials before giving up.
	MaxAttempts int
	// LogAfter is the zero-based attempt index from which failures are logged.
	LogAfter int
	// Interval is the pause between failed attempts.
	Interval time.Duration
	// Host defaults to localhost.
	Host string

	dial func(ctx context.Context, address string) (net.Conn, error)
}

// NewConnector returns a Connector with the given retry budget.
func NewConnector(maxAttempts, logAfter int, interval time.Duration) *Connector {
	return &Connector{
		MaxAttempts: maxAttempts,
		LogAfter:    logAfter,
		Interval:    interval,
		Host:        consts.LoopbackHost,
	}
}

// Connect dials host:port until it succeeds, the attempt budget runs out or
// ctx is cancelled. It returns the connection and the number of attempts
// used. Exhausting the budget yields an ErrCodeHandshakeExhausted error.
func (c *Connector) Connect(ctx context.Context, port int) (net.Conn, int, error) {
	host := c.Host
	if host == "" {
		host = consts.LoopbackHost
	}
	address := net.JoinHostPort(host, strconv.Itoa(port))
	dial := c.dial
	if dial == nil {
		dialer := &net.Dialer{}
		dial = func(ctx context.Context, address string) (net.Conn, error) {
			return dialer.DialContext(ctx, "tcp", address)
		}
	}

	var lastErr error
	for i := 0; i < c.MaxAttempts; i++ {
		conn, err := dial(ctx, address)
		if err == nil {
			logger.Log.Info("connected to", "port", port, "attempt", i+1)
			return conn, i + 1, nil
		}
		if ctx.Err() != nil {
			return nil, i + 1, ctx.Err()
		}
		lastErr = err
		if i >= c.LogAfter {
			logger.Log.Warn("Handshake: dial failed", "port", port, "attempt", i+1, "err", err)
		}
		if i == c.MaxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, i + 1, ctx.Err()
		case <-time.After(c.Interval):
		}
	}
	return nil, c.MaxAttempts, errors.New(errors.ErrCodeHandshakeExhausted, "Connect",
		fmt.Sprintf("ran out of attempts, no tcp connection to %s after %d tries", address, c.MaxAttempts), lastErr)
}

// ReadControl blocks until one byte arrives on conn. Cancelling ctx closes
// conn to unblock the read.
func ReadControl(ctx context.Context, conn net.Conn) (byte, error) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	var b [1]byte
	if _, err := io.ReadFull(conn, b[:]); err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, err
	}
	return b[0], nil
}

// Personal.AI order the ending
