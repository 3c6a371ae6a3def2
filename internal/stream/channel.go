// Package stream merges a child's output streams into one ordered byte channel.
package stream

import (
	"errors"
	"sync"
)

// ErrClosed is returned by Push after the consumer closed the channel.
var ErrClosed = errors.New("stream: byte channel closed by consumer")

// ByteChannel is an unbounded multi-producer single-consumer byte queue.
//
// Each Push is appended atomically, so bytes from one producer keep their
// order. Producers register up front with the producer count given to
// NewByteChannel and call Done when their source is exhausted; the channel
// reports Finished once every producer is done and the queue is empty.
type ByteChannel struct {
	mu        sync.Mutex
	buf       []byte
	producers int
	closed    bool

	ready    chan struct{} // 1-slot wake-up for the consumer
	finished chan struct{} // closed when producers == 0
}

// NewByteChannel creates a channel fed by the given number of producers.
func NewByteChannel(producers int) *ByteChannel {
	c := &ByteChannel{
		producers: producers,
		ready:     make(chan struct{}, 1),
		finished:  make(chan struct{}),
	}
	if producers <= 0 {
		close(c.finished)
	}
	return c
}

// Push appends p to the queue.
func (c *ByteChannel) Push(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.buf = append(c.buf, p...)
	c.mu.Unlock()
	c.notify()
	return nil
}

// Done marks one producer as finished. Extra calls are ignored.
func (c *ByteChannel) Done() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.producers == 0 {
		return
	}
	c.producers--
	if c.producers == 0 {
		close(c.finished)
		c.notify()
	}
}

// TryDrain removes and returns everything currently queued without blocking.
// It returns nil when the queue is empty.
func (c *ByteChannel) TryDrain() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.buf) == 0 {
		return nil
	}
	out := c.buf
	c.buf = nil
	return out
}

// Ready delivers a wake-up after new bytes are pushed or the last producer is done.
func (c *ByteChannel) Ready() <-chan struct{} {
	return c.ready
}

// ProducersDone is closed once every producer has called Done.
func (c *ByteChannel) ProducersDone() <-chan struct{} {
	return c.finished
}

// Finished reports whether all producers are done and nothing is left queued.
func (c *ByteChannel) Finished() bool {
	select {
	case <-c.finished:
	default:
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buf) == 0
}

// Close drops the consumer side. Queued bytes are discarded and later
// pushes fail with ErrClosed.
func (c *ByteChannel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.buf = nil
}

// Len returns the number of queued bytes.
func (c *ByteChannel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buf)
}

func (c *ByteChannel) notify() {
	select {
	case c.ready <- struct{}{}:
	default:
	}
}

// Personal.AI order the ending
