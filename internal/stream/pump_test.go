package stream

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
)

// collect drains ch until every producer is done and the queue is empty.
func collect(t *testing.T, ch *ByteChannel) []byte {
	t.Helper()
	var out []byte
	deadline := time.After(3 * time.Second)
	for {
		out = append(out, ch.TryDrain()...)
		if ch.Finished() {
			return out
		}
		select {
		case <-ch.Ready():
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			t.Fatal("Timed out collecting pump output")
		}
	}
}

type lockedBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (l *lockedBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func (l *lockedBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.String()
}

func TestPump_SingleSourceOrder(t *testing.T) {
	echo := &lockedBuffer{}
	ch := Pump(echo, strings.NewReader("building...\n"))

	got := collect(t, ch)
	if string(got) != "building...\n" {
		t.Errorf("Expected %q, got %q", "building...\n", got)
	}
	if echo.String() != "building...\n" {
		t.Errorf("Expected echo %q, got %q", "building...\n", echo.String())
	}
}

func TestPump_PerStreamOrderPreserved(t *testing.T) {
	var outLines, errLines strings.Builder
	for i := 0; i < 2000; i++ {
		outLines.WriteString("o")
		errLines.WriteString("e")
	}
	outR, outW := io.Pipe()
	errR, errW := io.Pipe()

	ch := Pump(nil, outR, errR)
	go func() {
		for _, b := range []byte(outLines.String()) {
			outW.Write([]byte{b})
		}
		outW.Close()
	}()
	go func() {
		for _, b := range []byte(errLines.String()) {
			errW.Write([]byte{b})
		}
		errW.Close()
	}()

	got := collect(t, ch)
	var gotOut, gotErr []byte
	for _, b := range got {
		if b == 'o' {
			gotOut = append(gotOut, b)
		} else {
			gotErr = append(gotErr, b)
		}
	}
	if string(gotOut) != outLines.String() || string(gotErr) != errLines.String() {
		t.Errorf("Lost bytes: got %d stdout and %d stderr bytes", len(gotOut), len(gotErr))
	}
}

func TestPump_SequencedBytesKeepOrder(t *testing.T) {
	src := make([]byte, 10000)
	for i := range src {
		src[i] = byte(i % 251)
	}
	ch := Pump(nil, bytes.NewReader(src), strings.NewReader(""))
	if got := collect(t, ch); !bytes.Equal(got, src) {
		t.Error("Bytes from a single stream arrived out of order")
	}
}

type failingReader struct{ sent bool }

func (f *failingReader) Read(p []byte) (int, error) {
	if !f.sent {
		f.sent = true
		return copy(p, "partial"), nil
	}
	return 0, errors.New("read: bad file descriptor")
}

func TestPump_ReadErrorStopsOnlyThatSource(t *testing.T) {
	ch := Pump(nil, &failingReader{}, strings.NewReader("ok"))
	got := string(collect(t, ch))
	if !strings.Contains(got, "partial") || !strings.Contains(got, "ok") {
		t.Errorf("Expected both sources' bytes, got %q", got)
	}
}

func TestPump_KeepsDrainingAfterConsumerCloses(t *testing.T) {
	r, w := io.Pipe()
	echo := &lockedBuffer{}
	ch := Pump(echo, r)
	ch.Close()

	writeDone := make(chan struct{})
	go func() {
		w.Write([]byte("first"))
		w.Write([]byte("second"))
		w.Close()
		close(writeDone)
	}()

	select {
	case <-writeDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Writer blocked: pump stopped draining after consumer closed")
	}
	select {
	case <-ch.ProducersDone():
	case <-time.After(2 * time.Second):
		t.Fatal("Producer never finished")
	}
	if echo.String() != "firstsecond" {
		t.Errorf("Expected echo to continue, got %q", echo.String())
	}
}
