package stream

import (
	"io"
	"sync"

	"github.com/MalekiRe/bevy-editor/pkg/logger"
)

const readChunk = 4096

// Pump starts one goroutine per source that copies the source into a
// shared ByteChannel until EOF or a read error. When echo is non-nil every
// chunk is also written to it. Echo writes are serialised so chunks from
// different sources never tear each other.
//
// A push that fails because the consumer closed the channel is logged and
// the goroutine keeps draining its source, so the child never blocks on a
// full pipe.
func Pump(echo io.Writer, sources ...io.Reader) *ByteChannel {
	ch := NewByteChannel(len(sources))
	var echoMu sync.Mutex

	for i, src := range sources {
		go pumpOne(ch, i, src, echo, &echoMu)
	}
	return ch
}

func pumpOne(ch *ByteChannel, index int, src io.Reader, echo io.Writer, echoMu *sync.Mutex) {
	defer ch.Done()

	buf := make([]byte, readChunk)
	reportedClosed := false
	for {
		n, err := src.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if echo != nil {
				echoMu.Lock()
				_, _ = echo.Write(chunk)
				echoMu.Unlock()
			}
			if perr := ch.Push(chunk); perr != nil && !reportedClosed {
				logger.Log.Error("Pump: send failed, continuing to drain", "source", index, "err", perr)
				reportedClosed = true
			}
		}
		if err != nil {
			if err != io.EOF {
				logger.Log.Debug("Pump: source read stopped", "source", index, "err", err)
			}
			return
		}
	}
}

// Personal.AI order the ending
