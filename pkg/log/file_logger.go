package log

import (
	"bufio"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// captureBufferSize is the write buffer for capture files. Telemetry-heavy
// devices log many small events; buffering keeps capture off the syscall
// hot path.
const captureBufferSize = 32 * 1024

// FileLogger appends traffic events to a capture file as a CBOR sequence.
// Writes are buffered; call Flush to checkpoint the file mid-capture, Close
// flushes the remainder. Safe for concurrent use.
type FileLogger struct {
	mu     sync.Mutex
	file   *os.File
	buf    *bufio.Writer
	enc    *cbor.Encoder
	closed bool
}

// NewFileLogger opens (or creates) the capture file at path and appends to
// it, so captures from successive runs accumulate in one file.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriterSize(f, captureBufferSize)
	return &FileLogger{
		file: f,
		buf:  buf,
		enc:  cbor.NewEncoder(buf),
	}, nil
}

// Log appends an event to the capture file. Encoding errors are swallowed:
// capture must never disrupt device traffic.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	_ = l.enc.Encode(event)
}

// Flush writes buffered events through to the file.
func (l *FileLogger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	return l.buf.Flush()
}

// Close flushes and closes the capture file. Close is idempotent; events
// logged after Close are dropped.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true

	flushErr := l.buf.Flush()
	closeErr := l.file.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

var _ Logger = (*FileLogger)(nil)
