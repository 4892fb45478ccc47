package process

import (
	"bytes"
	"errors"
	"io"
	"os"
	"sync/atomic"

	"github.com/kbukum/actionexec/logger"
)

// MaxLineLength caps the bytes of a single line handed to the line callback.
// The rest of an overlong line is still copied, just not scanned.
const MaxLineLength = 64 * 1024

const copyBufferSize = 32 * 1024

// StreamCopier drains one child output stream into a sink on its own
// goroutine, handing every complete line to an optional callback as it goes.
// The callback only observes; it cannot block or filter the copy. Errors are
// logged and never stop the drain before EOF, since a child blocked on a full
// pipe would otherwise hang.
type StreamCopier struct {
	name   string
	src    io.Reader
	dst    io.Writer
	onLine func(line []byte)
	log    *logger.Logger

	done    chan struct{}
	n       atomic.Int64
	readErr error
	sinkErr error
}

// NewStreamCopier returns a copier from src to dst. A nil dst discards.
func NewStreamCopier(name string, src io.Reader, dst io.Writer, onLine func(line []byte), log *logger.Logger) *StreamCopier {
	if dst == nil {
		dst = io.Discard
	}
	if log == nil {
		log = logger.Get(logger.ComponentProcess)
	}
	return &StreamCopier{
		name:   name,
		src:    src,
		dst:    dst,
		onLine: onLine,
		log:    log.WithFields(logger.Fields(logger.FieldStream, name)),
		done:   make(chan struct{}),
	}
}

// Start begins copying on a new goroutine.
func (c *StreamCopier) Start() {
	go c.run()
}

// Done is closed when the source is exhausted or fails.
func (c *StreamCopier) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until Done is closed.
func (c *StreamCopier) Wait() {
	<-c.done
}

// Bytes returns the number of bytes read from the source so far.
func (c *StreamCopier) Bytes() int64 {
	return c.n.Load()
}

// Err returns the first read or write error. Only valid after Done.
func (c *StreamCopier) Err() error {
	if c.readErr != nil {
		return c.readErr
	}
	return c.sinkErr
}

func (c *StreamCopier) run() {
	defer close(c.done)

	buf := make([]byte, copyBufferSize)
	var line bytes.Buffer
	overlong := false

	for {
		n, err := c.src.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			c.n.Add(int64(n))
			c.write(chunk)
			if c.onLine != nil {
				c.scan(chunk, &line, &overlong)
			}
		}
		if err == nil {
			continue
		}
		if c.onLine != nil && line.Len() > 0 {
			c.emit(line.Bytes())
		}
		if err != io.EOF {
			c.readErr = err
			if errors.Is(err, os.ErrClosed) {
				c.log.Debug("stream closed before EOF")
			} else {
				c.log.Warn("error reading child output", logger.ErrorFields("read", err))
			}
		}
		return
	}
}

// write copies chunk to the sink until the sink first fails; after that the
// source is still drained but output is dropped.
func (c *StreamCopier) write(chunk []byte) {
	if c.sinkErr != nil {
		return
	}
	if _, err := c.dst.Write(chunk); err != nil {
		c.sinkErr = err
		c.log.Warn("output sink failed, discarding the rest of the stream", logger.ErrorFields("write", err))
	}
}

func (c *StreamCopier) scan(chunk []byte, line *bytes.Buffer, overlong *bool) {
	for len(chunk) > 0 {
		i := bytes.IndexByte(chunk, '\n')
		part := chunk
		if i >= 0 {
			part = chunk[:i]
		}
		if room := MaxLineLength - line.Len(); room > 0 {
			if len(part) > room {
				part = part[:room]
				*overlong = true
			}
			line.Write(part)
		} else if len(part) > 0 {
			*overlong = true
		}
		if i < 0 {
			return
		}
		c.emit(line.Bytes())
		if *overlong {
			c.log.Debug("long output line truncated for scanning", logger.Fields("limit", MaxLineLength))
		}
		line.Reset()
		*overlong = false
		chunk = chunk[i+1:]
	}
}

func (c *StreamCopier) emit(line []byte) {
	c.onLine(bytes.TrimSuffix(line, []byte{'\r'}))
}
