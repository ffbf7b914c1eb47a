package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

var errWriterClosed = errors.New("logger: writer closed")

// asyncWriter copies log lines to every sink from one goroutine. Lines are
// buffered and the sinks are flushed whenever the queue runs dry, so bursts
// cost one syscall per batch instead of one per line.
type asyncWriter struct {
	mu     sync.RWMutex // guards closed against concurrent Write and Close
	closed bool

	lines chan []byte
	syncs chan chan error
	done  chan struct{}

	sinks []*bufio.Writer
	err   error // first sink failure, owned by loop until done is closed
}

func newAsyncWriter(writers []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	w := &asyncWriter{
		lines: make(chan []byte, 512),
		syncs: make(chan chan error),
		done:  make(chan struct{}),
	}
	for _, out := range writers {
		if out != nil {
			w.sinks = append(w.sinks, bufio.NewWriterSize(out, bufSize))
		}
	}
	go w.loop()
	return w
}

func (w *asyncWriter) loop() {
	defer close(w.done)
	for {
		select {
		case line, ok := <-w.lines:
			if !ok {
				w.record(w.flush())
				return
			}
			w.write(line)
			if len(w.lines) == 0 {
				w.record(w.flush())
			}
		case ack := <-w.syncs:
			// Lines queued before the request are written first.
			for n := len(w.lines); n > 0; n-- {
				w.write(<-w.lines)
			}
			ack <- w.flush()
		}
	}
}

func (w *asyncWriter) write(line []byte) {
	for _, sink := range w.sinks {
		if _, err := sink.Write(line); err != nil {
			w.record(err)
		}
	}
}

func (w *asyncWriter) flush() error {
	var errs []error
	for _, sink := range w.sinks {
		if err := sink.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) record(err error) {
	if err != nil && w.err == nil {
		w.err = err
	}
}

// Write queues a copy of p. It blocks while the queue is full; log lines are
// never dropped.
func (w *asyncWriter) Write(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return errWriterClosed
	}
	w.lines <- append([]byte(nil), p...)
	return nil
}

// Flush returns once every line queued before the call reached the sinks.
func (w *asyncWriter) Flush() error {
	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return nil
	}
	ack := make(chan error, 1)
	w.syncs <- ack
	w.mu.RUnlock()
	return <-ack
}

// Close drains the queue, flushes the sinks and reports the first write
// error seen over the writer's lifetime.
func (w *asyncWriter) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.lines)
	}
	w.mu.Unlock()
	<-w.done
	return w.err
}
