package stream

import (
	"bufio"
	"bytes"
	"io"
)

var (
	idField = []byte("id:")
	lf      = []byte("\n")
)

// frameLimiter passes an event stream through frame by frame and replaces
// every frame larger than limit with its id line alone, so the stream
// position still advances past it. Lines are expected to end in \n.
type frameLimiter struct {
	src    io.ReadCloser
	r      *bufio.Reader
	limit  int
	onDrop func(id string, size int)

	frame     bytes.Buffer
	idLine    []byte
	size      int
	dropped   bool
	lineStart bool

	out bytes.Buffer
	err error
}

func newFrameLimiter(src io.ReadCloser, limit int, onDrop func(id string, size int)) *frameLimiter {
	return &frameLimiter{
		src:       src,
		r:         bufio.NewReaderSize(src, 64*1024),
		limit:     limit,
		onDrop:    onDrop,
		lineStart: true,
	}
}

func (l *frameLimiter) Read(p []byte) (int, error) {
	for l.out.Len() == 0 && l.err == nil {
		l.next()
	}
	if l.out.Len() > 0 {
		return l.out.Read(p)
	}
	return 0, l.err
}

func (l *frameLimiter) Close() error {
	return l.src.Close()
}

// next consumes one line, or one buffer-sized piece of a long line.
func (l *frameLimiter) next() {
	chunk, err := l.r.ReadSlice('\n')
	if len(chunk) > 0 {
		l.add(chunk)
	}

	switch err {
	case nil, bufio.ErrBufferFull:
	default:
		l.finish()
		l.err = err
	}
}

func (l *frameLimiter) add(chunk []byte) {
	start := l.lineStart
	l.lineStart = chunk[len(chunk)-1] == '\n'

	if start && isBlankLine(chunk) {
		l.size += len(chunk)
		l.emit(chunk)
		return
	}

	if start && l.lineStart && bytes.HasPrefix(chunk, idField) {
		l.idLine = append(l.idLine[:0], bytes.TrimRight(chunk, "\r\n")...)
	}

	l.size += len(chunk)
	if l.dropped {
		return
	}
	if l.size > l.limit {
		l.dropped = true
		l.frame.Reset()
		return
	}
	l.frame.Write(chunk)
}

// emit ends the current frame at a blank line.
func (l *frameLimiter) emit(blank []byte) {
	switch {
	case !l.dropped:
		l.out.Write(l.frame.Bytes())
		l.out.Write(blank)
	default:
		if len(l.idLine) > 0 {
			l.out.Write(l.idLine)
			l.out.Write(lf)
			l.out.Write(lf)
		}
		l.onDrop(l.eventID(), l.size)
	}
	l.reset()
}

// finish flushes a frame cut short by the end of the stream.
func (l *frameLimiter) finish() {
	if l.dropped {
		l.onDrop(l.eventID(), l.size)
	} else {
		l.out.Write(l.frame.Bytes())
	}
	l.reset()
}

func (l *frameLimiter) eventID() string {
	if len(l.idLine) == 0 {
		return ""
	}
	id := l.idLine[len(idField):]
	return string(bytes.TrimPrefix(id, []byte(" ")))
}

func (l *frameLimiter) reset() {
	l.frame.Reset()
	l.idLine = l.idLine[:0]
	l.size = 0
	l.dropped = false
}

func isBlankLine(line []byte) bool {
	return len(bytes.TrimRight(line, "\r\n")) == 0
}
