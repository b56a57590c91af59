package runner

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
)

// CaptureMode selects what happens to a run's combined output.
type CaptureMode int

const (
	CaptureDiscard CaptureMode = iota
	CaptureBuffered
	CaptureStream
)

func (m CaptureMode) String() string {
	switch m {
	case CaptureDiscard:
		return "discard"
	case CaptureBuffered:
		return "buffered"
	case CaptureStream:
		return "stream"
	default:
		return fmt.Sprintf("CaptureMode(%d)", int(m))
	}
}

// CaptureModeFromVerbosity maps -v to buffered and -vv to streamed output.
func CaptureModeFromVerbosity(verbosity int) CaptureMode {
	switch {
	case verbosity >= 2:
		return CaptureStream
	case verbosity == 1:
		return CaptureBuffered
	default:
		return CaptureDiscard
	}
}

// DefaultTailLines is how many trailing output lines are kept per run.
const DefaultTailLines = 200

const maxLineSize = 1024 * 1024

// tailBuffer keeps the last max lines in a ring.
type tailBuffer struct {
	lines []string
	next  int
	full  bool
}

func newTailBuffer(max int) *tailBuffer {
	if max <= 0 {
		max = DefaultTailLines
	}
	return &tailBuffer{lines: make([]string, max)}
}

func (t *tailBuffer) add(line string) {
	t.lines[t.next] = line
	t.next++
	if t.next == len(t.lines) {
		t.next = 0
		t.full = true
	}
}

func (t *tailBuffer) String() string {
	var ordered []string
	if t.full {
		ordered = append(ordered, t.lines[t.next:]...)
	}
	ordered = append(ordered, t.lines[:t.next]...)
	return strings.Join(ordered, "\n")
}

// syncWriter serializes writes from concurrently running processes so that
// lines and blocks are never torn.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) writeString(str string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = io.WriteString(s.w, str)
}

// capture consumes one process's output until r is closed.
type capture struct {
	runID string
	mode  CaptureMode
	out   *syncWriter

	tail  *tailBuffer
	block strings.Builder
	done  chan struct{}
}

func newCapture(runID string, mode CaptureMode, out *syncWriter, tailLines int) *capture {
	return &capture{
		runID: runID,
		mode:  mode,
		out:   out,
		tail:  newTailBuffer(tailLines),
		done:  make(chan struct{}),
	}
}

func (c *capture) consume(r io.Reader) {
	defer close(c.done)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		c.line(scanner.Text())
	}
	// Keep draining after an oversized line so the writer never blocks.
	_, _ = io.Copy(io.Discard, r)
}

func (c *capture) line(text string) {
	c.tail.add(text)
	switch c.mode {
	case CaptureStream:
		c.out.writeString(fmt.Sprintf("[%s] %s\n", c.runID, text))
	case CaptureBuffered:
		c.block.WriteString(text)
		c.block.WriteByte('\n')
	}
}

// finish waits for the consumer and prints the buffered block, if any.
func (c *capture) finish() {
	<-c.done
	if c.mode != CaptureBuffered || c.block.Len() == 0 {
		return
	}
	c.out.writeString(fmt.Sprintf("----- %s -----\n%s----- end %s -----\n", c.runID, c.block.String(), c.runID))
}

func (c *capture) output() string {
	<-c.done
	return c.tail.String()
}
