package harness

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"
)

// SectionMarker terminates a logical section of the fuzz log. It is distinct
// from a plain newline so tools can split the log into input dumps, run
// status lines and output dumps.
const SectionMarker = "---\n"

// Sink is an append-only, buffered text log. Nothing reaches the underlying
// writer until Flush or EndSection; write errors are sticky and reported by
// the next Flush.
type Sink struct {
	mu sync.Mutex
	w  *bufio.Writer
}

// NewSink returns a Sink writing to w.
func NewSink(w io.Writer) *Sink {
	return &Sink{w: bufio.NewWriter(w)}
}

// Printf appends formatted text.
func (s *Sink) Printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, format, args...)
}

// Println appends the operands followed by a newline.
func (s *Sink) Println(args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.w, args...)
}

// Flush writes buffered text to the underlying writer.
func (s *Sink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Flush()
}

// EndSection appends SectionMarker and flushes.
func (s *Sink) EndSection() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endSection()
}

func (s *Sink) endSection() error {
	if _, err := s.w.WriteString(SectionMarker); err != nil {
		return err
	}
	return s.w.Flush()
}

// Scoped holds the sink for one section. Whatever fn writes is terminated with
// SectionMarker and flushed when fn returns, also when it fails or panics.
func (s *Sink) Scoped(fn func(*Section) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		if endErr := s.endSection(); endErr != nil {
			err = errors.Join(err, fmt.Errorf("flush log section: %w", endErr))
		}
	}()
	return fn(&Section{w: s.w})
}

// Section writes to a Sink held by Scoped. It must not be used after fn
// returns.
type Section struct {
	w *bufio.Writer
}

func (s *Section) Printf(format string, args ...any) {
	fmt.Fprintf(s.w, format, args...)
}

func (s *Section) Println(args ...any) {
	fmt.Fprintln(s.w, args...)
}
