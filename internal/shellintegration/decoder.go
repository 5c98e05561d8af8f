package shellintegration

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"lumen/pkg/prompttypes"
)

// MaxPending bounds the bytes kept for an unterminated sequence.
const MaxPending = 64 * 1024

// Decoder extracts lifecycle events from a byte stream of OSC sequences.
// A sequence split across reads is kept until its terminator arrives.
// Bytes outside sequences are ignored.
type Decoder struct {
	buffer    strings.Builder
	sequences int
	dropped   int
}

// NewDecoder creates a decoder with an empty buffer.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends data and returns the events of every sequence completed by it.
func (d *Decoder) Feed(data []byte) []prompttypes.Event {
	d.buffer.Write(data)
	content := d.buffer.String()
	d.buffer.Reset()

	var events []prompttypes.Event
	i := 0
	for i < len(content) {
		start := strings.Index(content[i:], OSC)
		if start == -1 {
			// Keep a trailing ESC: it may be the first half of an introducer.
			if strings.HasSuffix(content, ESC) {
				d.buffer.WriteString(ESC)
			}
			break
		}
		start += i

		end := terminatorEnd(content, start+len(OSC))
		if end == -1 {
			d.keepPending(content[start:])
			break
		}

		if seq, ok := ParseSequence(content[start:end]); ok {
			d.sequences++
			if ev, ok := seq.Event(); ok {
				events = append(events, ev)
			}
		}
		i = end
	}
	return events
}

// keepPending stores an unterminated sequence, discarding it when it grows too large.
func (d *Decoder) keepPending(partial string) {
	if len(partial) > MaxPending {
		d.dropped++
		return
	}
	d.buffer.WriteString(partial)
}

// terminatorEnd returns the index just past the BEL or ST ending the sequence whose
// body starts at from, or -1 when it has not arrived yet. A new OSC introducer before
// any terminator abandons the unterminated sequence.
func terminatorEnd(content string, from int) int {
	for j := from; j < len(content); j++ {
		switch content[j] {
		case '\a':
			return j + 1
		case '\033':
			if j+1 >= len(content) {
				return -1
			}
			if content[j+1] == '\\' {
				return j + 2
			}
			if content[j+1] == ']' {
				return j
			}
		}
	}
	return -1
}

// Pending reports whether a partial sequence is buffered.
func (d *Decoder) Pending() bool {
	return d.buffer.Len() > 0
}

// Stats returns the number of complete sequences seen and oversized sequences dropped.
func (d *Decoder) Stats() (sequences, dropped int) {
	return d.sequences, d.dropped
}

// Reset drops any partial sequence.
func (d *Decoder) Reset() {
	d.buffer.Reset()
}

// Run reads r until EOF, handing every decoded event to handle in order.
// It returns nil at EOF and the read error otherwise.
func (d *Decoder) Run(r io.Reader, handle func(prompttypes.Event)) error {
	reader := bufio.NewReader(r)
	chunk := make([]byte, 4096)
	for {
		n, err := reader.Read(chunk)
		if n > 0 {
			for _, ev := range d.Feed(chunk[:n]) {
				handle(ev)
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// FilterSequences removes complete OSC sequences from text while preserving other content.
func FilterSequences(text string) string {
	var result strings.Builder
	i := 0
	for i < len(text) {
		if strings.HasPrefix(text[i:], OSC) {
			if end := terminatorEnd(text, i+len(OSC)); end != -1 {
				i = end
				continue
			}
		}
		result.WriteByte(text[i])
		i++
	}
	return result.String()
}
