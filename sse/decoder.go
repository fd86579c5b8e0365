package sse

import (
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Decoder converts a sequence of byte chunks into complete lines.
//
// Chunks may split a line or a multi-byte character anywhere. Bytes pass
// through a streaming UTF-8 decoder first; an incomplete encoding sequence
// at the end of a chunk is held in its own pending buffer until the next
// chunk completes it. Decoded text accumulates in the line buffer, which
// never holds a newline: each one is split off and emitted immediately.
//
// The zero value is not usable; create decoders with NewDecoder.
type Decoder struct {
	utf8    transform.Transformer
	pending []byte // undecoded bytes of an incomplete UTF-8 sequence
	scratch []byte
	buf     string // unterminated tail of the text stream
}

// NewDecoder creates a Decoder with empty buffers.
func NewDecoder() *Decoder {
	return &Decoder{
		utf8:    unicode.UTF8.NewDecoder(),
		scratch: make([]byte, defaultChunkSize),
	}
}

// Feed appends chunk to the stream and returns every line it completed,
// without their trailing newline, in stream order.
func (d *Decoder) Feed(chunk []byte) []string {
	d.buf += d.decode(chunk, false)
	return d.split()
}

// Flush ends the stream. Pending encoding bytes are decoded (invalid
// sequences become U+FFFD) and any unterminated text is emitted as one
// final line. The decoder is empty afterwards and may be reused.
func (d *Decoder) Flush() []string {
	d.buf += d.decode(nil, true)
	lines := d.split()
	if d.buf != "" {
		lines = append(lines, d.buf)
		d.buf = ""
	}
	d.utf8.Reset()
	return lines
}

// Buffered returns the unterminated text currently held.
func (d *Decoder) Buffered() string {
	return d.buf
}

func (d *Decoder) split() []string {
	var lines []string
	for {
		line, rest, found := strings.Cut(d.buf, "\n")
		if !found {
			return lines
		}
		lines = append(lines, line)
		d.buf = rest
	}
}

func (d *Decoder) decode(chunk []byte, atEOF bool) string {
	src := chunk
	if len(d.pending) > 0 {
		src = append(d.pending, chunk...)
		d.pending = nil
	}
	var out strings.Builder
	for {
		nDst, nSrc, err := d.utf8.Transform(d.scratch, src, atEOF)
		out.Write(d.scratch[:nDst])
		src = src[nSrc:]
		switch err {
		case transform.ErrShortDst:
			continue
		case transform.ErrShortSrc:
			d.pending = append([]byte(nil), src...)
		}
		return out.String()
	}
}
