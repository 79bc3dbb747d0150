package stream

import (
	"strings"
	"unicode/utf8"
)

// Decoder converts raw byte fragments into text incrementally. A
// multi-byte sequence split across fragments is held back until its
// remaining bytes arrive, so no character is lost or corrupted at chunk
// boundaries. Invalid sequences decode to U+FFFD; decoding never fails.
type Decoder struct {
	pending []byte
}

// Write decodes p together with any bytes held back from the previous
// call and returns the decoded text fragment.
func (d *Decoder) Write(p []byte) string {
	if len(p) == 0 && len(d.pending) == 0 {
		return ""
	}

	buf := append(d.pending, p...)
	d.pending = nil

	cut := incompleteTailStart(buf)
	if cut < len(buf) {
		d.pending = append([]byte(nil), buf[cut:]...)
		buf = buf[:cut]
	}

	return decodeReplacing(buf)
}

// Flush decodes any bytes still held back, emitting a replacement
// character for a trailing incomplete sequence instead of dropping it.
// The decoder is reusable afterwards.
func (d *Decoder) Flush() string {
	if len(d.pending) == 0 {
		return ""
	}
	out := decodeReplacing(d.pending)
	d.pending = nil
	return out
}

// incompleteTailStart returns the index where a trailing incomplete
// multi-byte sequence begins, or len(b) when the buffer ends on a
// complete rune. Only a sequence that could still become valid with
// more bytes is held back; anything already invalid decodes now.
func incompleteTailStart(b []byte) int {
	for i := max(0, len(b)-utf8.UTFMax); i < len(b); i++ {
		c := b[i]
		if c < utf8.RuneSelf {
			continue
		}
		size := sequenceLength(c)
		if size == 0 {
			// Continuation or invalid lead byte; not a sequence start.
			continue
		}
		if i+size > len(b) && allContinuations(b[i+1:]) {
			return i
		}
	}
	return len(b)
}

// sequenceLength returns the expected byte length of a UTF-8 sequence
// starting with lead byte c, or 0 when c cannot start a sequence.
func sequenceLength(c byte) int {
	switch {
	case c&0xE0 == 0xC0:
		return 2
	case c&0xF0 == 0xE0:
		return 3
	case c&0xF8 == 0xF0:
		return 4
	default:
		return 0
	}
}

func allContinuations(b []byte) bool {
	for _, c := range b {
		if c&0xC0 != 0x80 {
			return false
		}
	}
	return true
}

// decodeReplacing decodes b, substituting U+FFFD for each invalid byte.
func decodeReplacing(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}

	var sb strings.Builder
	sb.Grow(len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		sb.WriteRune(r) // RuneError for invalid input
		b = b[size:]
	}
	return sb.String()
}
