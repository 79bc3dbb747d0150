package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecoder_ASCII(t *testing.T) {
	t.Parallel()

	var d Decoder
	assert.Equal(t, "He", d.Write([]byte("He")))
	assert.Equal(t, "llo", d.Write([]byte("llo")))
	assert.Empty(t, d.Flush())
}

func TestDecoder_SplitTwoByteRune(t *testing.T) {
	t.Parallel()

	// "é" is 0xC3 0xA9.
	var d Decoder
	assert.Equal(t, "h", d.Write([]byte{'h', 0xC3}))
	assert.Equal(t, "é", d.Write([]byte{0xA9}))
	assert.Empty(t, d.Flush())
}

func TestDecoder_SplitFourByteRuneAcrossThreeChunks(t *testing.T) {
	t.Parallel()

	// U+1F600 is 0xF0 0x9F 0x98 0x80.
	var d Decoder
	assert.Empty(t, d.Write([]byte{0xF0}))
	assert.Empty(t, d.Write([]byte{0x9F, 0x98}))
	assert.Equal(t, "\U0001F600", d.Write([]byte{0x80}))
}

func TestDecoder_SplitEqualsUnsplit(t *testing.T) {
	t.Parallel()

	full := []byte("héllo wörld \U0001F680 日本語")

	for split := 1; split < len(full); split++ {
		var d Decoder
		got := d.Write(full[:split]) + d.Write(full[split:]) + d.Flush()
		assert.Equal(t, string(full), got, "split at byte %d", split)
	}
}

func TestDecoder_InvalidBytesReplaced(t *testing.T) {
	t.Parallel()

	var d Decoder
	out := d.Write([]byte{'a', 0xFF, 'b'})
	assert.Equal(t, "a�b", out)
}

func TestDecoder_LoneContinuationByte(t *testing.T) {
	t.Parallel()

	var d Decoder
	out := d.Write([]byte{0x80, 'x'})
	assert.Equal(t, "�x", out)
}

func TestDecoder_FlushEmitsPlaceholderForIncompleteTail(t *testing.T) {
	t.Parallel()

	var d Decoder
	assert.Equal(t, "ok", d.Write([]byte{'o', 'k', 0xE2, 0x82})) // truncated "€"
	out := d.Flush()
	assert.NotEmpty(t, out, "incomplete trailing sequence must not be dropped")
	assert.Contains(t, out, "�")
}

func TestDecoder_FlushIsIdempotent(t *testing.T) {
	t.Parallel()

	var d Decoder
	d.Write([]byte{0xC3})
	assert.NotEmpty(t, d.Flush())
	assert.Empty(t, d.Flush())
}

func TestDecoder_EmptyWrite(t *testing.T) {
	t.Parallel()

	var d Decoder
	assert.Empty(t, d.Write(nil))
	assert.Empty(t, d.Write([]byte{}))
}

func TestIncompleteTailStart(t *testing.T) {
	t.Parallel()

	// Complete string: no tail held back.
	b := []byte("abc")
	assert.Equal(t, len(b), incompleteTailStart(b))

	// Trailing lead byte of a 3-byte sequence.
	b = []byte{'a', 0xE2}
	assert.Equal(t, 1, incompleteTailStart(b))

	// Lead byte plus one continuation, one byte short.
	b = []byte{'a', 0xE2, 0x82}
	assert.Equal(t, 1, incompleteTailStart(b))

	// Already-invalid tail decodes now instead of being held back.
	b = []byte{'a', 0xE2, 'x'}
	assert.Equal(t, len(b), incompleteTailStart(b))
}
