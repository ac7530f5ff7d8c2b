package http1

import (
	"bytes"
	"io"

	"github.com/ember-web/ember/http/status"
	"github.com/ember-web/ember/internal/hexconv"
)

type chunkedParserState uint8

const (
	eChunkLength chunkedParserState = iota
	eChunkExt
	eChunkLengthCR
	eChunkBody
	eChunkBodyDone
	eChunkBodyCRLF
	eChunkTrailer
	eChunkTrailerCRLF
	eChunkTrailerFieldLine
)

// maxChunkLengthDigits bounds the chunk-size line at 16 hex digits, so the
// accumulated length can never overflow an uint64.
const maxChunkLengthDigits = 16

// chunkedParser is an incremental decoder of chunked transfer coding. Like the
// head parser it accepts data in arbitrarily split pieces. Chunk extensions are
// skipped, trailer fields are consumed and discarded. A chunk declaring more
// than maxChunkSize bytes is rejected before a single byte of it is read.
type chunkedParser struct {
	state        chunkedParserState
	lengthDigits uint8
	chunkLength  uint64
	maxChunkSize uint64
}

func newChunkedParser(maxChunkSize int64) chunkedParser {
	return chunkedParser{state: eChunkLength, maxChunkSize: uint64(maxChunkSize)}
}

// Parse returns a chunk piece when one is ready, nil otherwise. io.EOF signals
// that the body is complete; extra then holds bytes past the trailer section.
// The parser resets automatically, ready for the next body.
func (c *chunkedParser) Parse(data []byte) (chunk, extra []byte, err error) {
	switch c.state {
	case eChunkLength:
		goto chunkLength
	case eChunkExt:
		goto chunkExt
	case eChunkLengthCR:
		goto chunkLengthCR
	case eChunkBody:
		goto chunkBody
	case eChunkBodyDone:
		goto chunkBodyDone
	case eChunkBodyCRLF:
		goto chunkBodyCRLF
	case eChunkTrailer:
		goto trailer
	case eChunkTrailerCRLF:
		goto chunkTrailerCRLF
	case eChunkTrailerFieldLine:
		goto chunkTrailerFieldLine
	default:
		panic("unreachable code")
	}

chunkLength:
	for i := 0; i < len(data); i++ {
		switch char := data[i]; char {
		case '\r':
			if c.chunkLength > c.maxChunkSize {
				return nil, nil, status.ErrChunkTooLarge
			}

			data = data[i+1:]
			goto chunkLengthCR
		case '\n':
			if c.chunkLength > c.maxChunkSize {
				return nil, nil, status.ErrChunkTooLarge
			}

			data = data[i:]
			goto chunkLengthCR
		case ';':
			if c.chunkLength > c.maxChunkSize {
				return nil, nil, status.ErrChunkTooLarge
			}

			data = data[i+1:]
			goto chunkExt
		default:
			val := hexconv.Halfbyte[char]
			if val == 0xFF {
				return nil, nil, status.ErrBadChunk
			}

			c.chunkLength = (c.chunkLength << 4) | uint64(val)
			if c.lengthDigits++; c.lengthDigits > maxChunkLengthDigits {
				return nil, nil, status.ErrChunkTooLarge
			}
		}
	}

	c.state = eChunkLength
	return nil, nil, nil

chunkExt:
	{
		// chunk extensions carry no meaning here and are skipped till the line end.
		boundary := bytes.IndexByte(data, '\n')
		if boundary == -1 {
			c.state = eChunkExt
			return nil, nil, nil
		}

		data = data[boundary+1:]
		if c.chunkLength == 0 {
			goto trailer
		}

		goto chunkBody
	}

chunkLengthCR:
	if len(data) == 0 {
		c.state = eChunkLengthCR
		return nil, nil, nil
	}

	if data[0] != '\n' {
		return nil, nil, status.ErrBadChunk
	}

	data = data[1:]

	if c.chunkLength == 0 {
		goto trailer
	}

	goto chunkBody

chunkBody:
	{
		n := min(c.chunkLength, uint64(len(data)))
		c.chunkLength -= n
		chunk = data[:n]

		if c.chunkLength == 0 {
			c.state = eChunkBodyDone
		} else {
			c.state = eChunkBody
		}

		return chunk, data[n:], nil
	}

chunkBodyDone:
	// reachable only via the dispatch on a fresh non-empty piece, so no length
	// check is needed.
	c.lengthDigits = 0
	switch data[0] {
	case '\r':
		data = data[1:]
		goto chunkBodyCRLF
	case '\n':
		data = data[1:]
		goto chunkLength
	default:
		return nil, nil, status.ErrBadChunk
	}

chunkBodyCRLF:
	if len(data) == 0 {
		c.state = eChunkBodyCRLF
		return nil, nil, nil
	}

	if data[0] != '\n' {
		return nil, nil, status.ErrBadChunk
	}

	data = data[1:]
	goto chunkLength

trailer:
	if len(data) == 0 {
		c.state = eChunkTrailer
		return nil, nil, nil
	}

	switch data[0] {
	case '\r':
		data = data[1:]
		goto chunkTrailerCRLF
	case '\n':
		c.reset()
		return nil, data[1:], io.EOF
	default:
		// trailer field lines. Consumed and thrown away.
		goto chunkTrailerFieldLine
	}

chunkTrailerCRLF:
	if len(data) == 0 {
		c.state = eChunkTrailerCRLF
		return nil, nil, nil
	}

	if data[0] != '\n' {
		return nil, nil, status.ErrBadChunk
	}

	c.reset()
	return nil, data[1:], io.EOF

chunkTrailerFieldLine:
	{
		boundary := bytes.IndexByte(data, '\n')
		if boundary == -1 {
			c.state = eChunkTrailerFieldLine
			return nil, nil, nil
		}

		data = data[boundary+1:]
		goto trailer
	}
}

func (c *chunkedParser) reset() {
	c.state = eChunkLength
	c.lengthDigits = 0
	c.chunkLength = 0
}
