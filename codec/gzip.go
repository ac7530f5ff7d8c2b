package codec

import (
	"github.com/klauspost/compress/gzip"
)

func NewGZIP() Codec {
	instantiator := func() Instance {
		return newBaseInstance(gzip.NewWriter(nil), new(gzip.Reader), genericResetter)
	}

	return newBaseCodec("gzip", instantiator)
}
