package codec

import (
	"github.com/andybalholm/brotli"
)

func NewBrotli() Codec {
	instantiator := func() Instance {
		return newBaseInstance(brotli.NewWriter(nil), new(brotli.Reader), genericResetter)
	}

	return newBaseCodec("br", instantiator)
}
