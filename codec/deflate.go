package codec

import (
	"io"

	"github.com/klauspost/compress/flate"
)

func NewDeflate() Codec {
	instantiator := func() Instance {
		writer, err := flate.NewWriter(nil, 5)
		if err != nil {
			panic(err)
		}

		reset := func(r io.Reader, a *readerAdapter) error {
			return r.(flate.Resetter).Reset(a, nil)
		}

		return newBaseInstance(writer, flate.NewReader(nil), reset)
	}

	return newBaseCodec("deflate", instantiator)
}
