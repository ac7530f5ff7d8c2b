package codec

import (
	"github.com/klauspost/compress/zstd"
)

func NewZSTD() Codec {
	instantiator := func() Instance {
		w, err := zstd.NewWriter(nil)
		if err != nil {
			panic(err)
		}

		r, err := zstd.NewReader(nil)
		if err != nil {
			panic(err)
		}

		return newBaseInstance(w, r, genericResetter)
	}

	return newBaseCodec("zstd", instantiator)
}
