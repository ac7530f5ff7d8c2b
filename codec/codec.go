package codec

import (
	"io"

	"github.com/ember-web/ember/http"
)

// Codec describes a content-coding implementation, instantiated lazily and at
// most once per connection.
type Codec interface {
	// Token returns the coding token associated with the codec itself.
	Token() string
	New() Instance
}

type Instance interface {
	Compressor
	Decompressor
}

type Compressor interface {
	io.WriteCloser
	ResetCompressor(w io.Writer)
}

type Decompressor interface {
	http.Fetcher
	ResetDecompressor(source http.Fetcher, bufferSize int) error
}

// Preference is the fixed negotiation order codings are chosen in, most
// preferred first. Identity is the implicit fallback.
var Preference = []string{"gzip", "deflate", "br", "zstd"}

// All returns every codec the engine ships with, in preference order.
func All() []Codec {
	return []Codec{NewGZIP(), NewDeflate(), NewBrotli(), NewZSTD()}
}

// Negotiate picks the most preferred coding among the accepted tokens that has
// a registered codec. Returns an empty string when only identity fits.
func Negotiate(accepted []string, registered []Codec) string {
	for _, preferred := range Preference {
		if !contains(accepted, preferred) {
			continue
		}

		for _, c := range registered {
			if c.Token() == preferred {
				return preferred
			}
		}
	}

	return ""
}

func contains(tokens []string, token string) bool {
	for _, t := range tokens {
		if t == token {
			return true
		}
	}

	return false
}
