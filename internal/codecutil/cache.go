package codecutil

import (
	"strings"

	"github.com/ember-web/ember/codec"
)

// Cache hands out codec instances by token, one instance per codec per
// connection. All instances are constructed upfront: the cache is read from
// both sides of the connection at once (the body arming decompression, the
// serializer compressing a response), so lookups must stay write-free.
type Cache struct {
	accept    string
	codecs    []codec.Codec
	instances []codec.Instance
}

func NewCache(codecs []codec.Codec) Cache {
	instances := make([]codec.Instance, len(codecs))
	for i, c := range codecs {
		instances[i] = c.New()
	}

	return Cache{
		accept:    acceptEncoding(codecs),
		codecs:    codecs,
		instances: instances,
	}
}

func (c Cache) find(token string) (int, codec.Codec) {
	for i, entry := range c.codecs {
		if entry.Token() == token {
			return i, entry
		}
	}

	return -1, nil
}

func (c Cache) Get(token string) codec.Instance {
	idx, _ := c.find(token)
	if idx == -1 {
		return nil
	}

	return c.instances[idx]
}

// Registered exposes the codecs behind the cache.
func (c Cache) Registered() []codec.Codec {
	return c.codecs
}

// AcceptEncoding returns the pre-rendered Accept-Encoding value listing all the
// registered tokens.
func (c Cache) AcceptEncoding() string {
	return c.accept
}

func acceptEncoding(codecs []codec.Codec) string {
	if len(codecs) == 0 {
		return "identity"
	}

	var b strings.Builder

	b.WriteString(codecs[0].Token())
	for _, c := range codecs[1:] {
		b.WriteString(", ")
		b.WriteString(c.Token())
	}

	return b.String()
}
