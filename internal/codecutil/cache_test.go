package codecutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ember-web/ember/codec"
)

func TestCache(t *testing.T) {
	t.Run("lookup", func(t *testing.T) {
		cache := NewCache([]codec.Codec{codec.NewGZIP(), codec.NewBrotli()})
		require.NotNil(t, cache.Get("gzip"))
		require.NotNil(t, cache.Get("br"))
		require.Nil(t, cache.Get("zstd"))
		require.Equal(t, "gzip, br", cache.AcceptEncoding())
	})

	t.Run("instances are stable", func(t *testing.T) {
		cache := NewCache([]codec.Codec{codec.NewGZIP()})
		require.Same(t, cache.Get("gzip"), cache.Get("gzip"))
	})

	t.Run("concurrent lookups", func(t *testing.T) {
		// the body and the serializer sit on different goroutines of the same
		// connection and hit the cache without coordination, so Get must not
		// modify anything.
		cache := NewCache([]codec.Codec{codec.NewGZIP(), codec.NewDeflate()})

		var wg sync.WaitGroup
		for range 2 {
			wg.Add(1)
			go func() {
				defer wg.Done()

				for range 1000 {
					require.NotNil(t, cache.Get("gzip"))
					require.NotNil(t, cache.Get("deflate"))
				}
			}()
		}

		wg.Wait()
	})
}
