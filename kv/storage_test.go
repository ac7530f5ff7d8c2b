package kv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStorage(t *testing.T) {
	t.Run("ordered duplicates", func(t *testing.T) {
		s := New().
			Add("Cookie", "a=b").
			Add("Host", "localhost").
			Add("Cookie", "c=d")

		require.Equal(t, []string{"a=b", "c=d"}, s.Values("cookie"))
		require.Equal(t, "a=b", s.Value("Cookie"))
		require.Equal(t, 3, s.Len())

		pairs := s.Expose()
		require.Equal(t, Pair{"Cookie", "a=b"}, pairs[0])
		require.Equal(t, Pair{"Host", "localhost"}, pairs[1])
		require.Equal(t, Pair{"Cookie", "c=d"}, pairs[2])
	})

	t.Run("case-insensitive lookup", func(t *testing.T) {
		s := New().Add("Content-Length", "13")
		value, found := s.Get("content-LENGTH")
		require.True(t, found)
		require.Equal(t, "13", value)
		require.True(t, s.Has("CONTENT-length"))
		require.False(t, s.Has("content-type"))
	})

	t.Run("missing key", func(t *testing.T) {
		s := New()
		require.Equal(t, "", s.Value("nonexistent"))
		require.Equal(t, "fallback", s.ValueOr("nonexistent", "fallback"))
		require.Nil(t, s.Values("nonexistent"))
		require.True(t, s.Empty())
	})

	t.Run("text accessor", func(t *testing.T) {
		s := New().
			Add("Plain", "hello world").
			Add("Binary", "a\x00b").
			Add("Invalid-UTF8", "\xff\xfe")

		value, err := s.Text("Plain")
		require.NoError(t, err)
		require.Equal(t, "hello world", value)

		_, err = s.Text("Binary")
		require.Error(t, err)

		_, err = s.Text("Invalid-UTF8")
		require.Error(t, err)

		value, err = s.Text("nonexistent")
		require.NoError(t, err)
		require.Empty(t, value)
	})

	t.Run("iter preserves order", func(t *testing.T) {
		s := New().Add("a", "1").Add("b", "2").Add("a", "3")

		var got []string
		for k, v := range s.Iter() {
			got = append(got, k+"="+v)
		}

		require.Equal(t, []string{"a=1", "b=2", "a=3"}, got)
	})

	t.Run("clear", func(t *testing.T) {
		s := New().Add("a", "1")
		s.Clear()
		require.True(t, s.Empty())
		require.False(t, s.Has("a"))
	})
}
