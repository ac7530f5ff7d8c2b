package transport

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClient(t *testing.T) {
	t.Run("read and pushback", func(t *testing.T) {
		local, peer := net.Pipe()
		defer local.Close()
		defer peer.Close()

		client := NewClient(local, make([]byte, 64))

		go func() {
			_, _ = peer.Write([]byte("Hello"))
		}()

		data, err := client.Read()
		require.NoError(t, err)
		require.Equal(t, "Hello", string(data))

		client.Pushback(data[2:])
		data, err = client.Read()
		require.NoError(t, err)
		require.Equal(t, "llo", string(data))
	})

	t.Run("write", func(t *testing.T) {
		local, peer := net.Pipe()
		defer local.Close()
		defer peer.Close()

		client := NewClient(local, make([]byte, 64))

		go func() {
			_, _ = client.Write([]byte("ping"))
		}()

		buff := make([]byte, 64)
		n, err := peer.Read(buff)
		require.NoError(t, err)
		require.Equal(t, "ping", string(buff[:n]))
	})

	t.Run("read timeout", func(t *testing.T) {
		local, peer := net.Pipe()
		defer local.Close()
		defer peer.Close()

		client := NewClient(local, make([]byte, 64))
		client.SetReadTimeout(10 * time.Millisecond)

		_, err := client.Read()
		require.Error(t, err)

		nerr, ok := err.(net.Error)
		require.True(t, ok)
		require.True(t, nerr.Timeout())
	})

	t.Run("close", func(t *testing.T) {
		local, peer := net.Pipe()
		defer peer.Close()

		client := NewClient(local, make([]byte, 64))
		require.NoError(t, client.Close())

		_, err := client.Read()
		require.Error(t, err)
	})
}
