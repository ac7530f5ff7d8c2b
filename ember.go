package ember

import (
	"log/slog"
	"net"
	"sync"

	"github.com/ember-web/ember/codec"
	"github.com/ember-web/ember/config"
	"github.com/ember-web/ember/http"
	"github.com/ember-web/ember/internal/codecutil"
	"github.com/ember-web/ember/internal/protocol/http1"
	"github.com/ember-web/ember/transport"
)

// App glues the engine together: it accepts TCP connections, wraps each into a
// transport client backed by a pooled read buffer, and drives the HTTP/1
// connection state machine over it. Routing, middleware and handler ergonomics
// are not provided here; they live behind the http.Handler callback.
type App struct {
	cfg     *config.Config
	handler http.Handler
	onError http.ErrorHandler
	codecs  []codec.Codec
	log     *slog.Logger
	tcp     *transport.TCP
	buffers sync.Pool
}

func New() *App {
	return &App{
		cfg:    config.Default(),
		codecs: codec.All(),
		log:    slog.Default(),
		tcp:    transport.NewTCP(),
	}
}

// Tune replaces the default config. Zero values are filled with defaults.
func (a *App) Tune(cfg *config.Config) *App {
	a.cfg = config.Fill(cfg)
	return a
}

// OnRequest sets the handler invoked for every parsed request.
func (a *App) OnRequest(handler http.Handler) *App {
	a.handler = handler
	return a
}

// OnError sets the handler rendering fatal exchange errors. When unset or
// returning nil, a plain-text response for the error is rendered instead.
func (a *App) OnError(handler http.ErrorHandler) *App {
	a.onError = handler
	return a
}

// Codecs replaces the default content-coding set. Passing none disables
// compression entirely.
func (a *App) Codecs(codecs ...codec.Codec) *App {
	a.codecs = codecs
	return a
}

// Log replaces the default logger.
func (a *App) Log(log *slog.Logger) *App {
	a.log = log
	return a
}

// Listen binds the address and serves it until Stop is called. The call
// blocks for the whole lifetime of the application.
func (a *App) Listen(addr string) error {
	if a.handler == nil {
		a.handler = http.Respond
	}

	a.buffers.New = func() any {
		return make([]byte, a.cfg.NET.ReadBufferSize)
	}

	if err := a.tcp.Bind(addr); err != nil {
		return err
	}

	a.log.Info("listening", "addr", addr)

	err := a.tcp.Listen(a.serve)
	a.tcp.Wait(a.cfg.NET.ShutdownGrace)
	a.tcp.Close()
	a.log.Info("stopped", "addr", addr)

	return err
}

// Stop initiates a graceful shutdown: no new connections are accepted, active
// ones are given the configured grace period to finish.
func (a *App) Stop() {
	a.tcp.Stop()
}

func (a *App) serve(netConn net.Conn) {
	buff := a.buffers.Get().([]byte)
	client := transport.NewClient(netConn, buff)
	conn := http1.NewConn(a.cfg, client, codecutil.NewCache(a.codecs), a.handler, a.onError)

	defer func() {
		if r := recover(); r != nil {
			a.log.Error("panic while serving", "remote", netConn.RemoteAddr(), "panic", r)
			_ = client.Close()
			return
		}

		if conn.Hijacked() {
			// the hijacker owns the client and the read buffer now
			return
		}

		a.buffers.Put(buff)
	}()

	a.log.Debug("connected", "remote", netConn.RemoteAddr())
	conn.Serve()
	a.log.Debug("disconnected", "remote", netConn.RemoteAddr())
}
