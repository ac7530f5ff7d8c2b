package http1

import (
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ember-web/ember/config"
	"github.com/ember-web/ember/http"
	"github.com/ember-web/ember/http/method"
	"github.com/ember-web/ember/http/proto"
	"github.com/ember-web/ember/http/status"
	"github.com/ember-web/ember/internal/buffer"
	"github.com/ember-web/ember/internal/codecutil"
	"github.com/ember-web/ember/internal/strutil"
	"github.com/ember-web/ember/kv"
	"github.com/ember-web/ember/transport"
)

// State of a connection. The lifecycle is modelled as an explicit finite-state
// machine so keep-alive and pipelining decisions stay unit-testable without a
// real socket.
type State uint8

const (
	StateIdle State = iota
	StateReadingHead
	StateAwaitingBody
	StateWritingResponse
	StateKeepAliveWait
	StateUpgraded
	StateClosing
	StateClosed
)

func (s State) String() string {
	lut := [...]string{
		StateIdle:            "idle",
		StateReadingHead:     "reading-head",
		StateAwaitingBody:    "awaiting-body",
		StateWritingResponse: "writing-response",
		StateKeepAliveWait:   "keep-alive-wait",
		StateUpgraded:        "upgraded",
		StateClosing:         "closing",
		StateClosed:          "closed",
	}
	if int(s) >= len(lut) {
		return ""
	}

	return lut[s]
}

func bit(s State) uint16 {
	return 1 << s
}

// validTransitions maps a state onto the set of states it may legally move to.
var validTransitions = [...]uint16{
	StateIdle:            bit(StateReadingHead) | bit(StateClosing),
	StateReadingHead:     bit(StateAwaitingBody) | bit(StateUpgraded) | bit(StateClosing),
	StateAwaitingBody:    bit(StateWritingResponse) | bit(StateUpgraded) | bit(StateClosing),
	StateWritingResponse: bit(StateKeepAliveWait) | bit(StateUpgraded) | bit(StateClosing),
	StateKeepAliveWait:   bit(StateReadingHead) | bit(StateClosing),
	StateUpgraded:        bit(StateClosing),
	StateClosing:         bit(StateClosed),
	StateClosed:          0,
}

// fsm is the concurrency-safe holder of the connection state. Every movement
// goes through the transition table; an illegal edge is a bug in the engine,
// not a recoverable condition.
type fsm struct {
	mu    sync.Mutex
	state State
}

func (f *fsm) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.state
}

// Transition moves to the given state, panicking on an edge the table doesn't
// allow.
func (f *fsm) Transition(to State) {
	if !f.Advance(to) {
		panic(fmt.Sprintf("BUG: illegal connection state transition: %s -> %s", f.State(), to))
	}
}

// Advance moves to the given state if the table allows the edge, reporting
// whether it did. Used at points where reader and writer may race for the
// same edge.
func (f *fsm) Advance(to State) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if validTransitions[f.state]&bit(to) == 0 {
		return false
	}

	f.state = to
	return true
}

// exchange is a single request/response pair travelling through the pipeline
// window. ready is closed once the handler produced a result; done is closed
// once the response hit the wire and the body leftovers were drained.
type exchange struct {
	request *http.Request
	parser  *Parser
	result  *http.Response
	err     error
	hasBody bool
	ready   chan struct{}
	done    chan struct{}
}

func (e *exchange) reset() {
	e.request.Reset()
	e.result = nil
	e.err = nil
	e.hasBody = false
	e.ready = make(chan struct{})
	e.done = make(chan struct{})
}

// Conn drives a single connection: parses heads, dispatches handlers and
// writes responses. Heads may be parsed and dispatched ahead of earlier
// responses completing, up to the configured pipeline depth, but responses
// always leave in request order: the writer drains the window strictly FIFO.
//
// Exchanges whose handlers may touch the socket themselves, that is requests
// carrying a body, upgrade offers and CONNECT requests, are processed
// serially: the reader parks until the exchange completes.
type Conn struct {
	cfg      *config.Config
	client   transport.Client
	handler  http.Handler
	onError  http.ErrorHandler
	ser      *serializer
	body     *Body
	fsm      fsm
	window   chan *exchange
	free     chan *exchange
	last     *exchange
	inflight atomic.Int32
	hijacked atomic.Bool
}

func NewConn(
	cfg *config.Config,
	client transport.Client,
	codecs codecutil.Cache,
	handler http.Handler,
	onError http.ErrorHandler,
) *Conn {
	depth := cfg.NET.PipelineDepth

	return &Conn{
		cfg:     cfg,
		client:  client,
		handler: handler,
		onError: onError,
		ser:     newSerializer(cfg, client, codecs, make([]byte, 0, cfg.NET.WriteBufferSize.Default)),
		body:    NewBody(cfg, client, codecs),
		window:  make(chan *exchange, depth),
		free:    make(chan *exchange, depth),
	}
}

// State reports the current lifecycle state of the connection.
func (c *Conn) State() State {
	return c.fsm.State()
}

// Hijacked tells whether a handler took the raw connection over.
func (c *Conn) Hijacked() bool {
	return c.hijacked.Load()
}

// Serve processes exchanges until the connection is done. It blocks until the
// connection reaches Closed, or Upgraded with the raw channel handed over; in
// the latter case the client is left open and owned by the hijacker.
func (c *Conn) Serve() {
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		c.writeLoop()
	}()

	c.readLoop()
	close(c.window)
	wg.Wait()

	if c.hijacked.Load() {
		return
	}

	c.fsm.Advance(StateClosing)
	c.fsm.Transition(StateClosed)
	_ = c.client.Close()
}

func (c *Conn) readLoop() {
	for {
		ex := c.takeExchange()
		serial := c.inflight.Load() == 0
		if serial && !c.fsm.Advance(StateReadingHead) {
			// the writer moved to Closing behind our back
			return
		}

		if !c.readHead(ex) {
			// nothing of the next head arrived: a clean end of the connection
			return
		}

		if ex.err == nil && serial {
			c.fsm.Advance(StateAwaitingBody)
		}

		if ex.err == nil {
			c.prepare(ex)
		}

		if ex.err != nil {
			// fatal for the whole connection: ship the error response and stop
			// reading
			close(ex.ready)
			c.enqueue(ex)
			return
		}

		persist := persists(ex.request)

		if exclusive(ex) {
			if !c.park(ex) {
				return
			}
		} else {
			go c.runHandler(ex)
			c.enqueue(ex)
		}

		if !persist {
			return
		}
	}
}

// park runs the exchange serially: earlier responses are flushed first, then
// the handler owns the socket alone. Reports whether the connection is worth
// reading further.
func (c *Conn) park(ex *exchange) bool {
	if prev := c.last; prev != nil {
		<-prev.done
	}

	if len(ex.request.Upgrade) > 0 {
		ex.request.AllowHijacking(func() error {
			return c.ser.Upgrade(ex.request)
		})
	} else {
		ex.request.AllowHijacking(nil)
	}

	c.client.SetReadTimeout(c.cfg.NET.BodyReadTimeout)
	c.runHandler(ex)
	c.enqueue(ex)
	<-ex.done

	return !c.hijacked.Load() && ex.err == nil
}

// readHead pulls bytes until a complete head is parsed. Returns false when the
// connection ended cleanly before any byte of the next head arrived.
func (c *Conn) readHead(ex *exchange) bool {
	client := c.client
	client.SetReadTimeout(c.cfg.NET.KeepAliveTimeout)
	started := false

	for {
		data, err := client.Read()
		if err != nil {
			if !started {
				return false
			}

			if terr, ok := err.(net.Error); ok && terr.Timeout() {
				ex.err = status.ErrRequestTimeout
				return true
			}

			ex.err = status.ErrCloseConnection
			return true
		}

		if !started && len(data) > 0 {
			started = true
			client.SetReadTimeout(c.cfg.NET.HeaderReadTimeout)
		}

		done, extra, err := ex.parser.Parse(data)
		if err != nil {
			ex.err = err
			return true
		}

		if done {
			client.Pushback(extra)
			return true
		}
	}
}

// prepare derives the framing of the exchange and arms its body source.
func (c *Conn) prepare(ex *exchange) {
	request := ex.request

	framing, err := request.Framing()
	if err != nil {
		ex.err = err
		return
	}

	ex.hasBody = framing.Kind != http.FramingNone

	if !exclusive(ex) {
		request.Body.Reset(noBody{})
		return
	}

	ex.err = c.body.Reset(request)
}

// exclusive reports whether the handler of the exchange may interact with the
// socket itself, which rules concurrent processing out.
func exclusive(ex *exchange) bool {
	return ex.hasBody || len(ex.request.Upgrade) > 0 || ex.request.Method == method.CONNECT
}

func (c *Conn) runHandler(ex *exchange) {
	defer close(ex.ready)

	ex.result = c.handler(ex.request)
	if ex.result == nil {
		ex.result = http.Respond(ex.request)
	}
}

func (c *Conn) enqueue(ex *exchange) {
	c.last = ex
	c.inflight.Add(1)
	c.window <- ex
}

func (c *Conn) writeLoop() {
	dead := false

	for ex := range c.window {
		<-ex.ready

		if !dead {
			dead = !c.complete(ex)
		}

		close(ex.done)
		c.inflight.Add(-1)
		c.release(ex)
	}
}

// complete writes out the response of the exchange and drains whatever is left
// of its body. Returns false once the connection must not be written anymore.
func (c *Conn) complete(ex *exchange) bool {
	if ex.err != nil {
		c.writeError(ex)
		return false
	}

	request := ex.request

	if request.Hijacked() {
		c.hijacked.Store(true)
		c.fsm.Advance(StateUpgraded)
		return false
	}

	// a queued pipelined exchange skipped the reader-side bookkeeping; catch
	// the state machine up before writing.
	if c.fsm.State() == StateKeepAliveWait {
		c.fsm.Transition(StateReadingHead)
		c.fsm.Transition(StateAwaitingBody)
	}

	c.fsm.Transition(StateWritingResponse)

	persist := persists(request)
	err := c.ser.Write(request, ex.result, !persist)
	if err == nil && ex.hasBody {
		err = request.Body.Discard()
	}

	if err != nil {
		ex.err = status.ErrCloseConnection
		c.fsm.Transition(StateClosing)
		_ = c.client.Close()
		return false
	}

	if !persist {
		c.fsm.Transition(StateClosing)
		return false
	}

	c.fsm.Transition(StateKeepAliveWait)
	return true
}

// writeError renders a deterministic error response. If the error says the
// connection must simply be dropped, nothing is written at all.
func (c *Conn) writeError(ex *exchange) {
	if ex.err == status.ErrCloseConnection {
		c.fsm.Advance(StateClosing)
		return
	}

	ex.request.Env.Error = ex.err

	var resp *http.Response
	if c.onError != nil {
		resp = c.onError(ex.request, ex.err)
	}

	if resp == nil {
		resp = ex.request.Respond().Error(ex.err)
	}

	_ = c.ser.Write(ex.request, resp, true)
	c.fsm.Advance(StateClosing)
}

func (c *Conn) takeExchange() *exchange {
	select {
	case ex := <-c.free:
		ex.reset()
		return ex
	default:
		return c.newExchange()
	}
}

func (c *Conn) release(ex *exchange) {
	select {
	case c.free <- ex:
	default:
	}
}

func (c *Conn) newExchange() *exchange {
	cfg := c.cfg
	requestLine := buffer.New(cfg.URI.RequestLineSize.Default, cfg.URI.RequestLineSize.Maximal)
	headersBuff := buffer.New(cfg.Headers.Space.Default, cfg.Headers.Space.Maximal)
	headers := kv.NewPrealloc(cfg.Headers.Number.Default)
	response := http.NewResponse()
	request := http.NewRequest(c.client, headers, response)
	request.Body = http.NewBody(cfg.Body.BufferPrealloc)

	ex := &exchange{
		request: request,
		parser:  NewParser(cfg, request, requestLine, headersBuff),
	}
	ex.reset()

	return ex
}

// persists reports whether the connection may be reused for the next exchange
// after this request. HTTP/1.1 defaults to keep-alive unless the close token
// is present; HTTP/1.0 persists on an explicit keep-alive only.
func persists(request *http.Request) bool {
	switch request.Protocol {
	case proto.HTTP11:
		return !hasToken(request.Connection, "close")
	case proto.HTTP10:
		return hasToken(request.Connection, "keep-alive")
	default:
		return false
	}
}

// hasToken reports whether a comma-separated list contains the token,
// case-insensitively.
func hasToken(list, token string) bool {
	for len(list) > 0 {
		var entry string

		if comma := strings.IndexByte(list, ','); comma != -1 {
			entry, list = list[:comma], list[comma+1:]
		} else {
			entry, list = list, ""
		}

		if strutil.CmpFold(strutil.StripWS(entry), token) {
			return true
		}
	}

	return false
}

// noBody is the body source of requests that carry none.
type noBody struct{}

func (noBody) Fetch() ([]byte, error) {
	return nil, io.EOF
}
