package wled

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/wledkit/internal/clock"
)

var (
	// ErrConnectionLost marks a device connection that closed, cleanly or not.
	ErrConnectionLost = errors.New("connection lost")
	// ErrTransport marks an advisory transport failure (dial or write).
	ErrTransport = errors.New("transport error")
)

// LinkConfig contains connection and reconnection settings.
type LinkConfig struct {
	ReconnectDelay   time.Duration // Fixed delay before reopening a closed host
	HandshakeTimeout time.Duration // Websocket handshake timeout
	WriteTimeout     time.Duration // Per-message write deadline
	AfterFunc        clock.AfterFunc
}

// DefaultLinkConfig returns the settings the device firmware is known to cope with.
func DefaultLinkConfig() LinkConfig {
	return LinkConfig{
		ReconnectDelay:   300 * time.Millisecond,
		HandshakeTimeout: 5 * time.Second,
		WriteTimeout:     2 * time.Second,
		AfterFunc:        clock.Real,
	}
}

// MessageHandler receives every inbound frame with its originating host.
type MessageHandler func(host string, payload []byte)

// StatusHandler is told when a host connects or disconnects.
type StatusHandler func(host string, connected bool)

type hostConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func (c *hostConn) write(payload []byte, timeout time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if timeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(timeout))
	}
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

// Link keeps one persistent websocket per device host. Commands are broadcast
// to every open connection; inbound frames from all hosts go to one handler.
// A closed connection is reopened after a fixed delay, forever, until the
// context passed to Open is cancelled or Close is called.
type Link struct {
	config LinkConfig
	dialer *websocket.Dialer

	mu        sync.RWMutex
	hosts     []string
	conns     map[string]*hostConn
	failLogs  map[string]*rate.Sometimes
	onMessage MessageHandler
	onStatus  StatusHandler

	reconnects atomic.Int64
	closed     atomic.Bool
}

// NewLink creates a link with the given configuration. Zero fields fall back
// to DefaultLinkConfig.
func NewLink(config LinkConfig) *Link {
	defaults := DefaultLinkConfig()
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = defaults.ReconnectDelay
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = defaults.HandshakeTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.AfterFunc == nil {
		config.AfterFunc = defaults.AfterFunc
	}

	return &Link{
		config: config,
		dialer: &websocket.Dialer{
			Proxy:             http.ProxyFromEnvironment,
			HandshakeTimeout:  config.HandshakeTimeout,
			EnableCompression: false,
		},
		conns:    make(map[string]*hostConn),
		failLogs: make(map[string]*rate.Sometimes),
	}
}

// URL returns the websocket endpoint of a device host.
func URL(host string) string {
	return fmt.Sprintf("ws://%s/ws", host)
}

// OnMessage registers the single inbound frame handler.
func (l *Link) OnMessage(handler MessageHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onMessage = handler
}

// OnStatus registers the connection status handler.
func (l *Link) OnStatus(handler StatusHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onStatus = handler
}

// Open starts one connection per host. Connections are established in the
// background; failures are retried like closures.
func (l *Link) Open(ctx context.Context, hosts []string) {
	l.mu.Lock()
	l.hosts = append(l.hosts, hosts...)
	l.mu.Unlock()

	context.AfterFunc(ctx, l.Close)

	for _, host := range hosts {
		go l.dial(ctx, host)
	}
}

// Send writes payload to every open connection. Hosts that are between a
// close and their reconnect miss the message.
func (l *Link) Send(payload []byte) {
	l.mu.RLock()
	conns := make(map[string]*hostConn, len(l.conns))
	for host, c := range l.conns {
		conns[host] = c
	}
	l.mu.RUnlock()

	if len(conns) == 0 {
		log.Debug().Str("payload", string(payload)).Msg("No WLED connection open, dropping command")
		return
	}

	for host, c := range conns {
		if err := c.write(payload, l.config.WriteTimeout); err != nil {
			log.Warn().
				Err(fmt.Errorf("%w: %v", ErrTransport, err)).
				Str("host", host).
				Msg("Failed to send WLED command")
		}
	}
}

// Hosts returns the configured hosts in configuration order.
func (l *Link) Hosts() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.hosts...)
}

// Connected returns the hosts with an open connection, sorted.
func (l *Link) Connected() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	hosts := make([]string, 0, len(l.conns))
	for host := range l.conns {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)
	return hosts
}

// Reconnects returns how many reopen attempts have been scheduled.
func (l *Link) Reconnects() int64 {
	return l.reconnects.Load()
}

// Close stops reconnecting and closes every open connection.
func (l *Link) Close() {
	if l.closed.Swap(true) {
		return
	}

	l.mu.Lock()
	conns := l.conns
	l.conns = make(map[string]*hostConn)
	l.mu.Unlock()

	for _, c := range conns {
		_ = c.ws.Close()
	}
}

func (l *Link) dial(ctx context.Context, host string) {
	if ctx.Err() != nil || l.closed.Load() {
		return
	}

	ws, _, err := l.dialer.DialContext(ctx, URL(host), nil)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		l.failureLog(host).Do(func() {
			log.Warn().
				Err(fmt.Errorf("%w: %v", ErrTransport, err)).
				Str("host", host).
				Dur("delay", l.config.ReconnectDelay).
				Msg("WLED connection failed, retrying")
		})
		l.scheduleReconnect(ctx, host)
		return
	}

	c := &hostConn{ws: ws}

	l.mu.Lock()
	if l.closed.Load() {
		l.mu.Unlock()
		_ = ws.Close()
		return
	}
	l.conns[host] = c
	delete(l.failLogs, host)
	l.mu.Unlock()

	log.Info().Str("host", host).Msg("Connected to WLED")
	l.notifyStatus(host, true)

	go l.readLoop(ctx, host, c)
}

func (l *Link) readLoop(ctx context.Context, host string, c *hostConn) {
	var err error
	for {
		var data []byte
		_, data, err = c.ws.ReadMessage()
		if err != nil {
			break
		}

		l.mu.RLock()
		handler := l.onMessage
		l.mu.RUnlock()

		if handler != nil {
			handler(host, data)
		}
	}

	l.mu.Lock()
	if l.conns[host] == c {
		delete(l.conns, host)
	}
	l.mu.Unlock()
	_ = c.ws.Close()

	if ctx.Err() != nil || l.closed.Load() {
		return
	}

	log.Info().
		Err(fmt.Errorf("%w: %v", ErrConnectionLost, err)).
		Str("host", host).
		Dur("delay", l.config.ReconnectDelay).
		Msg("WLED disconnected, reconnecting")
	l.notifyStatus(host, false)
	l.scheduleReconnect(ctx, host)
}

func (l *Link) scheduleReconnect(ctx context.Context, host string) {
	l.reconnects.Inc()
	l.config.AfterFunc(l.config.ReconnectDelay, func() {
		l.dial(ctx, host)
	})
}

func (l *Link) notifyStatus(host string, connected bool) {
	l.mu.RLock()
	handler := l.onStatus
	l.mu.RUnlock()

	if handler != nil {
		handler(host, connected)
	}
}

// failureLog throttles dial failure logs per host; an unreachable device is
// retried every few hundred milliseconds.
func (l *Link) failureLog(host string) *rate.Sometimes {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.failLogs[host]
	if !ok {
		s = &rate.Sometimes{First: 1, Interval: 30 * time.Second}
		l.failLogs[host] = s
	}
	return s
}
