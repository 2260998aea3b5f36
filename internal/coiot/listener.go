package coiot

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/net/ipv4"
)

// Default CoIoT endpoint.
const (
	DefaultAddress = "224.0.1.187:5683"

	readBufferSize = 8192

	// Read errors other than a closed socket are retried with a capped
	// exponential delay.
	minReadBackoff = 50 * time.Millisecond
	maxReadBackoff = 5 * time.Second
)

// Logger defines the logging interface used by the Listener.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config configures the multicast listener.
type Config struct {
	// Address is the multicast group and port, e.g. "224.0.1.187:5683".
	Address string

	// Interface restricts the group join to a single interface name.
	// Empty joins on every multicast-capable interface that is up.
	Interface string
}

// Stats holds listener counters.
type Stats struct {
	Received  uint64
	Decoded   uint64
	Ignored   uint64
	Malformed uint64
	Listening bool
	LastSeen  time.Time
}

// Listener receives CoIoT status updates over UDP multicast.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Callbacks run on the receive goroutine; they must not block.
//
// Start and Stop may be called repeatedly; each successful transition
// invokes the corresponding callback exactly once.
type Listener struct {
	cfg Config

	// stateMu serialises Start/Stop.
	stateMu sync.Mutex
	conn    net.PacketConn
	done    chan struct{}
	wg      sync.WaitGroup

	callbackMu     sync.RWMutex
	onStart        func()
	onStop         func()
	onStatusUpdate func(StatusUpdate)

	logger   Logger
	loggerMu sync.RWMutex

	// listen opens the socket; replaced in tests.
	listen func(ctx context.Context) (net.PacketConn, error)

	received  atomic.Uint64
	decoded   atomic.Uint64
	ignored   atomic.Uint64
	malformed atomic.Uint64
	lastSeen  atomic.Int64
}

// NewListener creates a stopped listener.
func NewListener(cfg Config) *Listener {
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}
	l := &Listener{
		cfg:    cfg,
		logger: noopLogger{},
	}
	l.listen = l.listenMulticast
	return l
}

// SetLogger sets the logger for this listener.
func (l *Listener) SetLogger(logger Logger) {
	l.loggerMu.Lock()
	l.logger = logger
	l.loggerMu.Unlock()
}

// SetOnStart sets the callback invoked after the listener starts.
func (l *Listener) SetOnStart(callback func()) {
	l.callbackMu.Lock()
	l.onStart = callback
	l.callbackMu.Unlock()
}

// SetOnStop sets the callback invoked after the listener stops.
func (l *Listener) SetOnStop(callback func()) {
	l.callbackMu.Lock()
	l.onStop = callback
	l.callbackMu.Unlock()
}

// SetOnStatusUpdate sets the callback for decoded status updates.
func (l *Listener) SetOnStatusUpdate(callback func(StatusUpdate)) {
	l.callbackMu.Lock()
	l.onStatusUpdate = callback
	l.callbackMu.Unlock()
}

// Start opens the socket, joins the multicast group and begins receiving.
//
// Calling Start on a running listener is a no-op.
//
// Parameters:
//   - ctx: Context for cancellation of the socket setup
//
// Returns:
//   - error: if the socket cannot be opened or no interface joined the group
func (l *Listener) Start(ctx context.Context) error {
	l.stateMu.Lock()
	if l.conn != nil {
		l.stateMu.Unlock()
		return nil
	}

	conn, err := l.listen(ctx)
	if err != nil {
		l.stateMu.Unlock()
		return fmt.Errorf("starting coiot listener: %w", err)
	}
	l.conn = conn
	l.done = make(chan struct{})

	l.wg.Add(1)
	go l.receiveLoop(conn, l.done)
	l.stateMu.Unlock()

	l.log().Info("coiot listener started", "address", l.cfg.Address, "local", conn.LocalAddr().String())

	l.callbackMu.RLock()
	cb := l.onStart
	l.callbackMu.RUnlock()
	if cb != nil {
		cb()
	}
	return nil
}

// Stop closes the socket and waits for the receive goroutine to exit.
//
// Calling Stop on a stopped listener is a no-op.
func (l *Listener) Stop() error {
	l.stateMu.Lock()
	if l.conn == nil {
		l.stateMu.Unlock()
		return nil
	}

	close(l.done)
	err := l.conn.Close()
	l.wg.Wait()
	l.conn = nil
	l.stateMu.Unlock()

	l.log().Info("coiot listener stopped")

	l.callbackMu.RLock()
	cb := l.onStop
	l.callbackMu.RUnlock()
	if cb != nil {
		cb()
	}

	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("closing coiot socket: %w", err)
	}
	return nil
}

// Listening reports whether the listener is running.
func (l *Listener) Listening() bool {
	l.stateMu.Lock()
	defer l.stateMu.Unlock()
	return l.conn != nil
}

// Stats returns current counters.
func (l *Listener) Stats() Stats {
	s := Stats{
		Received:  l.received.Load(),
		Decoded:   l.decoded.Load(),
		Ignored:   l.ignored.Load(),
		Malformed: l.malformed.Load(),
		Listening: l.Listening(),
	}
	if ts := l.lastSeen.Load(); ts != 0 {
		s.LastSeen = time.Unix(0, ts)
	}
	return s
}

// receiveLoop reads datagrams until the socket is closed or done fires.
func (l *Listener) receiveLoop(conn net.PacketConn, done <-chan struct{}) {
	defer l.wg.Done()

	buf := make([]byte, readBufferSize)
	backoff := newReadBackoff()
	failures := 0
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			failures++
			delay, _ := backoff.Next()
			l.log().Warn("coiot read failed", "error", err, "consecutive", failures, "retry_in", delay)
			select {
			case <-done:
				return
			case <-time.After(delay):
			}
			continue
		}

		if failures > 0 {
			l.log().Info("coiot reads recovered", "failures", failures)
			failures = 0
			backoff = newReadBackoff()
		}
		l.handlePacket(buf[:n], hostOf(addr))
	}
}

func newReadBackoff() retry.Backoff {
	return retry.WithCappedDuration(maxReadBackoff, retry.NewExponential(minReadBackoff))
}

// handlePacket decodes one datagram and dispatches status updates.
func (l *Listener) handlePacket(data []byte, host string) {
	now := time.Now()
	l.received.Add(1)
	l.lastSeen.Store(now.UnixNano())

	msg, err := ParseMessage(data)
	if err != nil {
		l.malformed.Add(1)
		l.log().Debug("dropping malformed coap datagram", "host", host, "error", err)
		return
	}

	if !msg.IsStatus() {
		l.ignored.Add(1)
		return
	}

	update, err := ParseStatus(msg, host)
	if err != nil {
		l.malformed.Add(1)
		l.log().Debug("dropping malformed coiot status", "host", host, "error", err)
		return
	}
	update.ReceivedAt = now
	l.decoded.Add(1)

	l.callbackMu.RLock()
	cb := l.onStatusUpdate
	l.callbackMu.RUnlock()
	if cb != nil {
		cb(update)
	}
}

// listenMulticast opens a UDP socket on the configured port and joins the group.
func (l *Listener) listenMulticast(ctx context.Context) (net.PacketConn, error) {
	host, portStr, err := net.SplitHostPort(l.cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("parsing address %q: %w", l.cfg.Address, err)
	}
	group := net.ParseIP(host)
	if group == nil || !group.IsMulticast() {
		return nil, fmt.Errorf("address %q is not a multicast group", host)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("parsing port %q: %w", portStr, err)
	}

	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp4", net.JoinHostPort("0.0.0.0", strconv.Itoa(port)))
	if err != nil {
		return nil, err
	}

	ifaces, err := l.interfaces()
	if err != nil {
		conn.Close()
		return nil, err
	}

	pc := ipv4.NewPacketConn(conn)
	joined := 0
	for i := range ifaces {
		if err := pc.JoinGroup(&ifaces[i], &net.UDPAddr{IP: group}); err != nil {
			l.log().Debug("multicast join failed", "interface", ifaces[i].Name, "error", err)
			continue
		}
		joined++
	}
	if joined == 0 {
		conn.Close()
		return nil, ErrNoMulticastInterface
	}

	return conn, nil
}

// interfaces returns the interfaces to join the group on.
func (l *Listener) interfaces() ([]net.Interface, error) {
	if l.cfg.Interface != "" {
		ifi, err := net.InterfaceByName(l.cfg.Interface)
		if err != nil {
			return nil, fmt.Errorf("looking up interface %q: %w", l.cfg.Interface, err)
		}
		return []net.Interface{*ifi}, nil
	}

	all, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("listing interfaces: %w", err)
	}

	var out []net.Interface
	for _, ifi := range all {
		if ifi.Flags&net.FlagUp != 0 && ifi.Flags&net.FlagMulticast != 0 {
			out = append(out, ifi)
		}
	}
	return out, nil
}

func (l *Listener) log() Logger {
	l.loggerMu.RLock()
	defer l.loggerMu.RUnlock()
	return l.logger
}

func hostOf(addr net.Addr) string {
	if udp, ok := addr.(*net.UDPAddr); ok {
		return udp.IP.String()
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
