package redis

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kormik/rediscore/resp"
)

// dialFunc opens the raw byte stream to host:port. The default dials
// TCP (optionally wrapped in TLS); the SSH transporter dials through
// a tunnel.
type dialFunc func(ctx context.Context, host string, port int) (net.Conn, error)

// DefaultTransporter is the stock TCP transporter. It owns one socket
// and serves the command queue from a single worker goroutine, so
// replies correlate FIFO per priority class by construction.
type DefaultTransporter struct {
	cfg ConnectionConfig

	// back-reference for current-db tracking; the transporter's
	// lifetime is scoped strictly inside connect/disconnect, so this
	// cannot outlive the connection.
	connection *Connection

	dial dialFunc

	queue     *commandQueue
	events    chan Event
	reconnect chan Host

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once

	sockMu sync.Mutex
	sock   net.Conn
	reader *bufio.Reader

	canceledMu     sync.Mutex
	canceledOwners map[any]struct{}
}

// NewDefaultTransporter builds a TCP transporter bound to c's config.
func NewDefaultTransporter(c *Connection) *DefaultTransporter {
	t := newTransporterBase(c)
	t.dial = t.dialTCP
	return t
}

// newTransporterBase reads c.config directly: Connect calls it while
// holding c.mu, so going through Config() would self-deadlock.
func newTransporterBase(c *Connection) *DefaultTransporter {
	ctx, cancel := context.WithCancel(context.Background())
	return &DefaultTransporter{
		cfg:            c.config,
		connection:     c,
		queue:          newCommandQueue(),
		events:         make(chan Event, 64),
		reconnect:      make(chan Host, 4),
		ctx:            ctx,
		cancel:         cancel,
		canceledOwners: make(map[any]struct{}),
	}
}

// Events implements Transporter.
func (t *DefaultTransporter) Events() <-chan Event { return t.events }

// AddCommand implements Transporter.
func (t *DefaultTransporter) AddCommand(cmd *Command) { t.queue.push(cmd) }

// CancelCommands implements Transporter. Queued commands of the owner
// are canceled immediately; a command already on the wire has its
// reply dropped at dispatch time.
func (t *DefaultTransporter) CancelCommands(owner any) {
	if owner == nil {
		return
	}
	t.canceledMu.Lock()
	t.canceledOwners[owner] = struct{}{}
	t.canceledMu.Unlock()
	t.queue.cancelOwner(owner)
}

func (t *DefaultTransporter) ownerCanceled(owner any) bool {
	if owner == nil {
		return false
	}
	t.canceledMu.Lock()
	defer t.canceledMu.Unlock()
	_, ok := t.canceledOwners[owner]
	return ok
}

// ReconnectTo implements Transporter.
func (t *DefaultTransporter) ReconnectTo(host string, port int) {
	select {
	case t.reconnect <- Host{Host: host, Port: port}:
	case <-t.ctx.Done():
	}
}

// Shutdown implements Transporter. Safe to call more than once.
// Closing the socket here unblocks a worker stuck in a read so
// disconnect stays bounded.
func (t *DefaultTransporter) Shutdown() {
	t.stopOnce.Do(func() {
		t.cancel()
		t.closeSocket()
	})
}

// Run implements Transporter. It dials the configured host, reports
// EventConnected, then serves the queue until Shutdown or an I/O
// failure.
func (t *DefaultTransporter) Run() {
	defer close(t.events)
	defer t.queue.cancelAll()
	defer t.closeSocket()

	if err := t.connectTo(t.cfg.Host, t.cfg.Port); err != nil {
		t.emit(EventError, err.Error())
		return
	}
	t.emit(EventConnected, "")

	for {
		select {
		case <-t.ctx.Done():
			return
		case target := <-t.reconnect:
			t.closeSocket()
			if err := t.connectTo(target.Host, target.Port); err != nil {
				t.emit(EventError, err.Error())
				return
			}
			t.emit(EventConnected, "")
		case <-t.queue.notify:
			if !t.drainQueue() {
				return
			}
		}
	}
}

// drainQueue processes commands until the queue is empty. Returns
// false when the worker must stop.
func (t *DefaultTransporter) drainQueue() bool {
	for {
		select {
		case <-t.ctx.Done():
			return false
		default:
		}

		cmd := t.queue.pop()
		if cmd == nil {
			t.emit(EventQueueIsEmpty, "")
			return true
		}
		if err := t.processCommand(cmd); err != nil {
			t.emit(EventError, err.Error())
			return false
		}
	}
}

// processCommand runs one request/response cycle. A returned error is
// a transport failure; server error replies are delivered to the
// command and are not fatal for the worker.
func (t *DefaultTransporter) processCommand(cmd *Command) error {
	if t.ownerCanceled(cmd.Owner()) {
		cmd.cancelPending()
		return nil
	}

	if db := cmd.Db(); db >= 0 && db != t.connection.DbIndex() {
		reply, err := t.roundTrip([][]byte{[]byte("SELECT"), []byte(fmt.Sprintf("%d", db))})
		if err != nil {
			cmd.finish(Response{}, err.Error())
			return err
		}
		r := NewResponse(reply)
		if r.IsErrorMessage() {
			cmd.finish(r, fmt.Sprintf("cannot select db %d: %s", db, r.String()))
			return nil
		}
		t.connection.ChangeCurrentDbNumber(db)
	}

	reply, err := t.roundTrip(cmd.Args())
	if err != nil {
		cmd.finish(Response{}, err.Error())
		return err
	}

	if t.ownerCanceled(cmd.Owner()) {
		cmd.cancelPending()
		return nil
	}

	r := NewResponse(reply)
	if r.IsErrorMessage() {
		cmd.finish(r, r.String())
	} else {
		cmd.finish(r, "")
	}
	return nil
}

func (t *DefaultTransporter) roundTrip(args [][]byte) (resp.Value, error) {
	if timeout := t.cfg.ExecuteTimeout; timeout > 0 {
		if err := t.sock.SetDeadline(time.Now().Add(timeout)); err != nil {
			return nil, err
		}
		defer t.sock.SetDeadline(time.Time{})
	}
	if err := resp.WriteCommand(t.sock, args); err != nil {
		return nil, err
	}
	return resp.Parse(t.reader)
}

// connectTo dials with exponential backoff bounded by the connection
// timeout, so transient refusals during failover do not abort the
// worker immediately.
func (t *DefaultTransporter) connectTo(host string, port int) error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = t.cfg.ConnectionTimeout

	return backoff.Retry(func() error {
		sock, err := t.dial(t.ctx, host, port)
		if err != nil {
			t.emit(EventLog, fmt.Sprintf("dial %s:%d failed: %v", host, port, err))
			return err
		}
		t.sockMu.Lock()
		t.sock = sock
		t.reader = bufio.NewReader(sock)
		t.sockMu.Unlock()
		if t.ctx.Err() != nil {
			sock.Close()
			return backoff.Permanent(t.ctx.Err())
		}
		return nil
	}, backoff.WithContext(policy, t.ctx))
}

func (t *DefaultTransporter) dialTCP(ctx context.Context, host string, port int) (net.Conn, error) {
	dialer := net.Dialer{Timeout: t.cfg.ConnectionTimeout}
	sock, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, fmt.Sprintf("%d", port)))
	if err != nil {
		return nil, err
	}
	if t.cfg.UseTLS {
		tlsSock := tls.Client(sock, &tls.Config{ServerName: host})
		if err := tlsSock.HandshakeContext(ctx); err != nil {
			sock.Close()
			return nil, err
		}
		return tlsSock, nil
	}
	return sock, nil
}

// closeSocket closes the current socket without clearing it; the
// worker only touches the socket after a successful connect, and a
// reconnect installs a fresh one.
func (t *DefaultTransporter) closeSocket() {
	t.sockMu.Lock()
	defer t.sockMu.Unlock()
	if t.sock != nil {
		t.sock.Close()
	}
}

func (t *DefaultTransporter) emit(kind EventKind, message string) {
	select {
	case t.events <- Event{Kind: kind, Message: message}:
	default:
		// the event buffer is sized far beyond what one worker can
		// produce between reads; dropping here only loses diagnostics
	}
}
