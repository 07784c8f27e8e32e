// Package redis implements the client connection engine: a state
// machine owning one transporter worker, an asynchronous command
// pipeline with FIFO reply correlation, topology detection for
// standalone, Sentinel and Cluster deployments, iterative SCAN
// retrieval and multi-node cluster operations.
package redis

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kormik/rediscore/resp"
)

// EndOfCollection is the terminator delivered by incremental scan
// callbacks. It is a sentinel, not a real error.
const EndOfCollection = "end_of_collection"

// dbLockTimeout bounds acquisition of the current-db lock.
const dbLockTimeout = 5 * time.Second

// Mode is the detected deployment topology.
type Mode int

const (
	ModeNormal Mode = iota
	ModeCluster
	ModeSentinel
)

func (m Mode) String() string {
	switch m {
	case ModeCluster:
		return "cluster"
	case ModeSentinel:
		return "sentinel"
	default:
		return "normal"
	}
}

// Host is one cluster node address.
type Host struct {
	Host string
	Port int
}

// RawKeysCallback receives a batch of raw key names, or an error
// string.
type RawKeysCallback func(keys [][]byte, err string)

// Connection drives one transporter against one Redis endpoint. It is
// created detached; Connect spawns the I/O worker, authenticates and
// detects the topology. The command API is callable from any
// goroutine.
type Connection struct {
	mu     sync.Mutex
	config ConnectionConfig

	autoConnect bool
	log         *logrus.Entry

	transporter   Transporter
	workerDone    chan struct{}
	workerRunning atomic.Bool
	stopping      atomic.Bool

	dbNumber atomic.Int32
	dbLock   chan struct{}

	mode       Mode
	serverInfo ServerInfo

	afterConnectMu sync.Mutex
	afterConnect   []func(err string)

	idleMu      sync.Mutex
	idle        bool
	idleWaiters []chan struct{}

	// per-traversal state threaded across async cluster steps
	notVisitedMasters      []Host
	collectClusterNodeKeys RawKeysCallback
	cmdCallback            Callback
}

// NewConnection creates a detached connection. With autoConnect set,
// commands issued before Connect defer until the connection comes up.
func NewConnection(config ConnectionConfig, autoConnect bool) *Connection {
	return &Connection{
		config:      config,
		autoConnect: autoConnect,
		dbLock:      make(chan struct{}, 1),
		log: logrus.WithFields(logrus.Fields{
			"component": "redis",
			"host":      config.Host,
			"port":      config.Port,
		}),
	}
}

// Config returns a copy of the connection config.
func (c *Connection) Config() ConnectionConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config
}

// SetConfig replaces the config. Takes effect on the next Connect.
func (c *Connection) SetConfig(config ConnectionConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.config = config
}

// Mode returns the detected topology mode.
func (c *Connection) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *Connection) setMode(m Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = m
}

// DbIndex returns the database index currently selected on the wire.
func (c *Connection) DbIndex() int { return int(c.dbNumber.Load()) }

// ServerVersion returns the server's major.minor version, 0.0 before
// the first successful auth.
func (c *Connection) ServerVersion() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverInfo.Version
}

// KeyspaceInfo returns the per-database key counts from the last INFO
// refresh.
func (c *Connection) KeyspaceInfo() map[int]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[int]int, len(c.serverInfo.Databases))
	for db, keys := range c.serverInfo.Databases {
		out[db] = keys
	}
	return out
}

// ServerInfo returns the last parsed INFO digest.
func (c *Connection) ServerInfo() ServerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverInfo
}

// Clone returns a new, disconnected connection with the same config.
func (c *Connection) Clone() *Connection {
	return NewConnection(c.Config(), c.autoConnect)
}

// IsConnected reports whether the transporter worker is up and not
// being torn down.
func (c *Connection) IsConnected() bool {
	return !c.stopping.Load() && c.workerRunning.Load()
}

// Connect creates the transporter (SSH variant when the tunnel is
// enabled), spawns the I/O worker and starts the auth sequence. With
// wait set it blocks until auth settles or the connection timeout
// elapses; otherwise completion is observable through CallAfterConnect.
func (c *Connection) Connect(wait bool) error {
	if c.IsConnected() {
		return nil
	}

	c.mu.Lock()
	if !c.config.IsValid() {
		c.mu.Unlock()
		return ErrInvalidConfig
	}
	if c.stopping.Load() {
		// a disconnect is still tearing the previous worker down
		c.mu.Unlock()
		return ErrNotConnected
	}
	if c.transporter == nil {
		t, err := c.createTransporter()
		if err != nil {
			c.mu.Unlock()
			return err
		}
		c.transporter = t
	}
	t := c.transporter
	timeout := c.config.ConnectionTimeout

	var waiter chan string
	if wait {
		// register before the worker starts so a fast auth cannot win
		// the race against the waiter
		waiter = make(chan string, 1)
		c.callAfterConnect(func(err string) { waiter <- err })
	}

	if !c.workerRunning.Load() {
		done := make(chan struct{})
		c.workerDone = done
		c.workerRunning.Store(true)
		go func() {
			t.Run()
			c.workerRunning.Store(false)
			close(done)
		}()
		go c.dispatchEvents(t.Events())
	}
	c.mu.Unlock()

	if !wait {
		return nil
	}

	select {
	case err := <-waiter:
		if err == ErrAuthFailed.Error() {
			return fmt.Errorf("connect: %w", ErrAuthFailed)
		}
		if err != "" {
			return fmt.Errorf("connect: %s", err)
		}
		return nil
	case <-time.After(timeout):
		return ErrTimeout
	}
}

func (c *Connection) createTransporter() (Transporter, error) {
	if c.config.UseSSHTunnel {
		return NewSSHTransporter(c)
	}
	return NewDefaultTransporter(c), nil
}

// Disconnect tears the worker down, cancels all pending commands and
// resets the selected database to 0.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	t := c.transporter
	done := c.workerDone
	running := t != nil && c.workerRunning.Load()
	if running {
		c.stopping.Store(true)
	}
	c.mu.Unlock()

	// fail pending after-connect continuations so autoConnect-deferred
	// futures cancel instead of dangling
	c.notifyAfterConnect("connection was shut down")

	if running {
		t.Shutdown()
		<-done
		c.mu.Lock()
		if c.transporter == t {
			c.transporter = nil
			c.workerDone = nil
		}
		c.mu.Unlock()
		c.stopping.Store(false)
	}

	c.dbNumber.Store(0)
}

// dispatchEvents consumes transporter events on a dedicated
// goroutine, so the auth sequence and after-connect continuations run
// off the worker goroutine. Command completion callbacks do not pass
// through here; they run on the worker goroutine.
func (c *Connection) dispatchEvents(events <-chan Event) {
	for ev := range events {
		switch ev.Kind {
		case EventConnected:
			c.auth()
		case EventError:
			c.emitError("Disconnect on error: " + ev.Message)
			c.Disconnect()
		case EventQueueIsEmpty:
			c.notifyIdle()
		case EventLog:
			c.log.Debug(ev.Message)
		}
	}
}

// auth runs once per EventConnected: optional AUTH, PING check, INFO
// refresh and mode detection. In sentinel mode it re-resolves the
// master and redirects the transporter instead of completing.
func (c *Connection) auth() {
	c.log.Debug("AUTH")
	cfg := c.Config()

	if cfg.UseAuth() {
		r, err := c.internalCommandSync("AUTH", cfg.AuthPassword)
		if err != nil || r.IsErrorMessage() {
			c.emitAuthError(ErrAuthFailed.Error())
			c.emitError("AUTH ERROR")
			return
		}
	}

	ping, err := c.internalCommandSync("PING")
	if err != nil {
		c.emitError("Connection error on AUTH: " + err.Error())
		c.emitAuthError("Connection error on AUTH")
		return
	}
	if !bytes.Equal(ping.Bytes(), []byte("PONG")) {
		c.emitAuthError(ErrAuthFailed.Error())
		c.emitError("AUTH ERROR")
		return
	}

	if err := c.RefreshServerInfo(); err != nil {
		c.emitError("Connection error on AUTH: " + err.Error())
		c.emitAuthError("Connection error on AUTH")
		return
	}

	info := c.ServerInfo()
	switch {
	case info.ClusterMode:
		c.setMode(ModeCluster)
		c.log.Debug("Cluster detected")
	case info.SentinelMode:
		c.setMode(ModeSentinel)
		c.log.Debug("Sentinel detected. Requesting master node...")
		c.discoverSentinelMaster(cfg)
		return
	default:
		c.setMode(ModeNormal)
	}

	c.log.Debug("Connected")
	c.markIdle()
	c.notifyAfterConnect("")
}

// discoverSentinelMaster asks the sentinel for the current master and
// redirects the transporter to it. authOk is deliberately not fired
// here; it fires after the redirected connect authenticates against
// the master itself.
func (c *Connection) discoverSentinelMaster(cfg ConnectionConfig) {
	masters, err := c.internalCommandSync("SENTINEL", "masters")
	if err != nil || !masters.IsArray() {
		c.emitError("Connection error: cannot retrieve master node from sentinel")
		return
	}

	items := masters.Array()
	if len(items) == 0 {
		c.emitError("Connection error: invalid response from sentinel")
		return
	}

	first, ok := items[0].(resp.Array)
	if !ok || len(first.Items) < 6 {
		c.emitError("Connection error: invalid response from sentinel")
		return
	}

	host := first.Items[3].String()
	port, err := strconv.Atoi(first.Items[5].String())
	if err != nil {
		c.emitError("Connection error: invalid response from sentinel")
		return
	}

	host = sentinelMasterHost(cfg, host)

	c.mu.Lock()
	t := c.transporter
	c.mu.Unlock()
	if t != nil {
		t.ReconnectTo(host, port)
	}
}

// sentinelMasterHost resolves the address a sentinel reported for its
// master. A sentinel colocated with the master announces a loopback
// address; without a tunnel the configured host is the reachable one.
// Tunneled connections trust the returned address.
func sentinelMasterHost(cfg ConnectionConfig, reported string) string {
	if !cfg.UseSSHTunnel && (reported == "127.0.0.1" || reported == "localhost") {
		return cfg.Host
	}
	return reported
}

// Command submits cmd asynchronously and returns its future. When the
// connection is down and autoConnect is on, the returned future
// transparently adopts the result of the command re-issued after
// connect, and cancels if the connect fails.
func (c *Connection) Command(cmd *Command) (*Future[Response], error) {
	return c.runCommand(cmd)
}

// CommandRaw submits raw argument frames against db.
func (c *Connection) CommandRaw(args [][]byte, db int) (*Future[Response], error) {
	return c.runCommand(NewCommand(args, db))
}

// CommandWithCallback submits raw argument frames whose completion is
// also delivered to cb under the given owner handle.
func (c *Connection) CommandWithCallback(args [][]byte, owner any, cb Callback, db int) (*Future[Response], error) {
	return c.runCommand(NewCommandWithCallback(args, owner, cb, db))
}

// CommandSync submits cmd and blocks for its reply, bounded by the
// execute timeout. Must not be called from a completion callback: the
// callback runs on the goroutine that serves the reply queue and
// would deadlock.
func (c *Connection) CommandSync(cmd *Command) (Response, error) {
	f, err := c.runCommand(cmd)
	if err != nil {
		return Response{}, err
	}
	return f.Result(c.Config().ExecuteTimeout)
}

// CommandSyncRaw is CommandSync over raw argument frames.
func (c *Connection) CommandSyncRaw(args [][]byte, db int) (Response, error) {
	return c.CommandSync(NewCommand(args, db))
}

// internalCommandSync runs a bootstrap/control command in the
// hi-priority class so it overtakes queued user work.
func (c *Connection) internalCommandSync(parts ...string) (Response, error) {
	cmd := NewStringCommand(parts...)
	cmd.MarkAsHiPriority()
	return c.CommandSync(cmd)
}

func (c *Connection) runCommand(cmd *Command) (*Future[Response], error) {
	if !cmd.IsValid() {
		return nil, ErrInvalidCommand
	}

	if !c.IsConnected() {
		if !c.autoConnect {
			return nil, ErrNotConnected
		}

		deferred := newFuture[Response]()
		c.callAfterConnect(func(err string) {
			if err != "" {
				deferred.cancel()
				return
			}
			inner, rerr := c.runCommand(cmd)
			if rerr != nil {
				deferred.cancel()
				return
			}
			adopt(deferred, inner)
		})

		if err := c.Connect(false); err != nil {
			return nil, err
		}
		return deferred, nil
	}

	c.mu.Lock()
	t := c.transporter
	c.mu.Unlock()
	if t == nil {
		return nil, ErrNotConnected
	}

	c.clearIdle()
	t.AddCommand(cmd)
	return cmd.Future(), nil
}

// CancelByOwner drops queued commands and pending reply dispatch for
// the given owner handle. Owners without destructors call this when
// they go away.
func (c *Connection) CancelByOwner(owner any) {
	c.mu.Lock()
	t := c.transporter
	c.mu.Unlock()
	if t != nil {
		t.CancelCommands(owner)
	}
}

// IsCommandSupported probes the server with the raw command; the
// future completes false when the reply marks it unknown or disabled.
func (c *Connection) IsCommandSupported(args [][]byte) *Future[bool] {
	d := newFuture[bool]()

	cmd := NewCommandWithCallback(args, c, func(r Response, errText string) {
		switch {
		case r.IsErrorMessage():
			d.complete(!r.IsDisabledCommandErrorMessage(), "")
		case errText != "":
			d.complete(!strings.Contains(errText, "unknown command"), "")
		default:
			d.complete(true, "")
		}
	}, -1)

	if _, err := c.runCommand(cmd); err != nil {
		d.cancel()
	}
	return d
}

// RefreshServerInfo re-reads INFO ALL; runs on every
// (re)authentication.
func (c *Connection) RefreshServerInfo() error {
	r, err := c.internalCommandSync("INFO", "ALL")
	if err != nil {
		return err
	}
	info := ParseServerInfo(r.String())
	c.mu.Lock()
	c.serverInfo = info
	c.mu.Unlock()
	return nil
}

// ChangeCurrentDbNumber records the database the transporter selected
// on the wire. Lock acquisition is bounded; on timeout the update is
// dropped with a warning.
func (c *Connection) ChangeCurrentDbNumber(db int) {
	select {
	case c.dbLock <- struct{}{}:
		c.dbNumber.Store(int32(db))
		<-c.dbLock
	case <-time.After(dbLockTimeout):
		c.log.Warn("Cannot lock db number mutex!")
	}
}

// WaitForIdle blocks until the transporter queue drains or timeout
// elapses.
func (c *Connection) WaitForIdle(timeout time.Duration) bool {
	c.idleMu.Lock()
	if c.idle {
		c.idleMu.Unlock()
		return true
	}
	waiter := make(chan struct{})
	c.idleWaiters = append(c.idleWaiters, waiter)
	c.idleMu.Unlock()

	select {
	case <-waiter:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (c *Connection) markIdle() {
	c.idleMu.Lock()
	c.idle = true
	c.idleMu.Unlock()
}

func (c *Connection) clearIdle() {
	c.idleMu.Lock()
	c.idle = false
	c.idleMu.Unlock()
}

func (c *Connection) notifyIdle() {
	c.idleMu.Lock()
	c.idle = true
	waiters := c.idleWaiters
	c.idleWaiters = nil
	c.idleMu.Unlock()
	for _, w := range waiters {
		close(w)
	}
}

// CallAfterConnect registers a one-shot continuation invoked with an
// empty string once auth succeeds, or with the error text when the
// connect attempt fails.
func (c *Connection) CallAfterConnect(fn func(err string)) {
	c.callAfterConnect(fn)
}

func (c *Connection) callAfterConnect(fn func(err string)) {
	c.afterConnectMu.Lock()
	c.afterConnect = append(c.afterConnect, fn)
	c.afterConnectMu.Unlock()
}

// notifyAfterConnect fires and clears the registered continuations.
// Continuations may register new ones; those survive for the next
// notification.
func (c *Connection) notifyAfterConnect(err string) {
	c.afterConnectMu.Lock()
	hooks := c.afterConnect
	c.afterConnect = nil
	c.afterConnectMu.Unlock()
	for _, fn := range hooks {
		fn(err)
	}
}

func (c *Connection) emitError(msg string) {
	c.log.Error(msg)
	c.notifyAfterConnect(msg)
}

// emitAuthError surfaces an auth failure and tears the connection
// down, mirroring the transporter-error path.
func (c *Connection) emitAuthError(msg string) {
	c.log.Error(msg)
	c.notifyAfterConnect(msg)
	c.Disconnect()
}
