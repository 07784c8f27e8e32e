package redis

import (
	"strings"
)

// Callback receives a command's parsed reply and an error string,
// empty on success. Callbacks run on the goroutine serving the reply
// queue; they may issue further async commands but must not call
// CommandSync.
type Callback func(Response, string)

// Command is a single request descriptor: argument frames, the target
// database, a priority class, an optional owner handle used for
// cancellation, an optional completion callback and a one-shot result
// future.
type Command struct {
	args       [][]byte
	db         int
	hiPriority bool

	owner    any
	callback Callback

	future *Future[Response]
}

// NewCommand builds a command from raw argument frames targeting db.
// Pass db -1 to run against whatever database is currently selected.
func NewCommand(args [][]byte, db int) *Command {
	return &Command{
		args:   args,
		db:     db,
		future: newFuture[Response](),
	}
}

// NewCommandWithCallback builds a command whose completion is also
// delivered to cb. The owner handle associates the command with a
// caller; Connection.CancelByOwner drops pending replies for it.
func NewCommandWithCallback(args [][]byte, owner any, cb Callback, db int) *Command {
	c := NewCommand(args, db)
	c.owner = owner
	c.callback = cb
	return c
}

// NewStringCommand is a convenience for commands whose arguments are
// plain strings, targeting the currently selected database.
func NewStringCommand(parts ...string) *Command {
	args := make([][]byte, len(parts))
	for i, p := range parts {
		args[i] = []byte(p)
	}
	return NewCommand(args, -1)
}

// IsValid reports whether the command can be sent.
func (c *Command) IsValid() bool {
	return c != nil && len(c.args) > 0
}

// Args returns the argument frames. The slice is shared; callers must
// not mutate it.
func (c *Command) Args() [][]byte { return c.args }

// PartAsString returns argument i as a string, or "" when out of
// range.
func (c *Command) PartAsString(i int) string {
	if i < 0 || i >= len(c.args) {
		return ""
	}
	return string(c.args[i])
}

// Name returns the lowercased command name.
func (c *Command) Name() string {
	return strings.ToLower(c.PartAsString(0))
}

// Db returns the target database index, -1 meaning "current".
func (c *Command) Db() int { return c.db }

// Owner returns the opaque owner handle, nil when unowned.
func (c *Command) Owner() any { return c.owner }

// MarkAsHiPriority moves the command into the control class that
// overtakes queued user commands at the next dispatch point. Used for
// AUTH, PING, INFO, CLUSTER SLOTS and SENTINEL during bootstrap.
func (c *Command) MarkAsHiPriority() { c.hiPriority = true }

// IsHiPriority reports the command's priority class.
func (c *Command) IsHiPriority() bool { return c.hiPriority }

// SetCallback attaches a completion callback and owner handle,
// replacing any previous one.
func (c *Command) SetCallback(owner any, cb Callback) {
	c.owner = owner
	c.callback = cb
}

// Future returns the command's result future.
func (c *Command) Future() *Future[Response] { return c.future }

// finish settles the command and fires the callback. Server error
// replies arrive with both the Response and errText set to the error
// text; transport failures carry an empty Response.
func (c *Command) finish(r Response, errText string) {
	c.future.complete(r, errText)
	if c.callback != nil {
		c.callback(r, errText)
	}
}

// cancelPending cancels the future without firing the callback;
// replies for dead owners are dropped silently.
func (c *Command) cancelPending() {
	c.future.cancel()
}
