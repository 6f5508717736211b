package diag

import (
	"fmt"
	"sync"

	"github.com/cockroachdb/errors"
)

// Dispatcher validates requests and runs the matching command handler.
// Handler bodies never overlap: one dispatch lock serializes them for every
// caller, not just the connection loop.
type Dispatcher struct {
	mu       sync.Mutex
	commands map[RequestType]Command
	limit    int
	stats    *Stats
}

// NewDispatcher builds a dispatcher for commands. limit is the request buffer
// capacity; requests declaring a bigger payload are rejected. A limit of zero
// disables the check. Duplicate opcodes are a programming error and panic.
func NewDispatcher(limit int, commands ...Command) *Dispatcher {
	table := make(map[RequestType]Command, len(commands))
	for _, cmd := range commands {
		if cmd.Handler == nil {
			panic(fmt.Sprintf("diag: command %v has no handler", cmd.Request))
		}
		if _, exists := table[cmd.Request]; exists {
			panic(fmt.Sprintf("diag: duplicate command %v", cmd.Request))
		}
		table[cmd.Request] = cmd
	}
	return &Dispatcher{
		commands: table,
		limit:    limit,
		stats:    newStats(commands),
	}
}

func (d *Dispatcher) Lookup(op RequestType) (Command, bool) {
	cmd, ok := d.commands[op]
	return cmd, ok
}

func (d *Dispatcher) Stats() *Stats {
	return d.stats
}

// Dispatch decodes the request in raw and invokes its handler. Protocol
// errors are returned without anything being sent; the caller is expected to
// close the connection. Otherwise the handler's own error is returned.
func (d *Dispatcher) Dispatch(rsp *Responder, raw []byte) error {
	h, err := DecodeHeader(raw)
	if err != nil {
		d.stats.reject(err)
		return err
	}

	op := RequestType(h.MsgType)
	log.Debugf("Request msgType=%v len=%d", op, h.Len)

	cmd, ok := d.commands[op]
	if !ok {
		err := errors.Wrapf(ErrUnknownCommand, "msgType 0x%x", h.MsgType)
		d.stats.reject(err)
		return err
	}
	if d.limit > 0 && HeaderSize+int64(h.Len) > int64(d.limit) {
		err := errors.Wrapf(ErrRequestTooLarge, "%v declares %d payload bytes", op, h.Len)
		d.stats.reject(err)
		return err
	}

	err = d.invoke(cmd, rsp)
	d.stats.dispatched(op, err)
	return err
}

func (d *Dispatcher) invoke(cmd Command, rsp *Responder) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := cmd.Handler(rsp); err != nil {
		return errors.Wrapf(err, "%v handler", cmd.Request)
	}
	return nil
}
