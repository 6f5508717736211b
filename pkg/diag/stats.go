package diag

import (
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
)

// Stats counts what the server has seen since it started. The command map is
// fixed at construction, so counters may be read from any goroutine.
type Stats struct {
	started time.Time

	connections    atomic.Uint64
	emptyReads     atomic.Uint64
	invalidMarker  atomic.Uint64
	shortHeader    atomic.Uint64
	unknownCommand atomic.Uint64
	tooLarge       atomic.Uint64
	handlerFailed  atomic.Uint64
	commands       map[RequestType]*atomic.Uint64
}

type StatsSnapshot struct {
	Uptime          string            `json:"uptime"`
	Connections     uint64            `json:"connections"`
	EmptyReads      uint64            `json:"emptyReads"`
	InvalidMarker   uint64            `json:"invalidMarker"`
	ShortHeader     uint64            `json:"shortHeader"`
	UnknownCommand  uint64            `json:"unknownCommand"`
	RequestTooLarge uint64            `json:"requestTooLarge"`
	HandlerFailed   uint64            `json:"handlerFailed"`
	Commands        map[string]uint64 `json:"commands"`
}

func newStats(commands []Command) *Stats {
	s := &Stats{
		started:  time.Now(),
		commands: make(map[RequestType]*atomic.Uint64, len(commands)),
	}
	for _, cmd := range commands {
		s.commands[cmd.Request] = &atomic.Uint64{}
	}
	return s
}

func (s *Stats) reject(err error) {
	switch {
	case errors.Is(err, ErrInvalidMarker):
		s.invalidMarker.Add(1)
	case errors.Is(err, ErrShortHeader):
		s.shortHeader.Add(1)
	case errors.Is(err, ErrUnknownCommand):
		s.unknownCommand.Add(1)
	case errors.Is(err, ErrRequestTooLarge):
		s.tooLarge.Add(1)
	}
}

func (s *Stats) dispatched(op RequestType, err error) {
	if c, ok := s.commands[op]; ok {
		c.Add(1)
	}
	if err != nil {
		s.handlerFailed.Add(1)
	}
}

func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		Uptime:          time.Since(s.started).Round(time.Second).String(),
		Connections:     s.connections.Load(),
		EmptyReads:      s.emptyReads.Load(),
		InvalidMarker:   s.invalidMarker.Load(),
		ShortHeader:     s.shortHeader.Load(),
		UnknownCommand:  s.unknownCommand.Load(),
		RequestTooLarge: s.tooLarge.Load(),
		HandlerFailed:   s.handlerFailed.Load(),
		Commands:        make(map[string]uint64, len(s.commands)),
	}
	for op, c := range s.commands {
		snap.Commands[op.String()] = c.Load()
	}
	return snap
}
