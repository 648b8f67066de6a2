package event

import (
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

//go:generate mockgen -source=event.go -destination=mock_event/sink.go

// Role tells which side of the problem produced an event.
type Role string

const (
	Read  Role = "read"
	Write Role = "write"
)

// Message is the line printed for the role, one per completed operation.
func (r Role) Message() string {
	switch r {
	case Read:
		return "reader reading"
	case Write:
		return "writer writing"
	default:
		return string(r)
	}
}

// Event is emitted exactly once per successful Read or Write call.
type Event struct {
	Strategy string
	Role     Role
	At       time.Time
}

// Sink receives events. Emit must be safe for concurrent use.
type Sink interface {
	Emit(ev Event)
}

type discard struct{}

func (discard) Emit(Event) {}

// Discard drops every event.
var Discard Sink = discard{}

// Collector keeps events in emission order.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Emit(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

// Events returns a copy of everything collected so far.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Roles returns the roles of collected events, in order.
func (c *Collector) Roles() []Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Role, 0, len(c.events))
	for _, ev := range c.events {
		out = append(out, ev.Role)
	}
	return out
}

// Count returns how many events of the role were collected.
func (c *Collector) Count(role Role) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, ev := range c.events {
		if ev.Role == role {
			n++
		}
	}
	return n
}

// Log writes each event as an info line.
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Emit(ev Event) {
	l.logger.Info(ev.Role.Message(),
		zap.String("strategy", ev.Strategy),
		zap.String("role", string(ev.Role)),
		zap.Time("at", ev.At),
	)
}

// Console prints plain lines, one per event.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Emit(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// ошибки записи в консоль игнорируем, как и fmt.Println
	_, _ = fmt.Fprintf(c.w, "[%s] %s\n", ev.Strategy, ev.Role.Message())
}

type multi []Sink

func (m multi) Emit(ev Event) {
	for _, s := range m {
		s.Emit(ev)
	}
}

// Multi fans an event out to every sink, in order. Nil sinks are skipped.
func Multi(sinks ...Sink) Sink {
	var m multi
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	if len(m) == 1 {
		return m[0]
	}
	return m
}
