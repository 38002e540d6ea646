// Package feed delivers row-level change notifications to table-scoped
// subscriptions over Postgres LISTEN/NOTIFY.
package feed

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/lib/pq"

	coachgate "github.com/vireohealth/coachgate"
)

// Operations carried by wire events.
const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

// ErrDisconnected reports a lost feed connection. The subscriber does not
// retry on its own; reconnection policy belongs to the surrounding
// application.
var ErrDisconnected = errors.New("change feed disconnected")

// ErrSubscriberClosed is returned by Subscribe after Close.
var ErrSubscriberClosed = errors.New("change feed subscriber is closed")

// Event is one row-level change notification. Delivery is at-least-once in
// arrival order per subscription; duplicates are expected to be harmless
// because consumers refetch rather than patch.
type Event struct {
	Operation string          `json:"operation"`
	Schema    string          `json:"schema"`
	Table     string          `json:"table"`
	Payload   json.RawMessage `json:"payload"`
}

// Listener is the slice of *pq.Listener the subscriber consumes; a fake
// implementation stands in during tests.
type Listener interface {
	Listen(channel string) error
	Unlisten(channel string) error
	NotificationChannel() <-chan *pq.Notification
	Close() error
}

const channelPrefix = "changefeed_"

func channelFor(table string) string {
	return channelPrefix + table
}

// Subscriber fans change-feed notifications out to table-scoped
// subscriptions. Subscriptions hold an explicit cancellation handle; owners
// must cancel when their consuming scope ends, nothing is collected
// automatically.
type Subscriber struct {
	listener Listener
	logger   coachgate.Logger
	metrics  *coachgate.Metrics
	onError  func(error)

	mu     sync.Mutex
	subs   map[string][]*Subscription
	closed bool
	done   chan struct{}
}

type Option func(*Subscriber)

func WithLogger(logger coachgate.Logger) Option {
	return func(s *Subscriber) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *coachgate.Metrics) Option {
	return func(s *Subscriber) {
		s.metrics = m
	}
}

// WithErrorHandler receives ErrDisconnected and decode failures. The default
// handler only logs.
func WithErrorHandler(fn func(error)) Option {
	return func(s *Subscriber) {
		if fn != nil {
			s.onError = fn
		}
	}
}

// New connects a subscriber to the database at conninfo.
func New(conninfo string, opts ...Option) (*Subscriber, error) {
	var s *Subscriber

	listener := pq.NewListener(conninfo, 10*time.Second, time.Minute,
		func(event pq.ListenerEventType, err error) {
			if s == nil {
				return
			}
			switch event {
			case pq.ListenerEventDisconnected, pq.ListenerEventConnectionAttemptFailed:
				s.reportError(errors.Join(ErrDisconnected, err))
			}
		})

	s = NewWithListener(listener, opts...)
	return s, nil
}

// NewWithListener wires a subscriber over an existing listener and starts
// the dispatch loop.
func NewWithListener(listener Listener, opts ...Option) *Subscriber {
	s := &Subscriber{
		listener: listener,
		logger:   noopLogger{},
		subs:     map[string][]*Subscription{},
		done:     make(chan struct{}),
	}
	s.onError = func(err error) {
		s.logger.Warn("change feed error", "error", err)
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	go s.dispatch()
	return s
}

// Subscribe opens a table-scoped subscription. Every event received for the
// table invokes onEvent, any operation; the callback is expected to refetch
// the full data set rather than patch incrementally, so duplicate deliveries
// are harmless.
func (s *Subscriber) Subscribe(table string, onEvent func(Event)) (*Subscription, error) {
	if table == "" || onEvent == nil {
		return nil, errors.New("feed: table and callback are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSubscriberClosed
	}

	if len(s.subs[table]) == 0 {
		if err := s.listener.Listen(channelFor(table)); err != nil {
			return nil, err
		}
	}

	sub := &Subscription{table: table, onEvent: onEvent, owner: s}
	s.subs[table] = append(s.subs[table], sub)
	return sub, nil
}

// Close cancels every subscription and stops the dispatch loop.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.subs = map[string][]*Subscription{}
	s.mu.Unlock()

	err := s.listener.Close()
	<-s.done
	return err
}

func (s *Subscriber) dispatch() {
	defer close(s.done)

	for notification := range s.listener.NotificationChannel() {
		if notification == nil {
			// the driver reconnected; events may have been lost in the gap
			s.reportError(ErrDisconnected)
			continue
		}

		var event Event
		if err := json.Unmarshal([]byte(notification.Extra), &event); err != nil {
			s.reportError(err)
			continue
		}

		s.deliver(event)
	}
}

func (s *Subscriber) deliver(event Event) {
	s.mu.Lock()
	targets := make([]*Subscription, len(s.subs[event.Table]))
	copy(targets, s.subs[event.Table])
	s.mu.Unlock()

	for _, sub := range targets {
		sub.onEvent(event)
		if s.metrics != nil {
			s.metrics.FeedEventsDispatched.Inc()
		}
	}
}

func (s *Subscriber) reportError(err error) {
	if err == nil {
		return
	}
	s.onError(err)
}

func (s *Subscriber) remove(sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining := s.subs[sub.table][:0]
	for _, candidate := range s.subs[sub.table] {
		if candidate != sub {
			remaining = append(remaining, candidate)
		}
	}
	s.subs[sub.table] = remaining

	if len(remaining) == 0 && !s.closed {
		delete(s.subs, sub.table)
		if err := s.listener.Unlisten(channelFor(sub.table)); err != nil {
			s.logger.Warn("change feed unlisten failed", "table", sub.table, "error", err)
		}
	}
}

// Subscription is the cancellation handle returned by Subscribe.
type Subscription struct {
	table   string
	onEvent func(Event)
	owner   *Subscriber
	once    sync.Once
}

// Table reports the subscribed table.
func (s *Subscription) Table() string {
	return s.table
}

// Cancel tears the subscription down. Idempotent.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.owner.remove(s)
	})
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
