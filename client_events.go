package mqttws

import (
	"sync"
	"time"
)

// Event is a client lifecycle notification. The concrete types are
// LogEvent, DisconnectedEvent, ReconnectingEvent, ReconnectedEvent and
// ResubscriptionEvent.
type Event interface {
	isEvent()
}

// EventHandler receives events registered with WithOnEvent.
type EventHandler func(Event)

// LogEvent mirrors every line the client logs.
type LogEvent struct {
	Time    time.Time
	Level   LogLevel
	Message string
	Fields  LogFields
}

// DisconnectedEvent is emitted when a connection ends. Err is nil after
// Disconnect and describes the failure otherwise.
type DisconnectedEvent struct {
	Err error
}

// ReconnectingEvent is emitted right before a reconnection attempt.
type ReconnectingEvent struct {
	Message string
}

// ReconnectedEvent is emitted when a reconnection attempt succeeds.
type ReconnectedEvent struct {
	Connack *ConnackPacket
}

// ResubscriptionEvent reports the outcome of replaying one cached SUBSCRIBE
// after the broker lost the session.
type ResubscriptionEvent struct {
	Subscribe *SubscribePacket
	Suback    *SubackPacket
	Err       error
}

func (LogEvent) isEvent()            {}
func (DisconnectedEvent) isEvent()   {}
func (ReconnectingEvent) isEvent()   {}
func (ReconnectedEvent) isEvent()    {}
func (ResubscriptionEvent) isEvent() {}

const reconnectingMessage = "Trying to reconnect..."

// taskQueue runs functions one at a time, in submission order, on its own
// goroutine. Submitting never blocks.
type taskQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	tasks  []func()
	closed bool
	done   chan struct{}
}

func newTaskQueue() *taskQueue {
	q := &taskQueue{done: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

func (q *taskQueue) submit(fn func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.tasks = append(q.tasks, fn)
	q.cond.Signal()
	return true
}

// close stops accepting tasks. Already queued tasks still run.
func (q *taskQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
}

func (q *taskQueue) run() {
	defer close(q.done)

	for {
		q.mu.Lock()
		for len(q.tasks) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			return
		}
		fn := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		fn()
	}
}

// notifier fans events out to handlers and channel subscribers, and runs
// message handlers, all on one dispatch goroutine.
type notifier struct {
	handlers []EventHandler
	queue    *taskQueue
	// drainTimeout bounds how long a closed stream waits for its reader.
	drainTimeout time.Duration

	mu     sync.Mutex
	subs   []*eventStream
	closed bool
}

type eventStream struct {
	ch    chan Event
	queue *taskQueue
	stop  chan struct{}
}

const defaultDrainTimeout = 5 * time.Second

func newNotifier(handlers []EventHandler) *notifier {
	return &notifier{handlers: handlers, queue: newTaskQueue(), drainTimeout: defaultDrainTimeout}
}

func (s *eventStream) deliver(ev Event) {
	select {
	case s.ch <- ev:
	case <-s.stop:
	}
}

// run schedules fn on the dispatch goroutine.
func (n *notifier) run(fn func()) {
	n.queue.submit(fn)
}

func (n *notifier) emit(ev Event) {
	n.queue.submit(func() {
		for _, h := range n.handlers {
			h(ev)
		}

		n.mu.Lock()
		subs := n.subs
		n.mu.Unlock()

		for _, s := range subs {
			s.queue.submit(func() { s.deliver(ev) })
		}
	})
}

// subscribe returns a channel receiving every later event. Each stream
// buffers without bound; the channel is closed after the final event.
// Events still unread drainTimeout after close are dropped.
func (n *notifier) subscribe() <-chan Event {
	s := &eventStream{ch: make(chan Event), stop: make(chan struct{})}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		close(s.ch)
		return s.ch
	}
	s.queue = newTaskQueue()
	n.subs = append(n.subs, s)
	return s.ch
}

// close lets queued work finish, then closes every stream.
func (n *notifier) close() {
	n.queue.submit(func() {
		n.mu.Lock()
		n.closed = true
		subs := n.subs
		n.subs = nil
		n.mu.Unlock()

		for _, s := range subs {
			s.queue.submit(func() { close(s.ch) })
			s.queue.close()
			time.AfterFunc(n.drainTimeout, func() { close(s.stop) })
		}
	})
	n.queue.close()
}
