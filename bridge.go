package realtime

import (
	"context"
	"errors"
	"sync"

	"github.com/voicewire/realtime-go/events"
	"github.com/voicewire/realtime-go/internal/websocket"
)

// eventQueue is the unbounded inbound buffer between the receive loop and
// the stream consumer. Push never blocks, so a slow consumer can never stall
// the socket read path; memory is the only backpressure.
type eventQueue struct {
	mu     sync.Mutex
	items  []events.ServerEvent
	closed bool
	kick   chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{kick: make(chan struct{}, 1)}
}

func (q *eventQueue) Push(e events.ServerEvent) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, e)
	q.mu.Unlock()

	select {
	case q.kick <- struct{}{}:
	default:
	}
}

func (q *eventQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.kick <- struct{}{}:
	default:
	}
}

// Pop blocks until an event is buffered, the queue closes (ok=false), or ctx
// is cancelled (ok=false). Single consumer.
func (q *eventQueue) Pop(ctx context.Context) (events.ServerEvent, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			e := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return e, true
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return nil, false
		}

		select {
		case <-ctx.Done():
			return nil, false
		case <-q.kick:
		}
	}
}

// Stream joins an outbound message source to the inbound event flow. A pump
// goroutine consumes outbound one message at a time, encoding and sending in
// order; the returned channel yields every decoded inbound event until the
// connection ends or ctx is cancelled. Encode/send errors go to the error
// observer and do not end the stream unless the connection itself died.
// At most one Stream call may be active per session.
func (s *Session) Stream(ctx context.Context, outbound <-chan events.ClientEvent) <-chan events.ServerEvent {
	out := make(chan events.ServerEvent)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-outbound:
				if !ok {
					return
				}
				if err := s.Send(evt); err != nil {
					s.emitError(err)
					var terr *TransportError
					if errors.As(err, &terr) && errors.Is(terr.Err, websocket.ErrClosed) {
						return
					}
				}
			}
		}
	}()

	go func() {
		defer close(out)
		for {
			evt, ok := s.queue.Pop(ctx)
			if !ok {
				return
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
