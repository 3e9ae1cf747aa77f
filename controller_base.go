package canbutton

import (
	"log"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
)

// BaseController carries the bookkeeping shared by all controller
// implementations: the transmit slot pool, the filter routing table for
// inbound frames, error/event plumbing and counters.
type BaseController struct {
	name string
	cfg  *Config

	// txSlots holds one token per allowed in-flight transmission.
	// Acquire is a non-blocking receive, release puts the token back.
	txSlots chan struct{}

	mu   sync.RWMutex
	subs []*subscription

	errOnce sync.Once
	errChan chan error

	evtChan chan Event

	closeOnce sync.Once
	closeChan chan struct{}

	sent, received, dropped, errors atomic.Uint64
}

type subscription struct {
	filter Filter
	ch     chan CANFrame
}

// txRequest is a frame accepted for transmission together with its
// slot-restoring completion callback.
type txRequest struct {
	frame *CANFrame
	done  func(error)
}

func NewBaseController(name string, cfg *Config) BaseController {
	depth := cfg.TxQueueDepth
	if depth <= 0 {
		depth = DefaultTxQueueDepth
	}
	txSlots := make(chan struct{}, depth)
	for i := 0; i < depth; i++ {
		txSlots <- struct{}{}
	}
	return BaseController{
		name:      name,
		cfg:       cfg,
		txSlots:   txSlots,
		errChan:   make(chan error, 1),
		evtChan:   make(chan Event, 100),
		closeChan: make(chan struct{}),
	}
}

// Name returns the controller name.
func (base *BaseController) Name() string {
	return base.name
}

// Subscribe installs an inbound filter with a bounded queue of the given
// depth. Frames arriving while the queue is full are dropped by the
// controller, the consumer only ever observes empty/non-empty.
func (base *BaseController) Subscribe(filter Filter, depth int) (<-chan CANFrame, error) {
	select {
	case <-base.closeChan:
		return nil, ErrControllerClosed
	default:
	}
	if depth <= 0 {
		depth = 1
	}
	sub := &subscription{filter: filter, ch: make(chan CANFrame, depth)}
	base.mu.Lock()
	base.subs = append(base.subs, sub)
	base.mu.Unlock()
	return sub.ch, nil
}

// acquireSlot claims one transmit slot without blocking.
func (base *BaseController) acquireSlot() error {
	select {
	case <-base.txSlots:
		return nil
	default:
		return ErrTxQueueFull
	}
}

func (base *BaseController) releaseSlot() {
	select {
	case base.txSlots <- struct{}{}:
	default:
		// more releases than acquires, completion contract broken
		base.errors.Add(1)
		base.Warn("transmit slot released twice")
	}
}

// completion wraps a submit callback so the transmit slot is restored
// exactly once when the controller signals completion.
func (base *BaseController) completion(onComplete func(error)) func(error) {
	var once sync.Once
	return func(err error) {
		once.Do(func() {
			base.releaseSlot()
			if onComplete != nil {
				onComplete(err)
			}
		})
	}
}

// route delivers an inbound frame to every subscription whose filter
// matches. Delivery never blocks, overflowing queues drop the frame.
func (base *BaseController) route(frame CANFrame) {
	frame.Direction = Incoming
	base.mu.RLock()
	defer base.mu.RUnlock()
	for _, sub := range base.subs {
		if !sub.filter.Matches(frame) {
			continue
		}
		select {
		case sub.ch <- frame:
			base.received.Add(1)
		default:
			base.dropped.Add(1)
			base.Error(ErrDroppedFrame)
		}
	}
}

// Return the error channel for the controller
func (base *BaseController) Err() <-chan error {
	return base.errChan
}

func (base *BaseController) Event() <-chan Event {
	return base.evtChan
}

func (base *BaseController) Close() {
	base.closeOnce.Do(func() {
		close(base.closeChan)
		base.mu.Lock()
		for _, sub := range base.subs {
			close(sub.ch)
		}
		base.subs = nil
		base.mu.Unlock()
	})
}

// Set a fatal controller error, meaning communication is broken and cannot continue.
func (base *BaseController) Fatal(err error) {
	base.errors.Add(1)
	base.errOnce.Do(func() {
		select {
		case base.errChan <- err:
		default:
			_, file, no, ok := runtime.Caller(1)
			if ok {
				log.Printf("%s:%d error channel full: %v\n", filepath.Base(file), no, err)
			} else {
				log.Printf("error channel full: %v", err)
			}
		}
	})
}

func (base *BaseController) sendEvent(eventType EventType, details string) {
	select {
	case base.evtChan <- Event{Type: eventType, Details: details}:
	default:
		_, file, no, ok := runtime.Caller(1)
		if ok {
			log.Printf("%s#%d event channel full: %s\n", filepath.Base(file), no, details)
		} else {
			log.Printf("event channel full: %s", details)
		}
	}
}

// Send an error event
func (base *BaseController) Error(err error) {
	base.errors.Add(1)
	base.sendEvent(EventTypeError, err.Error())
}

// Send a warning event
func (base *BaseController) Warn(warn string) {
	base.sendEvent(EventTypeWarning, warn)
}

// Send an info event
func (base *BaseController) Info(info string) {
	base.sendEvent(EventTypeInfo, info)
}

// Send a debug event
func (base *BaseController) Debug(debug string) {
	base.sendEvent(EventTypeDebug, debug)
}
