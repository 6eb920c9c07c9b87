package eventbus

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// EventType represents the type of event
type EventType string

const (
	// EventTypeStateFrame carries a raw push frame received from a device.
	EventTypeStateFrame EventType = "state_frame"
	// EventTypeLinkStatus reports a device connection opening or closing.
	EventTypeLinkStatus EventType = "link_status"
)

// Default configuration. A single worker applies events in arrival order.
const (
	DefaultWorkerCount = 1
	DefaultQueueSize   = 100
)

// Event represents an event in the system
type Event struct {
	Type      EventType
	Accessory string // accessory the event belongs to
	Host      string // originating device host
	Payload   []byte // raw frame, for EventTypeStateFrame
	Connected bool   // for EventTypeLinkStatus
}

// Handler is a function that handles events
type Handler func(Event)

// work represents a unit of work for the worker pool
type work struct {
	event   Event
	handler Handler
}

// Bus provides event routing with a bounded worker pool
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler

	// Worker pool
	workQueue chan work
	wg        sync.WaitGroup

	// closeMu orders Publish against Close so nothing is sent on a closed queue.
	closeMu sync.RWMutex
	closed  bool
}

// New creates a new event bus with default settings
func New() *Bus {
	return NewWithConfig(DefaultWorkerCount, DefaultQueueSize)
}

// NewWithConfig creates a new event bus with custom worker count and queue size
func NewWithConfig(workerCount, queueSize int) *Bus {
	if workerCount <= 0 {
		workerCount = DefaultWorkerCount
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	b := &Bus{
		handlers:  make(map[EventType][]Handler),
		workQueue: make(chan work, queueSize),
	}

	// Start worker pool
	for i := 0; i < workerCount; i++ {
		b.wg.Add(1)
		go b.worker(i)
	}

	log.Debug().Int("workers", workerCount).Int("queue_size", queueSize).Msg("Event bus worker pool started")
	return b
}

// worker processes events from the work queue
func (b *Bus) worker(id int) {
	defer b.wg.Done()

	for w := range b.workQueue {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Interface("panic", r).
						Str("event_type", string(w.event.Type)).
						Str("accessory", w.event.Accessory).
						Int("worker", id).
						Msg("Event handler panicked")
				}
			}()
			w.handler(w.event)
		}()
	}
}

// Subscribe registers a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish sends an event to all subscribed handlers.
// Non-blocking: if the work queue is full or the bus is closed, events are dropped.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := b.handlers[event.Type]
	b.mu.RUnlock()

	b.closeMu.RLock()
	defer b.closeMu.RUnlock()

	if b.closed {
		log.Debug().Str("event_type", string(event.Type)).Msg("Event bus closed, dropping event")
		return
	}

	for _, handler := range handlers {
		select {
		case b.workQueue <- work{event: event, handler: handler}:
			// Successfully queued
		default:
			// Queue full - drop event with warning
			log.Warn().
				Str("event_type", string(event.Type)).
				Str("accessory", event.Accessory).
				Msg("Event bus queue full, dropping event")
		}
	}
}

// Close shuts down the worker pool gracefully, waiting for queued events
// until ctx expires.
func (b *Bus) Close(ctx context.Context) {
	b.closeMu.Lock()
	if b.closed {
		b.closeMu.Unlock()
		return
	}
	b.closed = true
	close(b.workQueue)
	b.closeMu.Unlock()

	// Wait for workers to finish with timeout
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Debug().Msg("Event bus workers stopped gracefully")
	case <-ctx.Done():
		log.Warn().Msg("Event bus shutdown timed out, some events may be lost")
	}
}
