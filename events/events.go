package events

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/fortune-max/invoicer/models"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBillCreated           EventType = "bill_created"
	EventTypeCashCallValidated     EventType = "cashcall_validated"
	EventTypeCashCallSent          EventType = "cashcall_sent"
	EventTypeInvestorStatusChanged EventType = "investor_status_changed"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BillCreatedEvent represents a newly issued bill
type BillCreatedEvent struct {
	BillID     int64
	InvestorID int64
	CashCallID int64
	BillType   models.BillType
	Amount     string // decimal string, fixed to 2 places
	IssueDate  time.Time
}

func (e BillCreatedEvent) Type() EventType {
	return EventTypeBillCreated
}

// CashCallValidatedEvent represents a cashcall whose bills were all validated
type CashCallValidatedEvent struct {
	CashCallID int64
	InvestorID int64
	BillCount  int
}

func (e CashCallValidatedEvent) Type() EventType {
	return EventTypeCashCallValidated
}

// CashCallSentEvent represents a cashcall sent out for payment
type CashCallSentEvent struct {
	CashCallID int64
	InvestorID int64
	SentDate   time.Time
	DueDate    time.Time
}

func (e CashCallSentEvent) Type() EventType {
	return EventTypeCashCallSent
}

// InvestorStatusChangedEvent represents an activation or deactivation
type InvestorStatusChangedEvent struct {
	InvestorID   int64
	ActiveMember bool
}

func (e InvestorStatusChangedEvent) Type() EventType {
	return EventTypeInvestorStatusChanged
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make([]Handler, 0)
	}
	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type on main event bus")
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers on main event bus")

	// Call handlers asynchronously to avoid blocking
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// A transactional event bus for holding pending events coupled to the Unit of Work.
// Flushes to the underlying event bus.
type TransactionalBus struct {
	real    *Bus
	pending []Event // stashed until Flush
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	log.WithFields(log.Fields{
		"eventType":    e.Type(),
		"pendingCount": len(b.pending),
	}).Debug("Adding event to transactional bus pending queue")
	b.pending = append(b.pending, e)
}

// called after successful DB commit
func (b *TransactionalBus) Flush(ctx context.Context) error {
	log.WithFields(log.Fields{
		"pendingEventCount": len(b.pending),
	}).Debug("Flushing pending events from transactional bus to main event bus")

	// Use background context for event emission so handlers are not tied
	// to the lifetime of the transaction context
	eventCtx := context.Background()

	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
	return nil
}

// called after db rollback, a dry run, or to clear state.
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
