// Package notify delivers loan lifecycle events. Delivery is fire-and-forget:
// a failing or panicking sink never fails the operation that emitted it.
package notify

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Kind string

const (
	KindApplied   Kind = "applied"
	KindApproved  Kind = "approved"
	KindDisbursed Kind = "disbursed"
)

// Event is one notification. Name is the loan or debt it concerns.
type Event struct {
	Kind   Kind
	Amount decimal.Decimal
	Name   string
}

// Message renders the event for display.
func (e Event) Message() string {
	switch e.Kind {
	case KindApplied:
		return fmt.Sprintf("Loan application for %s of %s submitted", e.Name, e.Amount.StringFixed(2))
	case KindApproved:
		return fmt.Sprintf("%s of %s approved", e.Name, e.Amount.StringFixed(2))
	case KindDisbursed:
		return fmt.Sprintf("%s of %s disbursed to your wallet", e.Name, e.Amount.StringFixed(2))
	}
	return fmt.Sprintf("%s: %s %s", e.Kind, e.Name, e.Amount.StringFixed(2))
}

// Notifier delivers events.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, e Event) error

func (f NotifierFunc) Notify(ctx context.Context, e Event) error {
	return f(ctx, e)
}

// LogNotifier writes every event to a zap logger.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, e Event) error {
	n.logger.Info(e.Message(),
		zap.String("op", "notify.LogNotifier.Notify"),
		zap.String("kind", string(e.Kind)),
		zap.String("name", e.Name),
		zap.String("amount", e.Amount.StringFixed(2)),
	)
	return nil
}

// Dispatcher fans an event out to its sinks. Sink errors and panics are
// logged and swallowed.
type Dispatcher struct {
	sinks  []Notifier
	logger *zap.Logger
}

func NewDispatcher(logger *zap.Logger, sinks ...Notifier) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{sinks: sinks, logger: logger}
}

// Dispatch delivers e to every sink.
func (d *Dispatcher) Dispatch(ctx context.Context, e Event) {
	for _, sink := range d.sinks {
		d.deliver(ctx, sink, e)
	}
}

// Notify implements Notifier; it never returns an error.
func (d *Dispatcher) Notify(ctx context.Context, e Event) error {
	d.Dispatch(ctx, e)
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, sink Notifier, e Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("notification sink panicked",
				zap.String("op", "notify.Dispatcher.deliver"),
				zap.String("kind", string(e.Kind)),
				zap.Any("panic", r),
			)
		}
	}()

	if err := sink.Notify(ctx, e); err != nil {
		d.logger.Warn("notification delivery failed",
			zap.String("op", "notify.Dispatcher.deliver"),
			zap.String("kind", string(e.Kind)),
			zap.Error(err),
		)
	}
}
