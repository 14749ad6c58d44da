package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func TestDispatcherDeliversToEverySink(t *testing.T) {
	var got []Event
	record := NotifierFunc(func(_ context.Context, e Event) error {
		got = append(got, e)
		return nil
	})

	d := NewDispatcher(nil, record, NewLogNotifier(zap.NewNop()), record)
	d.Dispatch(context.Background(), Event{Kind: KindApplied, Amount: decimal.NewFromInt(100000), Name: "Personal Loan"})

	if len(got) != 2 {
		t.Fatalf("Expected 2 deliveries, got %d", len(got))
	}
	if got[0].Kind != KindApplied || got[0].Name != "Personal Loan" {
		t.Errorf("Unexpected event %+v", got[0])
	}
}

func TestDispatcherSwallowsFailures(t *testing.T) {
	delivered := false
	failing := NotifierFunc(func(context.Context, Event) error { return errors.New("smtp down") })
	panicking := NotifierFunc(func(context.Context, Event) error { panic("boom") })
	after := NotifierFunc(func(context.Context, Event) error {
		delivered = true
		return nil
	})

	d := NewDispatcher(nil, failing, panicking, after)
	if err := d.Notify(context.Background(), Event{Kind: KindDisbursed}); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if !delivered {
		t.Error("Expected later sinks to still receive the event")
	}
}

func TestEventMessage(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindApplied, "submitted"},
		{KindApproved, "approved"},
		{KindDisbursed, "disbursed"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			msg := Event{Kind: tt.kind, Amount: decimal.NewFromInt(5000), Name: "Home Loan"}.Message()
			if !strings.Contains(msg, tt.want) || !strings.Contains(msg, "Home Loan") || !strings.Contains(msg, "5000.00") {
				t.Errorf("Unexpected message %q", msg)
			}
		})
	}
}
