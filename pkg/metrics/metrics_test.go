package metrics

import (
	"errors"
	"testing"
)

func TestOutcome(t *testing.T) {
	if Outcome(nil) != OutcomeSuccess {
		t.Errorf("Expected %s, got %s", OutcomeSuccess, Outcome(nil))
	}
	if Outcome(errors.New("boom")) != OutcomeFailure {
		t.Errorf("Expected %s, got %s", OutcomeFailure, Outcome(errors.New("boom")))
	}
}
