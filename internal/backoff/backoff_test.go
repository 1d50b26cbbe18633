package backoff

import (
	"testing"
	"time"
)

func TestConstantReturnsFixedDelay(t *testing.T) {
	c := NewConstant(5 * time.Second)
	for attempt := 1; attempt <= 10; attempt++ {
		if got := c.Delay(attempt); got != 5*time.Second {
			t.Errorf("Delay(%d) = %v, want %v", attempt, got, 5*time.Second)
		}
	}
}

func TestExponentialDoublesAndCaps(t *testing.T) {
	e := NewExponential(time.Second, 10*time.Second)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{200, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := e.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestNew(t *testing.T) {
	s, err := New("", 0, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := s.Delay(3); got != DefaultInterval {
		t.Errorf("default strategy Delay(3) = %v, want %v", got, DefaultInterval)
	}

	s, err = New("Exponential", 100*time.Millisecond, time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := s.(*Exponential); !ok {
		t.Fatalf("got %T, want *Exponential", s)
	}

	if _, err := New("fibonacci", time.Second, 0); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}
