package schedule

import (
	"testing"
	"time"
)

var epoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// drain returns every fire currently buffered on s.
func drain(s *Scheduler) []Fire {
	var out []Fire
	for {
		select {
		case f := <-s.Fires():
			out = append(out, f)
		default:
			return out
		}
	}
}

// claimed returns the fires the owner would act on.
func claimed(s *Scheduler) []Fire {
	var out []Fire
	for _, f := range drain(s) {
		if s.Claim(f) {
			out = append(out, f)
		}
	}
	return out
}

func TestScheduleFiresAfterDelay(t *testing.T) {
	clock := NewManualClock(epoch)
	s := New(clock)
	defer s.Close()

	h := s.Schedule("notify", 500*time.Millisecond)
	if h.IsZero() {
		t.Fatal("Schedule returned zero handle")
	}

	clock.Advance(499 * time.Millisecond)
	if got := claimed(s); len(got) != 0 {
		t.Fatalf("fired early: %+v", got)
	}

	clock.Advance(time.Millisecond)
	got := claimed(s)
	if len(got) != 1 {
		t.Fatalf("expected one fire, got %d", len(got))
	}
	if got[0].Token != h.Token {
		t.Errorf("fired token %d, want %d", got[0].Token, h.Token)
	}
	if !got[0].At.Equal(epoch.Add(500 * time.Millisecond)) {
		t.Errorf("fire time = %v", got[0].At)
	}
	if s.Pending("notify") {
		t.Error("timer still pending after claim")
	}
}

func TestScheduleSupersedes(t *testing.T) {
	clock := NewManualClock(epoch)
	s := New(clock)
	defer s.Close()

	first := s.Schedule("notify", 3*time.Second)
	clock.Advance(time.Second)
	second := s.Schedule("notify", 500*time.Millisecond)

	clock.Advance(10 * time.Second)
	got := claimed(s)
	if len(got) != 1 {
		t.Fatalf("expected exactly one fire, got %d", len(got))
	}
	if got[0].Token != second.Token {
		t.Errorf("fired token %d, want second %d (first %d)", got[0].Token, second.Token, first.Token)
	}
	if !got[0].At.Equal(epoch.Add(1500 * time.Millisecond)) {
		t.Errorf("fire at %v, want second schedule's deadline", got[0].At)
	}
}

func TestCancel(t *testing.T) {
	t.Run("cancel before deadline", func(t *testing.T) {
		clock := NewManualClock(epoch)
		s := New(clock)
		defer s.Close()

		h := s.Schedule("silence", time.Second)
		if !s.Cancel(h) {
			t.Fatal("Cancel returned false for live handle")
		}
		clock.Advance(2 * time.Second)
		if got := drain(s); len(got) != 0 {
			t.Errorf("canceled timer fired: %+v", got)
		}
	})

	t.Run("stale handle does not cancel successor", func(t *testing.T) {
		clock := NewManualClock(epoch)
		s := New(clock)
		defer s.Close()

		old := s.Schedule("silence", time.Second)
		s.Schedule("silence", time.Second)
		if s.Cancel(old) {
			t.Error("Cancel succeeded with superseded handle")
		}
		if !s.Pending("silence") {
			t.Error("successor was canceled")
		}
	})

	t.Run("cancel by name", func(t *testing.T) {
		s := New(NewManualClock(epoch))
		defer s.Close()

		if s.CancelName("notify") {
			t.Error("CancelName on idle timer returned true")
		}
		s.Schedule("notify", time.Second)
		if !s.CancelName("notify") {
			t.Error("CancelName returned false")
		}
	})

	t.Run("timers are independent", func(t *testing.T) {
		clock := NewManualClock(epoch)
		s := New(clock)
		defer s.Close()

		s.Schedule("notify", time.Second)
		s.Schedule("silence", time.Second)
		s.CancelName("notify")

		clock.Advance(time.Second)
		got := claimed(s)
		if len(got) != 1 || got[0].Name != "silence" {
			t.Errorf("fires = %+v, want only silence", got)
		}
	})
}

func TestClaimRejectsCanceledFire(t *testing.T) {
	clock := NewManualClock(epoch)
	s := New(clock)
	defer s.Close()

	s.Schedule("notify", time.Second)
	clock.Advance(time.Second)

	// Fire is already queued; canceling now must still make it a no-op.
	s.CancelName("notify")
	fires := drain(s)
	if len(fires) != 1 {
		t.Fatalf("expected queued fire, got %d", len(fires))
	}
	if s.Claim(fires[0]) {
		t.Error("Claim accepted a canceled fire")
	}
}

func TestClaimOnce(t *testing.T) {
	clock := NewManualClock(epoch)
	s := New(clock)
	defer s.Close()

	s.Schedule("notify", time.Second)
	clock.Advance(time.Second)
	fires := drain(s)
	if len(fires) != 1 {
		t.Fatalf("expected one fire, got %d", len(fires))
	}
	if !s.Claim(fires[0]) {
		t.Fatal("first Claim rejected")
	}
	if s.Claim(fires[0]) {
		t.Error("second Claim accepted")
	}
}

func TestDelay(t *testing.T) {
	s := New(NewManualClock(epoch))
	defer s.Close()

	if _, ok := s.Delay("notify"); ok {
		t.Error("Delay reported idle timer")
	}
	s.Schedule("notify", 3*time.Second)
	if d, ok := s.Delay("notify"); !ok || d != 3*time.Second {
		t.Errorf("Delay = %v, %v", d, ok)
	}
}

func TestClose(t *testing.T) {
	clock := NewManualClock(epoch)
	s := New(clock)

	s.Schedule("notify", time.Second)
	s.Close()
	s.Close()

	clock.Advance(time.Second)
	if got := drain(s); len(got) != 0 {
		t.Errorf("fired after Close: %+v", got)
	}
	if h := s.Schedule("notify", time.Second); !h.IsZero() {
		t.Error("Schedule after Close returned live handle")
	}
}

func TestRealClock(t *testing.T) {
	s := New(nil)
	defer s.Close()

	h := s.Schedule("notify", 10*time.Millisecond)
	select {
	case f := <-s.Fires():
		if !s.Claim(f) || f.Token != h.Token {
			t.Errorf("unexpected fire %+v", f)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestManualClockOrder(t *testing.T) {
	clock := NewManualClock(epoch)
	var order []int
	clock.AfterFunc(2*time.Second, func() { order = append(order, 2) })
	clock.AfterFunc(time.Second, func() { order = append(order, 1) })
	stopped := clock.AfterFunc(time.Second, func() { order = append(order, 99) })
	if !stopped.Stop() {
		t.Fatal("Stop returned false")
	}

	clock.Advance(3 * time.Second)
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("order = %v, want [1 2]", order)
	}
	if clock.Len() != 0 {
		t.Errorf("Len = %d after advance", clock.Len())
	}
	if !clock.Now().Equal(epoch.Add(3 * time.Second)) {
		t.Errorf("Now = %v", clock.Now())
	}
}
