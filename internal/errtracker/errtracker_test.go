package errtracker

import "testing"

func TestTransientBurstTolerated(t *testing.T) {
	tr := New(500, 1000)
	for i := 0; i < 20; i++ {
		ok := i != 2 && i != 10 // packets 3 and 11 (0-indexed 2 and 10) fail
		if got := tr.OnOutcome(ok); got != Transient {
			t.Fatalf("iteration %d: got %v, want Transient", i, got)
		}
	}
	if tr.Errors() != 2 {
		t.Fatalf("errors = %d, want 2", tr.Errors())
	}
	if tr.Total() != 20 {
		t.Fatalf("total = %d, want 20", tr.Total())
	}
}

func TestFatalOnThresholdAndOnlyThen(t *testing.T) {
	tr := New(3, 1000)
	for i := 0; i < 2; i++ {
		if got := tr.OnOutcome(false); got != Transient {
			t.Fatalf("iteration %d: got %v, want Transient", i, got)
		}
	}
	if got := tr.OnOutcome(false); got != Fatal {
		t.Fatalf("third error: got %v, want Fatal", got)
	}
}

func TestResetAtWindowLimit(t *testing.T) {
	tr := New(500, 10)
	for i := 0; i < 9; i++ {
		tr.OnOutcome(false)
	}
	if tr.Total() != 9 || tr.Errors() != 9 {
		t.Fatalf("unexpected pre-reset state: total=%d errors=%d", tr.Total(), tr.Errors())
	}
	tr.OnOutcome(true) // total becomes 10 -> reset
	if tr.Total() != 0 || tr.Errors() != 0 {
		t.Fatalf("expected reset, got total=%d errors=%d", tr.Total(), tr.Errors())
	}
}

func TestFatalNeverFiresBeforeThreshold(t *testing.T) {
	tr := New(5, 1000)
	for i := 0; i < 4; i++ {
		if got := tr.OnOutcome(false); got == Fatal {
			t.Fatalf("iteration %d: Fatal fired early", i)
		}
	}
}
