package session

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/tpp-cloud-gaming/relay/internal/media"
	"github.com/tpp-cloud-gaming/relay/internal/shutdown"
)

func TestStateStringCoversAllValues(t *testing.T) {
	for s := Idle; s <= Closed; s++ {
		if got := s.String(); got == "Unknown" {
			t.Fatalf("State(%d).String() = %q, want a named state", int(s), got)
		}
	}
	if got := State(99).String(); got != "Unknown" {
		t.Fatalf("State(99).String() = %q, want Unknown", got)
	}
}

func TestNewSessionLogCreatesTimestampedFile(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	defer os.Chdir(wd)

	log, err := newSessionLog()
	if err != nil {
		t.Fatalf("newSessionLog: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), ".txt") {
		t.Fatalf("expected one .txt log file, got %v", entries)
	}
	_ = log
}

// waitForOutstandingZero polls Outstanding() rather than racing a fixed
// sleep against the pump's own goroutine scheduling.
func waitForOutstandingZero(t *testing.T, sd *shutdown.Coordinator) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if sd.Outstanding() == 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("outstanding = %d, want 0", sd.Outstanding())
}

func TestRunPumpWritesThenExitsAndDecrementsOnFatalError(t *testing.T) {
	sd := shutdown.New()
	sd.Register("test pump")
	ch := media.NewChannel()

	wrote := make(chan media.Sample, 1)
	done := make(chan struct{})
	go func() {
		runPump(sd, ch.RecvOrDone, func(s media.Sample) error {
			wrote <- s
			return nil
		})
		close(done)
	}()

	ch.Send(media.Sample{Kind: media.VideoRTPPacket, Payload: []byte{1}})
	select {
	case s := <-wrote:
		if len(s.Payload) != 1 {
			t.Fatalf("payload = %v", s.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("pump never processed the sample")
	}

	sd.NotifyError(true, "test: simulated peer-gone")
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pump never exited after fatal error")
	}
	waitForOutstandingZero(t, sd)
}

func TestRunPumpExitsAndDecrementsOnTombstoneAfterShutdownRaised(t *testing.T) {
	sd := shutdown.New()
	sd.Register("test pump")
	ch := media.NewChannel()

	done := make(chan struct{})
	go func() {
		runPump(sd, ch.RecvOrDone, func(media.Sample) error { return nil })
		close(done)
	}()

	// Mirrors session.go's Draining sequence: NotifyError always precedes
	// the Stop()/Close() calls that push tombstones, so whichever of the
	// two exit paths runPump takes, exactly one decrement happens.
	sd.NotifyError(true, "test: simulated peer-gone")
	ch.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pump never exited")
	}
	waitForOutstandingZero(t, sd)
}
