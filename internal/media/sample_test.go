package media

import (
	"context"
	"testing"
)

func TestOpusSampleDuration(t *testing.T) {
	// 2 channels @ 48kHz is the standard §4.8 Opus configuration.
	d := OpusSampleDuration(2, 48000)
	want := int64(2) * 10_000_000 / 48000
	if int64(d) != want {
		t.Fatalf("got %d, want %d", int64(d), want)
	}
}

func TestChannelSendRecv(t *testing.T) {
	c := NewChannel()
	go func() {
		c.Send(Sample{Kind: VideoRTPPacket, Payload: []byte{1, 2, 3}})
		c.Close()
	}()

	s, ok := c.Recv()
	if !ok {
		t.Fatal("expected a sample before the tombstone")
	}
	if len(s.Payload) != 3 {
		t.Fatalf("payload = %v", s.Payload)
	}

	_, ok = c.Recv()
	if ok {
		t.Fatal("expected tombstone to signal end of stream")
	}
}

func TestChannelCapacityIs100(t *testing.T) {
	c := NewChannel()
	if cap(c.buf) != 100 {
		t.Fatalf("capacity = %d, want 100", cap(c.buf))
	}
}

func TestChannelBlocksProducerWhenFull(t *testing.T) {
	c := NewChannel()
	for i := 0; i < capacity; i++ {
		c.Send(Sample{Kind: VideoRTPPacket})
	}
	done := make(chan struct{})
	go func() {
		c.Send(Sample{Kind: VideoRTPPacket})
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("Send should have blocked with a full buffer")
	default:
	}
	// Drain one to unblock the pending producer, then confirm it completes.
	c.Recv()
	<-done
}

func TestChannelRecvOrDoneReturnsSampleBeforeCancel(t *testing.T) {
	c := NewChannel()
	c.Send(Sample{Kind: VideoRTPPacket, Payload: []byte{9}})

	s, ok, err := c.RecvOrDone(context.Background())
	if err != nil || !ok || len(s.Payload) != 1 {
		t.Fatalf("got (%v, %v, %v), want a sample", s, ok, err)
	}
}

func TestChannelRecvOrDoneReturnsCtxErrOnCancel(t *testing.T) {
	c := NewChannel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := c.RecvOrDone(ctx)
	if err == nil {
		t.Fatal("expected ctx.Err() once ctx is cancelled with nothing pending")
	}
}

func TestChannelRecvOrDoneReportsTombstone(t *testing.T) {
	c := NewChannel()
	c.Close()

	_, ok, err := c.RecvOrDone(context.Background())
	if err != nil || ok {
		t.Fatalf("got (ok=%v, err=%v), want tombstone (false, nil)", ok, err)
	}
}
