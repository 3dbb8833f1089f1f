// Package media defines the immutable sample type flowing between the
// pipeline graph and the WebRTC transport, and the bounded single-producer/
// single-consumer channel that carries it — grounded on §3's data model and
// on cvpipe/pipeline.go's Push/Subscribe channel discipline (bounded,
// non-blocking-drop-on-full on the teacher's broadcast fan-out; here a
// blocking single-consumer send per the spec's explicit backpressure
// requirement).
package media

import (
	"context"
	"time"
)

// Kind distinguishes the two sample shapes named in §3.
type Kind int

const (
	// VideoRTPPacket is a raw RTP packet, already payloaded by the capture
	// graph, written as-is to the RTP track.
	VideoRTPPacket Kind = iota
	// AudioEncodedFrame is a fixed-duration Opus payload with an explicit
	// sample duration.
	AudioEncodedFrame
)

// OpusSampleDuration computes the duration of one Opus frame carrying
// channels audio samples at sampleRate, per §3's formula:
// channels × 10^7 / sample_rate nanoseconds.
func OpusSampleDuration(channels, sampleRate int) time.Duration {
	return time.Duration(int64(channels) * 10_000_000 / int64(sampleRate))
}

// Sample is an immutable byte payload plus a producer-assigned duration.
type Sample struct {
	Kind     Kind
	Payload  []byte
	Duration time.Duration
}

// Channel is a bounded SPSC queue of samples carrying an in-band tombstone
// so the consumer wakes on shutdown even with no data in flight. Capacity
// is fixed at 100 per §3; overflow blocks the producer.
type Channel struct {
	buf chan item
}

type item struct {
	terminal bool
	sample   Sample
}

const capacity = 100

// NewChannel allocates a fresh bounded channel.
func NewChannel() *Channel {
	return &Channel{buf: make(chan item, capacity)}
}

// Send blocks until there is room, delivering sample to the consumer.
// Never call Send after Close.
func (c *Channel) Send(s Sample) {
	c.buf <- item{sample: s}
}

// Close pushes the tombstone. Safe to call at most once.
func (c *Channel) Close() {
	c.buf <- item{terminal: true}
}

// Recv blocks until a sample or the tombstone arrives. ok is false exactly
// once, on the tombstone; the channel yields nothing further after that.
func (c *Channel) Recv() (s Sample, ok bool) {
	it, open := <-c.buf
	if !open || it.terminal {
		return Sample{}, false
	}
	return it.sample, true
}

// RecvOrDone races Recv against ctx, letting a pump select between its own
// work and an externally raised shutdown signal without a helper goroutine.
// err is ctx.Err() if ctx fires first; otherwise it is nil and (s, ok) behave
// as in Recv.
func (c *Channel) RecvOrDone(ctx context.Context) (s Sample, ok bool, err error) {
	select {
	case it, open := <-c.buf:
		if !open || it.terminal {
			return Sample{}, false, nil
		}
		return it.sample, true, nil
	case <-ctx.Done():
		return Sample{}, false, ctx.Err()
	}
}
