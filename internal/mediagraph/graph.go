// Package mediagraph assembles the capture or playback pipeline and bridges
// it to the engine's bounded media channels — grounded on
// cvpipe/pipeline.go, which spawns gst-launch-1.0 as a subprocess and
// bridges its RTP output to Go channels over loopback UDP. The elements
// named in §4.7 (screen-source, h264-encoder, rtp-jitter-buffer, ...) are
// treated as opaque per the Non-goals in §1 — we assemble them as a
// gst-launch-1.0 description string the same way the teacher assembles its
// x264enc/rtph264pay description, rather than binding to GStreamer
// natively (no such Go binding exists in the example pack).
package mediagraph

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"runtime"
	"sync"

	"github.com/tpp-cloud-gaming/relay/internal/errtracker"
	"github.com/tpp-cloud-gaming/relay/internal/logx"
	"github.com/tpp-cloud-gaming/relay/internal/media"
	"github.com/tpp-cloud-gaming/relay/internal/shutdown"
)

const component = "mediagraph"

// VideoConfig parameterizes the video branch of either graph template.
type VideoConfig struct {
	WindowID    string
	ShowCursor  bool
	Framerate   int // default 60, per §4.7
	BitrateKbps int // x264enc target bitrate, default 10000; no hardware encoder or 3000 fallback is tried
	RTPPort     int // loopback UDP port bridging this branch to Go
}

// AudioConfig parameterizes the audio branch.
type AudioConfig struct {
	Channels   int
	SampleRate int
	RTPPort    int
}

// HostCaptureGraph is the one-pipeline, two-sink template from §4.7: screen
// and loopback audio captured, encoded, and RTP-payloaded, with each branch
// bridged to a bounded media.Channel by a dedicated pump.
type HostCaptureGraph struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	wg     sync.WaitGroup

	videoConn net.PacketConn
	audioConn net.PacketConn

	Video *media.Channel
	Audio *media.Channel

	tracker *errtracker.Tracker
	sd      *shutdown.Coordinator
}

// NewHostCaptureGraph starts the capture pipeline subprocess and binds the
// loopback UDP bridges. The pump tasks are started separately via Run so
// the four-way barrier can coordinate with the input sub-task.
func NewHostCaptureGraph(v VideoConfig, a AudioConfig, sd *shutdown.Coordinator) (*HostCaptureGraph, error) {
	if v.Framerate == 0 {
		v.Framerate = 60
	}
	if v.BitrateKbps == 0 {
		v.BitrateKbps = 10000
	}

	videoConn, err := net.ListenPacket("udp", fmt.Sprintf("127.0.0.1:%d", v.RTPPort))
	if err != nil {
		return nil, fmt.Errorf("mediagraph: bind video rtp port: %w", err)
	}
	audioConn, err := net.ListenPacket("udp", fmt.Sprintf("127.0.0.1:%d", a.RTPPort))
	if err != nil {
		videoConn.Close()
		return nil, fmt.Errorf("mediagraph: bind audio rtp port: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	args := hostCaptureArgs(v, a)
	cmd := exec.CommandContext(ctx, "gst-launch-1.0", args...)

	g := &HostCaptureGraph{
		cmd:       cmd,
		cancel:    cancel,
		videoConn: videoConn,
		audioConn: audioConn,
		Video:     media.NewChannel(),
		Audio:     media.NewChannel(),
		tracker:   errtracker.New(500, 1000),
		sd:        sd,
	}

	if err := cmd.Start(); err != nil {
		cancel()
		videoConn.Close()
		audioConn.Close()
		return nil, fmt.Errorf("mediagraph: start capture pipeline: %w", err)
	}

	return g, nil
}

// hostCaptureArgs builds the gst-launch-1.0 description for §4.7's host
// capture graph. The screen-source element name is platform-dependent;
// other elements are shared across platforms.
func hostCaptureArgs(v VideoConfig, a AudioConfig) []string {
	screenSrc := "ximagesrc"
	if runtime.GOOS == "windows" {
		screenSrc = "d3d11screencapturesrc"
	}
	return []string{
		"-q",
		screenSrc, fmt.Sprintf("show-pointer=%v", v.ShowCursor),
		"!", "queue",
		"!", "videoconvert",
		"!", fmt.Sprintf("video/x-raw,framerate=%d/1", v.Framerate),
		"!", "x264enc", "tune=zerolatency", fmt.Sprintf("bitrate=%d", v.BitrateKbps),
		"!", "rtph264pay", "pt=96", "config-interval=-1", "aggregate-mode=zero-latency",
		"!", "udpsink", "host=127.0.0.1", fmt.Sprintf("port=%d", v.RTPPort), "sync=false",
		"pulsesrc",
		"!", "queue",
		"!", "audioconvert",
		"!", "audioresample",
		"!", "opusenc",
		"!", "rtpopuspay", "pt=111",
		"!", "udpsink", "host=127.0.0.1", fmt.Sprintf("port=%d", a.RTPPort), "sync=false",
	}
}

// Run starts the two pump tasks (video, audio), registers them with the
// shutdown coordinator, and arrives at barrier once both are reading.
// Each pump forwards raw RTP datagrams from the pipeline's UDP sink into
// the matching bounded channel, escalating to a fatal shutdown when the
// ErrorTracker trips.
func (g *HostCaptureGraph) Run(barrier *Barrier) {
	g.wg.Add(2)
	go g.pumpVideo(barrier)
	go g.pumpAudio(barrier)
}

func (g *HostCaptureGraph) pumpVideo(barrier *Barrier) {
	defer g.wg.Done()
	g.sd.Register("capture video pump")
	barrier.Arrive()
	buf := make([]byte, 1500)
	for {
		n, _, err := g.videoConn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				// Stop() closed the bridge socket; this is our own shutdown
				// signal, not a transient or fatal stream error.
				g.sd.CheckForError()
				return
			}
			if outcome := g.tracker.OnOutcome(false); outcome == errtracker.Fatal {
				g.sd.NotifyError(false, "capture video pump: fatal rtp read failures")
				return
			}
			continue
		}
		g.tracker.OnOutcome(true)
		payload := make([]byte, n)
		copy(payload, buf[:n])
		g.Video.Send(media.Sample{Kind: media.VideoRTPPacket, Payload: payload})
	}
}

func (g *HostCaptureGraph) pumpAudio(barrier *Barrier) {
	defer g.wg.Done()
	g.sd.Register("capture audio pump")
	barrier.Arrive()
	buf := make([]byte, 1500)
	for {
		n, _, err := g.audioConn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				g.sd.CheckForError()
				return
			}
			if outcome := g.tracker.OnOutcome(false); outcome == errtracker.Fatal {
				g.sd.NotifyError(false, "capture audio pump: fatal rtp read failures")
				return
			}
			continue
		}
		g.tracker.OnOutcome(true)
		payload := make([]byte, n)
		copy(payload, buf[:n])
		g.Audio.Send(media.Sample{Kind: media.AudioEncodedFrame, Payload: payload, Duration: media.OpusSampleDuration(2, 48000)})
	}
}

// Stop flips the pipeline to a terminated state and waits for both pumps to
// exit, closing their channels so any downstream consumer wakes.
func (g *HostCaptureGraph) Stop() {
	g.cancel()
	g.videoConn.Close()
	g.audioConn.Close()
	g.wg.Wait()
	_ = g.cmd.Wait()
	g.Video.Close()
	g.Audio.Close()
	logx.Info(component, "host capture graph stopped", logx.Fields{})
}

// ClientPlaybackGraph is the one-pipeline, two-source template from §4.7:
// inbound RTP for video and audio is written into the playback pipeline's
// UDP sources for depay/decode/render.
type ClientPlaybackGraph struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	wg     sync.WaitGroup

	videoConn net.Conn
	audioConn net.Conn

	Video *media.Channel
	Audio *media.Channel

	tracker *errtracker.Tracker
	sd      *shutdown.Coordinator
}

// NewClientPlaybackGraph starts the playback pipeline subprocess and dials
// its UDP sources.
func NewClientPlaybackGraph(v VideoConfig, a AudioConfig, sd *shutdown.Coordinator) (*ClientPlaybackGraph, error) {
	ctx, cancel := context.WithCancel(context.Background())
	args := clientPlaybackArgs(v, a)
	cmd := exec.CommandContext(ctx, "gst-launch-1.0", args...)

	videoConn, err := net.Dial("udp", fmt.Sprintf("127.0.0.1:%d", v.RTPPort))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("mediagraph: dial video rtp port: %w", err)
	}
	audioConn, err := net.Dial("udp", fmt.Sprintf("127.0.0.1:%d", a.RTPPort))
	if err != nil {
		cancel()
		videoConn.Close()
		return nil, fmt.Errorf("mediagraph: dial audio rtp port: %w", err)
	}

	g := &ClientPlaybackGraph{
		cmd:       cmd,
		cancel:    cancel,
		videoConn: videoConn,
		audioConn: audioConn,
		Video:     media.NewChannel(),
		Audio:     media.NewChannel(),
		tracker:   errtracker.New(500, 1000),
		sd:        sd,
	}

	if err := cmd.Start(); err != nil {
		cancel()
		videoConn.Close()
		audioConn.Close()
		return nil, fmt.Errorf("mediagraph: start playback pipeline: %w", err)
	}

	return g, nil
}

func clientPlaybackArgs(v VideoConfig, a AudioConfig) []string {
	return []string{
		"-q",
		"udpsrc", fmt.Sprintf("port=%d", v.RTPPort),
		"caps=application/x-rtp,media=video,clock-rate=90000,encoding-name=H264",
		"!", "rtpjitterbuffer",
		"!", "rtph264depay",
		"!", "h264parse",
		"!", "avdec_h264",
		"!", "queue",
		"!", "autovideosink",
		"udpsrc", fmt.Sprintf("port=%d", a.RTPPort),
		"caps=application/x-rtp,media=audio,payload=96,clock-rate=48000,encoding-name=OPUS",
		"!", "queue",
		"!", "rtpopusdepay",
		"!", "opusdec",
		"!", "audioconvert",
		"!", "audioresample",
		"!", "autoaudiosink",
	}
}

// Run starts the two pump tasks that forward inbound samples (delivered by
// WebRTCTransport's on-track reader via Video/Audio) into the pipeline's
// UDP sources.
func (g *ClientPlaybackGraph) Run(barrier *Barrier) {
	g.wg.Add(2)
	go g.pumpVideo(barrier)
	go g.pumpAudio(barrier)
}

func (g *ClientPlaybackGraph) pumpVideo(barrier *Barrier) {
	defer g.wg.Done()
	g.sd.Register("playback video pump")
	barrier.Arrive()
	for {
		s, ok := g.Video.Recv()
		if !ok {
			g.sd.CheckForError()
			return
		}
		if _, err := g.videoConn.Write(s.Payload); err != nil {
			if outcome := g.tracker.OnOutcome(false); outcome == errtracker.Fatal {
				g.sd.NotifyError(false, "playback video pump: fatal rtp write failures")
				return
			}
			continue
		}
		g.tracker.OnOutcome(true)
	}
}

func (g *ClientPlaybackGraph) pumpAudio(barrier *Barrier) {
	defer g.wg.Done()
	g.sd.Register("playback audio pump")
	barrier.Arrive()
	for {
		s, ok := g.Audio.Recv()
		if !ok {
			g.sd.CheckForError()
			return
		}
		if _, err := g.audioConn.Write(s.Payload); err != nil {
			if outcome := g.tracker.OnOutcome(false); outcome == errtracker.Fatal {
				g.sd.NotifyError(false, "playback audio pump: fatal rtp write failures")
				return
			}
			continue
		}
		g.tracker.OnOutcome(true)
	}
}

// Stop tears down the playback pipeline, closing the sample channels so the
// graph's own playback pumps observe the tombstone and exit.
func (g *ClientPlaybackGraph) Stop() {
	g.Video.Close()
	g.Audio.Close()
	g.cancel()
	g.videoConn.Close()
	g.audioConn.Close()
	g.wg.Wait()
	_ = g.cmd.Wait()
	logx.Info(component, "client playback graph stopped", logx.Fields{})
}
