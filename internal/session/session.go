// Package session implements the top-level state machine that sequences
// signaling, media/input pipelines, and the WebRTC transport for one
// session — grounded on the orchestrator skeleton in §4.9 and, for its
// event-racing shape, on the teacher's own accept-loop-plus-fan-in pattern
// in websocket/websocket.go (one goroutine per event source, fed into a
// single select). The Orchestrator creates a fresh shutdown.Coordinator for
// each session it runs. Coordinator has no operation that closes it; a
// session ends through NotifyError and WaitForShutdown, and NotifyError is
// also called by other packages (the transport, the media pumps).
package session

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/tpp-cloud-gaming/relay/internal/front"
	"github.com/tpp-cloud-gaming/relay/internal/gamelauncher"
	"github.com/tpp-cloud-gaming/relay/internal/inputio"
	"github.com/tpp-cloud-gaming/relay/internal/latency"
	"github.com/tpp-cloud-gaming/relay/internal/logx"
	"github.com/tpp-cloud-gaming/relay/internal/media"
	"github.com/tpp-cloud-gaming/relay/internal/mediagraph"
	"github.com/tpp-cloud-gaming/relay/internal/shutdown"
	"github.com/tpp-cloud-gaming/relay/internal/signaling"
	"github.com/tpp-cloud-gaming/relay/internal/webrtctransport"
)

const component = "session"

// Fixed loopback RTP bridge ports. One process only ever runs one role at a
// time, so a single fixed pair per role is sufficient (§3: "exactly one
// Session exists per process lifetime").
const (
	hostVideoRTPPort   = 5000
	hostAudioRTPPort   = 5002
	clientVideoRTPPort = 6000
	clientAudioRTPPort = 6002
)

// State names the orchestrator's position in the §4.9 lifecycle, exposed
// for logging and tests.
type State int

const (
	Idle State = iota
	WaitingForUI
	Signaling
	AssemblingMedia
	Negotiating
	Connected
	Draining
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case WaitingForUI:
		return "WaitingForUI"
	case Signaling:
		return "Signaling"
	case AssemblingMedia:
		return "AssemblingMedia"
	case Negotiating:
		return "Negotiating"
	case Connected:
		return "Connected"
	case Draining:
		return "Draining"
	case Closed:
		return "Closed"
	}
	return "Unknown"
}

// Config parameterizes both roles' orchestrator loops.
type Config struct {
	SignalingURL string
	ICEServers   []webrtctransport.ICEServerConfig
	SNTPPool     string
	Launcher     gamelauncher.Launcher
	VideoWindow  mediagraph.VideoConfig
	Audio        mediagraph.AudioConfig
}

// Orchestrator owns the front-end listener and runs the Idle-to-Idle loop
// described in §4.9: on each UI request it runs exactly one session to
// completion (or abort), then returns to waiting for the next request.
type Orchestrator struct {
	cfg Config
	fc  *front.Connection
}

// New builds an Orchestrator bound to the front-end's two fixed TCP ports.
func New(cfg Config) (*Orchestrator, error) {
	fc, err := front.Listen()
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	return &Orchestrator{cfg: cfg, fc: fc}, nil
}

// Run loops accepting one UI request at a time until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		logx.Info(component, "state transition", logx.Fields{"state": WaitingForUI.String()})
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-o.fc.AwaitRequest():
			o.runOne(ctx, req)
		}
	}
}

func (o *Orchestrator) runOne(ctx context.Context, req front.Request) {
	switch req.Kind {
	case front.SenderRequest:
		if err := o.runHost(ctx, req.User); err != nil {
			logx.Error(component, "host session ended", err, logx.Fields{"user": req.User})
		}
	case front.ReceiverRequest:
		if err := o.runClient(ctx, req); err != nil {
			logx.Error(component, "client session ended", err, logx.Fields{"user": req.User})
		}
	}
}

// runHost implements §4.9's host path, steps 1-11.
func (o *Orchestrator) runHost(ctx context.Context, user string) error {
	sd := shutdown.New()
	logx.Info(component, "state transition", logx.Fields{"state": Signaling.String()})

	sig, err := signaling.Dial(o.cfg.SignalingURL)
	if err != nil {
		return fmt.Errorf("session: host: connect signaling: %w", err)
	}
	defer sig.Close()

	if err := sig.AnnounceOffer(user); err != nil {
		return fmt.Errorf("session: host: announce offer: %w", err)
	}

	clientReq, aborted, err := o.raceClientRequest(sig)
	if err != nil {
		return fmt.Errorf("session: host: await client request: %w", err)
	}
	if aborted {
		logx.Info(component, "ui disconnected before a client request arrived", logx.Fields{"user": user})
		return nil
	}

	gameHandle, err := o.cfg.Launcher.Launch(ctx, clientReq.GamePath)
	if err != nil {
		return fmt.Errorf("session: host: launch game: %w", err)
	}

	logx.Info(component, "state transition", logx.Fields{"state": AssemblingMedia.String()})

	videoCfg := o.cfg.VideoWindow
	videoCfg.RTPPort = hostVideoRTPPort
	audioCfg := o.cfg.Audio
	audioCfg.RTPPort = hostAudioRTPPort

	graph, err := mediagraph.NewHostCaptureGraph(videoCfg, audioCfg, sd)
	if err != nil {
		gameHandle.Terminate()
		return fmt.Errorf("session: host: build capture graph: %w", err)
	}

	transport, err := webrtctransport.New(webrtctransport.Config{ICEServers: o.cfg.ICEServers}, sd)
	if err != nil {
		graph.Stop()
		gameHandle.Terminate()
		return fmt.Errorf("session: host: build transport: %w", err)
	}

	streamID := uuid.NewString()
	audioTrack, err := transport.AddAudioTrack("audio", streamID)
	if err != nil {
		transport.Close()
		graph.Stop()
		gameHandle.Terminate()
		return fmt.Errorf("session: host: add audio track: %w", err)
	}
	videoTrack, err := transport.AddVideoRTPTrack("video", streamID)
	if err != nil {
		transport.Close()
		graph.Stop()
		gameHandle.Terminate()
		return fmt.Errorf("session: host: add video track: %w", err)
	}

	latencyDC, err := transport.CreateDataChannel(latency.ChannelLabel)
	if err != nil {
		transport.Close()
		graph.Stop()
		gameHandle.Terminate()
		return fmt.Errorf("session: host: create latency channel: %w", err)
	}
	keyboardDC, err := transport.CreateDataChannel(inputio.KeyboardChannelLabel)
	if err != nil {
		transport.Close()
		graph.Stop()
		gameHandle.Terminate()
		return fmt.Errorf("session: host: create keyboard channel: %w", err)
	}
	mouseDC, err := transport.CreateDataChannel(inputio.MouseChannelLabel)
	if err != nil {
		transport.Close()
		graph.Stop()
		gameHandle.Terminate()
		return fmt.Errorf("session: host: create mouse channel: %w", err)
	}

	latencyStop := make(chan struct{})
	latency.StartSender(latencyDC, latency.NewSNTPClock(o.cfg.SNTPPool), latencyStop)
	inputio.StartKeyboardInject(keyboardDC)
	inputio.StartMouseInject(mouseDC)

	barrier := mediagraph.NewBarrier(4)
	barrier.Arrive() // pipeline construction complete
	graph.Run(barrier)
	barrier.Arrive() // input inject handlers registered (no dedicated loop to await)

	logx.Info(component, "state transition", logx.Fields{"state": Negotiating.String()})

	offerCtx, cancelOffer := context.WithTimeout(ctx, 10*time.Second)
	offerSDP, err := transport.CreateOfferSDP(offerCtx)
	cancelOffer()
	if err != nil {
		close(latencyStop)
		transport.Close()
		graph.Stop()
		gameHandle.Terminate()
		return fmt.Errorf("session: host: create offer: %w", err)
	}
	if err := sig.SendOfferSDP(clientReq.ClientName, offerSDP); err != nil {
		close(latencyStop)
		transport.Close()
		graph.Stop()
		gameHandle.Terminate()
		return fmt.Errorf("session: host: send offer: %w", err)
	}
	answerSDP, err := sig.AwaitClientSDP()
	if err != nil {
		close(latencyStop)
		transport.Close()
		graph.Stop()
		gameHandle.Terminate()
		return fmt.Errorf("session: host: await client sdp: %w", err)
	}
	if err := transport.SetRemoteSDP(answerSDP); err != nil {
		close(latencyStop)
		transport.Close()
		graph.Stop()
		gameHandle.Terminate()
		return fmt.Errorf("session: host: set remote sdp: %w", err)
	}

	barrierCtx, cancelBarrier := context.WithTimeout(ctx, 30*time.Second)
	barrierErr := barrier.Wait(barrierCtx)
	cancelBarrier()
	if barrierErr != nil {
		close(latencyStop)
		transport.Close()
		graph.Stop()
		gameHandle.Terminate()
		return fmt.Errorf("session: host: pipeline readiness barrier: %w", barrierErr)
	}

	select {
	case <-transport.Connected():
	case <-ctx.Done():
		close(latencyStop)
		transport.Close()
		graph.Stop()
		gameHandle.Terminate()
		return ctx.Err()
	}

	logx.Info(component, "state transition", logx.Fields{"state": Connected.String()})

	sd.Register("host send video pump")
	sd.Register("host send audio pump")
	go sendVideoPump(graph.Video, videoTrack, sd)
	go sendAudioPump(graph.Audio, audioTrack, sd)

	if err := sig.StartSession(user, clientReq.ClientName, clientReq.Minutes); err != nil {
		logx.Error(component, "start session notification failed", err, logx.Fields{})
	}

	o.awaitTermination(ctx, sd, o.fc.AwaitDisconnect(), nil)

	logx.Info(component, "state transition", logx.Fields{"state": Draining.String()})
	close(latencyStop)
	_ = sig.ForceStop(user)
	transport.Close()
	graph.Stop()
	gameHandle.Terminate()
	logx.Info(component, "state transition", logx.Fields{"state": Closed.String()})
	return nil
}

// raceClientRequest races the broker's sdpRequestFrom message against a UI
// disconnect, matching §4.9 host step 3.
func (o *Orchestrator) raceClientRequest(sig *signaling.Client) (signaling.ClientRequest, bool, error) {
	type result struct {
		req signaling.ClientRequest
		err error
	}
	reqCh := make(chan result, 1)
	go func() {
		req, err := sig.AwaitClientRequest()
		reqCh <- result{req: req, err: err}
	}()

	select {
	case r := <-reqCh:
		return r.req, false, r.err
	case <-o.fc.AwaitDisconnect():
		return signaling.ClientRequest{}, true, nil
	}
}

// runClient implements §4.9's client path, steps 1-7.
func (o *Orchestrator) runClient(ctx context.Context, req front.Request) error {
	sd := shutdown.New()
	logx.Info(component, "state transition", logx.Fields{"state": Signaling.String()})

	sig, err := signaling.Dial(o.cfg.SignalingURL)
	if err != nil {
		return fmt.Errorf("session: client: connect signaling: %w", err)
	}
	defer sig.Close()

	if err := sig.AnnounceClient(req.User, req.Peer, req.Game, req.Minutes); err != nil {
		return fmt.Errorf("session: client: announce: %w", err)
	}

	logx.Info(component, "state transition", logx.Fields{"state": AssemblingMedia.String()})

	videoCfg := o.cfg.VideoWindow
	videoCfg.RTPPort = clientVideoRTPPort
	audioCfg := o.cfg.Audio
	audioCfg.RTPPort = clientAudioRTPPort

	playback, err := mediagraph.NewClientPlaybackGraph(videoCfg, audioCfg, sd)
	if err != nil {
		return fmt.Errorf("session: client: build playback graph: %w", err)
	}

	transport, err := webrtctransport.New(webrtctransport.Config{ICEServers: o.cfg.ICEServers}, sd)
	if err != nil {
		playback.Stop()
		return fmt.Errorf("session: client: build transport: %w", err)
	}

	logReader, err := newSessionLog()
	if err != nil {
		transport.Close()
		playback.Stop()
		return fmt.Errorf("session: client: open latency log: %w", err)
	}

	captureReady := make(chan *inputio.Capture, 1)
	keyboardReady := make(chan inputio.SendChannel, 1)
	mouseReady := make(chan inputio.SendChannel, 1)

	transport.OnDataChannelLabel(latency.ChannelLabel, func(dc webrtctransport.DataChannel) {
		latency.StartReceiver(dc, latency.NewSNTPClock(o.cfg.SNTPPool), logReader)
	})
	transport.OnDataChannelLabel(inputio.KeyboardChannelLabel, func(dc webrtctransport.DataChannel) {
		keyboardReady <- dc
	})
	transport.OnDataChannelLabel(inputio.MouseChannelLabel, func(dc webrtctransport.DataChannel) {
		mouseReady <- dc
	})

	barrier := mediagraph.NewBarrier(4)
	barrier.Arrive() // pipeline construction complete
	playback.Run(barrier)

	go func() {
		keyboard := <-keyboardReady
		mouse := <-mouseReady
		capture := inputio.NewCapture(keyboard, mouse)
		captureReady <- capture
		sd.Register("client input capture")
		barrier.Arrive() // input sub-task ready
		if err := capture.Start(sd); err != nil {
			logx.Error(component, "input capture exited", err, logx.Fields{})
		}
	}()

	logx.Info(component, "state transition", logx.Fields{"state": Negotiating.String()})

	offerSDP, err := sig.AwaitOffererSDP()
	if err != nil {
		transport.Close()
		playback.Stop()
		return fmt.Errorf("session: client: await offerer sdp: %w", err)
	}
	if err := transport.SetRemoteSDP(offerSDP); err != nil {
		transport.Close()
		playback.Stop()
		return fmt.Errorf("session: client: set remote sdp: %w", err)
	}

	answerCtx, cancelAnswer := context.WithTimeout(ctx, 10*time.Second)
	answerSDP, err := transport.CreateAnswerSDP(answerCtx)
	cancelAnswer()
	if err != nil {
		transport.Close()
		playback.Stop()
		return fmt.Errorf("session: client: create answer: %w", err)
	}
	if err := sig.SendClientSDP(req.Peer, answerSDP); err != nil {
		transport.Close()
		playback.Stop()
		return fmt.Errorf("session: client: send answer: %w", err)
	}

	select {
	case <-transport.Connected():
	case <-ctx.Done():
		transport.Close()
		playback.Stop()
		return ctx.Err()
	}

	logx.Info(component, "state transition", logx.Fields{"state": Connected.String()})

	sd.Register("client recv video pump")
	sd.Register("client recv audio pump")
	go forwardIncoming(transport.IncomingVideo, playback.Video, sd)
	go forwardIncoming(transport.IncomingAudio, playback.Audio, sd)

	o.awaitTermination(ctx, sd, nil, sig)

	logx.Info(component, "state transition", logx.Fields{"state": Draining.String()})
	select {
	case capture := <-captureReady:
		capture.Stop()
	default:
		// the keyboard/mouse channels never opened (negotiation aborted
		// before input capture started) — nothing to stop.
	}
	transport.Close()
	playback.Stop()
	logx.Info(component, "state transition", logx.Fields{"state": Closed.String()})
	return nil
}

// awaitTermination races wait_for_shutdown, an optional UI disconnect
// channel, and (client-side) the broker's notifEndSession — the shared
// race in §4.9 step 10/step 7.
func (o *Orchestrator) awaitTermination(ctx context.Context, sd *shutdown.Coordinator, uiDisconnect <-chan struct{}, sig *signaling.Client) {
	done := make(chan string, 3)

	go func() {
		if err := sd.WaitForShutdown(ctx); err == nil {
			done <- "fatal error"
		}
	}()
	if uiDisconnect != nil {
		go func() {
			<-uiDisconnect
			sd.NotifyError(true, "ui disconnect")
			done <- "ui disconnect"
		}()
	}
	if sig != nil {
		go func() {
			if err := sig.AwaitStop(); err == nil {
				sd.NotifyError(true, "broker stop")
				done <- "broker stop"
			}
		}()
	}

	reason := <-done
	logx.Info(component, "session terminating", logx.Fields{"reason": reason})
}

// runPump races wait_for_error against work, per §4.7/§5's pump contract:
// tasks race wait_for_error against their own work and exit within a
// bounded number of yields of observing shutdown. wait_for_error's own
// acknowledgement decrements this task's outstanding count; the CheckForError
// fallback on a tombstone exit covers the case where the permit was already
// released but not yet observed by the background wait.
func runPump(sd *shutdown.Coordinator, recv func(ctx context.Context) (media.Sample, bool, error), write func(media.Sample) error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := sd.WaitForError(ctx); err == nil {
			cancel()
		}
	}()

	for {
		s, ok, err := recv(ctx)
		if err != nil {
			return
		}
		if !ok {
			sd.CheckForError()
			return
		}
		if werr := write(s); werr != nil {
			logx.Error(component, "send pump write failed", werr, logx.Fields{})
		}
	}
}

func sendVideoPump(ch *media.Channel, track *webrtctransport.VideoTrack, sd *shutdown.Coordinator) {
	runPump(sd, ch.RecvOrDone, func(s media.Sample) error { return track.WriteRTP(s.Payload) })
}

func sendAudioPump(ch *media.Channel, track *webrtctransport.AudioTrack, sd *shutdown.Coordinator) {
	runPump(sd, ch.RecvOrDone, track.WriteSample)
}

// newSessionLog opens the per-session latency CSV named per §6:
// "YYYY-MM-DD_HH-MM-SS.txt" in the working directory.
func newSessionLog() (*latency.Log, error) {
	name := time.Now().Format("2006-01-02_15-04-05") + ".txt"
	f, err := os.Create(name)
	if err != nil {
		return nil, fmt.Errorf("session: create latency log %q: %w", name, err)
	}
	return latency.NewLog(f), nil
}

func forwardIncoming(src, dst *media.Channel, sd *shutdown.Coordinator) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := sd.WaitForError(ctx); err == nil {
			cancel()
		}
	}()

	for {
		s, ok, err := src.RecvOrDone(ctx)
		if err != nil {
			return
		}
		if !ok {
			sd.CheckForError()
			dst.Close()
			return
		}
		dst.Send(s)
	}
}
