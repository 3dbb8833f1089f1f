// Package webrtctransport builds the peer connection and wires its tracks
// and data channels to the rest of the session engine — grounded on
// webrtc/client.go (MediaEngine/codec registration, NewAPI, track
// construction, RTCP relay) and webrtc/sfu.go (on-track dispatch by codec
// MIME type, the per-sender RTCP-discard reader loop in
// relayRTCPToPublisher). Payload types follow §6 of the specification
// (Opus 111, H.264 96) rather than the teacher's own choice of 109 for
// H.264.
//
// Unlike the teacher's SFU, which reacts to RTCIceConnectionState::Failed
// by restarting ICE and treats ICE gathering completion as a trickle
// end-of-candidates signal, this transport does neither: gathering always
// runs to completion before the local description is handed to signaling
// (no trickle ICE), and only PeerConnectionState transitions are treated as
// authoritative for "peer gone" — ICEConnectionState is left to the ICE
// agent to recover on its own, per the open question resolved in §9.
package webrtctransport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pion/interceptor"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"

	"github.com/tpp-cloud-gaming/relay/internal/errtracker"
	"github.com/tpp-cloud-gaming/relay/internal/logx"
	"github.com/tpp-cloud-gaming/relay/internal/media"
	"github.com/tpp-cloud-gaming/relay/internal/shutdown"
	"github.com/tpp-cloud-gaming/relay/internal/signaling"
)

const component = "webrtctransport"

// Codec payload types and clock rates mandated by §6.
const (
	opusPayloadType = 111
	opusClockRate   = 48000
	opusChannels    = 2

	h264PayloadType = 96
	h264ClockRate   = 90000
)

const videoReadBufSize = 1400

// ICEServerConfig names one STUN or TURN server; Username/Credential are
// only used when non-empty (TURN).
type ICEServerConfig struct {
	URLs       []string
	Username   string
	Credential string
}

// Config parameterizes peer connection construction per §4.8 item 1.
type Config struct {
	ICEServers []ICEServerConfig
}

// Transport owns one peer connection and the bounded channels its tracks
// and data channels are bridged to.
type Transport struct {
	pc *webrtc.PeerConnection
	sd *shutdown.Coordinator

	connected chan struct{}

	// IncomingAudio/IncomingVideo are filled by the on-track readers and
	// drained by a ClientPlaybackGraph; they exist before any remote
	// track arrives so the orchestrator can wire them up ahead of
	// negotiation.
	IncomingAudio *media.Channel
	IncomingVideo *media.Channel

	// handlers maps a data-channel label to the function that wires it
	// up; registered by the orchestrator before negotiation, dispatched
	// from OnDataChannel.
	handlers map[string]func(DataChannel)
}

// DataChannel is the full surface Transport hands to latency/inputio
// handlers; *webrtc.DataChannel satisfies it directly via dcAdapter.
type DataChannel interface {
	Label() string
	OnOpen(func())
	OnMessage(func(data []byte))
	SendText(s string) error
	Ready() bool
}

// New builds the peer connection with the codecs, interceptors, and ICE
// servers required by §4.8 item 1.
func New(cfg Config, sd *shutdown.Coordinator) (*Transport, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:    webrtc.MimeTypeOpus,
			ClockRate:   opusClockRate,
			Channels:    opusChannels,
			SDPFmtpLine: "minptime=10;useinbandfec=1",
		},
		PayloadType: opusPayloadType,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("webrtctransport: register opus codec: %w", err)
	}
	if err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:    webrtc.MimeTypeH264,
			ClockRate:   h264ClockRate,
			SDPFmtpLine: "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f",
		},
		PayloadType: h264PayloadType,
	}, webrtc.RTPCodecTypeVideo); err != nil {
		return nil, fmt.Errorf("webrtctransport: register h264 codec: %w", err)
	}

	i := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
		return nil, fmt.Errorf("webrtctransport: register default interceptors: %w", err)
	}

	api := webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(i))

	iceServers := make([]webrtc.ICEServer, 0, len(cfg.ICEServers))
	for _, s := range cfg.ICEServers {
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}

	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
	if err != nil {
		return nil, fmt.Errorf("webrtctransport: new peer connection: %w", err)
	}

	t := &Transport{
		pc:            pc,
		sd:            sd,
		connected:     make(chan struct{}),
		IncomingAudio: media.NewChannel(),
		IncomingVideo: media.NewChannel(),
		handlers:      make(map[string]func(DataChannel)),
	}
	t.wireEvents()
	return t, nil
}

// PeerConnection exposes the underlying connection. The orchestrator does
// not use it: it opens latency/mouse/keyboard on the host side through
// Transport.CreateDataChannel.
func (t *Transport) PeerConnection() *webrtc.PeerConnection { return t.pc }

// OnDataChannelLabel registers the handler to run when the named
// data channel arrives via OnDataChannel (client side, which receives
// channels the host created).
func (t *Transport) OnDataChannelLabel(label string, handle func(DataChannel)) {
	t.handlers[label] = handle
}

// Connected is closed once the peer connection reaches PeerConnectionStateConnected.
func (t *Transport) Connected() <-chan struct{} { return t.connected }

func (t *Transport) wireEvents() {
	t.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		// §9: ICEConnectionState is informational only here — the ICE
		// agent may recover a Failed state on its own. Only
		// PeerConnectionState below is authoritative for teardown.
		logx.Info(component, "ice connection state changed", logx.Fields{"state": s.String()})
	})

	t.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		logx.Info(component, "peer connection state changed", logx.Fields{"state": s.String()})
		switch s {
		case webrtc.PeerConnectionStateConnected:
			select {
			case <-t.connected:
			default:
				close(t.connected)
			}
		case webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateDisconnected:
			// This callback is the orchestrator's own race winner surfacing
			// a fatal peer-gone event, not a task registered with sd, so it
			// raises with isOrigin=true and never decrements outstanding.
			t.sd.NotifyError(true, fmt.Sprintf("peer connection state: %s", s))
		}
	})

	t.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		handle, ok := t.handlers[dc.Label()]
		if !ok {
			logx.Info(component, "unhandled data channel opened", logx.Fields{"label": dc.Label()})
			return
		}
		handle(newDCAdapter(dc))
	})

	t.pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		switch remote.Codec().MimeType {
		case webrtc.MimeTypeOpus:
			go t.readAudioTrack(remote)
		case webrtc.MimeTypeH264:
			go t.readVideoTrack(remote)
		default:
			logx.Info(component, "on-track: unrecognized codec", logx.Fields{"mime": remote.Codec().MimeType})
		}
	})
}

// AudioTrack is the sample-track writer §4.8 item 2 calls for.
type AudioTrack struct {
	local  *webrtc.TrackLocalStaticSample
	sender *webrtc.RTPSender
}

// WriteSample writes one encoded Opus frame.
func (a *AudioTrack) WriteSample(s media.Sample) error {
	return a.local.WriteSample(pionmedia.Sample{Data: s.Payload, Duration: s.Duration})
}

// VideoTrack is the raw-RTP writer §4.8 item 2 calls for; the capture graph
// already payloads these packets, so writes go straight to the wire.
type VideoTrack struct {
	local  *webrtc.TrackLocalStaticRTP
	sender *webrtc.RTPSender
}

// WriteRTP forwards one already-payloaded RTP packet.
func (v *VideoTrack) WriteRTP(payload []byte) error {
	pkt := &rtp.Packet{}
	if err := pkt.Unmarshal(payload); err != nil {
		return fmt.Errorf("webrtctransport: parse video rtp packet: %w", err)
	}
	return v.local.WriteRTP(pkt)
}

// AddAudioTrack implements §4.8 item 2: adds an Opus track and starts an
// RTCP reader loop that discards bytes until shutdown, as
// relayRTCPToPublisher does in the teacher's SFU, so the interceptor stack
// never blocks waiting for RTCP to be read.
func (t *Transport) AddAudioTrack(trackID, streamID string) (*AudioTrack, error) {
	local, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeOpus,
		ClockRate: opusClockRate,
		Channels:  opusChannels,
	}, trackID, streamID)
	if err != nil {
		return nil, fmt.Errorf("webrtctransport: new audio track: %w", err)
	}
	sender, err := t.pc.AddTrack(local)
	if err != nil {
		return nil, fmt.Errorf("webrtctransport: add audio track: %w", err)
	}
	go discardRTCP(sender, "audio")
	return &AudioTrack{local: local, sender: sender}, nil
}

// AddVideoRTPTrack implements §4.8 item 2's raw-RTP video track.
func (t *Transport) AddVideoRTPTrack(trackID, streamID string) (*VideoTrack, error) {
	local, err := webrtc.NewTrackLocalStaticRTP(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeH264,
		ClockRate: h264ClockRate,
	}, trackID, streamID)
	if err != nil {
		return nil, fmt.Errorf("webrtctransport: new video track: %w", err)
	}
	sender, err := t.pc.AddTrack(local)
	if err != nil {
		return nil, fmt.Errorf("webrtctransport: add video track: %w", err)
	}
	go discardRTCP(sender, "video")
	return &VideoTrack{local: local, sender: sender}, nil
}

// discardRTCP mirrors relayRTCPToPublisher's read loop in webrtc/sfu.go,
// minus the forwarding: this is a leaf transport, not an SFU relaying to
// other peers, so PLI/FIR only need to be read off the wire so the
// interceptor stack never blocks — but still worth unmarshaling for a log
// line, the same dispatch the teacher's relay does before forwarding.
func discardRTCP(sender *webrtc.RTPSender, kind string) {
	buf := make([]byte, 1500)
	for {
		n, _, err := sender.Read(buf)
		if err != nil {
			logx.Info(component, "rtcp reader exiting", logx.Fields{"kind": kind, "reason": err.Error()})
			return
		}
		pkts, err := rtcp.Unmarshal(buf[:n])
		if err != nil {
			continue
		}
		for _, pkt := range pkts {
			switch pkt.(type) {
			case *rtcp.PictureLossIndication:
				logx.Info(component, "received picture loss indication", logx.Fields{"kind": kind})
			case *rtcp.FullIntraRequest:
				logx.Info(component, "received full intra request", logx.Fields{"kind": kind})
			}
		}
	}
}

func (t *Transport) readAudioTrack(remote *webrtc.TrackRemote) {
	t.sd.Register("webrtctransport audio reader")
	tracker := errtracker.New(500, 1000)
	for {
		pkt, _, err := remote.ReadRTP()
		if err != nil {
			if outcome := tracker.OnOutcome(false); outcome == errtracker.Fatal {
				t.sd.NotifyError(false, "audio on-track reader: fatal rtp read failures")
			}
			t.IncomingAudio.Close()
			return
		}
		tracker.OnOutcome(true)
		payload := make([]byte, len(pkt.Payload))
		copy(payload, pkt.Payload)
		t.IncomingAudio.Send(media.Sample{Kind: media.AudioEncodedFrame, Payload: payload, Duration: media.OpusSampleDuration(opusChannels, opusClockRate)})
	}
}

func (t *Transport) readVideoTrack(remote *webrtc.TrackRemote) {
	t.sd.Register("webrtctransport video reader")
	tracker := errtracker.New(500, 1000)
	buf := make([]byte, videoReadBufSize)
	for {
		n, err := remote.Read(buf)
		if err != nil {
			if outcome := tracker.OnOutcome(false); outcome == errtracker.Fatal {
				t.sd.NotifyError(false, "video on-track reader: fatal rtp read failures")
			}
			t.IncomingVideo.Close()
			return
		}
		tracker.OnOutcome(true)
		payload := make([]byte, n)
		copy(payload, buf[:n])
		t.IncomingVideo.Send(media.Sample{Kind: media.VideoRTPPacket, Payload: payload})
	}
}

// sessionDescription mirrors the JSON shape RFC 8829 expects for an SDP
// offer/answer, matching encoding/json's rendering of webrtc.SessionDescription.
type sessionDescription = webrtc.SessionDescription

// CreateOfferSDP builds a local offer, sets it, waits for ICE gathering to
// complete (no trickle, per §4.8 item 3), and returns it Base64-JSON
// encoded for the signaling client.
func (t *Transport) CreateOfferSDP(ctx context.Context) (string, error) {
	offer, err := t.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("webrtctransport: create offer: %w", err)
	}
	return t.setLocalAndGather(ctx, offer)
}

// CreateAnswerSDP mirrors CreateOfferSDP for the answering side.
func (t *Transport) CreateAnswerSDP(ctx context.Context) (string, error) {
	answer, err := t.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("webrtctransport: create answer: %w", err)
	}
	return t.setLocalAndGather(ctx, answer)
}

func (t *Transport) setLocalAndGather(ctx context.Context, desc webrtc.SessionDescription) (string, error) {
	gatherComplete := webrtc.GatheringCompletePromise(t.pc)
	if err := t.pc.SetLocalDescription(desc); err != nil {
		return "", fmt.Errorf("webrtctransport: set local description: %w", err)
	}
	select {
	case <-gatherComplete:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return encodeSDP(*t.pc.LocalDescription())
}

// SetRemoteSDP decodes a Base64-JSON remote description and applies it.
func (t *Transport) SetRemoteSDP(encoded string) error {
	desc, err := decodeSDP(encoded)
	if err != nil {
		return err
	}
	if err := t.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("webrtctransport: set remote description: %w", err)
	}
	return nil
}

func encodeSDP(desc sessionDescription) (string, error) {
	b, err := json.Marshal(desc)
	if err != nil {
		return "", fmt.Errorf("webrtctransport: marshal sdp: %w", err)
	}
	return signaling.EncodeSDP(b), nil
}

func decodeSDP(encoded string) (sessionDescription, error) {
	b, err := signaling.DecodeSDP(encoded)
	if err != nil {
		return sessionDescription{}, fmt.Errorf("webrtctransport: decode sdp: %w", err)
	}
	var desc sessionDescription
	if err := json.Unmarshal(b, &desc); err != nil {
		return sessionDescription{}, fmt.Errorf("webrtctransport: unmarshal sdp: %w", err)
	}
	return desc, nil
}

// Close tears down the peer connection.
func (t *Transport) Close() error {
	return t.pc.Close()
}

// dcAdapter wraps *webrtc.DataChannel to satisfy inputio.DataChannel,
// inputio.SendChannel, and latency.DataChannel at once — each package
// depends on a narrower slice of this same surface.
type dcAdapter struct {
	dc *webrtc.DataChannel
}

func newDCAdapter(dc *webrtc.DataChannel) *dcAdapter { return &dcAdapter{dc: dc} }

func (a *dcAdapter) Label() string { return a.dc.Label() }

func (a *dcAdapter) OnOpen(f func()) { a.dc.OnOpen(f) }

func (a *dcAdapter) OnMessage(f func(data []byte)) {
	a.dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		f(msg.Data)
	})
}

func (a *dcAdapter) SendText(s string) error {
	return a.dc.SendText(s)
}

func (a *dcAdapter) Ready() bool {
	return a.dc.ReadyState() == webrtc.DataChannelStateOpen
}

// CreateDataChannel opens a data channel with default options, announced
// in-band so the remote peer receives it via OnDataChannel (the host side,
// which initiates latency/mouse/keyboard before offering).
func (t *Transport) CreateDataChannel(label string) (DataChannel, error) {
	dc, err := t.pc.CreateDataChannel(label, nil)
	if err != nil {
		return nil, fmt.Errorf("webrtctransport: create data channel %q: %w", label, err)
	}
	return newDCAdapter(dc), nil
}
