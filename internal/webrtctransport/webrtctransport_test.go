package webrtctransport

import (
	"testing"

	"github.com/pion/webrtc/v4"

	"github.com/tpp-cloud-gaming/relay/internal/shutdown"
)

func TestEncodeDecodeSDPRoundTrip(t *testing.T) {
	desc := sessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0\r\no=- 0 0 IN IP4 127.0.0.1\r\n"}
	encoded, err := encodeSDP(desc)
	if err != nil {
		t.Fatalf("encodeSDP: %v", err)
	}
	got, err := decodeSDP(encoded)
	if err != nil {
		t.Fatalf("decodeSDP: %v", err)
	}
	if got.Type != desc.Type || got.SDP != desc.SDP {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", got, desc)
	}
}

func TestDecodeSDPRejectsMalformedBase64(t *testing.T) {
	if _, err := decodeSDP("not-valid-base64!!!"); err == nil {
		t.Fatal("expected an error decoding malformed base64")
	}
}

func TestNewRegistersCodecsAndBuildsPeerConnection(t *testing.T) {
	sd := shutdown.New()
	tr, err := New(Config{ICEServers: []ICEServerConfig{{URLs: []string{"stun:stun.l.google.com:19302"}}}}, sd)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer tr.Close()
	if tr.PeerConnection() == nil {
		t.Fatal("expected a non-nil peer connection")
	}
	if tr.IncomingAudio == nil || tr.IncomingVideo == nil {
		t.Fatal("expected incoming media channels to be pre-created")
	}
}

func TestCreateDataChannelAdapterExposesLabel(t *testing.T) {
	sd := shutdown.New()
	tr, err := New(Config{}, sd)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer tr.Close()

	dc, err := tr.CreateDataChannel("latency")
	if err != nil {
		t.Fatalf("CreateDataChannel: %v", err)
	}
	if dc.Label() != "latency" {
		t.Fatalf("Label() = %q, want %q", dc.Label(), "latency")
	}
	// An unnegotiated channel on an unconnected peer connection is never
	// ready; Ready() must reflect that rather than assume open.
	if dc.Ready() {
		t.Fatal("expected a freshly created, unnegotiated channel to not be ready")
	}
}

func TestOnDataChannelLabelDispatchesRegisteredHandler(t *testing.T) {
	sd := shutdown.New()
	tr, err := New(Config{}, sd)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer tr.Close()

	called := make(chan string, 1)
	tr.OnDataChannelLabel("keyboard", func(dc DataChannel) {
		called <- dc.Label()
	})

	pc := tr.PeerConnection()
	// Simulate the remote side opening a channel by looking up the
	// handler registered for "keyboard" and calling it directly with a
	// locally created channel; this checks the label registration without
	// a full two-peer negotiation, and does not go through pion's
	// OnDataChannel callback.
	dc, err := pc.CreateDataChannel("keyboard", nil)
	if err != nil {
		t.Fatalf("CreateDataChannel: %v", err)
	}
	tr.handlers["keyboard"](newDCAdapter(dc))

	select {
	case label := <-called:
		if label != "keyboard" {
			t.Fatalf("dispatched label = %q, want %q", label, "keyboard")
		}
	default:
		t.Fatal("expected the registered handler to run")
	}
}
