package signaling

import (
	"errors"
	"testing"
)

// fakeConn is an in-memory wsConn: outbound frames land in sent, inbound
// frames are served in order from recvQueue.
type fakeConn struct {
	sent      []string
	recvQueue [][]byte
	recvErr   error
	closed    bool
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.sent = append(f.sent, string(data))
	return nil
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	if f.recvErr != nil {
		return 0, nil, f.recvErr
	}
	if len(f.recvQueue) == 0 {
		return 0, nil, errors.New("fakeConn: queue exhausted")
	}
	msg := f.recvQueue[0]
	f.recvQueue = f.recvQueue[1:]
	return 0, msg, nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func TestHostHandshakeHappyPath(t *testing.T) {
	conn := &fakeConn{
		recvQueue: [][]byte{
			[]byte("sdpRequestFrom|bob|pong|C:\\games\\pong.exe|30"),
			[]byte("sdpClient|c29tZS1zZHA="),
			[]byte("notifEndSession"),
		},
	}
	c := newWithConn(conn)

	if err := c.AnnounceOffer("alice"); err != nil {
		t.Fatalf("AnnounceOffer: %v", err)
	}
	req, err := c.AwaitClientRequest()
	if err != nil {
		t.Fatalf("AwaitClientRequest: %v", err)
	}
	want := ClientRequest{ClientName: "bob", GameName: "pong", GamePath: `C:\games\pong.exe`, Minutes: "30"}
	if req != want {
		t.Fatalf("got %+v, want %+v", req, want)
	}

	if err := c.SendOfferSDP("bob", "aGVsbG8="); err != nil {
		t.Fatalf("SendOfferSDP: %v", err)
	}
	sdp, err := c.AwaitClientSDP()
	if err != nil {
		t.Fatalf("AwaitClientSDP: %v", err)
	}
	if sdp != "c29tZS1zZHA=" {
		t.Fatalf("sdp = %q", sdp)
	}

	if err := c.StartSession("alice", "bob", "30"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if err := c.AwaitStop(); err != nil {
		t.Fatalf("AwaitStop: %v", err)
	}

	wantSent := []string{
		"initOfferer|alice",
		"offererSdp|bob|aGVsbG8=",
		"startSession|alice|bob|30",
	}
	if len(conn.sent) != len(wantSent) {
		t.Fatalf("sent = %v, want %v", conn.sent, wantSent)
	}
	for i, w := range wantSent {
		if conn.sent[i] != w {
			t.Fatalf("sent[%d] = %q, want %q", i, conn.sent[i], w)
		}
	}
}

func TestAwaitSkipsUnrecognizedTags(t *testing.T) {
	conn := &fakeConn{
		recvQueue: [][]byte{
			[]byte("someStaleTag|junk"),
			[]byte("sdpOfferer|b2ZmZXI="),
		},
	}
	c := newWithConn(conn)
	sdp, err := c.AwaitOffererSDP()
	if err != nil {
		t.Fatalf("AwaitOffererSDP: %v", err)
	}
	if sdp != "b2ZmZXI=" {
		t.Fatalf("sdp = %q", sdp)
	}
}

func TestReceiveFailureIsAnError(t *testing.T) {
	conn := &fakeConn{recvErr: errors.New("connection reset")}
	c := newWithConn(conn)
	if _, err := c.AwaitClientSDP(); err == nil {
		t.Fatal("expected error on broken connection")
	}
}

func TestSDPRoundTrip(t *testing.T) {
	original := []byte(`{"type":"offer","sdp":"v=0..."}`)
	encoded := EncodeSDP(original)
	decoded, err := DecodeSDP(encoded)
	if err != nil {
		t.Fatalf("DecodeSDP: %v", err)
	}
	if string(decoded) != string(original) {
		t.Fatalf("round trip mismatch: got %q, want %q", decoded, original)
	}
}

func TestClientHandshake(t *testing.T) {
	conn := &fakeConn{
		recvQueue: [][]byte{
			[]byte("sdpOfferer|b2ZmZXI="),
		},
	}
	c := newWithConn(conn)
	if err := c.AnnounceClient("bob", "alice", "pong", "30"); err != nil {
		t.Fatalf("AnnounceClient: %v", err)
	}
	if _, err := c.AwaitOffererSDP(); err != nil {
		t.Fatalf("AwaitOffererSDP: %v", err)
	}
	if err := c.SendClientSDP("alice", "YW5zd2Vy"); err != nil {
		t.Fatalf("SendClientSDP: %v", err)
	}
	wantSent := []string{"initClient|bob|alice|pong|30", "clientSdp|alice|YW5zd2Vy"}
	for i, w := range wantSent {
		if conn.sent[i] != w {
			t.Fatalf("sent[%d] = %q, want %q", i, conn.sent[i], w)
		}
	}
}
