// Package signaling is a thin, typed envelope over one text WebSocket to
// the broker that pairs peers by username and relays SDP offers/answers.
// All messages are "TAG|arg1|...|argN" in literal UTF-8, delimiter "|" —
// grounded on websocketprotocol/socket_protocol.rs in the original Rust
// engine, carried over the same gorilla/websocket client the teacher uses
// for its own signaling hub (websocket/websocket.go, webrtc/client.go).
package signaling

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/tpp-cloud-gaming/relay/internal/logx"
)

const component = "signaling"

// ClientRequest is the game-session request a client sends the broker,
// relayed to a waiting host via sdpRequestFrom.
type ClientRequest struct {
	ClientName string
	GameName   string
	GamePath   string
	Minutes    string
}

// wsConn is the subset of *websocket.Conn the Client depends on, so tests
// can substitute an in-memory fake without a real broker.
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Client is a typed envelope over one text WebSocket connection to the
// signaling broker.
type Client struct {
	conn wsConn
}

// Dial connects to the broker's WebSocket URL.
func Dial(url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("signaling: dial %s: %w", url, err)
	}
	return &Client{conn: conn}, nil
}

// newWithConn is used by tests to inject a fake connection.
func newWithConn(conn wsConn) *Client { return &Client{conn: conn} }

// Close closes the underlying WebSocket connection.
func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) send(parts ...string) error {
	line := strings.Join(parts, "|")
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
		return fmt.Errorf("signaling: send %q: %w", parts[0], err)
	}
	return nil
}

// recv reads one text frame and splits it on "|". Unrecognized tags are
// logged and skipped by the caller's loop — a receive failure itself maps
// to a fatal session error for the orchestrator.
func (c *Client) recv() ([]string, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("signaling: receive: %w", err)
	}
	return strings.Split(string(data), "|"), nil
}

// ---- Host (offerer) operations ----

// AnnounceOffer tells the broker this user is offering a session.
func (c *Client) AnnounceOffer(user string) error {
	return c.send(tagInitOfferer, user)
}

// AwaitClientRequest blocks until the broker relays a client's session
// request, skipping any unrecognized tag in the meantime.
func (c *Client) AwaitClientRequest() (ClientRequest, error) {
	for {
		parts, err := c.recv()
		if err != nil {
			return ClientRequest{}, err
		}
		if parts[0] != tagSDPRequestFrom {
			logx.Info(component, "skipping unrecognized tag while awaiting client request", logx.Fields{"tag": parts[0]})
			continue
		}
		if len(parts) < 5 {
			return ClientRequest{}, fmt.Errorf("signaling: malformed %s: %q", tagSDPRequestFrom, parts)
		}
		return ClientRequest{
			ClientName: parts[1],
			GameName:   parts[2],
			GamePath:   parts[3],
			Minutes:    parts[4],
		}, nil
	}
}

// SendOfferSDP sends the offerer's SDP, base64-encoded, to the named client.
func (c *Client) SendOfferSDP(client, sdpBase64 string) error {
	return c.send(tagOffererSDP, client, sdpBase64)
}

// AwaitClientSDP blocks until the client's SDP answer arrives.
func (c *Client) AwaitClientSDP() (string, error) {
	for {
		parts, err := c.recv()
		if err != nil {
			return "", err
		}
		if parts[0] != tagSDPClient {
			logx.Info(component, "skipping unrecognized tag while awaiting client sdp", logx.Fields{"tag": parts[0]})
			continue
		}
		if len(parts) < 2 {
			return "", fmt.Errorf("signaling: malformed %s: %q", tagSDPClient, parts)
		}
		return parts[1], nil
	}
}

// StartSession tells the broker the session handshake is complete.
func (c *Client) StartSession(host, client, minutes string) error {
	return c.send(tagStartSession, host, client, minutes)
}

// ForceStop tells the broker to end the named user's session.
func (c *Client) ForceStop(user string) error {
	return c.send(tagForceStopSession, user)
}

// AwaitStop blocks until the broker notifies that the session has ended.
func (c *Client) AwaitStop() error {
	for {
		parts, err := c.recv()
		if err != nil {
			return err
		}
		if parts[0] == tagNotifEndSession {
			return nil
		}
		logx.Info(component, "skipping unrecognized tag while awaiting stop", logx.Fields{"tag": parts[0]})
	}
}

// ---- Client (player) operations ----

// AnnounceClient tells the broker this user wants to join peer's game.
func (c *Client) AnnounceClient(user, peer, game, minutes string) error {
	return c.send(tagInitClient, user, peer, game, minutes)
}

// AwaitOffererSDP blocks until the host's SDP offer arrives.
func (c *Client) AwaitOffererSDP() (string, error) {
	for {
		parts, err := c.recv()
		if err != nil {
			return "", err
		}
		if parts[0] != tagSDPOfferer {
			logx.Info(component, "skipping unrecognized tag while awaiting offerer sdp", logx.Fields{"tag": parts[0]})
			continue
		}
		if len(parts) < 2 {
			return "", fmt.Errorf("signaling: malformed %s: %q", tagSDPOfferer, parts)
		}
		return parts[1], nil
	}
}

// SendClientSDP sends the client's SDP answer, base64-encoded, to the host.
func (c *Client) SendClientSDP(peer, sdpBase64 string) error {
	return c.send(tagClientSDP, peer, sdpBase64)
}

// EncodeSDP base64-(URL-safe)-encodes a UTF-8 JSON session description per
// RFC 8829's session-description shape, as required by §6.
func EncodeSDP(jsonBytes []byte) string {
	return base64.URLEncoding.EncodeToString(jsonBytes)
}

// DecodeSDP reverses EncodeSDP.
func DecodeSDP(encoded string) ([]byte, error) {
	b, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("signaling: decode sdp: %w", err)
	}
	return b, nil
}
