// Package front implements the local, line-delimited TCP protocol the
// desktop UI uses to request a session and signal disconnect — grounded on
// front_connection/front_protocol.rs, expressed with the teacher's own
// net.Listener + bufio line-reading idiom (see websocket/websocket.go's
// ReadPump and the teacher's runFFmpegCLI UDP listeners for the same
// accept-then-read-loop shape).
package front

import (
	"bufio"
	"fmt"
	"net"
	"strings"

	"github.com/tpp-cloud-gaming/relay/internal/logx"
)

const component = "front"

// Ports fixed by §6: session-request traffic arrives on 2930, disconnect
// notifications on 3132.
const (
	RequestPort    = 2930
	DisconnectPort = 3132
)

// RequestKind distinguishes the two shapes of session-start line.
type RequestKind int

const (
	// SenderRequest corresponds to "startOffering|user".
	SenderRequest RequestKind = iota
	// ReceiverRequest corresponds to "startGameWithUser|user|peer|game|minutes".
	ReceiverRequest
)

// Request is one parsed session-start line from the UI.
type Request struct {
	Kind    RequestKind
	User    string
	Peer    string
	Game    string
	Minutes string
}

// Connection listens on the two fixed ports and exposes the two suspension
// points the orchestrator races: AwaitRequest and AwaitDisconnect.
type Connection struct {
	requests    chan Request
	disconnects chan struct{}
}

// Listen binds both fixed ports and starts accepting. It does not block; the
// returned Connection's channels deliver parsed events as they arrive.
func Listen() (*Connection, error) {
	reqLn, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", RequestPort))
	if err != nil {
		return nil, fmt.Errorf("front: listen request port: %w", err)
	}
	discLn, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", DisconnectPort))
	if err != nil {
		reqLn.Close()
		return nil, fmt.Errorf("front: listen disconnect port: %w", err)
	}

	c := &Connection{
		requests:    make(chan Request, 8),
		disconnects: make(chan struct{}, 8),
	}

	go c.acceptLoop(reqLn, c.handleRequestLine)
	go c.acceptLoop(discLn, c.handleDisconnectLine)

	return c, nil
}

func (c *Connection) acceptLoop(ln net.Listener, handle func(line string)) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			logx.Error(component, "accept failed", err, logx.Fields{"addr": ln.Addr()})
			return
		}
		go c.readLines(conn, handle)
	}
}

func (c *Connection) readLines(conn net.Conn, handle func(line string)) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		handle(line)
	}
}

func (c *Connection) handleRequestLine(line string) {
	parts := strings.Split(line, "|")
	switch parts[0] {
	case "startOffering":
		if len(parts) < 2 {
			logx.Info(component, "malformed startOffering, ignored", logx.Fields{"line": line})
			return
		}
		c.requests <- Request{Kind: SenderRequest, User: parts[1]}
	case "startGameWithUser":
		if len(parts) < 5 {
			logx.Info(component, "malformed startGameWithUser, ignored", logx.Fields{"line": line})
			return
		}
		c.requests <- Request{
			Kind:    ReceiverRequest,
			User:    parts[1],
			Peer:    parts[2],
			Game:    parts[3],
			Minutes: parts[4],
		}
	default:
		logx.Info(component, "ignoring unrecognized front line", logx.Fields{"line": line})
	}
}

func (c *Connection) handleDisconnectLine(line string) {
	if line != "disconnect" {
		logx.Info(component, "ignoring unrecognized disconnect line", logx.Fields{"line": line})
		return
	}
	select {
	case c.disconnects <- struct{}{}:
	default:
	}
}

// AwaitRequest returns the channel that delivers each session-start line
// the UI sends; receiving from it blocks until one arrives.
func (c *Connection) AwaitRequest() <-chan Request { return c.requests }

// AwaitDisconnect returns the channel that signals each "disconnect" the UI
// sends on the disconnect port; receiving from it blocks until one arrives.
func (c *Connection) AwaitDisconnect() <-chan struct{} { return c.disconnects }
