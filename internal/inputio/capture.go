package inputio

import (
	"context"

	hook "github.com/robotn/gohook"

	"github.com/tpp-cloud-gaming/relay/internal/inputevent"
	"github.com/tpp-cloud-gaming/relay/internal/shutdown"
)

// SendChannel is the narrow surface capture needs to push an outbound
// frame, satisfied by an adapter over *webrtc.DataChannel and by a fake in
// tests.
type SendChannel interface {
	Ready() bool
	SendText(s string) error
}

// Capture mirrors input/input_capture.rs: it owns the keyboard-channel and
// mouse-channel senders and translates OS-level global hook events (from
// github.com/robotn/gohook, the pack's analogue of the original's winput
// message loop) into wire frames, dropping what §3 says to drop.
type Capture struct {
	keyboard SendChannel
	mouse    SendChannel
	stop     chan struct{}

	havePos      bool
	lastX, lastY int32
}

// NewCapture builds a Capture bound to the two outbound channels.
func NewCapture(keyboard, mouse SendChannel) *Capture {
	return &Capture{keyboard: keyboard, mouse: mouse, stop: make(chan struct{})}
}

// Start begins the global input hook and blocks until Stop is called, the
// hook's event stream ends, or sd raises a fatal error — whichever comes
// first, per §4.7's pump contract: a registered long-lived task races
// wait_for_error against its own work and decrements its outstanding count
// on observation. Call it from its own goroutine, after sd.Register.
func (c *Capture) Start(sd *shutdown.Coordinator) error {
	events := hook.Start()
	defer hook.End()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := sd.WaitForError(ctx); err == nil {
			cancel()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.stop:
			sd.CheckForError()
			return nil
		case ev, ok := <-events:
			if !ok {
				sd.CheckForError()
				return nil
			}
			c.dispatch(ev)
		}
	}
}

// Stop ends the capture loop.
func (c *Capture) Stop() { close(c.stop) }

func (c *Capture) dispatch(ev hook.Event) {
	var e inputevent.Event
	switch ev.Kind {
	case hook.KeyDown:
		e = inputevent.Event{Kind: inputevent.KeyDown, VK: uint8(ev.Rawcode)}
	case hook.KeyUp:
		e = inputevent.Event{Kind: inputevent.KeyUp, VK: uint8(ev.Rawcode)}
	case hook.MouseDown:
		e = inputevent.Event{Kind: inputevent.MouseButtonDown, Button: mouseButtonFromHook(uint8(ev.Button))}
	case hook.MouseUp:
		e = inputevent.Event{Kind: inputevent.MouseButtonUp, Button: mouseButtonFromHook(uint8(ev.Button))}
	case hook.MouseWheel:
		axis := inputevent.AxisVertical
		if ev.Rotation != 0 {
			axis = inputevent.AxisHorizontal
		}
		e = inputevent.Event{Kind: inputevent.Scroll, Axis: axis, Delta: float32(ev.Amount)}
	case hook.MouseMove:
		// gohook reports absolute screen position; the wire protocol wants
		// a relative delta, so track the last position ourselves.
		x, y := int32(ev.X), int32(ev.Y)
		if !c.havePos {
			c.havePos = true
			c.lastX, c.lastY = x, y
			return
		}
		dx, dy := x-c.lastX, y-c.lastY
		c.lastX, c.lastY = x, y
		e = inputevent.Event{Kind: inputevent.MouseMoveRelative, DX: dx, DY: dy}
	default:
		return
	}

	if e.IsDroppable() {
		return
	}

	if e.Kind == inputevent.MouseMoveRelative {
		c.sendMouse(e)
		return
	}
	c.sendKeyboard(e)
}

func (c *Capture) sendKeyboard(e inputevent.Event) {
	if c.keyboard == nil || !c.keyboard.Ready() {
		return
	}
	frame, err := EncodeKeyboardFrame(e)
	if err != nil {
		return
	}
	_ = c.keyboard.SendText(frame)
}

func (c *Capture) sendMouse(e inputevent.Event) {
	if c.mouse == nil || !c.mouse.Ready() {
		return
	}
	frame, err := EncodeMouseFrame(e)
	if err != nil {
		return
	}
	_ = c.mouse.SendText(frame)
}

func mouseButtonFromHook(b uint8) inputevent.MouseButton {
	switch b {
	case 1:
		return inputevent.ButtonLeft
	case 2:
		return inputevent.ButtonRight
	case 3:
		return inputevent.ButtonMiddle
	case 4:
		return inputevent.ButtonX1
	default:
		return inputevent.ButtonX2
	}
}
